// mautrix-telegram - A Matrix-Telegram puppeting bridge.
// Copyright (C) 2026 Tulir Asokan
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package attachment contains helpers for describing files copied from Telegram to Matrix.
package attachment

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

const fallbackMimeType = "application/octet-stream"

// Reuploaded is a Telegram file that has been uploaded to the Matrix media repository.
type Reuploaded struct {
	URL      id.ContentURI
	FileName string
	MsgType  event.MessageType

	MimeType string
	Size     int
	Width    int
	Height   int
	// Orientation is always 0, Telegram doesn't provide EXIF orientation for photo sizes.
	Orientation int
}

func (r *Reuploaded) Info() *event.FileInfo {
	return &event.FileInfo{
		MimeType: r.MimeType,
		Size:     r.Size,
		Width:    r.Width,
		Height:   r.Height,
	}
}

// Content returns a message event content referencing the uploaded file.
func (r *Reuploaded) Content(body string) *event.MessageEventContent {
	return &event.MessageEventContent{
		MsgType:  r.MsgType,
		Body:     body,
		URL:      r.URL.CUString(),
		Info:     r.Info(),
		FileName: r.FileName,
	}
}

type Metadata struct {
	MimeType  string
	Extension string
	MsgType   event.MessageType
	Width     int
	Height    int
}

// Describe fills in whatever metadata is missing from what the Telegram client reported.
func Describe(data []byte, mimeType, extension string, msgType event.MessageType) Metadata {
	var detected *mimetype.MIME
	if mimeType == "" || mimeType == fallbackMimeType {
		detected = mimetype.Detect(data)
		mimeType = detected.String()
	}
	extension = strings.TrimPrefix(extension, ".")
	if extension == "" {
		if known := mimetype.Lookup(mimeType); known != nil {
			extension = strings.TrimPrefix(known.Extension(), ".")
		}
	}
	if extension == "" {
		if detected == nil {
			detected = mimetype.Detect(data)
		}
		extension = strings.TrimPrefix(detected.Extension(), ".")
	}
	if extension == "" {
		extension = "bin"
	}
	if msgType == "" {
		msgType = MsgTypeForMime(mimeType)
	}
	meta := Metadata{
		MimeType:  mimeType,
		Extension: extension,
		MsgType:   msgType,
	}
	if strings.HasPrefix(mimeType, "image/") {
		meta.Width, meta.Height, _ = ImageSize(data)
	}
	return meta
}

func MsgTypeForMime(mimeType string) event.MessageType {
	mainType, _, _ := strings.Cut(mimeType, "/")
	switch mainType {
	case "image":
		return event.MsgImage
	case "audio":
		return event.MsgAudio
	case "video":
		return event.MsgVideo
	default:
		return event.MsgFile
	}
}

// ImageSize decodes the dimensions of an image without decoding the pixels.
// Stickers are usually webp, which the standard library can't decode.
func ImageSize(data []byte) (width, height int, ok bool) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, false
	}
	return cfg.Width, cfg.Height, true
}

func FileName[T int64 | string](id T, extension string) string {
	return fmt.Sprintf("%v.%s", id, extension)
}
