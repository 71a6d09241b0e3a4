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

package connector

import (
	"context"
	"errors"
	"fmt"

	"maunium.net/go/mautrix/event"

	"go.mau.fi/mautrix-telegram/pkg/attachment"
	"go.mau.fi/mautrix-telegram/pkg/telegram"
)

var errPhotoWithoutSizes = errors.New("photo has no sizes")

// copyTelegramFile downloads a file through the observer's session and
// uploads it to Matrix as the sender.
func (portal *Portal) copyTelegramFile(ctx context.Context, observer telegram.Observer, sender MatrixIntent, loc telegram.FileLocation, fileID int64, mimeHint string, size int) (*attachment.Reuploaded, error) {
	file, err := observer.GetClient().GetFile(ctx, loc)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	mimeType := file.MimeType
	if mimeType == "" {
		mimeType = mimeHint
	}
	meta := attachment.Describe(file.Data, mimeType, file.Extension, file.MsgType)
	fileName := attachment.FileName(fileID, meta.Extension)
	mxc, err := sender.UploadMedia(ctx, file.Data, meta.MimeType, fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to upload file: %w", err)
	}
	if size == 0 {
		size = loc.Size
	}
	if size == 0 {
		size = len(file.Data)
	}
	return &attachment.Reuploaded{
		URL:      mxc,
		FileName: fileName,
		MsgType:  meta.MsgType,
		MimeType: meta.MimeType,
		Size:     size,
		Width:    meta.Width,
		Height:   meta.Height,
	}, nil
}

func (portal *Portal) copyTelegramPhoto(ctx context.Context, observer telegram.Observer, sender MatrixIntent, photo *telegram.Photo) (*attachment.Reuploaded, error) {
	size, ok := telegram.LargestPhotoSize(photo.Sizes)
	if !ok {
		return nil, errPhotoWithoutSizes
	}
	uploaded, err := portal.copyTelegramFile(ctx, observer, sender, size.Location, photo.ID, "image/jpeg", size.Size)
	if err != nil {
		return nil, err
	}
	uploaded.MsgType = event.MsgImage
	uploaded.Width = size.W
	uploaded.Height = size.H
	uploaded.Orientation = 0
	return uploaded, nil
}

func (portal *Portal) copyTelegramDocument(ctx context.Context, observer telegram.Observer, sender MatrixIntent, doc *telegram.Document) (*attachment.Reuploaded, error) {
	uploaded, err := portal.copyTelegramFile(ctx, observer, sender, doc.Location, doc.ID, doc.MimeType, doc.Size)
	if err != nil {
		return nil, err
	}
	if doc.FileName != "" {
		uploaded.FileName = doc.FileName
	}
	return uploaded, nil
}
