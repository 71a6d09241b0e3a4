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

package telegram

import (
	"maunium.net/go/mautrix/event"
)

type PeerType string

const (
	PeerTypeUser    PeerType = "user"
	PeerTypeChat    PeerType = "chat"
	PeerTypeChannel PeerType = "channel"
)

func (pt PeerType) IsValid() bool {
	switch pt {
	case PeerTypeUser, PeerTypeChat, PeerTypeChannel:
		return true
	default:
		return false
	}
}

// InputPeer addresses a chat in a request. AccessHash may be zero for peers
// whose access hash the session tracks on its own (users and basic groups).
type InputPeer struct {
	Type       PeerType
	ID         int64
	AccessHash int64
}

// FileLocation points at a file stored on one of Telegram's datacenters.
type FileLocation struct {
	DCID     int32 `json:"dc_id"`
	VolumeID int64 `json:"volume_id"`
	LocalID  int32 `json:"local_id"`
	Size     int   `json:"size,omitempty"`
}

type ChatPhoto struct {
	Small *FileLocation
	Big   *FileLocation
}

type UserInfo struct {
	ID         int64
	AccessHash int64
	FirstName  string
	LastName   string
	Username   string
	Phone      string
	Photo      *ChatPhoto
}

// ChatInfo describes a chat as seen from one account, either fetched
// directly or taken from that account's dialog list.
type ChatInfo struct {
	ID         int64
	AccessHash int64
	Title      string
	About      string
	Username   string
	Photo      *ChatPhoto
}

// ChatFull is the response to Client.GetChatInfo. For private chats User is
// set to the other party and Info only carries the ID.
type ChatFull struct {
	Info  ChatInfo
	User  *UserInfo
	Users []UserInfo
}

type PhotoSize struct {
	Type     string
	Location FileLocation
	W        int
	H        int
	Size     int
}

type Photo struct {
	ID    int64
	Sizes []PhotoSize
}

// LargestPhotoSize returns the size with the most pixels. The first of
// equally large sizes wins.
func LargestPhotoSize(sizes []PhotoSize) (PhotoSize, bool) {
	if len(sizes) == 0 {
		return PhotoSize{}, false
	}
	largest := sizes[0]
	largestPixels := largest.W * largest.H
	for _, size := range sizes[1:] {
		if pixels := size.W * size.H; pixels > largestPixels {
			largest = size
			largestPixels = pixels
		}
	}
	return largest, true
}

type Document struct {
	ID       int64
	Location FileLocation
	MimeType string
	FileName string
	Size     int
}

type GeoPoint struct {
	Lat  float64
	Long float64
}

// File is a downloaded file. MsgType classifies which Matrix message type
// the file should be sent as; clients may leave any of the metadata fields
// empty and let the portal detect them.
type File struct {
	Data      []byte
	Extension string
	MimeType  string
	MsgType   event.MessageType
}
