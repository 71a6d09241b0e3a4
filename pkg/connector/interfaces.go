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
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"go.mau.fi/mautrix-telegram/database"
	"go.mau.fi/mautrix-telegram/pkg/telegram"
	"go.mau.fi/mautrix-telegram/pkg/tgid"
)

var (
	ErrAccessHashUnavailable = errors.New("failed to load access hash")
	ErrInvalidGeoURI         = errors.New("invalid geo URI")
	ErrMissingChatInfo       = errors.New("chat info is missing data")
)

// MatrixIntent is the subset of the Matrix client API that portals use.
// WrapIntent adapts an appservice intent to it.
type MatrixIntent interface {
	GetMXID() id.UserID
	CreateRoom(ctx context.Context, req *mautrix.ReqCreateRoom) (id.RoomID, error)
	InviteUser(ctx context.Context, roomID id.RoomID, userID id.UserID) error
	KickUser(ctx context.Context, roomID id.RoomID, userID id.UserID, reason string) error
	EnsureJoined(ctx context.Context, roomID id.RoomID) error
	LeaveRoom(ctx context.Context, roomID id.RoomID) error
	SetRoomName(ctx context.Context, roomID id.RoomID, name string) error
	SetRoomTopic(ctx context.Context, roomID id.RoomID, topic string) error
	SetRoomAvatar(ctx context.Context, roomID id.RoomID, avatarURL id.ContentURI) error
	SendMessage(ctx context.Context, roomID id.RoomID, content *event.MessageEventContent) (id.EventID, error)
	UserTyping(ctx context.Context, roomID id.RoomID, typing bool, timeout time.Duration) error
	UploadMedia(ctx context.Context, data []byte, mimeType, fileName string) (id.ContentURI, error)
}

// Puppet is the Matrix ghost of a Telegram account.
type Puppet interface {
	GetTelegramID() int64
	GetDisplayname() string
	Intent() MatrixIntent
	// UpdateInfo syncs the ghost's profile. Avatars are optional since
	// fetching them for every member of a large chat gets rate limited.
	UpdateInfo(ctx context.Context, observer telegram.Observer, info *telegram.UserInfo, updateAvatar bool) error
}

// User is a Matrix user who is logged into Telegram.
type User interface {
	telegram.Observer
	GetMXID() id.UserID
	JoinedPortal(ctx context.Context, key tgid.PortalKey) error
	LeftPortal(ctx context.Context, key tgid.PortalKey) error
}

type UserDirectory interface {
	GetPuppetByTelegramID(ctx context.Context, userID int64) (Puppet, error)
	// GetUserByTelegramID returns nil without an error if nobody is logged in as the given account.
	GetUserByTelegramID(ctx context.Context, userID int64) (User, error)
	ParsePuppetMXID(mxid id.UserID) (int64, bool)
}

// Formatter converts message text between the two networks.
type Formatter interface {
	TelegramToMatrix(ctx context.Context, text string, entities []telegram.MessageEntity) string
	MatrixToTelegram(ctx context.Context, html string) (string, []telegram.MessageEntity)
}

// PortalStore persists portals. *database.PortalQuery implements it.
type PortalStore interface {
	GetByKey(ctx context.Context, key tgid.PortalKey) (*database.Portal, error)
	GetByMXID(ctx context.Context, mxid id.RoomID) (*database.Portal, error)
	GetAll(ctx context.Context) ([]*database.Portal, error)
	Put(ctx context.Context, portal *database.Portal) error
}

// PortalRepository tracks the live portals. *TelegramBridge implements it.
type PortalRepository interface {
	GetPortalByPeer(ctx context.Context, peer *tgid.Peer) (*Portal, error)
	GetExistingPortalByKey(ctx context.Context, key tgid.PortalKey) (*Portal, error)
	GetPortalByMXID(ctx context.Context, mxid id.RoomID) (*Portal, error)
	GetAllPortals(ctx context.Context) ([]*Portal, error)
	RoomCreated(portal *Portal)
}

var (
	_ PortalStore      = (*database.PortalQuery)(nil)
	_ PortalRepository = (*TelegramBridge)(nil)
)
