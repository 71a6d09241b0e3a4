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

// Package telegram contains the subset of the Telegram data model that the
// portal core consumes, along with the client contract that a Telegram
// session must implement. The session itself (MTProto, auth, retries) lives
// outside this module.
package telegram

import (
	"context"
	"errors"
)

// ErrInvalidAccessHash should be wrapped by clients when Telegram rejects a
// request because the access hash it was made with is stale or belongs to a
// different account.
var ErrInvalidAccessHash = errors.New("invalid access hash")

// Client is an authenticated Telegram session belonging to one account.
type Client interface {
	// GetChatInfo fetches the metadata and member list of a chat.
	GetChatInfo(ctx context.Context, peer InputPeer) (*ChatFull, error)
	// ResolveAccessHash finds the access hash this account must use to read
	// the given channel.
	ResolveAccessHash(ctx context.Context, channelID int64) (int64, error)
	// GetFile downloads the file at the given location.
	GetFile(ctx context.Context, loc FileLocation) (*File, error)
	SendMessage(ctx context.Context, peer InputPeer, text string, entities []MessageEntity) error
	SendMedia(ctx context.Context, peer InputPeer, media InputMedia) error
}

// Observer is a Telegram account whose point of view is used to read chats.
type Observer interface {
	GetTelegramID() int64
	GetClient() Client
}
