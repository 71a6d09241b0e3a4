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

package msgconv

import (
	"context"

	"maunium.net/go/mautrix/id"
)

// GhostResolver maps a Telegram user ID to the Matrix user that represents it
// and a display name to use in mentions.
type GhostResolver func(ctx context.Context, userID int64) (mxid id.UserID, displayname string)

// GhostParser is the reverse of GhostResolver: it extracts a Telegram user ID
// from a Matrix user ID, or returns false if the user isn't bridged.
type GhostParser func(mxid id.UserID) (userID int64, ok bool)

// Formatter converts message text between Telegram entities and Matrix HTML.
type Formatter struct {
	ResolveGhost GhostResolver
	ParseGhost   GhostParser
}

func NewFormatter(resolve GhostResolver, parse GhostParser) *Formatter {
	return &Formatter{
		ResolveGhost: resolve,
		ParseGhost:   parse,
	}
}
