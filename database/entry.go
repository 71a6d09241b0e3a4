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

package database

import (
	"errors"
	"fmt"

	"maunium.net/go/mautrix/id"

	"go.mau.fi/mautrix-telegram/pkg/tgid"
)

const EntryTypePortal = "portal"

var ErrNotPortalEntry = errors.New("entry is not a portal")

type PortalEntryData struct {
	Peer         *tgid.Peer          `json:"peer" yaml:"peer"`
	Photo        *PhotoRef           `json:"photo,omitempty" yaml:"photo,omitempty"`
	AvatarURL    id.ContentURIString `json:"avatarURL,omitempty" yaml:"avatar_url,omitempty"`
	AccessHashes *AccessHashMap      `json:"accessHashes,omitempty" yaml:"access_hashes,omitempty"`

	// Older snapshots stored the room ID inside the data object.
	RoomID id.RoomID `json:"roomID,omitempty" yaml:"-"`
}

// PortalEntry is the snapshot form of a portal used for import and export.
type PortalEntry struct {
	Type       string          `json:"type" yaml:"type"`
	ID         int64           `json:"id" yaml:"id"`
	ReceiverID int64           `json:"receiverID" yaml:"receiver_id"`
	RoomID     id.RoomID       `json:"roomID,omitempty" yaml:"room_id,omitempty"`
	Data       PortalEntryData `json:"data" yaml:"data"`
}

func (p *Portal) ToEntry() *PortalEntry {
	entry := &PortalEntry{
		Type:       EntryTypePortal,
		ID:         p.Peer.ID,
		ReceiverID: p.Peer.ReceiverID,
		RoomID:     p.MXID,
		Data: PortalEntryData{
			Peer:  p.Peer,
			Photo: p.Photo,
		},
	}
	if !p.AvatarURL.IsEmpty() {
		entry.Data.AvatarURL = p.AvatarURL.CUString()
	}
	if p.Peer.IsChannel() && p.AccessHashes != nil {
		entry.Data.AccessHashes = p.AccessHashes
	}
	return entry
}

func PortalFromEntry(entry *PortalEntry) (*Portal, error) {
	if entry.Type != EntryTypePortal {
		return nil, fmt.Errorf("%w (type %q)", ErrNotPortalEntry, entry.Type)
	} else if entry.Data.Peer == nil {
		return nil, fmt.Errorf("portal entry %d-%d has no peer", entry.ID, entry.ReceiverID)
	}
	peer := *entry.Data.Peer
	if peer.ID != entry.ID || peer.ReceiverID != entry.ReceiverID {
		return nil, fmt.Errorf("portal entry %d-%d contains peer %s", entry.ID, entry.ReceiverID, peer.Key())
	} else if err := peer.Validate(); err != nil {
		return nil, err
	}
	portal := NewPortal(&peer)
	portal.MXID = entry.RoomID
	if portal.MXID == "" {
		portal.MXID = entry.Data.RoomID
	}
	portal.Photo = entry.Data.Photo
	if entry.Data.AvatarURL != "" {
		avatarURL, err := id.ParseContentURI(string(entry.Data.AvatarURL))
		if err != nil {
			return nil, fmt.Errorf("invalid avatar URL in portal entry %s: %w", peer.Key(), err)
		}
		portal.AvatarURL = avatarURL
	}
	if portal.AccessHashes != nil && entry.Data.AccessHashes != nil {
		for _, pair := range entry.Data.AccessHashes.Pairs() {
			portal.AccessHashes.Set(pair[0], pair[1])
		}
	}
	return portal, nil
}
