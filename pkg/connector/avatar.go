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
	"fmt"

	"go.mau.fi/mautrix-telegram/database"
	"go.mau.fi/mautrix-telegram/pkg/attachment"
	"go.mau.fi/mautrix-telegram/pkg/telegram"
)

// UpdateAvatar copies the given chat photo to Matrix and sets it as the room
// avatar. Private chats use the ghost's avatar instead, so they're skipped.
// The returned bool reports whether the cached avatar changed.
func (portal *Portal) UpdateAvatar(ctx context.Context, observer telegram.Observer, loc *telegram.FileLocation) (bool, error) {
	if loc == nil || portal.IsPrivateChat() {
		return false, nil
	}
	portal.avatarLock.Lock()
	defer portal.avatarLock.Unlock()

	portal.lock.RLock()
	unchanged := portal.Photo.Matches(loc) && !portal.AvatarURL.IsEmpty()
	avatarURL := portal.AvatarURL
	roomID := portal.MXID
	portal.lock.RUnlock()
	if unchanged {
		if roomID != "" && !portal.avatarSet {
			portal.setRoomAvatar(ctx)
		}
		return false, nil
	}

	file, err := observer.GetClient().GetFile(ctx, *loc)
	if err != nil {
		return false, fmt.Errorf("failed to download avatar: %w", err)
	}
	meta := attachment.Describe(file.Data, file.MimeType, file.Extension, file.MsgType)
	avatarURL, err = portal.bridge.Bot.UploadMedia(ctx, file.Data, meta.MimeType, avatarFileName(loc, meta.Extension))
	if err != nil {
		return false, fmt.Errorf("failed to upload avatar: %w", err)
	}

	portal.lock.Lock()
	portal.AvatarURL = avatarURL
	portal.Photo = database.NewPhotoRef(loc)
	portal.lock.Unlock()
	portal.avatarSet = false
	portal.log.Debug().
		Int64("volume_id", loc.VolumeID).
		Int32("local_id", loc.LocalID).
		Stringer("avatar_url", avatarURL).
		Msg("Updated portal avatar")
	if err = portal.save(ctx); err != nil {
		portal.log.Err(err).Msg("Failed to save portal after updating avatar")
	}
	if roomID != "" {
		portal.setRoomAvatar(ctx)
	}
	return true, nil
}

func avatarFileName(loc *telegram.FileLocation, extension string) string {
	return fmt.Sprintf("%d_%d.%s", loc.VolumeID, loc.LocalID, extension)
}

// setRoomAvatar must be called with avatarLock held.
func (portal *Portal) setRoomAvatar(ctx context.Context) {
	roomID := portal.RoomID()
	portal.lock.RLock()
	avatarURL := portal.AvatarURL
	portal.lock.RUnlock()
	if err := portal.bridge.Bot.SetRoomAvatar(ctx, roomID, avatarURL); err != nil {
		portal.log.Warn().Err(err).Msg("Failed to update room avatar")
	} else {
		portal.avatarSet = true
	}
}
