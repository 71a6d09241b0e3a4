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

	"go.mau.fi/mautrix-telegram/pkg/telegram"
)

func (portal *Portal) fetchInfo(ctx context.Context, observer telegram.Observer) (*telegram.ChatFull, error) {
	if !portal.loadAccessHash(ctx, observer) {
		return nil, ErrAccessHashUnavailable
	}
	return portal.Peer.GetInfo(ctx, observer, portal.accessHash(observer))
}

// UpdateInfo syncs the portal metadata with chat info from the observer's
// dialog list. If info is nil, it's fetched from Telegram.
func (portal *Portal) UpdateInfo(ctx context.Context, observer telegram.Observer, info *telegram.ChatFull) (bool, error) {
	if info == nil {
		portal.log.Debug().Msg("Chat info not given, fetching from Telegram")
		var err error
		info, err = portal.fetchInfo(ctx, observer)
		if err != nil {
			return false, err
		}
	}
	changed := false
	if portal.Peer.IsChannel() && info.Info.AccessHash != 0 {
		changed = portal.AccessHashes.Set(observer.GetTelegramID(), info.Info.AccessHash) || changed
	}
	if portal.IsPrivateChat() {
		if info.User == nil {
			return false, fmt.Errorf("%w: no user in private chat info", ErrMissingChatInfo)
		}
		puppet, err := portal.bridge.Users.GetPuppetByTelegramID(ctx, info.User.ID)
		if err != nil {
			return false, fmt.Errorf("failed to get puppet of %d: %w", info.User.ID, err)
		}
		if err = puppet.UpdateInfo(ctx, observer, info.User, true); err != nil {
			return false, fmt.Errorf("failed to update puppet info: %w", err)
		}
	} else if info.Info.Photo != nil && info.Info.Photo.Big != nil {
		avatarChanged, err := portal.UpdateAvatar(ctx, observer, info.Info.Photo.Big)
		if err != nil {
			portal.log.Err(err).Msg("Failed to update avatar")
		}
		changed = avatarChanged || changed
	}

	portal.lock.Lock()
	oldTitle := portal.Peer.Title
	peerChanged := portal.Peer.UpdateInfo(&info.Info)
	newTitle := portal.Peer.Title
	roomID := portal.MXID
	portal.lock.Unlock()
	changed = peerChanged || changed
	if changed {
		if err := portal.save(ctx); err != nil {
			return changed, fmt.Errorf("failed to save portal: %w", err)
		}
	}
	if roomID != "" && oldTitle != newTitle {
		if err := portal.bridge.Bot.SetRoomName(ctx, roomID, newTitle); err != nil {
			portal.log.Warn().Err(err).Msg("Failed to update room name")
		}
	}
	return changed, nil
}

// SyncTelegramUsers makes the ghosts of the given chat members join the
// room. If users is nil, the member list is fetched from Telegram. Avatars
// aren't synced to avoid hitting flood limits in big chats.
func (portal *Portal) SyncTelegramUsers(ctx context.Context, observer telegram.Observer, users []telegram.UserInfo) error {
	roomID := portal.RoomID()
	if roomID == "" {
		return nil
	}
	if users == nil {
		info, err := portal.fetchInfo(ctx, observer)
		if err != nil {
			return err
		}
		users = info.Users
	}
	var errs []error
	for i := range users {
		userInfo := &users[i]
		puppet, err := portal.bridge.Users.GetPuppetByTelegramID(ctx, userInfo.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to get puppet of %d: %w", userInfo.ID, err))
			continue
		}
		if err = puppet.UpdateInfo(ctx, observer, userInfo, false); err != nil {
			portal.log.Warn().Err(err).Int64("user_id", userInfo.ID).Msg("Failed to update puppet info")
		}
		if err = puppet.Intent().EnsureJoined(ctx, roomID); err != nil {
			errs = append(errs, fmt.Errorf("failed to join puppet of %d: %w", userInfo.ID, err))
		}
	}
	return errors.Join(errs...)
}
