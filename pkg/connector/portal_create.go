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

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/id"

	"go.mau.fi/mautrix-telegram/pkg/telegram"
	"go.mau.fi/mautrix-telegram/pkg/tgid"
)

type CreateRoomResult struct {
	RoomID id.RoomID
	// Created is only true for the call that actually created the room.
	Created bool
}

// CreateMatrixRoom makes sure the portal has a Matrix room. If the room
// already exists, the given users are invited to it (unless disabled in the
// config). Concurrent calls share a single creation attempt.
func (portal *Portal) CreateMatrixRoom(ctx context.Context, observer telegram.Observer, invite []id.UserID) (*CreateRoomResult, error) {
	if roomID := portal.RoomID(); roomID != "" {
		if portal.bridge.Config.InviteOnCreate {
			if err := portal.Invite(ctx, invite...); err != nil {
				portal.log.Warn().Err(err).Msg("Failed to invite users to existing room")
			}
		}
		return &CreateRoomResult{RoomID: roomID}, nil
	}

	var ranCreation bool
	resultChan := portal.bridge.roomCreation.DoChan(portal.Key().String(), func() (any, error) {
		ranCreation = true
		// The creation is shared with other callers, so it must not be
		// cancelled just because the first caller stops waiting.
		return portal.createMatrixRoom(context.WithoutCancel(ctx), observer, invite)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return nil, fmt.Errorf("failed to create room: %w", res.Err)
		}
		result := res.Val.(*CreateRoomResult)
		if !ranCreation {
			return &CreateRoomResult{RoomID: result.RoomID}, nil
		}
		return result, nil
	}
}

func (portal *Portal) createMatrixRoom(ctx context.Context, observer telegram.Observer, invite []id.UserID) (*CreateRoomResult, error) {
	if roomID := portal.RoomID(); roomID != "" {
		return &CreateRoomResult{RoomID: roomID}, nil
	}
	log := portal.log.With().Str("action", "create matrix room").Logger()
	ctx = log.WithContext(ctx)
	log.Info().Msg("Creating Matrix room")

	if !portal.loadAccessHash(ctx, observer) {
		return nil, ErrAccessHashUnavailable
	}
	info, err := portal.Peer.GetInfo(ctx, observer, portal.accessHash(observer))
	if err != nil {
		return nil, err
	}

	cfg := portal.bridge.Config
	req := &mautrix.ReqCreateRoom{
		Visibility: "private",
		Preset:     "private_chat",
		Invite:     invite,
	}
	if !cfg.FederateRooms {
		req.CreationContent = map[string]any{"m.federate": false}
	}
	intent := portal.bridge.Bot
	switch portal.Peer.Type {
	case telegram.PeerTypeChat, telegram.PeerTypeChannel:
		req.Name = info.Info.Title
		req.Topic = info.Info.About
		if portal.Peer.IsChannel() && info.Info.Username != "" {
			req.Visibility = "public"
			req.Preset = "public_chat"
			req.RoomAliasName = cfg.FormatAlias(info.Info.Username)
		}
	case telegram.PeerTypeUser:
		if info.User == nil {
			return nil, fmt.Errorf("%w: no user in private chat info", ErrMissingChatInfo)
		}
		puppet, err := portal.bridge.Users.GetPuppetByTelegramID(ctx, info.User.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to get puppet of %d: %w", info.User.ID, err)
		}
		if err = puppet.UpdateInfo(ctx, observer, info.User, true); err != nil {
			log.Warn().Err(err).Int64("user_id", info.User.ID).Msg("Failed to update puppet info")
		}
		intent = puppet.Intent()
		if portal.Peer.IsSelfChat() {
			req.Name = cfg.SavedMessagesName
		}
		req.Topic = cfg.PrivateChatTopic
		req.IsDirect = true
	default:
		return nil, fmt.Errorf("%w %q", tgid.ErrInvalidPeerType, portal.Peer.Type)
	}

	roomID, err := intent.CreateRoom(ctx, req)
	if err != nil {
		return nil, err
	}
	portal.lock.Lock()
	portal.MXID = roomID
	if !portal.Peer.IsPrivate() {
		portal.Peer.UpdateInfo(&info.Info)
	}
	portal.lock.Unlock()
	log = log.With().Stringer("room_id", roomID).Logger()
	ctx = log.WithContext(ctx)
	log.Info().Msg("Matrix room created")

	portal.repo.RoomCreated(portal)
	if err = portal.save(ctx); err != nil {
		log.Err(err).Msg("Failed to save portal after creating room")
	}

	if !portal.IsPrivateChat() {
		users := info.Users
		if users == nil {
			users = []telegram.UserInfo{}
		}
		if err = portal.SyncTelegramUsers(ctx, observer, users); err != nil {
			log.Err(err).Msg("Failed to sync chat members after creating room")
		}
		if info.Info.Photo != nil && info.Info.Photo.Big != nil {
			if _, err = portal.UpdateAvatar(ctx, observer, info.Info.Photo.Big); err != nil {
				log.Err(err).Msg("Failed to update avatar after creating room")
			}
		}
	}
	return &CreateRoomResult{RoomID: roomID, Created: true}, nil
}
