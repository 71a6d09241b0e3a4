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

	"github.com/rs/zerolog"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"go.mau.fi/mautrix-telegram/pkg/telegram"
)

const kickReasonLeftChat = "Left Telegram chat"

func (portal *Portal) HandleTelegramTyping(ctx context.Context, evt *telegram.Typing) error {
	roomID := portal.RoomID()
	if roomID == "" {
		return nil
	}
	puppet, err := portal.bridge.Users.GetPuppetByTelegramID(ctx, evt.From)
	if err != nil {
		return fmt.Errorf("failed to get puppet of %d: %w", evt.From, err)
	}
	return puppet.Intent().UserTyping(ctx, roomID, true, portal.bridge.Config.TypingTimeout)
}

func (portal *Portal) HandleTelegramServiceMessage(ctx context.Context, source User, evt *telegram.ServiceMessage) error {
	log := portal.log.With().
		Int64("message_id", evt.ID).
		Int64("sender_id", evt.From).
		Logger()
	ctx = log.WithContext(ctx)
	switch action := evt.Action.(type) {
	case telegram.ActionChatCreate:
		if _, err := portal.CreateMatrixRoom(ctx, source, []id.UserID{source.GetMXID()}); err != nil {
			return err
		}
		return portal.addTelegramUsers(ctx, action.Users)
	case telegram.ActionChatAddUser:
		return portal.addTelegramUsers(ctx, action.Users)
	case telegram.ActionChannelCreate:
		// Channels don't include the initial member list
		_, err := portal.CreateMatrixRoom(ctx, source, []id.UserID{source.GetMXID()})
		return err
	case telegram.ActionChatDeleteUser:
		return portal.removeTelegramUser(ctx, action.UserID)
	case telegram.ActionChatEditPhoto:
		size, ok := telegram.LargestPhotoSize(action.Photo.Sizes)
		if !ok {
			log.Warn().Msg("Chat photo change didn't include any sizes")
			return nil
		}
		_, err := portal.UpdateAvatar(ctx, source, &size.Location)
		return err
	case telegram.ActionChatEditTitle:
		return portal.updateTitle(ctx, action.Title)
	case telegram.ActionUnknown:
		log.Debug().Str("action_type", action.Type).Msg("Ignoring unhandled service message")
		return nil
	default:
		log.Debug().Type("action_type", action).Msg("Ignoring unhandled service message")
		return nil
	}
}

func (portal *Portal) addTelegramUsers(ctx context.Context, users []int64) error {
	roomID := portal.RoomID()
	if roomID == "" {
		zerolog.Ctx(ctx).Debug().Msg("Ignoring member addition in portal without room")
		return nil
	}
	var errs []error
	for _, userID := range users {
		user, err := portal.bridge.Users.GetUserByTelegramID(ctx, userID)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to get user %d: %w", userID, err))
		} else if user != nil {
			if err = user.JoinedPortal(ctx, portal.Key()); err != nil {
				errs = append(errs, err)
			}
			if err = portal.Invite(ctx, user.GetMXID()); err != nil {
				errs = append(errs, err)
			}
		}
		puppet, err := portal.bridge.Users.GetPuppetByTelegramID(ctx, userID)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to get puppet of %d: %w", userID, err))
		} else if err = puppet.Intent().EnsureJoined(ctx, roomID); err != nil {
			errs = append(errs, fmt.Errorf("failed to join puppet of %d: %w", userID, err))
		}
	}
	return errors.Join(errs...)
}

func (portal *Portal) removeTelegramUser(ctx context.Context, userID int64) error {
	roomID := portal.RoomID()
	if roomID == "" {
		zerolog.Ctx(ctx).Debug().Msg("Ignoring member removal in portal without room")
		return nil
	}
	var errs []error
	user, err := portal.bridge.Users.GetUserByTelegramID(ctx, userID)
	if err != nil {
		errs = append(errs, fmt.Errorf("failed to get user %d: %w", userID, err))
	} else if user != nil {
		if err = user.LeftPortal(ctx, portal.Key()); err != nil {
			errs = append(errs, err)
		}
		if err = portal.Kick(ctx, kickReasonLeftChat, user.GetMXID()); err != nil {
			errs = append(errs, err)
		}
	}
	puppet, err := portal.bridge.Users.GetPuppetByTelegramID(ctx, userID)
	if err != nil {
		errs = append(errs, fmt.Errorf("failed to get puppet of %d: %w", userID, err))
	} else if err = puppet.Intent().LeaveRoom(ctx, roomID); err != nil {
		errs = append(errs, fmt.Errorf("failed to leave room with puppet of %d: %w", userID, err))
	}
	return errors.Join(errs...)
}

func (portal *Portal) updateTitle(ctx context.Context, title string) error {
	portal.lock.Lock()
	portal.Peer.Title = title
	roomID := portal.MXID
	portal.lock.Unlock()
	if err := portal.save(ctx); err != nil {
		return fmt.Errorf("failed to save portal: %w", err)
	}
	if roomID == "" {
		return nil
	}
	intent, err := portal.MainIntent(ctx)
	if err != nil {
		return err
	}
	return intent.SetRoomName(ctx, roomID, title)
}

func (portal *Portal) HandleTelegramMessage(ctx context.Context, source User, msg *telegram.Message) error {
	log := portal.log.With().
		Int64("message_id", msg.ID).
		Int64("sender_id", msg.From).
		Logger()
	ctx = log.WithContext(ctx)
	roomID := portal.RoomID()
	if roomID == "" {
		log.Debug().Msg("Creating Matrix room from incoming message")
		result, err := portal.CreateMatrixRoom(ctx, source, []id.UserID{source.GetMXID()})
		if err != nil {
			return err
		}
		roomID = result.RoomID
	}

	puppet, err := portal.bridge.Users.GetPuppetByTelegramID(ctx, msg.From)
	if err != nil {
		return fmt.Errorf("failed to get puppet of %d: %w", msg.From, err)
	}
	intent := puppet.Intent()
	if err = intent.UserTyping(ctx, roomID, false, 0); err != nil {
		log.Debug().Err(err).Msg("Failed to stop typing")
	}

	var textErr error
	if msg.Text != "" {
		content := &event.MessageEventContent{
			MsgType: event.MsgText,
			Body:    msg.Text,
		}
		if len(msg.Entities) > 0 {
			content.Format = event.FormatHTML
			content.FormattedBody = portal.bridge.Formatter.TelegramToMatrix(ctx, msg.Text, msg.Entities)
		}
		if _, err = intent.SendMessage(ctx, roomID, content); err != nil {
			textErr = fmt.Errorf("failed to send text: %w", err)
			log.Err(err).Msg("Failed to send text part of message")
		}
	}

	var content *event.MessageEventContent
	switch {
	case msg.Photo != nil:
		uploaded, err := portal.copyTelegramPhoto(ctx, source, intent, msg.Photo)
		if err != nil {
			return errors.Join(textErr, fmt.Errorf("failed to copy photo: %w", err))
		}
		content = uploaded.Content(captionOr(msg.Caption, "Uploaded photo"))
	case msg.Document != nil:
		uploaded, err := portal.copyTelegramDocument(ctx, source, intent, msg.Document)
		if err != nil {
			return errors.Join(textErr, fmt.Errorf("failed to copy document: %w", err))
		}
		content = uploaded.Content(captionOr(msg.Caption, documentFallbackBody(uploaded.MsgType)))
	case msg.Geo != nil:
		geoURI := FormatGeoURI(*msg.Geo)
		content = &event.MessageEventContent{
			MsgType: event.MsgLocation,
			Body:    fmt.Sprintf("Location: %s", geoURI),
			GeoURI:  geoURI,
		}
	default:
		return textErr
	}
	if _, err = intent.SendMessage(ctx, roomID, content); err != nil {
		return errors.Join(textErr, fmt.Errorf("failed to send %s: %w", content.MsgType, err))
	}
	return textErr
}

func captionOr(caption, fallback string) string {
	if caption != "" {
		return caption
	}
	return fallback
}

func documentFallbackBody(msgType event.MessageType) string {
	switch msgType {
	case event.MsgAudio:
		return "Uploaded audio"
	case event.MsgVideo:
		return "Uploaded video"
	default:
		return "Uploaded document"
	}
}
