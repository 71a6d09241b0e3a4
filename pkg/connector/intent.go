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
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/appservice"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

type appserviceIntent struct {
	intent *appservice.IntentAPI
}

func WrapIntent(intent *appservice.IntentAPI) GhostIntent {
	return &appserviceIntent{intent: intent}
}

func (ai *appserviceIntent) GetMXID() id.UserID {
	return ai.intent.UserID
}

func (ai *appserviceIntent) CreateRoom(ctx context.Context, req *mautrix.ReqCreateRoom) (id.RoomID, error) {
	resp, err := ai.intent.CreateRoom(ctx, req)
	if err != nil {
		return "", err
	}
	return resp.RoomID, nil
}

func (ai *appserviceIntent) InviteUser(ctx context.Context, roomID id.RoomID, userID id.UserID) error {
	_, err := ai.intent.InviteUser(ctx, roomID, &mautrix.ReqInviteUser{UserID: userID})
	return err
}

func (ai *appserviceIntent) KickUser(ctx context.Context, roomID id.RoomID, userID id.UserID, reason string) error {
	_, err := ai.intent.KickUser(ctx, roomID, &mautrix.ReqKickUser{UserID: userID, Reason: reason})
	return err
}

func (ai *appserviceIntent) EnsureJoined(ctx context.Context, roomID id.RoomID) error {
	return ai.intent.EnsureJoined(ctx, roomID)
}

func (ai *appserviceIntent) LeaveRoom(ctx context.Context, roomID id.RoomID) error {
	_, err := ai.intent.LeaveRoom(ctx, roomID)
	return err
}

func (ai *appserviceIntent) SetRoomName(ctx context.Context, roomID id.RoomID, name string) error {
	_, err := ai.intent.SetRoomName(ctx, roomID, name)
	return err
}

func (ai *appserviceIntent) SetRoomTopic(ctx context.Context, roomID id.RoomID, topic string) error {
	_, err := ai.intent.SetRoomTopic(ctx, roomID, topic)
	return err
}

func (ai *appserviceIntent) SetRoomAvatar(ctx context.Context, roomID id.RoomID, avatarURL id.ContentURI) error {
	_, err := ai.intent.SetRoomAvatar(ctx, roomID, avatarURL)
	return err
}

func (ai *appserviceIntent) SendMessage(ctx context.Context, roomID id.RoomID, content *event.MessageEventContent) (id.EventID, error) {
	resp, err := ai.intent.SendMessageEvent(ctx, roomID, event.EventMessage, content)
	if err != nil {
		return "", err
	}
	return resp.EventID, nil
}

func (ai *appserviceIntent) UserTyping(ctx context.Context, roomID id.RoomID, typing bool, timeout time.Duration) error {
	_, err := ai.intent.UserTyping(ctx, roomID, typing, timeout)
	return err
}

func (ai *appserviceIntent) UploadMedia(ctx context.Context, data []byte, mimeType, fileName string) (id.ContentURI, error) {
	resp, err := ai.intent.UploadMedia(ctx, mautrix.ReqUploadMedia{
		ContentBytes: data,
		ContentType:  mimeType,
		FileName:     fileName,
	})
	if err != nil {
		return id.ContentURI{}, err
	}
	return resp.ContentURI, nil
}

func (ai *appserviceIntent) SetDisplayName(ctx context.Context, name string) error {
	return ai.intent.SetDisplayName(ctx, name)
}

func (ai *appserviceIntent) SetAvatarURL(ctx context.Context, avatarURL id.ContentURI) error {
	return ai.intent.SetAvatarURL(ctx, avatarURL)
}
