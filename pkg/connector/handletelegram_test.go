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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"go.mau.fi/mautrix-telegram/pkg/telegram"
	"go.mau.fi/mautrix-telegram/pkg/tgid"
)

const groupRoom = id.RoomID("!group:example.com")

func groupPortal(t *testing.T, env *testEnv) *Portal {
	t.Helper()
	portal := env.portal(t, tgid.NewChatPeer(500, "Group"))
	portal.MXID = groupRoom
	env.bridge.RoomCreated(portal)
	return portal
}

func TestHandleTelegramTyping(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	portal := env.portal(t, tgid.NewChatPeer(500, "Group"))

	require.NoError(t, portal.HandleTelegramTyping(ctx, &telegram.Typing{From: 2001}))
	assert.Empty(t, env.dir.puppets, "typing without a room shouldn't touch any ghosts")

	portal.MXID = groupRoom
	require.NoError(t, portal.HandleTelegramTyping(ctx, &telegram.Typing{From: 2001}))
	assert.Equal(t, []typingCall{{typing: true, timeout: 5500 * time.Millisecond}}, env.dir.puppet(2001).intent.typing)
}

func TestHandleTelegramServiceMessage_Unknown(t *testing.T) {
	env := newTestEnv(t)
	portal := groupPortal(t, env)
	puts := env.store.putCount()

	err := portal.HandleTelegramServiceMessage(context.Background(), env.user, &telegram.ServiceMessage{
		ID:     1,
		From:   2001,
		Action: telegram.ActionUnknown{Type: "messageActionPinMessage"},
	})
	assert.NoError(t, err)
	assert.Equal(t, puts, env.store.putCount())
	assert.Equal(t, "Group", portal.Peer.Title)
	assert.Empty(t, env.bot.invites)
	assert.Empty(t, env.bot.kicks)
	assert.Empty(t, env.bot.names)
	assert.Empty(t, env.dir.puppets)
}

func TestHandleTelegramServiceMessage_ChatCreate(t *testing.T) {
	env := newTestEnv(t)
	env.client.info = groupInfo("Group")
	portal := env.portal(t, tgid.NewChatPeer(500, "Group"))

	err := portal.HandleTelegramServiceMessage(context.Background(), env.user, &telegram.ServiceMessage{
		ID:     1,
		From:   selfID,
		Action: telegram.ActionChatCreate{Title: "Group", Users: []int64{selfID, 2001}},
	})
	require.NoError(t, err)
	roomID := portal.RoomID()
	require.NotEmpty(t, roomID)
	require.Len(t, env.bot.createReqs, 1)
	assert.Equal(t, []id.UserID{selfMXID}, env.bot.createReqs[0].Invite)

	assert.Equal(t, []tgid.PortalKey{portal.Key()}, env.user.joined)
	assert.Equal(t, []id.UserID{selfMXID}, env.bot.invites)
	assert.Equal(t, []id.RoomID{roomID}, env.dir.puppet(selfID).intent.joined)
	assert.Equal(t, []id.RoomID{roomID}, env.dir.puppet(2001).intent.joined)
}

func TestHandleTelegramServiceMessage_ChannelCreate(t *testing.T) {
	env := newTestEnv(t)
	env.client.info = &telegram.ChatFull{Info: telegram.ChatInfo{ID: 600, Title: "News"}}
	portal := env.portal(t, tgid.NewChannelPeer(600, "News", ""))

	err := portal.HandleTelegramServiceMessage(context.Background(), env.user, &telegram.ServiceMessage{
		ID:     1,
		From:   selfID,
		Action: telegram.ActionChannelCreate{Title: "News"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, portal.RoomID())
	require.Len(t, env.bot.createReqs, 1)
	assert.Equal(t, "private", env.bot.createReqs[0].Visibility)
}

func TestHandleTelegramServiceMessage_AddUserWithoutRoom(t *testing.T) {
	env := newTestEnv(t)
	portal := env.portal(t, tgid.NewChatPeer(500, "Group"))

	err := portal.HandleTelegramServiceMessage(context.Background(), env.user, &telegram.ServiceMessage{
		Action: telegram.ActionChatAddUser{Users: []int64{2001}},
	})
	assert.NoError(t, err)
	assert.Empty(t, env.bot.createReqs)
	assert.Empty(t, env.dir.puppets)
}

func TestHandleTelegramServiceMessage_DeleteUser(t *testing.T) {
	env := newTestEnv(t)
	portal := groupPortal(t, env)

	err := portal.HandleTelegramServiceMessage(context.Background(), env.user, &telegram.ServiceMessage{
		ID:     2,
		From:   selfID,
		Action: telegram.ActionChatDeleteUser{UserID: selfID},
	})
	require.NoError(t, err)
	assert.Equal(t, []kickCall{{userID: selfMXID, reason: "Left Telegram chat"}}, env.bot.kicks)
	assert.Equal(t, []tgid.PortalKey{portal.Key()}, env.user.left)
	assert.Equal(t, []id.RoomID{groupRoom}, env.dir.puppet(selfID).intent.left)

	err = portal.HandleTelegramServiceMessage(context.Background(), env.user, &telegram.ServiceMessage{
		ID:     3,
		From:   2001,
		Action: telegram.ActionChatDeleteUser{UserID: 2001},
	})
	require.NoError(t, err)
	assert.Len(t, env.bot.kicks, 1, "users who aren't logged in shouldn't be kicked")
	assert.Equal(t, []id.RoomID{groupRoom}, env.dir.puppet(2001).intent.left)
}

func TestHandleTelegramServiceMessage_EditTitle(t *testing.T) {
	env := newTestEnv(t)
	portal := groupPortal(t, env)

	err := portal.HandleTelegramServiceMessage(context.Background(), env.user, &telegram.ServiceMessage{
		Action: telegram.ActionChatEditTitle{Title: "Renamed"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", portal.Peer.Title)
	assert.Equal(t, "Renamed", env.store.portals[portal.Key()].Peer.Title)
	assert.Equal(t, []string{"Renamed"}, env.bot.names)
}

func TestHandleTelegramServiceMessage_EditPhoto(t *testing.T) {
	env := newTestEnv(t)
	portal := groupPortal(t, env)

	err := portal.HandleTelegramServiceMessage(context.Background(), env.user, &telegram.ServiceMessage{
		Action: telegram.ActionChatEditPhoto{Photo: telegram.Photo{Sizes: []telegram.PhotoSize{
			{Type: "a", W: 160, H: 160, Location: telegram.FileLocation{VolumeID: 10, LocalID: 1}},
			{Type: "c", W: 640, H: 640, Location: telegram.FileLocation{VolumeID: 10, LocalID: 3}},
			{Type: "b", W: 320, H: 320, Location: telegram.FileLocation{VolumeID: 10, LocalID: 2}},
		}}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"10_3.png"}, env.bot.uploads)
	assert.Len(t, env.bot.avatars, 1)

	err = portal.HandleTelegramServiceMessage(context.Background(), env.user, &telegram.ServiceMessage{
		Action: telegram.ActionChatEditPhoto{},
	})
	assert.NoError(t, err)
	assert.Len(t, env.bot.uploads, 1)
}

func TestHandleTelegramMessage_Text(t *testing.T) {
	env := newTestEnv(t)
	portal := groupPortal(t, env)

	err := portal.HandleTelegramMessage(context.Background(), env.user, &telegram.Message{
		ID:       10,
		From:     2001,
		Text:     "hello world",
		Entities: []telegram.MessageEntity{{Type: telegram.EntityBold, Offset: 0, Length: 5}},
	})
	require.NoError(t, err)
	intent := env.dir.puppet(2001).intent
	assert.Equal(t, []typingCall{{typing: false}}, intent.typing)
	require.Len(t, intent.messages, 1)
	msg := intent.messages[0]
	assert.Equal(t, event.MsgText, msg.MsgType)
	assert.Equal(t, "hello world", msg.Body)
	assert.Equal(t, event.FormatHTML, msg.Format)
	assert.Contains(t, msg.FormattedBody, "<strong>hello</strong>")

	err = portal.HandleTelegramMessage(context.Background(), env.user, &telegram.Message{ID: 11, From: 2001, Text: "plain"})
	require.NoError(t, err)
	require.Len(t, intent.messages, 2)
	assert.Empty(t, intent.messages[1].Format)
	assert.Empty(t, intent.messages[1].FormattedBody)
}

func TestHandleTelegramMessage_CreatesRoom(t *testing.T) {
	env := newTestEnv(t)
	env.client.info = groupInfo("Group")
	portal := env.portal(t, tgid.NewChatPeer(500, "Group"))

	err := portal.HandleTelegramMessage(context.Background(), env.user, &telegram.Message{ID: 1, From: 2001, Text: "first"})
	require.NoError(t, err)
	require.Len(t, env.bot.createReqs, 1)
	assert.Equal(t, []id.UserID{selfMXID}, env.bot.createReqs[0].Invite)
	require.Len(t, env.dir.puppet(2001).intent.messages, 1)
}

func TestHandleTelegramMessage_Photo(t *testing.T) {
	env := newTestEnv(t)
	portal := groupPortal(t, env)
	loc := telegram.FileLocation{DCID: 2, VolumeID: 9, LocalID: 3}
	env.client.files = map[telegram.FileLocation]*telegram.File{
		loc: {Data: []byte("not really a jpeg"), MimeType: "image/jpeg", Extension: "jpg"},
	}

	err := portal.HandleTelegramMessage(context.Background(), env.user, &telegram.Message{
		ID:   12,
		From: 2001,
		Photo: &telegram.Photo{ID: 555, Sizes: []telegram.PhotoSize{
			{Type: "s", W: 90, H: 60, Location: telegram.FileLocation{VolumeID: 9, LocalID: 1}},
			{Type: "y", W: 800, H: 600, Size: 1234, Location: loc},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, []telegram.FileLocation{loc}, env.client.fileCalls)
	intent := env.dir.puppet(2001).intent
	require.Len(t, intent.messages, 1)
	msg := intent.messages[0]
	assert.Equal(t, event.MsgImage, msg.MsgType)
	assert.Equal(t, "Uploaded photo", msg.Body)
	require.NotNil(t, msg.Info)
	assert.Equal(t, "image/jpeg", msg.Info.MimeType)
	assert.Equal(t, 800, msg.Info.Width)
	assert.Equal(t, 600, msg.Info.Height)
	assert.Equal(t, 1234, msg.Info.Size)
	require.Len(t, intent.uploads, 1)
	assert.Equal(t, id.ContentURIString("mxc://example.com/"+intent.uploads[0]), msg.URL)
}

func TestHandleTelegramMessage_PhotoCaption(t *testing.T) {
	env := newTestEnv(t)
	portal := groupPortal(t, env)

	err := portal.HandleTelegramMessage(context.Background(), env.user, &telegram.Message{
		ID:      13,
		From:    2001,
		Caption: "Look at this",
		Photo:   &telegram.Photo{ID: 556, Sizes: []telegram.PhotoSize{{Type: "x", W: 10, H: 10}}},
	})
	require.NoError(t, err)
	intent := env.dir.puppet(2001).intent
	require.Len(t, intent.messages, 1)
	assert.Equal(t, "Look at this", intent.messages[0].Body)
}

func TestHandleTelegramMessage_Document(t *testing.T) {
	tests := []struct {
		name     string
		mimeType string
		msgType  event.MessageType
		body     string
	}{
		{"Audio", "audio/ogg", event.MsgAudio, "Uploaded audio"},
		{"Video", "video/mp4", event.MsgVideo, "Uploaded video"},
		{"Document", "application/pdf", event.MsgFile, "Uploaded document"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			env := newTestEnv(t)
			portal := groupPortal(t, env)
			loc := telegram.FileLocation{VolumeID: 20, LocalID: 1}
			env.client.files = map[telegram.FileLocation]*telegram.File{
				loc: {Data: []byte("data"), MimeType: test.mimeType},
			}

			err := portal.HandleTelegramMessage(context.Background(), env.user, &telegram.Message{
				ID:   14,
				From: 2001,
				Document: &telegram.Document{
					ID:       777,
					Location: loc,
					MimeType: test.mimeType,
					FileName: "original-name",
					Size:     4,
				},
			})
			require.NoError(t, err)
			intent := env.dir.puppet(2001).intent
			require.Len(t, intent.messages, 1)
			msg := intent.messages[0]
			assert.Equal(t, test.msgType, msg.MsgType)
			assert.Equal(t, test.body, msg.Body)
			assert.Equal(t, "original-name", msg.FileName)
			assert.Equal(t, test.mimeType, msg.Info.MimeType)
			assert.Equal(t, 4, msg.Info.Size)
		})
	}
}

func TestHandleTelegramMessage_Geo(t *testing.T) {
	env := newTestEnv(t)
	portal := groupPortal(t, env)

	err := portal.HandleTelegramMessage(context.Background(), env.user, &telegram.Message{
		ID:   15,
		From: 2001,
		Geo:  &telegram.GeoPoint{Lat: 37.5, Long: -122.3},
	})
	require.NoError(t, err)
	intent := env.dir.puppet(2001).intent
	require.Len(t, intent.messages, 1)
	msg := intent.messages[0]
	assert.Equal(t, event.MsgLocation, msg.MsgType)
	assert.Equal(t, "geo:37.5,-122.3", msg.GeoURI)
	assert.Equal(t, "Location: geo:37.5,-122.3", msg.Body)
}

func TestHandleTelegramMessage_TextFailureStillRelaysMedia(t *testing.T) {
	env := newTestEnv(t)
	portal := groupPortal(t, env)
	intent := env.dir.puppet(2001).intent
	intent.failMsgType = event.MsgText

	err := portal.HandleTelegramMessage(context.Background(), env.user, &telegram.Message{
		ID:   16,
		From: 2001,
		Text: "look here",
		Geo:  &telegram.GeoPoint{Lat: 1.5, Long: 2.5},
	})
	assert.ErrorContains(t, err, "failed to send text")
	require.Len(t, intent.messages, 1)
	assert.Equal(t, event.MsgLocation, intent.messages[0].MsgType)
	assert.Equal(t, "geo:1.5,2.5", intent.messages[0].GeoURI)
}
