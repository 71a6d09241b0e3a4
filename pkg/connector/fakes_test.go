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
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"go.mau.fi/mautrix-telegram/config"
	"go.mau.fi/mautrix-telegram/database"
	"go.mau.fi/mautrix-telegram/pkg/telegram"
	"go.mau.fi/mautrix-telegram/pkg/tgid"
)

type kickCall struct {
	userID id.UserID
	reason string
}

type typingCall struct {
	typing  bool
	timeout time.Duration
}

type fakeIntent struct {
	mxid id.UserID

	lock         sync.Mutex
	createReqs   []*mautrix.ReqCreateRoom
	createErr    error
	createGate   chan struct{}
	invites      []id.UserID
	kicks        []kickCall
	joined       []id.RoomID
	left         []id.RoomID
	names        []string
	topics       []string
	avatars      []id.ContentURI
	messages     []*event.MessageEventContent
	typing       []typingCall
	uploads      []string
	displaynames []string
	avatarURLs   []id.ContentURI
	typingNotify chan struct{}
	failMsgType  event.MessageType
}

func newFakeIntent(mxid id.UserID) *fakeIntent {
	return &fakeIntent{mxid: mxid}
}

func (fi *fakeIntent) GetMXID() id.UserID { return fi.mxid }

func (fi *fakeIntent) CreateRoom(ctx context.Context, req *mautrix.ReqCreateRoom) (id.RoomID, error) {
	if fi.createGate != nil {
		<-fi.createGate
	}
	fi.lock.Lock()
	defer fi.lock.Unlock()
	if fi.createErr != nil {
		return "", fi.createErr
	}
	fi.createReqs = append(fi.createReqs, req)
	return id.RoomID(fmt.Sprintf("!room%d:example.com", len(fi.createReqs))), nil
}

func (fi *fakeIntent) InviteUser(ctx context.Context, roomID id.RoomID, userID id.UserID) error {
	fi.lock.Lock()
	defer fi.lock.Unlock()
	fi.invites = append(fi.invites, userID)
	return nil
}

func (fi *fakeIntent) KickUser(ctx context.Context, roomID id.RoomID, userID id.UserID, reason string) error {
	fi.lock.Lock()
	defer fi.lock.Unlock()
	fi.kicks = append(fi.kicks, kickCall{userID: userID, reason: reason})
	return nil
}

func (fi *fakeIntent) EnsureJoined(ctx context.Context, roomID id.RoomID) error {
	fi.lock.Lock()
	defer fi.lock.Unlock()
	fi.joined = append(fi.joined, roomID)
	return nil
}

func (fi *fakeIntent) LeaveRoom(ctx context.Context, roomID id.RoomID) error {
	fi.lock.Lock()
	defer fi.lock.Unlock()
	fi.left = append(fi.left, roomID)
	return nil
}

func (fi *fakeIntent) SetRoomName(ctx context.Context, roomID id.RoomID, name string) error {
	fi.lock.Lock()
	defer fi.lock.Unlock()
	fi.names = append(fi.names, name)
	return nil
}

func (fi *fakeIntent) SetRoomTopic(ctx context.Context, roomID id.RoomID, topic string) error {
	fi.lock.Lock()
	defer fi.lock.Unlock()
	fi.topics = append(fi.topics, topic)
	return nil
}

func (fi *fakeIntent) SetRoomAvatar(ctx context.Context, roomID id.RoomID, avatarURL id.ContentURI) error {
	fi.lock.Lock()
	defer fi.lock.Unlock()
	fi.avatars = append(fi.avatars, avatarURL)
	return nil
}

func (fi *fakeIntent) SendMessage(ctx context.Context, roomID id.RoomID, content *event.MessageEventContent) (id.EventID, error) {
	fi.lock.Lock()
	defer fi.lock.Unlock()
	if fi.failMsgType != "" && content.MsgType == fi.failMsgType {
		return "", fmt.Errorf("M_FORBIDDEN: not allowed to send %s", content.MsgType)
	}
	fi.messages = append(fi.messages, content)
	return id.EventID(fmt.Sprintf("$event%d", len(fi.messages))), nil
}

func (fi *fakeIntent) UserTyping(ctx context.Context, roomID id.RoomID, typing bool, timeout time.Duration) error {
	fi.lock.Lock()
	fi.typing = append(fi.typing, typingCall{typing: typing, timeout: timeout})
	notify := fi.typingNotify
	fi.lock.Unlock()
	if notify != nil {
		notify <- struct{}{}
	}
	return nil
}

func (fi *fakeIntent) SetDisplayName(ctx context.Context, name string) error {
	fi.lock.Lock()
	defer fi.lock.Unlock()
	fi.displaynames = append(fi.displaynames, name)
	return nil
}

func (fi *fakeIntent) SetAvatarURL(ctx context.Context, avatarURL id.ContentURI) error {
	fi.lock.Lock()
	defer fi.lock.Unlock()
	fi.avatarURLs = append(fi.avatarURLs, avatarURL)
	return nil
}

func (fi *fakeIntent) UploadMedia(ctx context.Context, data []byte, mimeType, fileName string) (id.ContentURI, error) {
	fi.lock.Lock()
	defer fi.lock.Unlock()
	fi.uploads = append(fi.uploads, fileName)
	return id.ContentURI{Homeserver: "example.com", FileID: fileName}, nil
}

type sentMessage struct {
	peer     telegram.InputPeer
	text     string
	entities []telegram.MessageEntity
}

type fakeClient struct {
	lock         sync.Mutex
	info         *telegram.ChatFull
	infoErr      error
	infoCalls    int
	accessHash   int64
	resolveErr   error
	resolveCalls int
	files        map[telegram.FileLocation]*telegram.File
	fileCalls    []telegram.FileLocation
	sendErr      error
	sent         []sentMessage
	media        []telegram.InputMedia
}

func (fc *fakeClient) GetChatInfo(ctx context.Context, peer telegram.InputPeer) (*telegram.ChatFull, error) {
	fc.lock.Lock()
	defer fc.lock.Unlock()
	fc.infoCalls++
	return fc.info, fc.infoErr
}

func (fc *fakeClient) ResolveAccessHash(ctx context.Context, channelID int64) (int64, error) {
	fc.lock.Lock()
	defer fc.lock.Unlock()
	fc.resolveCalls++
	return fc.accessHash, fc.resolveErr
}

func (fc *fakeClient) GetFile(ctx context.Context, loc telegram.FileLocation) (*telegram.File, error) {
	fc.lock.Lock()
	defer fc.lock.Unlock()
	fc.fileCalls = append(fc.fileCalls, loc)
	if file, ok := fc.files[loc]; ok {
		return file, nil
	}
	return &telegram.File{Data: []byte("file data"), MimeType: "image/png", Extension: "png"}, nil
}

func (fc *fakeClient) SendMessage(ctx context.Context, peer telegram.InputPeer, text string, entities []telegram.MessageEntity) error {
	fc.lock.Lock()
	defer fc.lock.Unlock()
	if fc.sendErr != nil {
		return fc.sendErr
	}
	fc.sent = append(fc.sent, sentMessage{peer: peer, text: text, entities: entities})
	return nil
}

func (fc *fakeClient) SendMedia(ctx context.Context, peer telegram.InputPeer, media telegram.InputMedia) error {
	fc.lock.Lock()
	defer fc.lock.Unlock()
	if fc.sendErr != nil {
		return fc.sendErr
	}
	fc.media = append(fc.media, media)
	return nil
}

type fakeUser struct {
	tgID   int64
	mxid   id.UserID
	client *fakeClient

	lock   sync.Mutex
	joined []tgid.PortalKey
	left   []tgid.PortalKey
}

func (fu *fakeUser) GetTelegramID() int64       { return fu.tgID }
func (fu *fakeUser) GetClient() telegram.Client { return fu.client }
func (fu *fakeUser) GetMXID() id.UserID         { return fu.mxid }

func (fu *fakeUser) JoinedPortal(ctx context.Context, key tgid.PortalKey) error {
	fu.lock.Lock()
	defer fu.lock.Unlock()
	fu.joined = append(fu.joined, key)
	return nil
}

func (fu *fakeUser) LeftPortal(ctx context.Context, key tgid.PortalKey) error {
	fu.lock.Lock()
	defer fu.lock.Unlock()
	fu.left = append(fu.left, key)
	return nil
}

type fakePuppet struct {
	tgID   int64
	intent *fakeIntent

	lock          sync.Mutex
	updates       int
	avatarUpdates int
}

func (fp *fakePuppet) GetTelegramID() int64   { return fp.tgID }
func (fp *fakePuppet) GetDisplayname() string { return fmt.Sprintf("User %d", fp.tgID) }
func (fp *fakePuppet) Intent() MatrixIntent   { return fp.intent }

func (fp *fakePuppet) UpdateInfo(ctx context.Context, observer telegram.Observer, info *telegram.UserInfo, updateAvatar bool) error {
	fp.lock.Lock()
	defer fp.lock.Unlock()
	fp.updates++
	if updateAvatar {
		fp.avatarUpdates++
	}
	return nil
}

type fakeDirectory struct {
	lock    sync.Mutex
	puppets map[int64]*fakePuppet
	users   map[int64]*fakeUser
}

func puppetMXID(userID int64) id.UserID {
	return id.UserID(fmt.Sprintf("@telegram_%d:example.com", userID))
}

func (fd *fakeDirectory) puppet(userID int64) *fakePuppet {
	fd.lock.Lock()
	defer fd.lock.Unlock()
	puppet, ok := fd.puppets[userID]
	if !ok {
		puppet = &fakePuppet{tgID: userID, intent: newFakeIntent(puppetMXID(userID))}
		fd.puppets[userID] = puppet
	}
	return puppet
}

func (fd *fakeDirectory) GetPuppetByTelegramID(ctx context.Context, userID int64) (Puppet, error) {
	return fd.puppet(userID), nil
}

func (fd *fakeDirectory) GetUserByTelegramID(ctx context.Context, userID int64) (User, error) {
	fd.lock.Lock()
	defer fd.lock.Unlock()
	if user, ok := fd.users[userID]; ok {
		return user, nil
	}
	return nil, nil
}

func (fd *fakeDirectory) ParsePuppetMXID(mxid id.UserID) (int64, bool) {
	localpart, ok := strings.CutPrefix(string(mxid), "@telegram_")
	if !ok {
		return 0, false
	}
	localpart, _, _ = strings.Cut(localpart, ":")
	userID, err := strconv.ParseInt(localpart, 10, 64)
	return userID, err == nil
}

type memStore struct {
	lock    sync.Mutex
	portals map[tgid.PortalKey]*database.Portal
	puts    int
}

func (ms *memStore) GetByKey(ctx context.Context, key tgid.PortalKey) (*database.Portal, error) {
	ms.lock.Lock()
	defer ms.lock.Unlock()
	return ms.portals[key], nil
}

func (ms *memStore) GetByMXID(ctx context.Context, mxid id.RoomID) (*database.Portal, error) {
	ms.lock.Lock()
	defer ms.lock.Unlock()
	for _, portal := range ms.portals {
		if portal.MXID == mxid {
			return portal, nil
		}
	}
	return nil, nil
}

func (ms *memStore) GetAll(ctx context.Context) ([]*database.Portal, error) {
	ms.lock.Lock()
	defer ms.lock.Unlock()
	portals := make([]*database.Portal, 0, len(ms.portals))
	for _, portal := range ms.portals {
		portals = append(portals, portal)
	}
	return portals, nil
}

func (ms *memStore) Put(ctx context.Context, portal *database.Portal) error {
	ms.lock.Lock()
	defer ms.lock.Unlock()
	ms.portals[portal.Key()] = portal
	ms.puts++
	return nil
}

func (ms *memStore) putCount() int {
	ms.lock.Lock()
	defer ms.lock.Unlock()
	return ms.puts
}

const (
	selfID   = 1000
	selfMXID = id.UserID("@alice:example.com")
)

type testEnv struct {
	bridge *TelegramBridge
	bot    *fakeIntent
	dir    *fakeDirectory
	store  *memStore
	client *fakeClient
	user   *fakeUser
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := &config.BridgeConfig{FederateRooms: true, InviteOnCreate: true}
	require.NoError(t, cfg.PostProcess())
	env := &testEnv{
		bot:    newFakeIntent("@telegrambot:example.com"),
		dir:    &fakeDirectory{puppets: make(map[int64]*fakePuppet), users: make(map[int64]*fakeUser)},
		store:  &memStore{portals: make(map[tgid.PortalKey]*database.Portal)},
		client: &fakeClient{accessHash: 4242},
	}
	env.user = &fakeUser{tgID: selfID, mxid: selfMXID, client: env.client}
	env.dir.users[selfID] = env.user
	env.bridge = NewTelegramBridge(cfg, env.bot, env.dir, env.store, zerolog.Nop())
	return env
}

func (env *testEnv) portal(t *testing.T, peer *tgid.Peer) *Portal {
	t.Helper()
	portal, err := env.bridge.GetPortalByPeer(context.Background(), peer)
	require.NoError(t, err)
	return portal
}

func groupInfo(title string, members ...int64) *telegram.ChatFull {
	info := &telegram.ChatFull{Info: telegram.ChatInfo{Title: title, About: "About " + title}}
	for _, member := range members {
		info.Users = append(info.Users, telegram.UserInfo{ID: member, FirstName: fmt.Sprintf("Member %d", member)})
	}
	return info
}
