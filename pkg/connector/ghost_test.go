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
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"maunium.net/go/mautrix/id"

	"go.mau.fi/mautrix-telegram/config"
	"go.mau.fi/mautrix-telegram/database"
	"go.mau.fi/mautrix-telegram/pkg/telegram"
)

type testGhosts struct {
	*Ghosts
	db          *database.Database
	intents     map[id.UserID]*fakeIntent
	intentsLock sync.Mutex
}

func newTestGhosts(t *testing.T, usernameTemplate string) *testGhosts {
	t.Helper()
	_, db := newSQLiteBridge(t)
	cfg := &config.BridgeConfig{UsernameTemplate: usernameTemplate}
	require.NoError(t, cfg.PostProcess())
	tg := &testGhosts{db: db, intents: make(map[id.UserID]*fakeIntent)}
	var err error
	tg.Ghosts, err = NewGhosts(cfg, "example.com", db.Puppet, tg.intentFor, zerolog.Nop())
	require.NoError(t, err)
	return tg
}

func (tg *testGhosts) intentFor(userID id.UserID) GhostIntent {
	tg.intentsLock.Lock()
	defer tg.intentsLock.Unlock()
	intent, ok := tg.intents[userID]
	if !ok {
		intent = newFakeIntent(userID)
		tg.intents[userID] = intent
	}
	return intent
}

func TestGhostMXIDs(t *testing.T) {
	tg := newTestGhosts(t, "")
	assert.Equal(t, id.UserID("@telegram_2001:example.com"), tg.FormatPuppetMXID(2001))

	userID, ok := tg.ParsePuppetMXID("@telegram_2001:example.com")
	assert.True(t, ok)
	assert.EqualValues(t, 2001, userID)
	for _, mxid := range []id.UserID{
		"@telegram_2001:example.org",
		"@telegram_abc:example.com",
		"@alice:example.com",
		"@xtelegram_1:example.com",
	} {
		_, ok = tg.ParsePuppetMXID(mxid)
		assert.False(t, ok, mxid)
	}

	custom := newTestGhosts(t, "tg.{{.}}.user")
	assert.Equal(t, id.UserID("@tg.5.user:example.com"), custom.FormatPuppetMXID(5))
	userID, ok = custom.ParsePuppetMXID("@tg.5.user:example.com")
	assert.True(t, ok)
	assert.EqualValues(t, 5, userID)
	_, ok = custom.ParsePuppetMXID("@tgx5.user:example.com")
	assert.False(t, ok)
}

func TestNewGhosts_TemplateWithoutID(t *testing.T) {
	cfg := &config.BridgeConfig{UsernameTemplate: "telegram"}
	require.NoError(t, cfg.PostProcess())
	_, err := NewGhosts(cfg, "example.com", nil, nil, zerolog.Nop())
	assert.Error(t, err)
}

func TestGetGhost(t *testing.T) {
	ctx := context.Background()
	tg := newTestGhosts(t, "")

	ghost, err := tg.GetGhost(ctx, 2001)
	require.NoError(t, err)
	assert.Equal(t, id.UserID("@telegram_2001:example.com"), ghost.Intent().GetMXID())
	again, err := tg.GetPuppetByTelegramID(ctx, 2001)
	require.NoError(t, err)
	assert.Same(t, ghost, again)

	saved, err := tg.db.Puppet.GetByTGID(ctx, 2001)
	require.NoError(t, err)
	require.NotNil(t, saved)
}

func TestGhostUpdateInfo(t *testing.T) {
	ctx := context.Background()
	tg := newTestGhosts(t, "")
	client := &fakeClient{}
	observer := &fakeUser{tgID: selfID, client: client}
	ghost, err := tg.GetGhost(ctx, 2001)
	require.NoError(t, err)
	intent := tg.intents["@telegram_2001:example.com"]

	info := &telegram.UserInfo{
		ID:        2001,
		FirstName: "Bob",
		LastName:  "Smith",
		Username:  "bob",
		Photo:     &telegram.ChatPhoto{Big: &telegram.FileLocation{VolumeID: 8, LocalID: 9}},
	}
	require.NoError(t, ghost.UpdateInfo(ctx, observer, info, true))
	assert.Equal(t, "Bob Smith", ghost.GetDisplayname())
	assert.Equal(t, []string{"Bob Smith"}, intent.displaynames)
	assert.Equal(t, []string{"8_9.png"}, intent.uploads)
	require.Len(t, intent.avatarURLs, 1)
	assert.Equal(t, "8_9.png", intent.avatarURLs[0].FileID)

	saved, err := tg.db.Puppet.GetByTGID(ctx, 2001)
	require.NoError(t, err)
	assert.Equal(t, "Bob Smith", saved.Displayname)
	assert.True(t, saved.NameSet)
	assert.True(t, saved.AvatarSet)
	assert.Equal(t, "bob", saved.Username)

	require.NoError(t, ghost.UpdateInfo(ctx, observer, info, true))
	assert.Len(t, intent.displaynames, 1)
	assert.Len(t, intent.uploads, 1)
	assert.Len(t, intent.avatarURLs, 1)

	noPhoto := *info
	noPhoto.Photo = nil
	require.NoError(t, ghost.UpdateInfo(ctx, observer, &noPhoto, false))
	assert.Len(t, intent.avatarURLs, 1, "avatar shouldn't be touched when not requested")
	require.NoError(t, ghost.UpdateInfo(ctx, observer, &noPhoto, true))
	require.Len(t, intent.avatarURLs, 2)
	assert.True(t, intent.avatarURLs[1].IsEmpty())
	assert.Nil(t, ghost.Photo)
}

func TestGhostUpdateInfo_Fetch(t *testing.T) {
	ctx := context.Background()
	tg := newTestGhosts(t, "")
	client := &fakeClient{info: &telegram.ChatFull{User: &telegram.UserInfo{ID: 2001, Phone: "15551234"}}}
	observer := &fakeUser{tgID: selfID, client: client}
	ghost, err := tg.GetGhost(ctx, 2001)
	require.NoError(t, err)

	require.NoError(t, ghost.UpdateInfo(ctx, observer, nil, false))
	assert.Equal(t, "+15551234", ghost.GetDisplayname())
	assert.Equal(t, 1, client.infoCalls)

	require.NoError(t, ghost.UpdateInfo(ctx, observer, nil, false))
	assert.Equal(t, 1, client.infoCalls, "synced ghosts shouldn't be refetched")

	other, err := tg.GetGhost(ctx, 2002)
	require.NoError(t, err)
	client.info = nil
	client.infoErr = errors.New("USER_ID_INVALID")
	assert.Error(t, other.UpdateInfo(ctx, observer, nil, false))
}

func TestDirectory(t *testing.T) {
	ctx := context.Background()
	tg := newTestGhosts(t, "")
	alice := &fakeUser{tgID: selfID, mxid: selfMXID}
	dir := &Directory{Ghosts: tg.Ghosts}

	user, err := dir.GetUserByTelegramID(ctx, selfID)
	require.NoError(t, err)
	assert.Nil(t, user)

	dir.LookupUser = func(ctx context.Context, userID int64) (User, error) {
		if userID == selfID {
			return alice, nil
		}
		return nil, nil
	}
	user, err = dir.GetUserByTelegramID(ctx, selfID)
	require.NoError(t, err)
	assert.Same(t, alice, user)
	puppet, err := dir.GetPuppetByTelegramID(ctx, 2001)
	require.NoError(t, err)
	assert.Equal(t, id.UserID("@telegram_2001:example.com"), puppet.Intent().GetMXID())
}
