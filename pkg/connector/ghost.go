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
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"maunium.net/go/mautrix/id"

	"go.mau.fi/mautrix-telegram/config"
	"go.mau.fi/mautrix-telegram/database"
	"go.mau.fi/mautrix-telegram/pkg/attachment"
	"go.mau.fi/mautrix-telegram/pkg/telegram"
)

// GhostIntent is a MatrixIntent that can also change its own profile.
type GhostIntent interface {
	MatrixIntent
	SetDisplayName(ctx context.Context, name string) error
	SetAvatarURL(ctx context.Context, avatarURL id.ContentURI) error
}

// GhostStore persists ghost profiles. *database.PuppetQuery implements it.
type GhostStore interface {
	GetByTGID(ctx context.Context, tgID int64) (*database.Puppet, error)
	Put(ctx context.Context, puppet *database.Puppet) error
}

var _ GhostStore = (*database.PuppetQuery)(nil)

// Ghosts keeps track of the Matrix ghosts of Telegram users.
type Ghosts struct {
	Config    *config.BridgeConfig
	Domain    string
	Store     GhostStore
	IntentFor func(userID id.UserID) GhostIntent
	Log       zerolog.Logger

	ghosts     map[int64]*Ghost
	ghostsLock sync.Mutex
	mxidRegex  *regexp.Regexp
}

func NewGhosts(cfg *config.BridgeConfig, domain string, store GhostStore, intentFor func(id.UserID) GhostIntent, log zerolog.Logger) (*Ghosts, error) {
	// Split the localpart template around the ID so that the rest of it can be matched literally.
	prefix, suffix, ok := strings.Cut(cfg.FormatUsername("\x00"), "\x00")
	if !ok {
		return nil, fmt.Errorf("username template %q doesn't contain the user ID", cfg.UsernameTemplate)
	}
	pattern := fmt.Sprintf("^@%s([0-9]+)%s:%s$", regexp.QuoteMeta(prefix), regexp.QuoteMeta(suffix), regexp.QuoteMeta(domain))
	return &Ghosts{
		Config:    cfg,
		Domain:    domain,
		Store:     store,
		IntentFor: intentFor,
		Log:       log,

		ghosts:    make(map[int64]*Ghost),
		mxidRegex: regexp.MustCompile(pattern),
	}, nil
}

func (gs *Ghosts) FormatPuppetMXID(userID int64) id.UserID {
	return id.NewUserID(gs.Config.FormatUsername(strconv.FormatInt(userID, 10)), gs.Domain)
}

func (gs *Ghosts) ParsePuppetMXID(mxid id.UserID) (int64, bool) {
	match := gs.mxidRegex.FindStringSubmatch(string(mxid))
	if len(match) != 2 {
		return 0, false
	}
	userID, err := strconv.ParseInt(match[1], 10, 64)
	return userID, err == nil
}

// GetGhost returns the ghost of the given Telegram user, creating it if necessary.
func (gs *Ghosts) GetGhost(ctx context.Context, userID int64) (*Ghost, error) {
	gs.ghostsLock.Lock()
	defer gs.ghostsLock.Unlock()
	if ghost, ok := gs.ghosts[userID]; ok {
		return ghost, nil
	}
	dbPuppet, err := gs.Store.GetByTGID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get puppet %d from database: %w", userID, err)
	} else if dbPuppet == nil {
		dbPuppet = &database.Puppet{TGID: userID}
		if err = gs.Store.Put(ctx, dbPuppet); err != nil {
			return nil, fmt.Errorf("failed to save new puppet %d: %w", userID, err)
		}
	}
	mxid := gs.FormatPuppetMXID(userID)
	ghost := &Ghost{
		Puppet: dbPuppet,
		ghosts: gs,
		MXID:   mxid,
		intent: gs.IntentFor(mxid),
		log:    gs.Log.With().Int64("puppet_id", userID).Logger(),
	}
	gs.ghosts[userID] = ghost
	return ghost, nil
}

func (gs *Ghosts) GetPuppetByTelegramID(ctx context.Context, userID int64) (Puppet, error) {
	ghost, err := gs.GetGhost(ctx, userID)
	if err != nil {
		return nil, err
	}
	return ghost, nil
}

// Directory combines Ghosts with a lookup for users who are logged into the bridge.
type Directory struct {
	*Ghosts
	// LookupUser returns nil if nobody is logged in as the given account.
	LookupUser func(ctx context.Context, userID int64) (User, error)
}

var _ UserDirectory = (*Directory)(nil)

func (dir *Directory) GetUserByTelegramID(ctx context.Context, userID int64) (User, error) {
	if dir.LookupUser == nil {
		return nil, nil
	}
	return dir.LookupUser(ctx, userID)
}

// Ghost is the Matrix ghost of a Telegram user.
type Ghost struct {
	*database.Puppet

	ghosts *Ghosts
	MXID   id.UserID
	intent GhostIntent
	log    zerolog.Logger

	syncLock sync.Mutex
}

var _ Puppet = (*Ghost)(nil)

func (ghost *Ghost) GetTelegramID() int64 {
	return ghost.TGID
}

func (ghost *Ghost) GetDisplayname() string {
	ghost.syncLock.Lock()
	defer ghost.syncLock.Unlock()
	return ghost.Displayname
}

func (ghost *Ghost) Intent() MatrixIntent {
	return ghost.intent
}

// UpdateInfo syncs the ghost's profile. If info is nil, it's only fetched
// when the ghost has never been synced.
func (ghost *Ghost) UpdateInfo(ctx context.Context, observer telegram.Observer, info *telegram.UserInfo, updateAvatar bool) error {
	ghost.syncLock.Lock()
	defer ghost.syncLock.Unlock()
	if info == nil {
		if ghost.Displayname != "" {
			return nil
		}
		ghost.log.Debug().Int64("observer_id", observer.GetTelegramID()).Msg("Fetching info to update ghost")
		full, err := observer.GetClient().GetChatInfo(ctx, telegram.InputPeer{Type: telegram.PeerTypeUser, ID: ghost.TGID})
		if err != nil {
			return fmt.Errorf("failed to fetch info of %d: %w", ghost.TGID, err)
		} else if full.User == nil {
			return fmt.Errorf("%w: no user in info of %d", ErrMissingChatInfo, ghost.TGID)
		}
		info = full.User
	}

	changed := ghost.updateName(ctx, info)
	if ghost.Username != info.Username {
		ghost.Username = info.Username
		changed = true
	}
	if updateAvatar {
		avatarChanged, err := ghost.updateAvatar(ctx, observer, info.Photo)
		if err != nil {
			ghost.log.Warn().Err(err).Msg("Failed to update avatar")
		}
		changed = avatarChanged || changed
	}
	if changed {
		if err := ghost.ghosts.Store.Put(ctx, ghost.Puppet); err != nil {
			return fmt.Errorf("failed to save puppet: %w", err)
		}
	}
	return nil
}

func (ghost *Ghost) updateName(ctx context.Context, info *telegram.UserInfo) bool {
	newName := ghost.ghosts.Config.FormatDisplayname(config.DisplaynameParams{
		FirstName: info.FirstName,
		LastName:  info.LastName,
		Username:  info.Username,
		Phone:     info.Phone,
		ID:        info.ID,
	})
	if ghost.Displayname == newName && ghost.NameSet {
		return false
	}
	ghost.Displayname = newName
	ghost.NameSet = false
	if err := ghost.intent.SetDisplayName(ctx, newName); err != nil {
		ghost.log.Warn().Err(err).Msg("Failed to update displayname")
	} else {
		ghost.NameSet = true
	}
	return true
}

func (ghost *Ghost) updateAvatar(ctx context.Context, observer telegram.Observer, photo *telegram.ChatPhoto) (bool, error) {
	var loc *telegram.FileLocation
	if photo != nil {
		loc = photo.Big
	}
	if loc == nil {
		if ghost.Photo == nil && ghost.AvatarSet {
			return false, nil
		}
		ghost.Photo = nil
		ghost.AvatarURL = id.ContentURI{}
	} else if ghost.Photo.Matches(loc) && ghost.AvatarSet {
		return false, nil
	} else if !ghost.Photo.Matches(loc) || ghost.AvatarURL.IsEmpty() {
		file, err := observer.GetClient().GetFile(ctx, *loc)
		if err != nil {
			return false, fmt.Errorf("failed to download avatar: %w", err)
		}
		meta := attachment.Describe(file.Data, file.MimeType, file.Extension, file.MsgType)
		avatarURL, err := ghost.intent.UploadMedia(ctx, file.Data, meta.MimeType, avatarFileName(loc, meta.Extension))
		if err != nil {
			return false, fmt.Errorf("failed to upload avatar: %w", err)
		}
		ghost.Photo = database.NewPhotoRef(loc)
		ghost.AvatarURL = avatarURL
	}
	ghost.AvatarSet = false
	if err := ghost.intent.SetAvatarURL(ctx, ghost.AvatarURL); err != nil {
		return true, err
	}
	ghost.AvatarSet = true
	return true, nil
}
