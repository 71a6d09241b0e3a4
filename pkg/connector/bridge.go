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
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"maunium.net/go/mautrix/id"

	"go.mau.fi/mautrix-telegram/config"
	"go.mau.fi/mautrix-telegram/database"
	"go.mau.fi/mautrix-telegram/pkg/msgconv"
	"go.mau.fi/mautrix-telegram/pkg/tgid"
)

// TelegramBridge holds everything portals share and keeps track of the
// portals that have been loaded.
type TelegramBridge struct {
	Config    *config.BridgeConfig
	Log       zerolog.Logger
	Bot       MatrixIntent
	Users     UserDirectory
	Store     PortalStore
	Formatter Formatter

	portalsByKey  map[tgid.PortalKey]*Portal
	portalsByMXID map[id.RoomID]*Portal
	portalsLock   sync.Mutex

	roomCreation singleflight.Group
}

func NewTelegramBridge(cfg *config.BridgeConfig, bot MatrixIntent, users UserDirectory, store PortalStore, log zerolog.Logger) *TelegramBridge {
	br := &TelegramBridge{
		Config: cfg,
		Log:    log,
		Bot:    bot,
		Users:  users,
		Store:  store,

		portalsByKey:  make(map[tgid.PortalKey]*Portal),
		portalsByMXID: make(map[id.RoomID]*Portal),
	}
	br.Formatter = msgconv.NewFormatter(br.resolveGhost, users.ParsePuppetMXID)
	return br
}

func (br *TelegramBridge) resolveGhost(ctx context.Context, userID int64) (id.UserID, string) {
	puppet, err := br.Users.GetPuppetByTelegramID(ctx, userID)
	if err != nil || puppet == nil {
		zerolog.Ctx(ctx).Warn().Err(err).Int64("user_id", userID).Msg("Failed to get puppet for mention")
		return "", ""
	}
	return puppet.Intent().GetMXID(), puppet.GetDisplayname()
}

// loadPortal must be called with portalsLock held.
func (br *TelegramBridge) loadPortal(dbPortal *database.Portal) *Portal {
	portal := br.newPortal(dbPortal)
	br.portalsByKey[portal.Key()] = portal
	if portal.MXID != "" {
		br.portalsByMXID[portal.MXID] = portal
	}
	return portal
}

// GetPortalByPeer returns the portal for the given peer, creating and saving
// a new room-less portal if one doesn't exist yet.
func (br *TelegramBridge) GetPortalByPeer(ctx context.Context, peer *tgid.Peer) (*Portal, error) {
	if err := peer.Validate(); err != nil {
		return nil, err
	}
	br.portalsLock.Lock()
	defer br.portalsLock.Unlock()
	key := peer.Key()
	if portal, ok := br.portalsByKey[key]; ok {
		return portal, nil
	}
	dbPortal, err := br.Store.GetByKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get portal %s from database: %w", key, err)
	} else if dbPortal == nil {
		dbPortal = database.NewPortal(peer)
		if err = br.Store.Put(ctx, dbPortal); err != nil {
			return nil, fmt.Errorf("failed to save new portal %s: %w", key, err)
		}
	}
	return br.loadPortal(dbPortal), nil
}

// GetExistingPortalByKey returns nil without an error if the portal doesn't exist.
func (br *TelegramBridge) GetExistingPortalByKey(ctx context.Context, key tgid.PortalKey) (*Portal, error) {
	br.portalsLock.Lock()
	defer br.portalsLock.Unlock()
	if portal, ok := br.portalsByKey[key]; ok {
		return portal, nil
	}
	dbPortal, err := br.Store.GetByKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get portal %s from database: %w", key, err)
	} else if dbPortal == nil {
		return nil, nil
	}
	return br.loadPortal(dbPortal), nil
}

func (br *TelegramBridge) GetPortalByMXID(ctx context.Context, mxid id.RoomID) (*Portal, error) {
	br.portalsLock.Lock()
	defer br.portalsLock.Unlock()
	if portal, ok := br.portalsByMXID[mxid]; ok {
		return portal, nil
	}
	dbPortal, err := br.Store.GetByMXID(ctx, mxid)
	if err != nil {
		return nil, fmt.Errorf("failed to get portal by room ID %s: %w", mxid, err)
	} else if dbPortal == nil {
		return nil, nil
	} else if existing, ok := br.portalsByKey[dbPortal.Key()]; ok {
		return existing, nil
	}
	return br.loadPortal(dbPortal), nil
}

func (br *TelegramBridge) GetAllPortals(ctx context.Context) ([]*Portal, error) {
	dbPortals, err := br.Store.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get portals from database: %w", err)
	}
	br.portalsLock.Lock()
	defer br.portalsLock.Unlock()
	output := make([]*Portal, 0, len(dbPortals))
	for _, dbPortal := range dbPortals {
		portal, ok := br.portalsByKey[dbPortal.Key()]
		if !ok {
			portal = br.loadPortal(dbPortal)
		}
		output = append(output, portal)
	}
	return output, nil
}

// RoomCreated registers the room ID of a portal whose room was just created.
func (br *TelegramBridge) RoomCreated(portal *Portal) {
	roomID := portal.RoomID()
	if roomID == "" {
		return
	}
	br.portalsLock.Lock()
	br.portalsByMXID[roomID] = portal
	br.portalsLock.Unlock()
}
