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
	"sync"

	"github.com/rs/zerolog"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"go.mau.fi/mautrix-telegram/database"
	"go.mau.fi/mautrix-telegram/pkg/telegram"
)

type portalTelegramEvent struct {
	source User
	evt    any
}

type portalMatrixEvent struct {
	sender User
	evt    *event.Event
}

// Portal is a Telegram chat bridged to a Matrix room. The room is created
// lazily when the first event that needs it arrives.
type Portal struct {
	*database.Portal

	bridge *TelegramBridge
	repo   PortalRepository
	log    zerolog.Logger

	// lock guards the fields of the database portal, except AccessHashes
	// which is safe for concurrent use on its own.
	lock       sync.RWMutex
	avatarLock sync.Mutex
	avatarSet  bool

	telegramEvents chan portalTelegramEvent
	matrixEvents   chan portalMatrixEvent
	loopOnce       sync.Once
	stop           chan struct{}
	stopOnce       sync.Once
}

func (br *TelegramBridge) newPortal(dbPortal *database.Portal) *Portal {
	portal := &Portal{
		Portal: dbPortal,
		bridge: br,
		repo:   br,
		log: br.Log.With().
			Str("portal_key", dbPortal.Key().String()).
			Logger(),
		avatarSet: dbPortal.MXID != "" && !dbPortal.AvatarURL.IsEmpty(),

		telegramEvents: make(chan portalTelegramEvent, br.Config.PortalMessageBuffer),
		matrixEvents:   make(chan portalMatrixEvent, br.Config.PortalMessageBuffer),
		stop:           make(chan struct{}),
	}
	if dbPortal.Peer.IsChannel() && dbPortal.AccessHashes == nil {
		dbPortal.AccessHashes = database.NewAccessHashMap()
	}
	return portal
}

func (portal *Portal) RoomID() id.RoomID {
	portal.lock.RLock()
	defer portal.lock.RUnlock()
	return portal.MXID
}

func (portal *Portal) IsPrivateChat() bool {
	return portal.Peer.IsPrivate()
}

func (portal *Portal) save(ctx context.Context) error {
	portal.lock.RLock()
	defer portal.lock.RUnlock()
	return portal.bridge.Store.Put(ctx, portal.Portal)
}

// MainIntent returns the ghost of the other user in private chats and the bridge bot elsewhere.
func (portal *Portal) MainIntent(ctx context.Context) (MatrixIntent, error) {
	if !portal.IsPrivateChat() {
		return portal.bridge.Bot, nil
	}
	puppet, err := portal.bridge.Users.GetPuppetByTelegramID(ctx, portal.Peer.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get puppet of %d: %w", portal.Peer.ID, err)
	}
	return puppet.Intent(), nil
}

func (portal *Portal) Invite(ctx context.Context, users ...id.UserID) error {
	roomID := portal.RoomID()
	if roomID == "" || len(users) == 0 {
		return nil
	}
	intent, err := portal.MainIntent(ctx)
	if err != nil {
		return err
	}
	var errs []error
	for _, userID := range users {
		if userID == "" {
			continue
		}
		if err = intent.InviteUser(ctx, roomID, userID); err != nil {
			errs = append(errs, fmt.Errorf("failed to invite %s: %w", userID, err))
		}
	}
	return errors.Join(errs...)
}

func (portal *Portal) Kick(ctx context.Context, reason string, users ...id.UserID) error {
	roomID := portal.RoomID()
	if roomID == "" || len(users) == 0 {
		return nil
	}
	intent, err := portal.MainIntent(ctx)
	if err != nil {
		return err
	}
	var errs []error
	for _, userID := range users {
		if userID == "" {
			continue
		}
		if err = intent.KickUser(ctx, roomID, userID, reason); err != nil {
			errs = append(errs, fmt.Errorf("failed to kick %s: %w", userID, err))
		}
	}
	return errors.Join(errs...)
}

// loadAccessHash makes sure the observer has an access hash for the chat.
// It only returns false if the access hash was needed and couldn't be resolved.
func (portal *Portal) loadAccessHash(ctx context.Context, observer telegram.Observer) bool {
	if !portal.Peer.IsChannel() {
		return true
	}
	_, hadHash := portal.AccessHashes.Get(observer.GetTelegramID())
	if err := portal.Peer.LoadAccessHash(ctx, observer, portal.AccessHashes); err != nil {
		portal.log.Err(err).Int64("observer_id", observer.GetTelegramID()).Msg("Failed to load access hash")
		return false
	}
	if !hadHash {
		if err := portal.save(ctx); err != nil {
			portal.log.Err(err).Msg("Failed to save portal after resolving access hash")
		}
	}
	return true
}

func (portal *Portal) accessHash(observer telegram.Observer) int64 {
	if portal.AccessHashes == nil {
		return 0
	}
	accessHash, _ := portal.AccessHashes.Get(observer.GetTelegramID())
	return accessHash
}

// forgetAccessHash drops a cached access hash that Telegram rejected, so
// that the next event resolves it again.
func (portal *Portal) forgetAccessHash(ctx context.Context, observer telegram.Observer) {
	if portal.AccessHashes == nil || !portal.AccessHashes.Delete(observer.GetTelegramID()) {
		return
	}
	portal.log.Debug().Int64("observer_id", observer.GetTelegramID()).Msg("Dropped invalid access hash")
	if err := portal.save(ctx); err != nil {
		portal.log.Err(err).Msg("Failed to save portal after dropping access hash")
	}
}

// QueueTelegramEvent handles the event in the portal's event loop, in order
// with other queued events. The event must be a *telegram.Message,
// *telegram.ServiceMessage or *telegram.Typing.
// Events queued after Stop are dropped and false is returned.
func (portal *Portal) QueueTelegramEvent(source User, evt any) bool {
	if portal.isStopped() {
		return false
	}
	portal.loopOnce.Do(portal.startLoop)
	select {
	case <-portal.stop:
		return false
	case portal.telegramEvents <- portalTelegramEvent{source: source, evt: evt}:
		return true
	}
}

func (portal *Portal) QueueMatrixEvent(sender User, evt *event.Event) bool {
	if portal.isStopped() {
		return false
	}
	portal.loopOnce.Do(portal.startLoop)
	select {
	case <-portal.stop:
		return false
	case portal.matrixEvents <- portalMatrixEvent{sender: sender, evt: evt}:
		return true
	}
}

// Stop makes the event loop exit after the event it is currently handling.
// Events still in the queue are not handled.
func (portal *Portal) Stop() {
	portal.stopOnce.Do(func() {
		close(portal.stop)
	})
}

func (portal *Portal) isStopped() bool {
	select {
	case <-portal.stop:
		return true
	default:
		return false
	}
}

func (portal *Portal) startLoop() {
	go portal.messageLoop()
}

func (portal *Portal) messageLoop() {
	ctx := portal.log.WithContext(context.Background())
	for {
		select {
		case <-portal.stop:
			portal.log.Debug().Msg("Portal event loop stopped")
			return
		case msg := <-portal.matrixEvents:
			portal.handleQueuedMatrixEvent(ctx, msg)
		case msg := <-portal.telegramEvents:
			portal.handleQueuedTelegramEvent(ctx, msg)
		}
	}
}

func (portal *Portal) handleQueuedMatrixEvent(ctx context.Context, msg portalMatrixEvent) {
	if err := portal.HandleMatrixMessage(ctx, msg.sender, msg.evt); err != nil {
		portal.log.Err(err).
			Str("event_id", msg.evt.ID.String()).
			Msg("Failed to handle Matrix message")
	}
}

func (portal *Portal) handleQueuedTelegramEvent(ctx context.Context, msg portalTelegramEvent) {
	var err error
	switch evt := msg.evt.(type) {
	case *telegram.Message:
		err = portal.HandleTelegramMessage(ctx, msg.source, evt)
	case *telegram.ServiceMessage:
		err = portal.HandleTelegramServiceMessage(ctx, msg.source, evt)
	case *telegram.Typing:
		err = portal.HandleTelegramTyping(ctx, evt)
	default:
		portal.log.Warn().Type("event_type", evt).Msg("Unknown Telegram event type in queue")
		return
	}
	if err != nil {
		portal.log.Err(err).Type("event_type", msg.evt).Msg("Failed to handle Telegram event")
	}
}
