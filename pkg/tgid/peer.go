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

package tgid

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.mau.fi/mautrix-telegram/pkg/telegram"
)

var (
	ErrInvalidPeerType   = errors.New("invalid peer type")
	ErrInvalidReceiver   = errors.New("invalid receiver ID")
	ErrNoAccessHashCache = errors.New("channel peer has no access hash cache")
)

// PortalKey uniquely identifies a portal. Private chats are only unique per
// receiving account, so TGReceiver is the observing account for user peers
// and equal to TGID for everything else.
type PortalKey struct {
	TGID       int64
	TGReceiver int64
}

func NewPortalKey(tgid, receiver int64) PortalKey {
	return PortalKey{
		TGID:       tgid,
		TGReceiver: receiver,
	}
}

func (key PortalKey) String() string {
	if key.TGReceiver == 0 || key.TGReceiver == key.TGID {
		return strconv.FormatInt(key.TGID, 10)
	}
	return fmt.Sprintf("%d-%d", key.TGID, key.TGReceiver)
}

// Peer identifies the Telegram side of a portal.
type Peer struct {
	Type       telegram.PeerType `json:"type"`
	ID         int64             `json:"id"`
	ReceiverID int64             `json:"receiverID"`
	Title      string            `json:"title,omitempty"`
	Username   string            `json:"username,omitempty"`
}

func NewUserPeer(userID, receiverID int64) *Peer {
	return &Peer{Type: telegram.PeerTypeUser, ID: userID, ReceiverID: receiverID}
}

func NewChatPeer(chatID int64, title string) *Peer {
	return &Peer{Type: telegram.PeerTypeChat, ID: chatID, ReceiverID: chatID, Title: title}
}

func NewChannelPeer(channelID int64, title, username string) *Peer {
	return &Peer{Type: telegram.PeerTypeChannel, ID: channelID, ReceiverID: channelID, Title: title, Username: username}
}

func (p *Peer) Key() PortalKey {
	return NewPortalKey(p.ID, p.ReceiverID)
}

func (p *Peer) IsPrivate() bool {
	return p.Type == telegram.PeerTypeUser
}

func (p *Peer) IsChannel() bool {
	return p.Type == telegram.PeerTypeChannel
}

// IsSelfChat returns true for the "Saved Messages" chat of the receiver.
func (p *Peer) IsSelfChat() bool {
	return p.IsPrivate() && p.ID == p.ReceiverID
}

func (p *Peer) Validate() error {
	if !p.Type.IsValid() {
		return fmt.Errorf("%w %q", ErrInvalidPeerType, p.Type)
	} else if p.ReceiverID == 0 {
		return fmt.Errorf("%w: receiver not set", ErrInvalidReceiver)
	} else if !p.IsPrivate() && p.ReceiverID != p.ID {
		return fmt.Errorf("%w: %s peer %d has receiver %d", ErrInvalidReceiver, p.Type, p.ID, p.ReceiverID)
	}
	return nil
}

func (p *Peer) String() string {
	return fmt.Sprintf("%s %s", p.Type, p.Key())
}

func (p *Peer) Input(accessHash int64) telegram.InputPeer {
	return telegram.InputPeer{Type: p.Type, ID: p.ID, AccessHash: accessHash}
}

// AccessHashCache stores the access hash each observing account must use for
// a channel.
type AccessHashCache interface {
	Get(observerID int64) (int64, bool)
	Set(observerID, accessHash int64) bool
}

// LoadAccessHash makes sure that the given observer has a usable access hash
// for this peer. Access hashes of users and basic groups are tracked by the
// Telegram session itself, so only channels need to be resolved here.
func (p *Peer) LoadAccessHash(ctx context.Context, observer telegram.Observer, cache AccessHashCache) error {
	if !p.IsChannel() {
		return nil
	} else if cache == nil {
		return ErrNoAccessHashCache
	}
	if _, ok := cache.Get(observer.GetTelegramID()); ok {
		return nil
	}
	accessHash, err := observer.GetClient().ResolveAccessHash(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("failed to resolve access hash of %d for %d: %w", p.ID, observer.GetTelegramID(), err)
	}
	cache.Set(observer.GetTelegramID(), accessHash)
	return nil
}

// GetInfo fetches the chat metadata and member list from the observer's point of view.
func (p *Peer) GetInfo(ctx context.Context, observer telegram.Observer, accessHash int64) (*telegram.ChatFull, error) {
	info, err := observer.GetClient().GetChatInfo(ctx, p.Input(accessHash))
	if err != nil {
		return nil, fmt.Errorf("failed to get info of %s: %w", p, err)
	}
	return info, nil
}

// UpdateInfo copies the cached title and username from chat metadata.
func (p *Peer) UpdateInfo(info *telegram.ChatInfo) (changed bool) {
	if p.IsPrivate() || info == nil {
		return false
	}
	if info.Title != "" && p.Title != info.Title {
		p.Title = info.Title
		changed = true
	}
	if p.Username != info.Username {
		p.Username = info.Username
		changed = true
	}
	return
}
