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

package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.mau.fi/util/dbutil"
	"maunium.net/go/mautrix/id"

	"go.mau.fi/mautrix-telegram/pkg/telegram"
	"go.mau.fi/mautrix-telegram/pkg/tgid"
)

// PhotoRef identifies the Telegram file that the current room avatar was made from.
type PhotoRef struct {
	DCID     int32 `json:"dc_id"`
	VolumeID int64 `json:"volume_id"`
	LocalID  int32 `json:"local_id"`
}

func NewPhotoRef(loc *telegram.FileLocation) *PhotoRef {
	return &PhotoRef{
		DCID:     loc.DCID,
		VolumeID: loc.VolumeID,
		LocalID:  loc.LocalID,
	}
}

func (pr *PhotoRef) Matches(loc *telegram.FileLocation) bool {
	return pr != nil && loc != nil &&
		pr.DCID == loc.DCID &&
		pr.VolumeID == loc.VolumeID &&
		pr.LocalID == loc.LocalID
}

type PortalQuery struct {
	*dbutil.QueryHelper[*Portal]
}

type Portal struct {
	Peer *tgid.Peer
	MXID id.RoomID

	Photo     *PhotoRef
	AvatarURL id.ContentURI

	// AccessHashes is only set for channel portals.
	AccessHashes *AccessHashMap
}

func NewPortal(peer *tgid.Peer) *Portal {
	p := &Portal{Peer: peer}
	if peer.IsChannel() {
		p.AccessHashes = NewAccessHashMap()
	}
	return p
}

func newPortal(_ *dbutil.QueryHelper[*Portal]) *Portal {
	return &Portal{}
}

func (p *Portal) Key() tgid.PortalKey {
	return p.Peer.Key()
}

const (
	portalBaseSelect = `
		SELECT tgid, tg_receiver, peer_type, mxid, peer, photo, avatar_url, access_hashes FROM portal
	`
	getPortalByKeyQuery        = portalBaseSelect + `WHERE tgid=$1 AND tg_receiver=$2`
	getPortalByMXIDQuery       = portalBaseSelect + `WHERE mxid=$1`
	getAllPortalsQuery         = portalBaseSelect + `ORDER BY tgid, tg_receiver`
	getAllPortalsWithMXIDQuery = portalBaseSelect + `WHERE mxid IS NOT NULL ORDER BY tgid, tg_receiver`
	upsertPortalQuery          = `
		INSERT INTO portal (tgid, tg_receiver, peer_type, mxid, peer, photo, avatar_url, access_hashes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (tgid, tg_receiver) DO UPDATE
			SET peer_type = excluded.peer_type,
			    mxid = excluded.mxid,
			    peer = excluded.peer,
			    photo = excluded.photo,
			    avatar_url = excluded.avatar_url,
			    access_hashes = excluded.access_hashes
	`
)

func (pq *PortalQuery) GetByKey(ctx context.Context, key tgid.PortalKey) (*Portal, error) {
	return pq.QueryOne(ctx, getPortalByKeyQuery, key.TGID, key.TGReceiver)
}

func (pq *PortalQuery) GetByMXID(ctx context.Context, mxid id.RoomID) (*Portal, error) {
	return pq.QueryOne(ctx, getPortalByMXIDQuery, mxid)
}

func (pq *PortalQuery) GetAll(ctx context.Context) ([]*Portal, error) {
	return pq.QueryMany(ctx, getAllPortalsQuery)
}

func (pq *PortalQuery) GetAllWithMXID(ctx context.Context) ([]*Portal, error) {
	return pq.QueryMany(ctx, getAllPortalsWithMXIDQuery)
}

func (pq *PortalQuery) Put(ctx context.Context, portal *Portal) error {
	if err := portal.Peer.Validate(); err != nil {
		return err
	}
	return pq.Exec(ctx, upsertPortalQuery, portal.sqlVariables()...)
}

func (pq *PortalQuery) PutMany(ctx context.Context, portals []*Portal) error {
	return pq.GetDB().DoTxn(ctx, nil, func(ctx context.Context) error {
		for _, portal := range portals {
			if err := pq.Put(ctx, portal); err != nil {
				return fmt.Errorf("failed to save %s: %w", portal.Key(), err)
			}
		}
		return nil
	})
}

func (p *Portal) sqlVariables() []any {
	var accessHashes *AccessHashMap
	if p.Peer.IsChannel() {
		accessHashes = p.AccessHashes
	}
	var avatarURL string
	if !p.AvatarURL.IsEmpty() {
		avatarURL = p.AvatarURL.String()
	}
	return []any{
		p.Peer.ID,
		p.Peer.ReceiverID,
		string(p.Peer.Type),
		dbutil.StrPtr(p.MXID),
		dbutil.JSON{Data: p.Peer},
		jsonPtr(p.Photo),
		avatarURL,
		jsonPtr(accessHashes),
	}
}

func (p *Portal) Scan(row dbutil.Scannable) (*Portal, error) {
	var tgID, tgReceiver int64
	var peerType, avatarURL string
	var mxid, photo, accessHashes sql.NullString
	var peer tgid.Peer
	err := row.Scan(&tgID, &tgReceiver, &peerType, &mxid, dbutil.JSON{Data: &peer}, &photo, &avatarURL, &accessHashes)
	if err != nil {
		return nil, err
	}
	if peer.ID != tgID || peer.ReceiverID != tgReceiver || string(peer.Type) != peerType {
		return nil, fmt.Errorf("peer data of portal %d-%d doesn't match row", tgID, tgReceiver)
	}
	p.Peer = &peer
	p.MXID = id.RoomID(mxid.String)
	if avatarURL != "" {
		p.AvatarURL, _ = id.ParseContentURI(avatarURL)
	}
	if photo.Valid {
		p.Photo = &PhotoRef{}
		if err = json.Unmarshal([]byte(photo.String), p.Photo); err != nil {
			return nil, fmt.Errorf("failed to parse photo of %s: %w", peer.Key(), err)
		}
	}
	if peer.IsChannel() {
		p.AccessHashes = NewAccessHashMap()
		if accessHashes.Valid {
			if err = json.Unmarshal([]byte(accessHashes.String), p.AccessHashes); err != nil {
				return nil, fmt.Errorf("failed to parse access hashes of %s: %w", peer.Key(), err)
			}
		}
	}
	return p, nil
}
