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
)

type PuppetQuery struct {
	*dbutil.QueryHelper[*Puppet]
}

// Puppet is the stored profile of the Matrix ghost of a Telegram user.
type Puppet struct {
	TGID        int64
	Displayname string
	NameSet     bool
	Username    string

	Photo     *PhotoRef
	AvatarURL id.ContentURI
	AvatarSet bool
}

func newPuppet(_ *dbutil.QueryHelper[*Puppet]) *Puppet {
	return &Puppet{}
}

const (
	puppetBaseSelect = `
		SELECT tgid, displayname, name_set, username, photo, avatar_url, avatar_set FROM puppet
	`
	getPuppetByTGIDQuery = puppetBaseSelect + `WHERE tgid=$1`
	getAllPuppetsQuery   = puppetBaseSelect + `ORDER BY tgid`
	upsertPuppetQuery    = `
		INSERT INTO puppet (tgid, displayname, name_set, username, photo, avatar_url, avatar_set)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (tgid) DO UPDATE
			SET displayname = excluded.displayname,
			    name_set = excluded.name_set,
			    username = excluded.username,
			    photo = excluded.photo,
			    avatar_url = excluded.avatar_url,
			    avatar_set = excluded.avatar_set
	`
)

func (pq *PuppetQuery) GetByTGID(ctx context.Context, tgID int64) (*Puppet, error) {
	return pq.QueryOne(ctx, getPuppetByTGIDQuery, tgID)
}

func (pq *PuppetQuery) GetAll(ctx context.Context) ([]*Puppet, error) {
	return pq.QueryMany(ctx, getAllPuppetsQuery)
}

func (pq *PuppetQuery) Put(ctx context.Context, puppet *Puppet) error {
	return pq.Exec(ctx, upsertPuppetQuery, puppet.sqlVariables()...)
}

func (p *Puppet) sqlVariables() []any {
	var avatarURL string
	if !p.AvatarURL.IsEmpty() {
		avatarURL = p.AvatarURL.String()
	}
	return []any{p.TGID, p.Displayname, p.NameSet, p.Username, jsonPtr(p.Photo), avatarURL, p.AvatarSet}
}

func (p *Puppet) Scan(row dbutil.Scannable) (*Puppet, error) {
	var photo sql.NullString
	var avatarURL string
	err := row.Scan(&p.TGID, &p.Displayname, &p.NameSet, &p.Username, &photo, &avatarURL, &p.AvatarSet)
	if err != nil {
		return nil, err
	}
	if avatarURL != "" {
		p.AvatarURL, _ = id.ParseContentURI(avatarURL)
	}
	if photo.Valid {
		p.Photo = &PhotoRef{}
		if err = json.Unmarshal([]byte(photo.String), p.Photo); err != nil {
			return nil, fmt.Errorf("failed to parse photo of puppet %d: %w", p.TGID, err)
		}
	}
	return p, nil
}
