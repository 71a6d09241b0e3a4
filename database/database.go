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
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"go.mau.fi/util/dbutil"

	"go.mau.fi/mautrix-telegram/database/upgrades"
)

type Database struct {
	*dbutil.Database

	Portal *PortalQuery
	Puppet *PuppetQuery
}

func New(db *dbutil.Database, log zerolog.Logger) *Database {
	db.UpgradeTable = upgrades.Table
	db.Log = dbutil.ZeroLogger(log)
	return &Database{
		Database: db,
		Portal: &PortalQuery{
			QueryHelper: dbutil.MakeQueryHelper(db, newPortal),
		},
		Puppet: &PuppetQuery{
			QueryHelper: dbutil.MakeQueryHelper(db, newPuppet),
		},
	}
}
