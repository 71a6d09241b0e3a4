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

package config

import (
	"fmt"

	"github.com/rs/zerolog"
	"go.mau.fi/util/dbutil"
	"gopkg.in/yaml.v3"

	"go.mau.fi/mautrix-telegram/database"
)

type DatabaseConfig struct {
	Type string `yaml:"type"`
	URI  string `yaml:"uri"`

	MaxOpenConns int `yaml:"max_open_conns"`
	MaxIdleConns int `yaml:"max_idle_conns"`
}

func (dc *DatabaseConfig) validate() error {
	switch dc.Type {
	case "":
		dc.Type = "sqlite3"
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("unsupported database type %q", dc.Type)
	}

	if dc.URI == "" {
		dc.URI = "mautrix-telegram.db"
	}

	if dc.MaxOpenConns == 0 {
		dc.MaxOpenConns = 20
	}

	if dc.MaxIdleConns == 0 {
		dc.MaxIdleConns = 2
	}

	return nil
}

type umDatabaseConfig DatabaseConfig

func (dc *DatabaseConfig) UnmarshalYAML(node *yaml.Node) error {
	if err := node.Decode((*umDatabaseConfig)(dc)); err != nil {
		return err
	}
	return dc.validate()
}

func (cfg *Config) CreateDatabase(log zerolog.Logger) (*database.Database, error) {
	rawDB, err := dbutil.NewWithDialect(cfg.Database.URI, cfg.Database.Type)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	rawDB.RawDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	rawDB.RawDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	return database.New(rawDB, log.With().Str("db_section", "main").Logger()), nil
}
