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

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"go.mau.fi/mautrix-telegram/config"
	"go.mau.fi/mautrix-telegram/database"
)

var (
	Tag       = "unknown"
	Commit    = "unknown"
	BuildTime = "unknown"
)

type contextKey int

const (
	contextKeyConfig contextKey = iota
	contextKeyDatabase
)

func getConfig(ctx *cli.Context) *config.Config {
	return ctx.Context.Value(contextKeyConfig).(*config.Config)
}

func getDatabase(ctx *cli.Context) *database.Database {
	return ctx.Context.Value(contextKeyDatabase).(*database.Database)
}

func prepareApp(ctx *cli.Context) error {
	cfg, err := config.Load(ctx.String("config"), !ctx.Bool("no-update"))
	if err != nil {
		return err
	}
	log, err := cfg.CreateLogger()
	if err != nil {
		return err
	}
	newCtx := log.WithContext(ctx.Context)
	newCtx = context.WithValue(newCtx, contextKeyConfig, cfg)
	ctx.Context = newCtx
	return nil
}

// requiresDatabase opens the database and makes sure the schema is up to date.
func requiresDatabase(ctx *cli.Context) error {
	if err := prepareApp(ctx); err != nil {
		return err
	}
	log := zerolog.Ctx(ctx.Context)
	db, err := getConfig(ctx).CreateDatabase(*log)
	if err != nil {
		return err
	}
	if err = db.Upgrade(ctx.Context); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to upgrade database: %w", err)
	}
	ctx.Context = context.WithValue(ctx.Context, contextKeyDatabase, db)
	return nil
}

func closeDatabase(ctx *cli.Context) error {
	if db, ok := ctx.Context.Value(contextKeyDatabase).(*database.Database); ok {
		return db.Close()
	}
	return nil
}

func main() {
	app := &cli.App{
		Name:    "portalctl",
		Usage:   "Inspect and migrate mautrix-telegram portals",
		Version: fmt.Sprintf("%s (%s, built at %s)", Tag, Commit, BuildTime),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   "config.yaml",
				EnvVars: []string{"MAUTRIX_TELEGRAM_CONFIG"},
			},
			&cli.BoolFlag{
				Name:  "no-update",
				Usage: "Don't write the upgraded config back to disk",
			},
		},
		Commands: []*cli.Command{
			listCommand,
			exportCommand,
			importCommand,
			migrateCommand,
			exampleConfigCommand,
		},
	}
	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
