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
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"go.mau.fi/mautrix-telegram/config"
	"go.mau.fi/mautrix-telegram/database"
)

var listCommand = &cli.Command{
	Name:  "list",
	Usage: "List bridged portals",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "with-room",
			Usage: "Only list portals that have a Matrix room",
		},
	},
	Before: requiresDatabase,
	After:  closeDatabase,
	Action: cmdList,
}

func cmdList(ctx *cli.Context) error {
	db := getDatabase(ctx)
	var portals []*database.Portal
	var err error
	if ctx.Bool("with-room") {
		portals, err = db.Portal.GetAllWithMXID(ctx.Context)
	} else {
		portals, err = db.Portal.GetAll(ctx.Context)
	}
	if err != nil {
		return fmt.Errorf("failed to get portals: %w", err)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "KEY\tTYPE\tTITLE\tROOM")
	for _, portal := range portals {
		title := portal.Peer.Title
		if title == "" && portal.Peer.Username != "" {
			title = "@" + portal.Peer.Username
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", portal.Key(), portal.Peer.Type, title, portal.MXID)
	}
	return w.Flush()
}

var exportCommand = &cli.Command{
	Name:      "export",
	Usage:     "Write a snapshot of all portals",
	ArgsUsage: "[FILE]",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "format",
			Usage: "Snapshot format (json or yaml). Defaults to the file extension, or json for stdout.",
		},
	},
	Before: requiresDatabase,
	After:  closeDatabase,
	Action: cmdExport,
}

func cmdExport(ctx *cli.Context) error {
	path := ctx.Args().First()
	format, err := snapshotFormat(ctx.String("format"), path)
	if err != nil {
		return err
	}
	portals, err := getDatabase(ctx).Portal.GetAll(ctx.Context)
	if err != nil {
		return fmt.Errorf("failed to get portals: %w", err)
	}
	entries := make([]*database.PortalEntry, len(portals))
	for i, portal := range portals {
		entries[i] = portal.ToEntry()
	}
	out := os.Stdout
	if path != "" && path != "-" {
		out, err = os.Create(path)
		if err != nil {
			return err
		}
		defer out.Close()
	}
	if err = writeSnapshot(out, format, entries); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	zerolog.Ctx(ctx.Context).Info().Int("portal_count", len(entries)).Msg("Exported portals")
	return nil
}

var importCommand = &cli.Command{
	Name:      "import",
	Usage:     "Save portals from a snapshot, replacing existing portals with the same key",
	ArgsUsage: "FILE",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "format",
			Usage: "Snapshot format (json or yaml). Defaults to the file extension.",
		},
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "Only validate the snapshot",
		},
	},
	Before: requiresDatabase,
	After:  closeDatabase,
	Action: cmdImport,
}

func cmdImport(ctx *cli.Context) error {
	if ctx.NArg() == 0 {
		return fmt.Errorf("you must specify a snapshot file")
	}
	path := ctx.Args().First()
	format, err := snapshotFormat(ctx.String("format"), path)
	if err != nil {
		return err
	}
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	entries, err := readSnapshot(file, format)
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}
	portals, err := portalsFromEntries(entries)
	if err != nil {
		return err
	}
	log := zerolog.Ctx(ctx.Context)
	if ctx.Bool("dry-run") {
		log.Info().Int("portal_count", len(portals)).Msg("Snapshot is valid")
		return nil
	}
	if err = getDatabase(ctx).Portal.PutMany(ctx.Context, portals); err != nil {
		return fmt.Errorf("failed to save portals: %w", err)
	}
	log.Info().Int("portal_count", len(portals)).Msg("Imported portals")
	return nil
}

var migrateCommand = &cli.Command{
	Name:   "migrate",
	Usage:  "Upgrade the database schema to the latest version",
	Before: requiresDatabase,
	After:  closeDatabase,
	Action: func(ctx *cli.Context) error {
		zerolog.Ctx(ctx.Context).Info().Msg("Database is up to date")
		return nil
	},
}

var exampleConfigCommand = &cli.Command{
	Name:  "example-config",
	Usage: "Print the example config",
	Action: func(ctx *cli.Context) error {
		_, err := fmt.Fprint(os.Stdout, config.ExampleConfig)
		return err
	},
}
