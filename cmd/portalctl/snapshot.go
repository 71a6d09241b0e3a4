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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"go.mau.fi/mautrix-telegram/database"
	"go.mau.fi/mautrix-telegram/pkg/tgid"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

var errUnknownFormat = errors.New("unknown snapshot format")

func snapshotFormat(explicit, path string) (string, error) {
	format := strings.ToLower(explicit)
	if format == "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			format = formatYAML
		default:
			format = formatJSON
		}
	}
	switch format {
	case formatJSON, formatYAML:
		return format, nil
	case "yml":
		return formatYAML, nil
	default:
		return "", fmt.Errorf("%w %q", errUnknownFormat, explicit)
	}
}

func writeSnapshot(w io.Writer, format string, entries []*database.PortalEntry) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(entries); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("%w %q", errUnknownFormat, format)
	}
}

func readSnapshot(r io.Reader, format string) (entries []*database.PortalEntry, err error) {
	switch format {
	case formatJSON:
		err = json.NewDecoder(r).Decode(&entries)
	case formatYAML:
		err = yaml.NewDecoder(r).Decode(&entries)
		if errors.Is(err, io.EOF) {
			err = nil
		}
	default:
		err = fmt.Errorf("%w %q", errUnknownFormat, format)
	}
	return
}

// portalsFromEntries converts snapshot entries to portals. Entries of other
// types are skipped, but a snapshot with duplicate keys is rejected.
func portalsFromEntries(entries []*database.PortalEntry) ([]*database.Portal, error) {
	portals := make([]*database.Portal, 0, len(entries))
	seen := make(map[tgid.PortalKey]struct{}, len(entries))
	for i, entry := range entries {
		if entry == nil {
			continue
		}
		portal, err := database.PortalFromEntry(entry)
		if errors.Is(err, database.ErrNotPortalEntry) {
			continue
		} else if err != nil {
			return nil, fmt.Errorf("invalid entry #%d: %w", i+1, err)
		}
		if _, dup := seen[portal.Key()]; dup {
			return nil, fmt.Errorf("invalid entry #%d: duplicate portal %s", i+1, portal.Key())
		}
		seen[portal.Key()] = struct{}{}
		portals = append(portals, portal)
	}
	return portals, nil
}
