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

package msgconv

import (
	"context"
	"slices"
	"net/url"
	"strings"

	"maunium.net/go/mautrix/format"
	"maunium.net/go/mautrix/id"

	"go.mau.fi/mautrix-telegram/pkg/telegram"
)

const formatterContextCollectorKey = "fi.mau.telegram.entity_collector"

// Entity boundaries are marked in the parser output with characters from the
// supplementary private use areas. The code point offset is the entity index.
const (
	entityStartMarker = 0xF0000
	entityEndMarker   = 0x100000
	maxEntities       = 0xFFFE
)

func isMarker(r rune) bool {
	return r >= entityStartMarker
}

type entityCollector struct {
	formatter *Formatter
	entities  []telegram.MessageEntity
}

func getCollector(ctx format.Context) *entityCollector {
	return ctx.ReturnData[formatterContextCollectorKey].(*entityCollector)
}

func (ec *entityCollector) wrap(text string, entity telegram.MessageEntity) string {
	if text == "" || len(ec.entities) >= maxEntities {
		return text
	}
	idx := rune(len(ec.entities))
	ec.entities = append(ec.entities, entity)
	return string(entityStartMarker+idx) + text + string(entityEndMarker+idx)
}

// finalize strips the markers from the parser output and computes the UTF-16
// offsets of the collected entities.
func (ec *entityCollector) finalize(marked string) (string, []telegram.MessageEntity) {
	var buf strings.Builder
	buf.Grow(len(marked))
	offset := 0
	found := make([]bool, len(ec.entities))
	for _, r := range marked {
		switch {
		case r >= entityEndMarker:
			idx := int(r - entityEndMarker)
			if idx < len(ec.entities) {
				ec.entities[idx].Length = offset - ec.entities[idx].Offset
			}
		case r >= entityStartMarker:
			idx := int(r - entityStartMarker)
			if idx < len(ec.entities) {
				ec.entities[idx].Offset = offset
				found[idx] = true
			}
		default:
			buf.WriteRune(r)
			offset += utf16Len(r)
		}
	}
	entities := make([]telegram.MessageEntity, 0, len(ec.entities))
	for i, ent := range ec.entities {
		if found[i] && ent.Length > 0 {
			entities = append(entities, ent)
		}
	}
	slices.SortStableFunc(entities, func(a, b telegram.MessageEntity) int {
		return a.Offset - b.Offset
	})
	return buf.String(), entities
}

func utf16Len(r rune) int {
	if r >= 0x10000 {
		return 2
	}
	return 1
}

func stripMarkers(s string) string {
	if !strings.ContainsFunc(s, isMarker) {
		return s
	}
	return strings.Map(func(r rune) rune {
		if isMarker(r) {
			return -1
		}
		return r
	}, s)
}

func wrapEntity(entityType telegram.EntityType) func(string, format.Context) string {
	return func(s string, ctx format.Context) string {
		return getCollector(ctx).wrap(s, telegram.MessageEntity{Type: entityType})
	}
}

var matrixHTMLParser = &format.HTMLParser{
	TabsToSpaces:   4,
	Newline:        "\n",
	HorizontalLine: "\n---\n",

	BoldConverter:          wrapEntity(telegram.EntityBold),
	ItalicConverter:        wrapEntity(telegram.EntityItalic),
	UnderlineConverter:     wrapEntity(telegram.EntityUnderline),
	StrikethroughConverter: wrapEntity(telegram.EntityStrike),
	MonospaceConverter:     wrapEntity(telegram.EntityCode),
	MonospaceBlockConverter: func(code, language string, ctx format.Context) string {
		return getCollector(ctx).wrap(strings.TrimSuffix(code, "\n"), telegram.MessageEntity{
			Type:     telegram.EntityPre,
			Language: language,
		})
	},
	SpoilerConverter: func(text, reason string, ctx format.Context) string {
		return getCollector(ctx).wrap(text, telegram.MessageEntity{Type: telegram.EntitySpoiler})
	},
	LinkConverter: func(text, href string, ctx format.Context) string {
		collector := getCollector(ctx)
		if mxid, ok := parseMatrixToUser(href); ok && collector.formatter.ParseGhost != nil {
			if userID, ok := collector.formatter.ParseGhost(mxid); ok {
				return collector.wrap(text, telegram.MessageEntity{Type: telegram.EntityMentionName, UserID: userID})
			}
			return text
		}
		if stripMarkers(text) == href {
			return collector.wrap(text, telegram.MessageEntity{Type: telegram.EntityURL})
		} else if strings.HasPrefix(href, "mailto:") && stripMarkers(text) == strings.TrimPrefix(href, "mailto:") {
			return collector.wrap(text, telegram.MessageEntity{Type: telegram.EntityEmail})
		}
		return collector.wrap(text, telegram.MessageEntity{Type: telegram.EntityTextURL, URL: href})
	},
	TextConverter: func(s string, ctx format.Context) string {
		return stripMarkers(s)
	},
}

func parseMatrixToUser(href string) (id.UserID, bool) {
	target, ok := strings.CutPrefix(href, "https://matrix.to/#/")
	if !ok || !strings.HasPrefix(target, "@") {
		return "", false
	}
	if idx := strings.IndexAny(target, "?/"); idx >= 0 {
		target = target[:idx]
	}
	target, err := url.PathUnescape(target)
	if err != nil {
		return "", false
	}
	return id.UserID(target), true
}

// MatrixToTelegram converts Matrix HTML into plain text and Telegram formatting entities.
func (f *Formatter) MatrixToTelegram(ctx context.Context, htmlText string) (string, []telegram.MessageEntity) {
	collector := &entityCollector{formatter: f}
	parseCtx := format.NewContext(ctx)
	parseCtx.ReturnData[formatterContextCollectorKey] = collector
	return collector.finalize(matrixHTMLParser.Parse(htmlText, parseCtx))
}
