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
	"fmt"
	"html"
	"slices"
	"strings"
	"unicode/utf16"

	"go.mau.fi/mautrix-telegram/pkg/telegram"
)

type entityNode struct {
	telegram.MessageEntity
	children []*entityNode
}

func (en *entityNode) end() int {
	return en.Offset + en.Length
}

// buildEntityTree nests the entities by their ranges. Entities that cross
// the end of their parent are cut off at the parent's end.
func buildEntityTree(entities []telegram.MessageEntity, textLen int) []*entityNode {
	sorted := slices.Clone(entities)
	slices.SortStableFunc(sorted, func(a, b telegram.MessageEntity) int {
		if a.Offset != b.Offset {
			return a.Offset - b.Offset
		}
		return b.Length - a.Length
	})
	var roots []*entityNode
	var stack []*entityNode
	for _, ent := range sorted {
		if ent.Offset < 0 || ent.Length <= 0 || ent.Offset >= textLen {
			continue
		}
		if ent.Offset+ent.Length > textLen {
			ent.Length = textLen - ent.Offset
		}
		node := &entityNode{MessageEntity: ent}
		for len(stack) > 0 && stack[len(stack)-1].end() <= node.Offset {
			stack = stack[:len(stack)-1]
		}
		if len(stack) == 0 {
			roots = append(roots, node)
		} else {
			parent := stack[len(stack)-1]
			if node.end() > parent.end() {
				node.Length = parent.end() - node.Offset
			}
			parent.children = append(parent.children, node)
		}
		stack = append(stack, node)
	}
	return roots
}

// TelegramToMatrix renders Telegram text with formatting entities as Matrix HTML.
func (f *Formatter) TelegramToMatrix(ctx context.Context, text string, entities []telegram.MessageEntity) string {
	text16 := utf16.Encode([]rune(text))
	var buf strings.Builder
	f.writeEntities(ctx, &buf, text16, 0, len(text16), buildEntityTree(entities, len(text16)), false)
	return buf.String()
}

func (f *Formatter) writeEntities(ctx context.Context, buf *strings.Builder, text16 []uint16, start, end int, nodes []*entityNode, inPre bool) {
	cursor := start
	for _, node := range nodes {
		writeText(buf, text16[cursor:node.Offset], inPre)
		f.writeEntity(ctx, buf, text16, node, inPre)
		cursor = node.end()
	}
	writeText(buf, text16[cursor:end], inPre)
}

func writeText(buf *strings.Builder, text16 []uint16, inPre bool) {
	if len(text16) == 0 {
		return
	}
	escaped := html.EscapeString(string(utf16.Decode(text16)))
	if !inPre {
		escaped = strings.ReplaceAll(escaped, "\n", "<br/>")
	}
	buf.WriteString(escaped)
}

func (f *Formatter) writeEntity(ctx context.Context, buf *strings.Builder, text16 []uint16, node *entityNode, inPre bool) {
	inner := func(pre bool) {
		f.writeEntities(ctx, buf, text16, node.Offset, node.end(), node.children, pre)
	}
	plain := string(utf16.Decode(text16[node.Offset:node.end()]))
	wrap := func(open, closeTag string) {
		buf.WriteString(open)
		inner(inPre)
		buf.WriteString(closeTag)
	}
	switch node.Type {
	case telegram.EntityBold:
		wrap("<strong>", "</strong>")
	case telegram.EntityItalic:
		wrap("<em>", "</em>")
	case telegram.EntityUnderline:
		wrap("<u>", "</u>")
	case telegram.EntityStrike:
		wrap("<del>", "</del>")
	case telegram.EntitySpoiler:
		wrap("<span data-mx-spoiler>", "</span>")
	case telegram.EntityCode:
		wrap("<code>", "</code>")
	case telegram.EntityBlockquote:
		wrap("<blockquote>", "</blockquote>")
	case telegram.EntityPre:
		if node.Language != "" {
			_, _ = fmt.Fprintf(buf, `<pre><code class="language-%s">`, html.EscapeString(node.Language))
		} else {
			buf.WriteString("<pre><code>")
		}
		inner(true)
		buf.WriteString("</code></pre>")
	case telegram.EntityURL:
		href := plain
		if !strings.Contains(href, "://") {
			href = "http://" + href
		}
		wrap(fmt.Sprintf(`<a href="%s">`, html.EscapeString(href)), "</a>")
	case telegram.EntityTextURL:
		wrap(fmt.Sprintf(`<a href="%s">`, html.EscapeString(node.URL)), "</a>")
	case telegram.EntityEmail:
		wrap(fmt.Sprintf(`<a href="mailto:%s">`, html.EscapeString(plain)), "</a>")
	case telegram.EntityMentionName:
		if f.ResolveGhost == nil {
			inner(inPre)
			return
		}
		mxid, _ := f.ResolveGhost(ctx, node.UserID)
		if mxid == "" {
			inner(inPre)
			return
		}
		wrap(fmt.Sprintf(`<a href="https://matrix.to/#/%s">`, html.EscapeString(string(mxid))), "</a>")
	default:
		inner(inPre)
	}
}
