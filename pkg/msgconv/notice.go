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
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/format"
	"maunium.net/go/mautrix/format/mdext"
)

var noticeRenderer = goldmark.New(
	goldmark.WithExtensions(extension.Strikethrough, mdext.SimpleSpoiler),
	format.HTMLOptions,
)

// RenderNotice renders a markdown string into an m.notice event sent by the bridge itself.
func RenderNotice(text string) *event.MessageEventContent {
	content := &event.MessageEventContent{
		MsgType: event.MsgNotice,
		Body:    text,
	}
	var buf strings.Builder
	if err := noticeRenderer.Convert([]byte(text), &buf); err != nil {
		panic(fmt.Errorf("markdown parser errored: %w", err))
	}
	rendered := format.UnwrapSingleParagraph(strings.TrimRight(buf.String(), "\n"))
	if rendered != html.EscapeString(text) {
		content.Format = event.FormatHTML
		content.FormattedBody = rendered
	}
	return content
}
