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
	up "go.mau.fi/util/configupgrade"
)

func DoUpgrade(helper up.Helper) {
	helper.Copy(up.Str, "homeserver", "domain")

	helper.Copy(up.Str, "database", "type")
	helper.Copy(up.Str, "database", "uri")
	helper.Copy(up.Int, "database", "max_open_conns")
	helper.Copy(up.Int, "database", "max_idle_conns")

	helper.Copy(up.Str, "bridge", "username_template")
	helper.Copy(up.Str, "bridge", "alias_template")
	helper.Copy(up.Str, "bridge", "displayname_template")
	helper.Copy(up.Str, "bridge", "private_chat_topic")
	helper.Copy(up.Str, "bridge", "saved_messages_name")
	helper.Copy(up.Int, "bridge", "portal_message_buffer")
	helper.Copy(up.Str, "bridge", "typing_timeout")
	helper.Copy(up.Bool, "bridge", "federate_rooms")
	helper.Copy(up.Bool, "bridge", "invite_on_create")

	helper.Copy(up.Map, "logging")
}

var SpacedBlocks = [][]string{
	{"database"},
	{"bridge"},
	{"bridge", "portal_message_buffer"},
	{"logging"},
}

var Upgrader = &up.StructUpgrader{
	SimpleUpgrader: up.SimpleUpgrader(DoUpgrade),
	Blocks:         SpacedBlocks,
	Base:           ExampleConfig,
}
