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
	"strings"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultUsernameTemplate    = "telegram_{{.}}"
	DefaultAliasTemplate       = "telegram_{{.}}"
	DefaultDisplaynameTemplate = "{{.FirstName}} {{.LastName}}"
	DefaultPrivateChatTopic    = "Telegram private chat"
	DefaultSavedMessagesName   = "Saved Messages (Telegram)"
	DefaultTypingTimeout       = 5500 * time.Millisecond
	DefaultPortalMessageBuffer = 128
)

type BridgeConfig struct {
	UsernameTemplate    string `yaml:"username_template"`
	AliasTemplate       string `yaml:"alias_template"`
	DisplaynameTemplate string `yaml:"displayname_template"`
	usernameTemplate    *template.Template
	aliasTemplate       *template.Template
	displaynameTemplate *template.Template

	PrivateChatTopic  string `yaml:"private_chat_topic"`
	SavedMessagesName string `yaml:"saved_messages_name"`

	PortalMessageBuffer int           `yaml:"portal_message_buffer"`
	TypingTimeout       time.Duration `yaml:"typing_timeout"`

	FederateRooms bool `yaml:"federate_rooms"`
	// InviteOnCreate makes room creation requests for an existing room still invite the given users.
	InviteOnCreate bool `yaml:"invite_on_create"`
}

type umBridgeConfig BridgeConfig

func (bc *BridgeConfig) UnmarshalYAML(node *yaml.Node) error {
	err := node.Decode((*umBridgeConfig)(bc))
	if err != nil {
		return err
	}
	return bc.PostProcess()
}

func (bc *BridgeConfig) PostProcess() error {
	if bc.UsernameTemplate == "" {
		bc.UsernameTemplate = DefaultUsernameTemplate
	}
	if bc.AliasTemplate == "" {
		bc.AliasTemplate = DefaultAliasTemplate
	}
	if bc.DisplaynameTemplate == "" {
		bc.DisplaynameTemplate = DefaultDisplaynameTemplate
	}
	if bc.PrivateChatTopic == "" {
		bc.PrivateChatTopic = DefaultPrivateChatTopic
	}
	if bc.SavedMessagesName == "" {
		bc.SavedMessagesName = DefaultSavedMessagesName
	}
	if bc.TypingTimeout <= 0 {
		bc.TypingTimeout = DefaultTypingTimeout
	}
	if bc.PortalMessageBuffer <= 0 {
		bc.PortalMessageBuffer = DefaultPortalMessageBuffer
	}
	var err error
	bc.usernameTemplate, err = template.New("username").Parse(bc.UsernameTemplate)
	if err != nil {
		return err
	}
	bc.aliasTemplate, err = template.New("alias").Parse(bc.AliasTemplate)
	if err != nil {
		return err
	}
	bc.displaynameTemplate, err = template.New("displayname").Parse(bc.DisplaynameTemplate)
	return err
}

// FormatUsername returns the localpart of the ghost of a Telegram user.
// The parameter is a string so that it can also be used to build a pattern.
func (bc *BridgeConfig) FormatUsername(userID string) string {
	var buf strings.Builder
	if err := bc.usernameTemplate.Execute(&buf, userID); err != nil {
		return ""
	}
	return buf.String()
}

// FormatAlias returns the localpart of the room alias for a public channel username.
func (bc *BridgeConfig) FormatAlias(username string) string {
	var buf strings.Builder
	if err := bc.aliasTemplate.Execute(&buf, username); err != nil {
		return ""
	}
	return buf.String()
}

type DisplaynameParams struct {
	FirstName string
	LastName  string
	Username  string
	Phone     string
	ID        int64
}

func (bc *BridgeConfig) FormatDisplayname(params DisplaynameParams) string {
	var buf strings.Builder
	err := bc.displaynameTemplate.Execute(&buf, &params)
	if name := strings.TrimSpace(buf.String()); err == nil && name != "" {
		return name
	} else if params.Username != "" {
		return params.Username
	} else if params.Phone != "" {
		return "+" + strings.TrimPrefix(params.Phone, "+")
	}
	return "Telegram user"
}
