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

package telegram

type EntityType string

const (
	EntityBold        EntityType = "bold"
	EntityItalic      EntityType = "italic"
	EntityUnderline   EntityType = "underline"
	EntityStrike      EntityType = "strike"
	EntitySpoiler     EntityType = "spoiler"
	EntityCode        EntityType = "code"
	EntityPre         EntityType = "pre"
	EntityBlockquote  EntityType = "blockquote"
	EntityURL         EntityType = "url"
	EntityTextURL     EntityType = "text_url"
	EntityEmail       EntityType = "email"
	EntityMention     EntityType = "mention"
	EntityMentionName EntityType = "mention_name"
)

// MessageEntity is a formatting span. Offset and Length are measured in
// UTF-16 code units, like everywhere else in the Telegram API.
type MessageEntity struct {
	Type     EntityType
	Offset   int
	Length   int
	URL      string
	UserID   int64
	Language string
}

type Message struct {
	ID       int64
	From     int64
	Text     string
	Entities []MessageEntity
	Caption  string

	Photo    *Photo
	Document *Document
	Geo      *GeoPoint
}

type Typing struct {
	From int64
}

type ServiceMessage struct {
	ID     int64
	From   int64
	Action Action
}

// Action is the payload of a service message. The set of implementations
// is closed; anything the session doesn't recognize arrives as ActionUnknown.
type Action interface {
	isAction()
}

type ActionChatCreate struct {
	Title string
	Users []int64
}

type ActionChatAddUser struct {
	Users []int64
}

type ActionChannelCreate struct {
	Title string
}

type ActionChatDeleteUser struct {
	UserID int64
}

type ActionChatEditPhoto struct {
	Photo Photo
}

type ActionChatEditTitle struct {
	Title string
}

type ActionUnknown struct {
	Type string
}

func (ActionChatCreate) isAction()     {}
func (ActionChatAddUser) isAction()    {}
func (ActionChannelCreate) isAction()  {}
func (ActionChatDeleteUser) isAction() {}
func (ActionChatEditPhoto) isAction()  {}
func (ActionChatEditTitle) isAction()  {}
func (ActionUnknown) isAction()        {}

// InputMedia is media sent to Telegram.
type InputMedia interface {
	isInputMedia()
}

type InputMediaGeoPoint struct {
	GeoPoint
}

func (InputMediaGeoPoint) isInputMedia() {}
