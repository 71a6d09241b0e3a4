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

package connector

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"maunium.net/go/mautrix/event"

	"go.mau.fi/mautrix-telegram/pkg/msgconv"
	"go.mau.fi/mautrix-telegram/pkg/telegram"
)

const filesNotSupportedNotice = "Sending files is not yet supported."

var geoURIRegex = regexp.MustCompile(`geo:(-?[0-9]+(?:\.[0-9]+)?),(-?[0-9]+(?:\.[0-9]+)?)`)

// ParseGeoURI finds a geo: URI (RFC 5870) in the given string and parses its
// coordinates. Altitude and parameters are ignored.
func ParseGeoURI(uri string) (telegram.GeoPoint, error) {
	match := geoURIRegex.FindStringSubmatch(uri)
	if match == nil {
		return telegram.GeoPoint{}, fmt.Errorf("%w %q", ErrInvalidGeoURI, uri)
	}
	lat, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return telegram.GeoPoint{}, fmt.Errorf("%w: bad latitude: %w", ErrInvalidGeoURI, err)
	}
	long, err := strconv.ParseFloat(match[2], 64)
	if err != nil {
		return telegram.GeoPoint{}, fmt.Errorf("%w: bad longitude: %w", ErrInvalidGeoURI, err)
	}
	if lat < -90 || lat > 90 || long < -180 || long > 180 {
		return telegram.GeoPoint{}, fmt.Errorf("%w: coordinates out of range", ErrInvalidGeoURI)
	}
	return telegram.GeoPoint{Lat: lat, Long: long}, nil
}

func FormatGeoURI(point telegram.GeoPoint) string {
	return fmt.Sprintf("geo:%s,%s",
		strconv.FormatFloat(point.Lat, 'f', -1, 64),
		strconv.FormatFloat(point.Long, 'f', -1, 64))
}

// HandleMatrixMessage relays a Matrix message to Telegram through the sender's session.
func (portal *Portal) HandleMatrixMessage(ctx context.Context, sender User, evt *event.Event) error {
	log := portal.log.With().
		Str("event_id", evt.ID.String()).
		Str("sender", sender.GetMXID().String()).
		Logger()
	ctx = log.WithContext(ctx)
	content, ok := evt.Content.Parsed.(*event.MessageEventContent)
	if !ok {
		return fmt.Errorf("unexpected parsed content type %T", evt.Content.Parsed)
	}
	switch content.MsgType {
	case event.MsgText, event.MsgNotice, event.MsgEmote, event.MsgLocation:
	case event.MsgImage, event.MsgAudio, event.MsgVideo, event.MsgFile:
		return portal.sendNotice(ctx, filesNotSupportedNotice)
	default:
		log.Debug().Str("msgtype", string(content.MsgType)).Msg("Ignoring message with unsupported msgtype")
		return nil
	}
	if !portal.loadAccessHash(ctx, sender) {
		return ErrAccessHashUnavailable
	}
	input := portal.Peer.Input(portal.accessHash(sender))
	client := sender.GetClient()

	var err error
	switch content.MsgType {
	case event.MsgText, event.MsgNotice, event.MsgEmote:
		text, entities := content.Body, []telegram.MessageEntity(nil)
		if content.Format == event.FormatHTML && content.FormattedBody != "" {
			text, entities = portal.bridge.Formatter.MatrixToTelegram(ctx, content.FormattedBody)
		}
		err = client.SendMessage(ctx, input, text, entities)
	case event.MsgLocation:
		geoURI := content.GeoURI
		if geoURI == "" {
			geoURI = content.Body
		}
		point, parseErr := ParseGeoURI(geoURI)
		if parseErr != nil {
			return parseErr
		}
		err = client.SendMedia(ctx, input, telegram.InputMediaGeoPoint{GeoPoint: point})
	}
	if err != nil {
		if errors.Is(err, telegram.ErrInvalidAccessHash) {
			portal.forgetAccessHash(ctx, sender)
		}
		return fmt.Errorf("failed to send message to Telegram: %w", err)
	}
	return nil
}

func (portal *Portal) sendNotice(ctx context.Context, text string) error {
	roomID := portal.RoomID()
	if roomID == "" {
		return nil
	}
	intent, err := portal.MainIntent(ctx)
	if err != nil {
		return err
	}
	_, err = intent.SendMessage(ctx, roomID, msgconv.RenderNotice(text))
	return err
}
