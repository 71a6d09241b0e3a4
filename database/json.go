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

package database

import (
	"go.mau.fi/util/dbutil"
)

// jsonPtr wraps a pointer in the JSON utility, but turns typed nils into
// untyped ones so that they're stored as NULL rather than the string "null".
func jsonPtr[T any](val *T) dbutil.JSON {
	if val == nil {
		return dbutil.JSON{Data: nil}
	}
	return dbutil.JSON{Data: val}
}
