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
	"encoding/json"
	"maps"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"
)

// AccessHashMap maps observing Telegram account IDs to the access hash that
// account must use to read a channel. Newer values always overwrite older
// ones; a stale value is simply deleted and resolved again later.
type AccessHashMap struct {
	lock sync.RWMutex
	m    map[int64]int64
}

func NewAccessHashMap() *AccessHashMap {
	return &AccessHashMap{m: make(map[int64]int64)}
}

func (ahm *AccessHashMap) Get(observerID int64) (int64, bool) {
	ahm.lock.RLock()
	defer ahm.lock.RUnlock()
	accessHash, ok := ahm.m[observerID]
	return accessHash, ok
}

// Set stores the access hash for the observer and reports whether the stored value changed.
func (ahm *AccessHashMap) Set(observerID, accessHash int64) bool {
	ahm.lock.Lock()
	defer ahm.lock.Unlock()
	if existing, ok := ahm.m[observerID]; ok && existing == accessHash {
		return false
	}
	if ahm.m == nil {
		ahm.m = make(map[int64]int64)
	}
	ahm.m[observerID] = accessHash
	return true
}

func (ahm *AccessHashMap) Delete(observerID int64) bool {
	ahm.lock.Lock()
	defer ahm.lock.Unlock()
	_, ok := ahm.m[observerID]
	delete(ahm.m, observerID)
	return ok
}

func (ahm *AccessHashMap) Len() int {
	ahm.lock.RLock()
	defer ahm.lock.RUnlock()
	return len(ahm.m)
}

// Pairs returns the entries as (observer, access hash) pairs sorted by observer ID.
func (ahm *AccessHashMap) Pairs() [][2]int64 {
	ahm.lock.RLock()
	defer ahm.lock.RUnlock()
	pairs := make([][2]int64, 0, len(ahm.m))
	for _, observerID := range slices.Sorted(maps.Keys(ahm.m)) {
		pairs = append(pairs, [2]int64{observerID, ahm.m[observerID]})
	}
	return pairs
}

func (ahm *AccessHashMap) MarshalJSON() ([]byte, error) {
	return json.Marshal(ahm.Pairs())
}

func (ahm *AccessHashMap) UnmarshalJSON(data []byte) error {
	var pairs [][2]int64
	if err := json.Unmarshal(data, &pairs); err != nil {
		return err
	}
	ahm.replace(pairs)
	return nil
}

func (ahm *AccessHashMap) MarshalYAML() (any, error) {
	return ahm.Pairs(), nil
}

func (ahm *AccessHashMap) UnmarshalYAML(node *yaml.Node) error {
	var pairs [][2]int64
	if err := node.Decode(&pairs); err != nil {
		return err
	}
	ahm.replace(pairs)
	return nil
}

func (ahm *AccessHashMap) replace(pairs [][2]int64) {
	m := make(map[int64]int64, len(pairs))
	for _, pair := range pairs {
		m[pair[0]] = pair[1]
	}
	ahm.lock.Lock()
	ahm.m = m
	ahm.lock.Unlock()
}
