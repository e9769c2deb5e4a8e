// Copyright (C) 2024 The qsym Authors
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
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package state

import (
	"github.com/dchest/siphash"
)

// internKey is a fixed siphash key used only to spread global names across
// the interner's buckets; it carries no secrecy requirement (names are not
// attacker-controlled secrets here; the pattern below is the same
// "fast, non-cryptographic hash for an internal lookup table" idea the
// teacher applies to hash-table paths elsewhere).
var internKey0, internKey1 = uint64(0x716c6f73796d6571), uint64(0x696e7465726e6572)

// interner is a siphash-bucketed set of global names, used during layout
// to give an O(1) "have we already placed a global called X" check; it is
// the only duplicate-name check layout performs. It exists alongside the
// name->address maps (not instead of them); the maps remain the source of
// truth for lookups.
type interner struct {
	buckets map[uint64][]string
}

func newInterner() *interner {
	return &interner{buckets: make(map[uint64][]string)}
}

func (n *interner) hash(name string) uint64 {
	return siphash.Hash(internKey0, internKey1, []byte(name))
}

// seen reports whether name was already added via add.
func (n *interner) seen(name string) bool {
	h := n.hash(name)
	for _, existing := range n.buckets[h] {
		if existing == name {
			return true
		}
	}
	return false
}

// add records name as placed.
func (n *interner) add(name string) {
	h := n.hash(name)
	n.buckets[h] = append(n.buckets[h], name)
}
