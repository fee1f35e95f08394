// Copyright 2024 Anapaya Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package vrpstore holds the aggregated, deduplicated set of Validated ROA
// Payloads a run produces: the output every downstream formatter
// (internal/output) reads from.
package vrpstore

import (
	"net/netip"
	"sort"

	"github.com/netsec-ethz/rpki-client/internal/resources"
)

// VRP is one validated route origin authorization: "AS may originate
// Prefix, up to MaxLength bits".
type VRP struct {
	AFI       resources.AFI
	Prefix    [16]byte // 16-byte form (IPv4 as IPv4-mapped IPv6), per resources.CompareAddr's ordering
	PrefixLen int
	MaxLength int
	ASID      uint32

	Expires int64  // unix seconds; max survives on collision
	TAL     string // provenance TAL; first inserter wins on collision
}

// NewVRP builds a VRP from a parsed ROA entry's prefix, widening it to the
// 16-byte form vrpstore orders on regardless of address family (an IPv4
// address becomes its IPv4-mapped IPv6 form).
func NewVRP(afi resources.AFI, prefix netip.Prefix, maxLength int, asid uint32, expires int64, tal string) VRP {
	return VRP{
		AFI:       afi,
		Prefix:    prefix.Addr().As16(),
		PrefixLen: prefix.Bits(),
		MaxLength: maxLength,
		ASID:      asid,
		Expires:   expires,
		TAL:       tal,
	}
}

// Store is the ordered, deduplicated VRP index. It is not safe for
// concurrent use; the orchestrator owns it single-threaded.
type Store struct {
	entries []VRP
	total   int // count of insertions attempted, including collisions
}

// New returns an empty store.
func New() *Store {
	return &Store{}
}

func less(a, b VRP) bool {
	if a.AFI != b.AFI {
		return a.AFI < b.AFI
	}
	for i := range a.Prefix {
		if a.Prefix[i] != b.Prefix[i] {
			return a.Prefix[i] < b.Prefix[i]
		}
	}
	if a.PrefixLen != b.PrefixLen {
		return a.PrefixLen < b.PrefixLen
	}
	if a.MaxLength != b.MaxLength {
		return a.MaxLength < b.MaxLength
	}
	return a.ASID < b.ASID
}

func sameKey(a, b VRP) bool {
	return a.AFI == b.AFI && a.Prefix == b.Prefix && a.PrefixLen == b.PrefixLen &&
		a.MaxLength == b.MaxLength && a.ASID == b.ASID
}

// Insert adds v to the store. If an entry with the same (AFI, prefix,
// prefixlen, maxlen, asid) key already exists, the two are merged: the
// later of the two Expires times survives, and TAL provenance from the
// first insertion is kept.
func (s *Store) Insert(v VRP) {
	s.total++
	i := sort.Search(len(s.entries), func(i int) bool { return !less(s.entries[i], v) })
	if i < len(s.entries) && sameKey(s.entries[i], v) {
		if v.Expires > s.entries[i].Expires {
			s.entries[i].Expires = v.Expires
		}
		return
	}
	s.entries = append(s.entries, VRP{})
	copy(s.entries[i+1:], s.entries[i:])
	s.entries[i] = v
}

// All returns every VRP in the store's canonical sorted order.
func (s *Store) All() []VRP {
	return s.entries
}

// Unique returns the number of distinct VRPs in the store.
func (s *Store) Unique() int {
	return len(s.entries)
}

// Total returns the number of Insert calls made, including collisions
// that merged into an existing entry.
func (s *Store) Total() int {
	return s.total
}
