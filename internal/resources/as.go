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

// Package resources implements the RFC 3779 resource-set arithmetic that
// backs certificate validation: disjointness checks within one certificate,
// and containment checks against an issuer's resources, for both AS number
// sets and IP address sets.
package resources

import (
	"sort"

	"github.com/netsec-ethz/rpki-client/internal/rperrors"
)

// ASRange is a closed range [Min, Max] of 32-bit AS numbers. A singleton AS
// id is the range [id, id].
type ASRange struct {
	Min uint32
	Max uint32
}

// Contains reports whether o is fully contained in r.
func (r ASRange) Contains(o ASRange) bool {
	return r.Min <= o.Min && o.Max <= r.Max
}

// Overlaps reports whether r and o share any AS number.
func (r ASRange) Overlaps(o ASRange) bool {
	return r.Min <= o.Max && o.Min <= r.Max
}

// ASSet is the parsed content of an RFC 3779 ASIdentifiers extension for one
// certificate. Inherit and Ranges are mutually exclusive per spec: a set
// containing INHERIT contains no other element.
type ASSet struct {
	Inherit bool
	Ranges  []ASRange // sorted by Min, pairwise disjoint
}

// ValidateSorted checks that s.Ranges is sorted by Min and pairwise
// disjoint, and that Inherit is not mixed with other elements. It is run
// once at parse time; every other operation trusts the invariant.
func (s ASSet) ValidateSorted() error {
	if s.Inherit && len(s.Ranges) != 0 {
		return rperrors.New(rperrors.KindParse, "AS INHERIT mixed with explicit elements")
	}
	for i := 1; i < len(s.Ranges); i++ {
		if s.Ranges[i-1].Max >= s.Ranges[i].Min {
			return rperrors.New(rperrors.KindParse, "AS elements not sorted or overlapping",
				"prev_max", s.Ranges[i-1].Max, "next_min", s.Ranges[i].Min)
		}
	}
	return nil
}

// ASCheckOverlap returns true if elem overlaps any element of existing. Used
// to enforce per-certificate disjointness while building a set incrementally.
func ASCheckOverlap(elem ASRange, existing []ASRange) bool {
	// existing is sorted by Min; binary search the insertion point and only
	// look at the immediate neighbours.
	i := sort.Search(len(existing), func(i int) bool { return existing[i].Min >= elem.Min })
	if i < len(existing) && existing[i].Overlaps(elem) {
		return true
	}
	if i > 0 && existing[i-1].Overlaps(elem) {
		return true
	}
	return false
}

// ASCheckCovered reports whether elem is covered by some range in parent.
// Returns 1 if covered, 0 if not covered, -1 if parent inherits (the caller
// must recurse to the grandparent to ground the inheritance chain).
func ASCheckCovered(elem ASRange, parent ASSet) int {
	if parent.Inherit {
		return -1
	}
	ranges := parent.Ranges
	// Ranges are sorted by Min and pairwise disjoint, so at most one range
	// can possibly contain elem: the last one whose Min <= elem.Min.
	i := sort.Search(len(ranges), func(i int) bool { return ranges[i].Min > elem.Min })
	if i == 0 {
		return 0
	}
	if ranges[i-1].Contains(elem) {
		return 1
	}
	return 0
}
