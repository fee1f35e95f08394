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

package resources

import (
	"net/netip"
	"sort"

	"go4.org/netipx"

	"github.com/netsec-ethz/rpki-client/internal/rperrors"
)

// AFI is the address family identifier carried on IP resource extensions
// and ROA entries.
type AFI uint8

const (
	AFIv4 AFI = 1
	AFIv6 AFI = 2
)

func (a AFI) String() string {
	switch a {
	case AFIv4:
		return "IPv4"
	case AFIv6:
		return "IPv6"
	default:
		return "unknown"
	}
}

// MaxPrefixLen returns the address-family maximum prefix length: 32 for
// IPv4, 128 for IPv6.
func (a AFI) MaxPrefixLen() int {
	if a == AFIv4 {
		return 32
	}
	return 128
}

// AFIOf returns the AFI of a netip.Addr.
func AFIOf(a netip.Addr) AFI {
	if a.Is4() || a.Is4In6() {
		return AFIv4
	}
	return AFIv6
}

// IPElement is one disjoint element of an RFC 3779 IPAddrBlocks extension,
// held either as a Prefix (IsPrefix true) or as a Range. Its [Min,Max]
// bounds are never cached: ComposeRange derives them fresh from Prefix or
// Range every time the element is consulted, so they cannot go stale.
type IPElement struct {
	AFI    AFI
	Prefix netip.Prefix // valid iff IsPrefix is true
	Range  netipx.IPRange
	IsPrefix bool
}

// ComposeRange canonicalizes e to its [Min,Max] byte-range form. Ranges are
// returned unchanged; prefixes are converted with netipx.RangeOfPrefix.
func ComposeRange(e IPElement) netipx.IPRange {
	if e.IsPrefix {
		return netipx.RangeOfPrefix(e.Prefix)
	}
	return e.Range
}

// IPFamilySet holds the elements of one address family plus its own
// INHERIT flag; an IPResourceSet is a pair of these, one per family,
// since RFC 3779 defines INHERIT independently per address family.
type IPFamilySet struct {
	Inherit  bool
	Elements []IPElement // sorted by ComposeRange(e).From(), pairwise disjoint
}

// IPResourceSet is the parsed content of a certificate's IPAddrBlocks
// extension.
type IPResourceSet struct {
	V4 IPFamilySet
	V6 IPFamilySet
}

func (s IPResourceSet) family(afi AFI) IPFamilySet {
	if afi == AFIv4 {
		return s.V4
	}
	return s.V6
}

// ValidateSorted checks that within a family, elements are pairwise
// disjoint and sorted by Min, and INHERIT is not mixed with explicit
// elements.
func (s IPResourceSet) ValidateSorted() error {
	for _, fs := range []struct {
		afi AFI
		set IPFamilySet
	}{{AFIv4, s.V4}, {AFIv6, s.V6}} {
		if fs.set.Inherit && len(fs.set.Elements) != 0 {
			return rperrors.New(rperrors.KindParse, "IP INHERIT mixed with explicit elements",
				"afi", fs.afi.String())
		}
		var prevMax netip.Addr
		for i, e := range fs.set.Elements {
			r := ComposeRange(e)
			if i > 0 && prevMax.Compare(r.From()) >= 0 {
				return rperrors.New(rperrors.KindParse, "IP elements not sorted or overlapping",
					"afi", fs.afi.String())
			}
			prevMax = r.To()
		}
	}
	return nil
}

// IPAddrCheckOverlap returns true if elem overlaps any element already
// present in existing (elements of the same family as elem).
func IPAddrCheckOverlap(elem IPElement, existing []IPElement) bool {
	r := ComposeRange(elem)
	i := sort.Search(len(existing), func(i int) bool {
		return ComposeRange(existing[i]).From().Compare(r.From()) >= 0
	})
	if i < len(existing) && rangesOverlap(r, ComposeRange(existing[i])) {
		return true
	}
	if i > 0 && rangesOverlap(r, ComposeRange(existing[i-1])) {
		return true
	}
	return false
}

func rangesOverlap(a, b netipx.IPRange) bool {
	return a.From().Compare(b.To()) <= 0 && b.From().Compare(a.To()) <= 0
}

// IPAddrCheckCovered reports whether [min,max] is covered by some element of
// parent for the given address family. Returns 1 if covered, 0 if not, -1 if
// the parent inherits for this family (caller must recurse to the
// grandparent to ground the INHERIT chain).
func IPAddrCheckCovered(afi AFI, min, max netip.Addr, parent IPResourceSet) int {
	fs := parent.family(afi)
	if fs.Inherit {
		return -1
	}
	target := netipx.IPRangeFrom(min, max)
	i := sort.Search(len(fs.Elements), func(i int) bool {
		return ComposeRange(fs.Elements[i]).From().Compare(min) > 0
	})
	if i == 0 {
		return 0
	}
	candidate := ComposeRange(fs.Elements[i-1])
	if candidate.From().Compare(target.From()) <= 0 && target.To().Compare(candidate.To()) <= 0 {
		return 1
	}
	return 0
}

// PrefixElement builds an IPElement from a prefix.
func PrefixElement(p netip.Prefix) IPElement {
	return IPElement{AFI: AFIOf(p.Addr()), Prefix: p, IsPrefix: true}
}

// RangeElement builds an IPElement from an explicit [min,max] range.
func RangeElement(min, max netip.Addr) IPElement {
	return IPElement{AFI: AFIOf(min), Range: netipx.IPRangeFrom(min, max)}
}

// CompareAddr orders two addresses of the same family using unsigned
// lexicographic order on their zero-padded byte form, matching the VRP
// store's total order. netip.Addr's Compare already implements this for
// like-typed addresses.
func CompareAddr(a, b netip.Addr) int {
	return a.Compare(b)
}
