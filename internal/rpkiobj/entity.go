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

// Package rpkiobj defines the RPKI signed-object data model: certificates,
// TALs, manifests, CRLs, ROAs, and ghostbuster records, along with the
// framed wire encoding each type carries for crossing the orchestrator/
// worker IPC boundary.
package rpkiobj

import "strings"

// RType tags an entity's kind. Dispatch on RType is a plain switch, never
// a virtual call.
type RType uint8

const (
	RTypeTAL RType = iota
	RTypeMFT
	RTypeROA
	RTypeCER
	RTypeCRL
	RTypeGBR
)

func (t RType) String() string {
	switch t {
	case RTypeTAL:
		return "TAL"
	case RTypeMFT:
		return "MFT"
	case RTypeROA:
		return "ROA"
	case RTypeCER:
		return "CER"
	case RTypeCRL:
		return "CRL"
	case RTypeGBR:
		return "GBR"
	default:
		return "UNKNOWN"
	}
}

// RTypeFromFilename maps a manifest entry's filename suffix to its entity
// type. Unknown suffixes return (0, false) and are ignored silently by
// the caller.
func RTypeFromFilename(name string) (RType, bool) {
	switch {
	case strings.HasSuffix(name, ".cer"):
		return RTypeCER, true
	case strings.HasSuffix(name, ".roa"):
		return RTypeROA, true
	case strings.HasSuffix(name, ".crl"):
		return RTypeCRL, true
	case strings.HasSuffix(name, ".gbr"):
		return RTypeGBR, true
	default:
		return 0, false
	}
}

// Entity is one item of pending parse/validate work: a kind, a local file
// path, an optional public key override for trust anchors, and the TAL
// name it descends from.
type Entity struct {
	Type RType
	Path string
	// TAKey is the expected SubjectPublicKeyInfo for a trust-anchor cert
	// entity; nil for every other type.
	TAKey []byte
	// TAL is the human-readable provenance name propagated onto every
	// object and, transitively, every VRP derived from this entity's
	// subtree.
	TAL string
	// RepoID ties the entity back to the repository table entry it is
	// waiting on, so the entity can be found again once that repository
	// is ready.
	RepoID int64
}
