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

// Package rrdp implements the RRDP worker: RFC 8182 notification/
// snapshot/delta XML parsing and ADD/UPD/DEL application against the
// local mirror.
package rrdp

import (
	"encoding/xml"

	"github.com/netsec-ethz/rpki-client/internal/rperrors"
)

// Notification is the top-level notification.xml document.
type Notification struct {
	XMLName   xml.Name       `xml:"notification"`
	Version   int            `xml:"version,attr"`
	SessionID string         `xml:"session_id,attr"`
	Serial    uint64         `xml:"serial,attr"`
	Snapshot  SnapshotRef    `xml:"snapshot"`
	Deltas    []DeltaRef     `xml:"delta"`
}

// SnapshotRef points at the current full-state snapshot document.
type SnapshotRef struct {
	URI  string `xml:"uri,attr"`
	Hash string `xml:"hash,attr"` // hex SHA-256
}

// DeltaRef points at one incremental delta document.
type DeltaRef struct {
	Serial uint64 `xml:"serial,attr"`
	URI    string `xml:"uri,attr"`
	Hash   string `xml:"hash,attr"`
}

// Snapshot is the full-state snapshot.xml document.
type Snapshot struct {
	XMLName   xml.Name  `xml:"snapshot"`
	Version   int       `xml:"version,attr"`
	SessionID string    `xml:"session_id,attr"`
	Serial    uint64    `xml:"serial,attr"`
	Publishes []Publish `xml:"publish"`
}

// Delta is an incremental delta.xml document.
type Delta struct {
	XMLName   xml.Name  `xml:"delta"`
	Version   int       `xml:"version,attr"`
	SessionID string    `xml:"session_id,attr"`
	Serial    uint64    `xml:"serial,attr"`
	Publishes []Publish `xml:"publish"`
	Withdraws []Withdraw `xml:"withdraw"`
}

// Publish is an ADD (no hash attribute) or UPD (hash attribute present,
// naming the object being replaced) operation, base64 content inline.
type Publish struct {
	URI     string `xml:"uri,attr"`
	Hash    string `xml:"hash,attr"`
	Content string `xml:",chardata"`
}

// Withdraw is a DEL operation.
type Withdraw struct {
	URI  string `xml:"uri,attr"`
	Hash string `xml:"hash,attr"`
}

// ParseNotification decodes a notification.xml document.
func ParseNotification(data []byte) (*Notification, error) {
	var n Notification
	if err := xml.Unmarshal(data, &n); err != nil {
		return nil, rperrors.Parse("decoding RRDP notification.xml", err)
	}
	if n.SessionID == "" {
		return nil, rperrors.New(rperrors.KindParse, "RRDP notification missing session_id")
	}
	return &n, nil
}

// ParseSnapshot decodes a snapshot.xml document.
func ParseSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := xml.Unmarshal(data, &s); err != nil {
		return nil, rperrors.Parse("decoding RRDP snapshot.xml", err)
	}
	return &s, nil
}

// ParseDelta decodes a delta.xml document.
func ParseDelta(data []byte) (*Delta, error) {
	var d Delta
	if err := xml.Unmarshal(data, &d); err != nil {
		return nil, rperrors.Parse("decoding RRDP delta.xml", err)
	}
	return &d, nil
}
