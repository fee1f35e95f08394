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

package rrdp

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/netsec-ethz/rpki-client/internal/rperrors"
	"github.com/netsec-ethz/rpki-client/internal/rrdpstate"
)

// HTTPGetter is the subset of httpfetch.Fetcher this package depends on,
// kept as an interface so tests can substitute a fake transport.
type HTTPGetter interface {
	Fetch(ctx context.Context, uri string) (body []byte, notModified bool, err error)
}

// Fetch runs one RRDP synchronization cycle for notifyURI against a local
// mirror rooted at localDir, choosing between the delta chain and a full
// snapshot the way rrdp_fetch does: same session_id and every delta from
// the last known serial present -> apply deltas; otherwise fetch the
// snapshot fresh. Returns the session state to persist via rrdpstate on
// success.
func Fetch(ctx context.Context, http HTTPGetter, prior rrdpstate.Session, notifyBody []byte,
	localDir string) (rrdpstate.Session, *Applier, error) {

	notif, err := ParseNotification(notifyBody)
	if err != nil {
		return rrdpstate.Session{}, nil, err
	}
	applier := NewApplier(localDir)

	if prior.SessionID == notif.SessionID && prior.Serial > 0 && canApplyDeltas(prior.Serial, notif) {
		for _, ref := range notif.Deltas {
			if ref.Serial <= prior.Serial {
				continue
			}
			body, _, err := http.Fetch(ctx, ref.URI)
			if err != nil {
				return rrdpstate.Session{}, nil, err
			}
			if err := verifyHash(body, ref.Hash); err != nil {
				return rrdpstate.Session{}, nil, err
			}
			delta, err := ParseDelta(body)
			if err != nil {
				return rrdpstate.Session{}, nil, err
			}
			if delta.Serial != ref.Serial {
				return rrdpstate.Session{}, nil, rperrors.New(rperrors.KindFallback,
					"delta serial does not match notification reference")
			}
			if err := applier.ApplyDelta(delta); err != nil {
				return rrdpstate.Session{}, nil, err
			}
		}
	} else {
		body, _, err := http.Fetch(ctx, notif.Snapshot.URI)
		if err != nil {
			return rrdpstate.Session{}, nil, err
		}
		if err := verifyHash(body, notif.Snapshot.Hash); err != nil {
			return rrdpstate.Session{}, nil, err
		}
		snap, err := ParseSnapshot(body)
		if err != nil {
			return rrdpstate.Session{}, nil, err
		}
		if snap.SessionID != notif.SessionID || snap.Serial != notif.Serial {
			return rrdpstate.Session{}, nil, rperrors.New(rperrors.KindFallback,
				"snapshot session_id/serial does not match notification")
		}
		if err := applier.ApplySnapshot(snap); err != nil {
			return rrdpstate.Session{}, nil, err
		}
	}

	return rrdpstate.Session{SessionID: notif.SessionID, Serial: notif.Serial}, applier, nil
}

// canApplyDeltas reports whether notif's delta list covers every serial
// from prior+1 through notif.Serial with no gap, the precondition for
// applying deltas instead of falling back to a full snapshot fetch.
func canApplyDeltas(prior uint64, notif *Notification) bool {
	if notif.Serial <= prior {
		return true // already caught up, nothing to apply
	}
	have := make(map[uint64]bool, len(notif.Deltas))
	for _, d := range notif.Deltas {
		have[d.Serial] = true
	}
	for s := prior + 1; s <= notif.Serial; s++ {
		if !have[s] {
			return false
		}
	}
	return true
}

func verifyHash(data []byte, wantHex string) error {
	got := sha256.Sum256(data)
	want, err := hex.DecodeString(wantHex)
	if err != nil || hex.EncodeToString(got[:]) != hex.EncodeToString(want) {
		return rperrors.New(rperrors.KindFallback, "RRDP document hash mismatch")
	}
	return nil
}
