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
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplySnapshotWritesObjects(t *testing.T) {
	dir := t.TempDir()
	a := NewApplier(dir)
	snap := &Snapshot{
		SessionID: "s1", Serial: 1,
		Publishes: []Publish{
			{URI: "rsync://repo.example/foo.cer", Content: base64.StdEncoding.EncodeToString([]byte("cert bytes"))},
		},
	}
	require.NoError(t, a.ApplySnapshot(snap))

	got, err := os.ReadFile(filepath.Join(dir, "repo.example", "foo.cer"))
	require.NoError(t, err)
	require.Equal(t, "cert bytes", string(got))
}

func TestApplyDeltaUpdatesAndWithdraws(t *testing.T) {
	dir := t.TempDir()
	a := NewApplier(dir)
	require.NoError(t, a.ApplySnapshot(&Snapshot{
		Publishes: []Publish{
			{URI: "rsync://repo.example/a.roa", Content: base64.StdEncoding.EncodeToString([]byte("v1"))},
			{URI: "rsync://repo.example/b.roa", Content: base64.StdEncoding.EncodeToString([]byte("v1"))},
		},
	}))

	v1Hash := sha256.Sum256([]byte("v1"))
	delta := &Delta{
		Publishes: []Publish{
			{URI: "rsync://repo.example/a.roa", Hash: hex.EncodeToString(v1Hash[:]),
				Content: base64.StdEncoding.EncodeToString([]byte("v2"))},
		},
		Withdraws: []Withdraw{
			{URI: "rsync://repo.example/b.roa", Hash: hex.EncodeToString(v1Hash[:])},
		},
	}
	require.NoError(t, a.ApplyDelta(delta))

	got, err := os.ReadFile(filepath.Join(dir, "repo.example", "a.roa"))
	require.NoError(t, err)
	require.Equal(t, "v2", string(got))

	require.NoFileExists(t, filepath.Join(dir, "repo.example", "b.roa"))
}

func TestApplyDeltaRejectsHashMismatch(t *testing.T) {
	dir := t.TempDir()
	a := NewApplier(dir)
	require.NoError(t, a.ApplySnapshot(&Snapshot{
		Publishes: []Publish{{URI: "rsync://repo.example/a.roa", Content: base64.StdEncoding.EncodeToString([]byte("v1"))}},
	}))

	delta := &Delta{
		Publishes: []Publish{{URI: "rsync://repo.example/a.roa", Hash: hex.EncodeToString([]byte("wrong-hash-32-bytes-long-000000")),
			Content: base64.StdEncoding.EncodeToString([]byte("v2"))}},
	}
	require.Error(t, a.ApplyDelta(delta))
}

func TestApplyDeltaRejectsAddOverExistingDifferentContent(t *testing.T) {
	dir := t.TempDir()
	a := NewApplier(dir)
	require.NoError(t, a.ApplySnapshot(&Snapshot{
		Publishes: []Publish{{URI: "rsync://repo.example/a.roa", Content: base64.StdEncoding.EncodeToString([]byte("stale"))}},
	}))

	delta := &Delta{
		Publishes: []Publish{
			{URI: "rsync://repo.example/a.roa", Content: base64.StdEncoding.EncodeToString([]byte("fresh"))},
		},
	}
	require.Error(t, a.ApplyDelta(delta))

	got, err := os.ReadFile(filepath.Join(dir, "repo.example", "a.roa"))
	require.NoError(t, err)
	require.Equal(t, "stale", string(got))
}

func TestApplyDeltaAllowsAddReplayOfIdenticalContent(t *testing.T) {
	dir := t.TempDir()
	a := NewApplier(dir)
	require.NoError(t, a.ApplySnapshot(&Snapshot{
		Publishes: []Publish{{URI: "rsync://repo.example/a.roa", Content: base64.StdEncoding.EncodeToString([]byte("v1"))}},
	}))

	delta := &Delta{
		Publishes: []Publish{
			{URI: "rsync://repo.example/a.roa", Content: base64.StdEncoding.EncodeToString([]byte("v1"))},
		},
	}
	require.NoError(t, a.ApplyDelta(delta))
}

func TestApplyDeltaAddOnFreshPath(t *testing.T) {
	dir := t.TempDir()
	a := NewApplier(dir)

	delta := &Delta{
		Publishes: []Publish{
			{URI: "rsync://repo.example/new.roa", Content: base64.StdEncoding.EncodeToString([]byte("v1"))},
		},
	}
	require.NoError(t, a.ApplyDelta(delta))

	got, err := os.ReadFile(filepath.Join(dir, "repo.example", "new.roa"))
	require.NoError(t, err)
	require.Equal(t, "v1", string(got))
}

func TestCanApplyDeltasDetectsGap(t *testing.T) {
	notif := &Notification{Serial: 5, Deltas: []DeltaRef{{Serial: 3}, {Serial: 5}}}
	require.False(t, canApplyDeltas(2, notif))

	notif2 := &Notification{Serial: 5, Deltas: []DeltaRef{{Serial: 3}, {Serial: 4}, {Serial: 5}}}
	require.True(t, canApplyDeltas(2, notif2))
}
