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

package repotable

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransitionsFollowStateMachine(t *testing.T) {
	tbl := New()
	r := tbl.GetOrCreate("https://rrdp.example/notify.xml", KindRRDP)
	require.Equal(t, StateNew, r.State())

	require.NoError(t, r.Transition(StateSyncing, nil))
	require.NoError(t, r.Transition(StateFallback, nil))
	require.NoError(t, r.Transition(StateSyncing, nil))
	require.NoError(t, r.Transition(StateReady, nil))

	require.Error(t, r.Transition(StateFallback, nil))
}

func TestTransitionRecordsFailureCause(t *testing.T) {
	tbl := New()
	r := tbl.GetOrCreate("rsync://repo.example/module", KindRsync)
	require.NoError(t, r.Transition(StateSyncing, nil))

	cause := errors.New("connection refused")
	require.NoError(t, r.Transition(StateFail, cause))
	require.ErrorIs(t, r.Err(), cause)
}

func TestGetOrCreateIsIdempotent(t *testing.T) {
	tbl := New()
	a := tbl.GetOrCreate("rsync://repo.example/module", KindRsync)
	b := tbl.GetOrCreate("rsync://repo.example/module", KindRsync)
	require.Same(t, a, b)
}

func TestCleanupRemovesUntrackedFilesAndEmptyDirs(t *testing.T) {
	root := t.TempDir()
	keepDir := filepath.Join(root, "repo1")
	require.NoError(t, os.MkdirAll(keepDir, 0o755))
	keepFile := filepath.Join(keepDir, "keep.cer")
	staleFile := filepath.Join(keepDir, "stale.cer")
	require.NoError(t, os.WriteFile(keepFile, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(staleFile, []byte("x"), 0o644))

	staleDir := filepath.Join(root, "repo2")
	require.NoError(t, os.MkdirAll(staleDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(staleDir, "old.cer"), []byte("x"), 0o644))

	tbl := New()
	r := tbl.GetOrCreate("rsync://repo.example/module", KindRsync)
	r.TrackFile(keepFile)

	res, err := tbl.Cleanup(root)
	require.NoError(t, err)
	require.Equal(t, 2, res.DeletedFiles)
	require.Equal(t, 1, res.DeletedDirs)

	require.FileExists(t, keepFile)
	require.NoFileExists(t, staleFile)
	require.NoDirExists(t, staleDir)
}
