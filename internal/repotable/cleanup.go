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
	"os"
	"path/filepath"
)

// CleanupResult tallies what Cleanup removed.
type CleanupResult struct {
	DeletedFiles int
	DeletedDirs  int
}

// Cleanup walks root and removes every regular file not tracked by any
// repository this run, then removes any directory left empty by that
// removal, bottom-up. This is how rpki-client's local mirror never grows
// unboundedly across runs: a publication point that stops publishing a
// file (or disappears entirely) has its stale copy reaped here rather than
// lingering forever.
func (t *Table) Cleanup(root string) (CleanupResult, error) {
	tracked := make(map[string]struct{})
	for _, r := range t.byURI {
		for f := range r.files {
			tracked[f] = struct{}{}
		}
	}

	var res CleanupResult
	var dirs []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			dirs = append(dirs, path)
			return nil
		}
		if _, ok := tracked[path]; ok {
			return nil
		}
		if rmErr := os.Remove(path); rmErr != nil {
			return rmErr
		}
		res.DeletedFiles++
		return nil
	})
	if err != nil {
		return res, err
	}

	// Remove now-empty directories, deepest first so a chain of nested
	// empty directories collapses in one pass.
	for i := len(dirs) - 1; i >= 0; i-- {
		d := dirs[i]
		if d == root {
			continue
		}
		entries, err := os.ReadDir(d)
		if err != nil {
			continue
		}
		if len(entries) == 0 {
			if os.Remove(d) == nil {
				res.DeletedDirs++
			}
		}
	}
	return res, nil
}
