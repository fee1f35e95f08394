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

// Package rsync mirrors one module URI into the local cache using the
// system rsync(1) binary rather than reimplementing the rsync protocol.
package rsync

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/netsec-ethz/rpki-client/internal/rperrors"
	"github.com/netsec-ethz/rpki-client/internal/validator"
)

// Fetcher mirrors rsync module URIs into a local cache directory.
type Fetcher struct {
	CacheDir string
	Timeout  time.Duration
}

// Result reports what a Fetch call synced.
type Result struct {
	LocalDir string
	Files    []string // absolute paths of every regular file synced
}

// Fetch mirrors the rsync:// uri into f.CacheDir, returning the local
// directory it landed in and the set of files now present there. uri is
// validated before it is turned into a local path or handed to the rsync
// binary as an argument: it comes straight from the fetch orchestrator's
// repository table, populated from a CA certificate's caRepository SIA
// field, read ahead of any chain validation. Requiring the rsync:// scheme
// prefix to validate also guarantees the argument rsync receives can never
// be mistaken for a command-line flag.
func (f *Fetcher) Fetch(ctx context.Context, uri string) (Result, error) {
	local, err := moduleDir(f.CacheDir, uri)
	if err != nil {
		return Result{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "rsync", "-rtz", "--delete", uri+"/", local+"/")
	if err := cmd.Run(); err != nil {
		return Result{}, rperrors.Wrap(rperrors.KindTransport, "rsync fetch failed", err, "uri", uri)
	}

	files, err := listFiles(local)
	if err != nil {
		return Result{}, rperrors.Wrap(rperrors.KindTransport, "listing synced files", err, "uri", uri)
	}
	return Result{LocalDir: local, Files: files}, nil
}

// moduleDir maps an rsync URI to its local mirror directory under
// cacheDir, stripping the scheme and keeping host+module structure so
// two distinct modules never collide on disk.
func moduleDir(cacheDir, uri string) (string, error) {
	if err := validator.ValidateURI(uri, "rsync://"); err != nil {
		return "", err
	}
	return validator.ConfineToRoot(cacheDir, strings.TrimPrefix(uri, "rsync://")), nil
}
