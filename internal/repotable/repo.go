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

// Package repotable tracks every publication point (rsync module or RRDP
// notification endpoint) touched during a run: its fetch state machine and
// the set of files it deposited on disk, so a run can clean up anything a
// prior run left behind but this run's manifests no longer reference.
package repotable

import (
	"github.com/netsec-ethz/rpki-client/internal/rperrors"
)

// Kind distinguishes the two publication point transports.
type Kind uint8

const (
	KindRsync Kind = iota
	KindRRDP
)

func (k Kind) String() string {
	if k == KindRRDP {
		return "rrdp"
	}
	return "rsync"
}

// State is a repository's position in its fetch lifecycle.
type State uint8

const (
	StateNew State = iota
	StateSyncing
	StateFallback // RRDP failed, retrying over rsync
	StateFail
	StateReady
)

func (s State) String() string {
	switch s {
	case StateSyncing:
		return "syncing"
	case StateFallback:
		return "fallback"
	case StateFail:
		return "fail"
	case StateReady:
		return "ready"
	default:
		return "new"
	}
}

// validTransitions enumerates the state machine's legal edges. A plain
// rsync repository never visits StateFallback; an RRDP repository does
// when its notification fetch or delta application fails and rpki-client
// retries the same content over rsync.
var validTransitions = map[State][]State{
	StateNew:      {StateSyncing},
	StateSyncing:  {StateReady, StateFail, StateFallback},
	StateFallback: {StateSyncing, StateReady, StateFail},
}

// Repo is one publication point.
type Repo struct {
	ID   int64
	URI  string // canonical sync source: rsync module or RRDP notification URL
	Kind Kind

	state State
	err   error

	// FallbackURI is the rsync module to retry an RRDP repository over,
	// populated from the CA certificate's caRepository SIA whenever an
	// rpkiNotify URI is also present.
	FallbackURI string

	files map[string]struct{}
}

func newRepo(id int64, uri string, kind Kind) *Repo {
	return &Repo{ID: id, URI: uri, Kind: kind, state: StateNew, files: make(map[string]struct{})}
}

// State returns the repository's current state.
func (r *Repo) State() State { return r.state }

// Err returns the error that produced a StateFail transition, if any.
func (r *Repo) Err() error { return r.err }

// Transition advances r to next, enforcing the state machine's legal
// edges. errCause is recorded and only meaningful for a transition into
// StateFail.
func (r *Repo) Transition(next State, errCause error) error {
	for _, allowed := range validTransitions[r.state] {
		if allowed == next {
			r.state = next
			if next == StateFail {
				r.err = errCause
			}
			return nil
		}
	}
	return rperrors.New(rperrors.KindFatal, "illegal repository state transition",
		"uri", r.URI, "from", r.state.String(), "to", next.String())
}

// TrackFile records that path was written under this repository's mirror
// during this run, so it survives Table.Cleanup.
func (r *Repo) TrackFile(path string) {
	r.files[path] = struct{}{}
}

// Files returns every path tracked this run.
func (r *Repo) Files() map[string]struct{} {
	return r.files
}

// Table indexes every repository seen during a run by its canonical URI.
type Table struct {
	byURI map[string]*Repo
	next  int64
}

// New returns an empty table.
func New() *Table {
	return &Table{byURI: make(map[string]*Repo)}
}

// GetOrCreate returns the existing repo for uri, or creates one in
// StateNew.
func (t *Table) GetOrCreate(uri string, kind Kind) *Repo {
	if r, ok := t.byURI[uri]; ok {
		return r
	}
	t.next++
	r := newRepo(t.next, uri, kind)
	t.byURI[uri] = r
	return r
}

// Lookup returns the repo registered for uri, if any.
func (t *Table) Lookup(uri string) (*Repo, bool) {
	r, ok := t.byURI[uri]
	return r, ok
}

// All returns every repository registered this run, in registration order.
func (t *Table) All() []*Repo {
	out := make([]*Repo, 0, len(t.byURI))
	for i := int64(1); i <= t.next; i++ {
		for _, r := range t.byURI {
			if r.ID == i {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// Stats summarizes repo states for internal/stats reporting.
type Stats struct {
	Ready, Fail, Fallback int
}

// Summarize computes per-state repository counts.
func (t *Table) Summarize() Stats {
	var s Stats
	for _, r := range t.byURI {
		switch r.state {
		case StateReady:
			s.Ready++
		case StateFail:
			s.Fail++
		case StateFallback:
			s.Fallback++
		}
	}
	return s
}
