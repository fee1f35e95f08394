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

package fetcher

import (
	"context"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/netsec-ethz/rpki-client/internal/ipc"
	"github.com/netsec-ethz/rpki-client/internal/repotable"
	"github.com/netsec-ethz/rpki-client/internal/rperrors"
	"github.com/netsec-ethz/rpki-client/internal/rplog"
	"github.com/netsec-ethz/rpki-client/internal/rrdpstate"
	"github.com/netsec-ethz/rpki-client/internal/validator"
)

// PoolConfig sizes the worker pools an Orchestrator spawns.
type PoolConfig struct {
	RsyncWorkers int
	RRDPWorkers  int
}

// DefaultPoolConfig mirrors rpki-client's historical default of a handful
// of parallel repository fetches.
var DefaultPoolConfig = PoolConfig{RsyncWorkers: 4, RRDPWorkers: 4}

// Orchestrator dispatches Table repositories to a pool of rsync and RRDP
// worker processes, bounding total concurrent fetches to the pool sizes.
type Orchestrator struct {
	table    *repotable.Table
	sessions *rrdpstate.Store

	rsync chan *ipc.Channel
	rrdp  chan *ipc.Channel
	all   []*ipc.Channel
}

// New spawns cfg's worker pools and returns an Orchestrator ready to
// dispatch fetches against table, persisting RRDP session continuity to
// sessions (which may be nil to always fetch full snapshots).
func New(ctx context.Context, cfg PoolConfig, table *repotable.Table, sessions *rrdpstate.Store,
	extraArgs ...string) (*Orchestrator, error) {

	o := &Orchestrator{
		table:    table,
		sessions: sessions,
		rsync:    make(chan *ipc.Channel, cfg.RsyncWorkers),
		rrdp:     make(chan *ipc.Channel, cfg.RRDPWorkers),
	}
	for i := 0; i < cfg.RsyncWorkers; i++ {
		ch, err := ipc.Spawn(ctx, ipc.RoleRsync, extraArgs...)
		if err != nil {
			o.Close()
			return nil, err
		}
		o.all = append(o.all, ch)
		o.rsync <- ch
	}
	for i := 0; i < cfg.RRDPWorkers; i++ {
		ch, err := ipc.Spawn(ctx, ipc.RoleRRDP, extraArgs...)
		if err != nil {
			o.Close()
			return nil, err
		}
		o.all = append(o.all, ch)
		o.rrdp <- ch
	}
	return o, nil
}

// Close closes every worker connection. It does not wait for the child
// processes to exit; callers that need that call Cmd.Wait on the channels
// returned during spawn logging, or simply let the process tree exit with
// the orchestrator.
func (o *Orchestrator) Close() error {
	var errs rperrors.List
	for _, ch := range o.all {
		if err := ch.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errs.ToError()
}

func (o *Orchestrator) checkout(kind repotable.Kind) *ipc.Channel {
	if kind == repotable.KindRRDP {
		return <-o.rrdp
	}
	return <-o.rsync
}

func (o *Orchestrator) checkin(kind repotable.Kind, ch *ipc.Channel) {
	if kind == repotable.KindRRDP {
		o.rrdp <- ch
		return
	}
	o.rsync <- ch
}

// Fetch synchronizes a single repository, transitioning its repotable
// state through Syncing to Ready/Fail (or Fallback for an RRDP repository
// whose fetch failed but has a rsync FallbackURI). localDir is the mirror
// root the repository's objects are written under.
func (o *Orchestrator) Fetch(ctx context.Context, repo *repotable.Repo, localDir string) error {
	log := rplog.FromCtx(ctx).New("repo", repo.URI, "kind", repo.Kind.String())
	if err := repo.Transition(repotable.StateSyncing, nil); err != nil {
		return err
	}

	req := &Request{Kind: repo.Kind, URI: repo.URI, LocalDir: localDir}
	if repo.Kind == repotable.KindRRDP && o.sessions != nil {
		if sess, ok, err := o.sessions.Load(ctx, repo.URI); err == nil && ok {
			req.PriorSessionID, req.PriorSerial = sess.SessionID, sess.Serial
		}
	}

	resp, err := o.roundtrip(repo.Kind, req)
	if err != nil {
		_ = repo.Transition(repotable.StateFail, err)
		return err
	}
	if !resp.OK {
		cause := rperrors.New(rperrors.KindTransport, resp.ErrMsg, "uri", repo.URI)
		if repo.Kind == repotable.KindRRDP && resp.Fallback && repo.FallbackURI != "" {
			log.Warn("RRDP fetch failed, falling back to rsync", "cause", resp.ErrMsg)
			return repo.Transition(repotable.StateFallback, nil)
		}
		_ = repo.Transition(repotable.StateFail, cause)
		return cause
	}

	for _, f := range resp.Files {
		repo.TrackFile(f)
	}
	if repo.Kind == repotable.KindRRDP && o.sessions != nil && resp.SessionID != "" {
		_ = o.sessions.Save(ctx, rrdpstate.Session{
			URI: repo.URI, SessionID: resp.SessionID, Serial: resp.Serial,
		})
	}
	return repo.Transition(repotable.StateReady, nil)
}

func (o *Orchestrator) roundtrip(kind repotable.Kind, req *Request) (*Response, error) {
	ch := o.checkout(kind)
	defer o.checkin(kind, ch)

	if err := ipc.Send(ch.Conn, req); err != nil {
		return nil, rperrors.Transport("sending fetch request", err)
	}
	var resp Response
	if err := ipc.Recv(ch.Conn, &resp); err != nil {
		return nil, rperrors.Transport("receiving fetch response", err)
	}
	return &resp, nil
}

// FetchAll dispatches every repo in repos concurrently, bounded by the
// orchestrator's pool sizes. Every repository lands under the single
// shared cacheDir root, laid out by its rsync:// path (worker/rsync and
// worker/rrdp agree on this layout) so a file referenced from one
// repository's manifest by full URI is always found under the same root
// regardless of which transport fetched it.
func (o *Orchestrator) FetchAll(ctx context.Context, cacheDir string, repos []*repotable.Repo) error {
	limit := cap(o.rsync) + cap(o.rrdp)
	if limit == 0 {
		limit = 1
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return rperrors.Wrap(rperrors.KindFatal, "creating cache directory", err)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, repo := range repos {
		repo := repo
		g.Go(func() error {
			if err := o.Fetch(gctx, repo, cacheDir); err != nil {
				rplog.FromCtx(gctx).Warn("repository fetch failed", "uri", repo.URI, "err", err)
			}
			return nil
		})
	}
	return g.Wait()
}

// LocalPath maps a canonical rsync:// object URI to its path under
// cacheDir, matching the layout worker/rsync and worker/rrdp both write.
// rsyncURI is validated before any path is derived from it: it usually
// comes straight from a certificate SIA field or manifest entry, read
// before the issuing chain has been validated.
func LocalPath(cacheDir, rsyncURI string) (string, error) {
	if err := validator.ValidateURI(rsyncURI, "rsync://"); err != nil {
		return "", err
	}
	return validator.ConfineToRoot(cacheDir, strings.TrimPrefix(rsyncURI, "rsync://")), nil
}
