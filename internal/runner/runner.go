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

// Package runner ties every other package into one validation run:
// loading TALs, driving internal/fetcher to mirror repositories, walking
// each trust anchor's manifest tree with internal/authtree and
// internal/validator, and aggregating the resulting VRPs in
// internal/vrpstore. It is the orchestrator process's top-level loop.
package runner

import (
	"context"
	"crypto/sha256"
	"crypto/x509"
	"os"
	"path/filepath"
	"strings"
	"time"

	arc "github.com/hashicorp/golang-lru/arc/v2"

	"github.com/netsec-ethz/rpki-client/internal/authtree"
	"github.com/netsec-ethz/rpki-client/internal/fetcher"
	"github.com/netsec-ethz/rpki-client/internal/mftstate"
	"github.com/netsec-ethz/rpki-client/internal/repotable"
	"github.com/netsec-ethz/rpki-client/internal/rperrors"
	"github.com/netsec-ethz/rpki-client/internal/rpkicfg"
	"github.com/netsec-ethz/rpki-client/internal/rpkiobj"
	"github.com/netsec-ethz/rpki-client/internal/rplog"
	"github.com/netsec-ethz/rpki-client/internal/rpmetrics"
	"github.com/netsec-ethz/rpki-client/internal/rrdpstate"
	"github.com/netsec-ethz/rpki-client/internal/stats"
	"github.com/netsec-ethz/rpki-client/internal/validator"
	"github.com/netsec-ethz/rpki-client/internal/vrpstore"
	"github.com/netsec-ethz/rpki-client/internal/worker/parser"
)

// certCacheSize bounds the parsed-EE-certificate cache: manifests, ROAs and
// GBRs are visited once each in a run, but a slow tree can be re-walked
// across successive invocations sharing the same warm process is not a
// concern rpki-client has, so this simply caps memory rather than
// improving hit rate within a single run.
const certCacheSize = 4096

// parserClient is *parser.Client's method set. Tests substitute a fake that
// returns canned objects looked up by raw bytes instead of spawning a real
// worker; the orchestrator itself always runs against *parser.Client.
type parserClient interface {
	ParseTA(raw []byte, tal *rpkiobj.TAL) (*rpkiobj.Cert, error)
	EECert(raw []byte) (*rpkiobj.Cert, error)
	ParseManifest(raw []byte) (*rpkiobj.MFT, error)
	ParseCRL(raw []byte, issuer *x509.Certificate) (*rpkiobj.CRL, error)
	ParseCert(raw []byte) (*rpkiobj.Cert, error)
	ParseROA(raw []byte) (*rpkiobj.ROA, error)
	ParseGBR(raw []byte) (*rpkiobj.GBR, error)
}

// Runner executes one full validation pass: fetch, walk, validate,
// aggregate.
type Runner struct {
	cfg   *rpkicfg.Config
	table *repotable.Table
	tree  *authtree.Tree
	vrps  *vrpstore.Store
	run   stats.Run

	// parser is the only route by which DER/CMS bytes get decoded: the
	// orchestrator never decodes them itself, it hands them to the parser
	// worker and gets back a structured object or a parse failure. The
	// orchestrator reaches internal/cryptoengine only through
	// internal/validator, for certificate signature checks.
	parser parserClient

	// mfts rejects a manifest whose manifestNumber regresses below one
	// already accepted for the same repository.
	mfts *mftstate.Store

	// certCache memoizes ParseCert by content hash, guarding against a
	// certificate reachable from more than one manifest (a CA that
	// legitimately publishes the same child under two SIA-listed
	// directories) being parsed twice.
	certCache *arc.ARCCache[string, *rpkiobj.Cert]
}

// New builds a Runner for cfg.
func New(cfg *rpkicfg.Config) (*Runner, error) {
	cache, err := arc.NewARC[string, *rpkiobj.Cert](certCacheSize)
	if err != nil {
		return nil, rperrors.Wrap(rperrors.KindFatal, "allocating certificate cache", err)
	}
	return &Runner{
		cfg:       cfg,
		table:     repotable.New(),
		tree:      authtree.New(),
		vrps:      vrpstore.New(),
		certCache: cache,
	}, nil
}

// Run executes one validation pass and returns the aggregated VRP store
// and this run's statistics.
func (r *Runner) Run(ctx context.Context) (*vrpstore.Store, stats.Run, error) {
	start := time.Now()
	log := rplog.FromCtx(ctx)

	tals, err := filepath.Glob(filepath.Join(r.cfg.TALDir, "*.tal"))
	if err != nil {
		return nil, r.run, rperrors.Wrap(rperrors.KindFatal, "listing TAL directory", err)
	}
	if len(tals) == 0 {
		return nil, r.run, rperrors.New(rperrors.KindFatal, "no TAL files found", "dir", r.cfg.TALDir)
	}

	sessions, err := rrdpstate.Open(filepath.Join(r.cfg.CacheDir, "rrdp-session.db"))
	if err != nil {
		return nil, r.run, err
	}
	defer sessions.Close()

	mfts, err := mftstate.Open(filepath.Join(r.cfg.CacheDir, "mft-number.db"))
	if err != nil {
		return nil, r.run, err
	}
	defer mfts.Close()
	r.mfts = mfts

	// Spawned worker processes inherit these through os.Environ(); there is
	// no second IPC round trip just to hand a freshly forked worker its
	// transport timeout and User-Agent.
	os.Setenv("RPKI_CLIENT_RSYNC_TIMEOUT", r.cfg.RsyncTimeout.String())
	os.Setenv("RPKI_CLIENT_HTTP_TIMEOUT", r.cfg.HTTPTimeout.String())
	os.Setenv("RPKI_CLIENT_USER_AGENT", r.cfg.UserAgent)

	orch, err := fetcher.New(ctx, fetcher.DefaultPoolConfig, r.table, sessions)
	if err != nil {
		return nil, r.run, err
	}
	defer orch.Close()

	parserProc, err := parser.Spawn(ctx)
	if err != nil {
		return nil, r.run, err
	}
	defer parserProc.Close()
	r.parser = parserProc

	for _, path := range tals {
		if err := r.loadTAL(ctx, orch, path); err != nil {
			log.Warn("trust anchor failed to validate", "path", path, "err", err)
			continue
		}
		r.run.TALs++
		rpmetrics.TALs.Inc()
	}

	cleanup, err := r.table.Cleanup(r.cfg.CacheDir)
	if err != nil {
		log.Warn("cache cleanup failed", "err", err)
	}
	r.run.DelFiles, r.run.DelDirs = cleanup.DeletedFiles, cleanup.DeletedDirs
	rpmetrics.DelFiles.Set(float64(cleanup.DeletedFiles))
	rpmetrics.DelDirs.Set(float64(cleanup.DeletedDirs))

	r.run.Repos = r.table.Summarize()
	rpmetrics.RepoRsync.Set(float64(countKind(r.table, repotable.KindRsync)))
	rpmetrics.RepoRRDP.Set(float64(countKind(r.table, repotable.KindRRDP)))

	r.run.VRPsTotal, r.run.VRPsUnique = r.vrps.Total(), r.vrps.Unique()
	rpmetrics.VRPsTotal.Set(float64(r.run.VRPsTotal))
	rpmetrics.VRPsUnique.Set(float64(r.run.VRPsUnique))

	r.run.Wall = time.Since(start)
	rpmetrics.WallSeconds.Set(r.run.Wall.Seconds())

	return r.vrps, r.run, nil
}

func countKind(t *repotable.Table, kind repotable.Kind) int {
	n := 0
	for _, repo := range t.All() {
		if repo.Kind == kind {
			n++
		}
	}
	return n
}

// rsyncDirOf returns the directory an rsync object URI lives in, the unit
// this runner fetches: rsync mirrors recursively, so fetching a CA's own
// directory picks up its manifest, CRL, and every sibling object in one
// pass, matching how RPKI publication points are laid out (RFC 6481).
func rsyncDirOf(uri string) string {
	if idx := strings.LastIndex(uri, "/"); idx >= 0 {
		return uri[:idx]
	}
	return uri
}

// loadTAL parses one TAL file, fetches and validates the trust anchor
// certificate it names, and walks its manifest tree.
func (r *Runner) loadTAL(ctx context.Context, orch *fetcher.Orchestrator, path string) error {
	tal, err := rpkiobj.LoadTAL(path)
	if err != nil {
		return err
	}

	var lastErr error
	for _, uri := range tal.URIs {
		repo := r.table.GetOrCreate(rsyncDirOf(uri), repotable.KindRsync)
		if repo.State() == repotable.StateNew {
			if err := orch.Fetch(ctx, repo, r.cfg.CacheDir); err != nil {
				lastErr = err
				continue
			}
		}
		if repo.State() != repotable.StateReady {
			lastErr = repo.Err()
			continue
		}
		path, err := fetcher.LocalPath(r.cfg.CacheDir, uri)
		if err != nil {
			lastErr = err
			continue
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			lastErr = err
			continue
		}
		cert, err := r.parser.ParseTA(raw, tal)
		if err != nil {
			lastErr = err
			continue
		}
		node, err := r.tree.InsertRoot(tal.Name, cert)
		if err != nil {
			return err
		}
		return r.walkCA(ctx, orch, node)
	}
	if lastErr == nil {
		lastErr = rperrors.New(rperrors.KindFatal, "no candidate URI resolved", "tal", tal.Name)
	}
	return lastErr
}

// walkCA fetches node's publication point and processes every entry of its
// manifest, recursing into child CA certificates.
func (r *Runner) walkCA(ctx context.Context, orch *fetcher.Orchestrator, node *authtree.Node) error {
	log := rplog.FromCtx(ctx)
	cert := node.Cert

	repo := r.resolveRepo(ctx, orch, cert)
	if repo == nil || repo.State() != repotable.StateReady {
		return rperrors.New(rperrors.KindTransport, "repository not ready, skipping subtree", "cert-ski", cert.SKI)
	}

	mftPath, err := fetcher.LocalPath(r.cfg.CacheDir, cert.MFT)
	if err != nil {
		r.failMFT()
		return err
	}
	mftRaw, err := os.ReadFile(mftPath)
	if err != nil {
		r.run.MFTsFail++
		rpmetrics.MFTsFail.Inc()
		rpmetrics.ObjectResult.WithLabelValues("mft", "fail").Inc()
		return rperrors.Wrap(rperrors.KindTransport, "reading manifest", err, "uri", cert.MFT)
	}
	repo.TrackFile(mftPath)

	mftEE, err := r.parser.EECert(mftRaw)
	if err != nil {
		r.failMFT()
		return err
	}
	r.tree.Insert(node, mftEE)
	if err := validator.ValidateChainLink(mftEE, node, time.Now()); err != nil {
		r.failMFT()
		return err
	}

	mft, err := r.parser.ParseManifest(mftRaw)
	if err != nil {
		r.failMFT()
		return err
	}
	if prev, ok, err := r.mfts.Load(ctx, cert.MFT); err == nil && ok && mft.ManifestNumber < prev {
		r.failMFT()
		return rperrors.New(rperrors.KindResource, "manifest number regressed",
			"uri", cert.MFT, "have", mft.ManifestNumber, "previous", prev)
	}
	if err := r.mfts.Save(ctx, cert.MFT, mft.ManifestNumber); err != nil {
		log.Warn("failed to persist manifest number", "uri", cert.MFT, "err", err)
	}
	if mft.Stale {
		r.run.MFTsStale++
		rpmetrics.MFTsStale.Inc()
		log.Warn("manifest is stale", "uri", cert.MFT, "nextUpdate", mft.NextUpdate)
	}
	r.run.MFTsOK++
	rpmetrics.MFTsOK.Inc()
	rpmetrics.ObjectResult.WithLabelValues("mft", "ok").Inc()

	dir := filepath.Dir(mftPath)
	entries := r.readManifestEntries(log, repo, dir, mft.Entries)

	var crl *rpkiobj.CRL
	for _, e := range entries {
		if e.typ != rpkiobj.RTypeCRL {
			continue
		}
		c, err := r.parser.ParseCRL(e.data, cert.X509)
		if err != nil {
			r.run.CRLsFail++
			rpmetrics.CRLsFail.Inc()
			continue
		}
		crl = c
		r.run.CRLsOK++
		rpmetrics.CRLsOK.Inc()
	}

	for _, e := range entries {
		switch e.typ {
		case rpkiobj.RTypeCER:
			r.processCert(ctx, orch, node, crl, e.data)
		case rpkiobj.RTypeROA:
			r.processROA(node, crl, e.data)
		case rpkiobj.RTypeGBR:
			r.processGBR(node, crl, e.data)
		}
	}
	return nil
}

// resolveRepo fetches the CA's preferred RRDP publication point, falling
// back to its rsync module if RRDP fails and a fallback URI is available.
func (r *Runner) resolveRepo(ctx context.Context, orch *fetcher.Orchestrator, cert *rpkiobj.Cert) *repotable.Repo {
	if cert.Notify == "" {
		repo := r.table.GetOrCreate(cert.Repo, repotable.KindRsync)
		if repo.State() == repotable.StateNew {
			_ = orch.Fetch(ctx, repo, r.cfg.CacheDir)
		}
		return repo
	}

	repo := r.table.GetOrCreate(cert.Notify, repotable.KindRRDP)
	repo.FallbackURI = cert.Repo
	if repo.State() == repotable.StateNew {
		_ = orch.Fetch(ctx, repo, r.cfg.CacheDir)
	}
	if repo.State() == repotable.StateFallback && cert.Repo != "" {
		fallback := r.table.GetOrCreate(cert.Repo, repotable.KindRsync)
		if fallback.State() == repotable.StateNew {
			_ = orch.Fetch(ctx, fallback, r.cfg.CacheDir)
		}
		return fallback
	}
	return repo
}

type manifestEntry struct {
	typ  rpkiobj.RType
	path string
	data []byte
}

// readManifestEntries reads and hash-verifies every file a manifest lists,
// dropping (with a warning) any entry missing on disk or whose content no
// longer matches its recorded digest.
func (r *Runner) readManifestEntries(log rplog.Logger, repo *repotable.Repo, dir string,
	list []rpkiobj.ManifestEntry) []manifestEntry {

	out := make([]manifestEntry, 0, len(list))
	for _, e := range list {
		if e.File != filepath.Base(e.File) || e.File == ".." {
			log.Warn("manifest entry filename is not a bare basename", "file", e.File)
			continue
		}
		p := filepath.Join(dir, e.File)
		data, err := os.ReadFile(p)
		if err != nil {
			log.Warn("manifest entry missing on disk", "file", e.File)
			continue
		}
		if err := validator.ValidateFileHash(data, e.Hash); err != nil {
			log.Warn("manifest entry hash mismatch", "file", e.File)
			continue
		}
		repo.TrackFile(p)
		typ, ok := rpkiobj.RTypeFromFilename(e.File)
		if !ok {
			continue
		}
		out = append(out, manifestEntry{typ: typ, path: p, data: data})
	}
	return out
}

func (r *Runner) failMFT() {
	r.run.MFTsFail++
	rpmetrics.MFTsFail.Inc()
	rpmetrics.ObjectResult.WithLabelValues("mft", "fail").Inc()
}

// processCert validates a listed child certificate against node and, on
// success, inserts it into the authority tree and recurses into its own
// manifest.
func (r *Runner) processCert(ctx context.Context, orch *fetcher.Orchestrator, parent *authtree.Node,
	crl *rpkiobj.CRL, data []byte) {

	key := sha256.Sum256(data)
	cert, ok := r.certCache.Get(string(key[:]))
	if !ok {
		var err error
		cert, err = r.parser.ParseCert(data)
		if err != nil {
			r.run.CertsFail++
			rpmetrics.CertsFail.Inc()
			return
		}
		r.certCache.Add(string(key[:]), cert)
	}
	if crl != nil && validator.IsRevoked(crl, cert.X509) {
		r.run.CertsFail++
		rpmetrics.CertsFail.Inc()
		return
	}
	if err := validator.ValidateChainLink(cert, parent, time.Now()); err != nil {
		r.run.CertsFail++
		rpmetrics.CertsFail.Inc()
		return
	}
	r.run.CertsOK++
	rpmetrics.CertsOK.Inc()
	rpmetrics.ObjectResult.WithLabelValues("cer", "ok").Inc()

	node := r.tree.Insert(parent, cert)
	if err := r.walkCA(ctx, orch, node); err != nil {
		rplog.FromCtx(ctx).Warn("subtree walk failed", "err", err)
	}
}

// processROA validates a ROA against its signing EE certificate and, on
// success, inserts one VRP per announced prefix.
func (r *Runner) processROA(node *authtree.Node, crl *rpkiobj.CRL, data []byte) {
	ee, err := r.parser.EECert(data)
	if err != nil {
		r.roaFail()
		return
	}
	if crl != nil && validator.IsRevoked(crl, ee.X509) {
		r.roaFail()
		return
	}
	eeNode := r.tree.Insert(node, ee)
	if err := validator.ValidateChainLink(ee, node, time.Now()); err != nil {
		r.roaFail()
		return
	}
	roa, err := r.parser.ParseROA(data)
	if err != nil {
		r.roaFail()
		return
	}
	roa.TAL = authtree.TALName(node)
	if err := validator.ValidateROA(roa, eeNode); err != nil {
		r.roaFail()
		return
	}
	r.run.ROAsOK++
	rpmetrics.ROAsOK.Inc()
	rpmetrics.ObjectResult.WithLabelValues("roa", "ok").Inc()

	for _, addr := range roa.IPAddrs {
		r.vrps.Insert(vrpstore.NewVRP(addr.AFI, addr.Prefix, addr.MaxLength, roa.ASID, roa.Expires, roa.TAL))
	}
}

func (r *Runner) roaFail() {
	r.run.ROAsFail++
	rpmetrics.ROAsFail.Inc()
	rpmetrics.ObjectResult.WithLabelValues("roa", "fail").Inc()
}

// processGBR validates a Ghostbusters record's chain of custody. It never
// contributes to the VRP store.
func (r *Runner) processGBR(node *authtree.Node, crl *rpkiobj.CRL, data []byte) {
	ee, err := r.parser.EECert(data)
	if err != nil {
		r.run.GBRsFail++
		rpmetrics.GBRsFail.Inc()
		return
	}
	if crl != nil && validator.IsRevoked(crl, ee.X509) {
		r.run.GBRsFail++
		rpmetrics.GBRsFail.Inc()
		return
	}
	r.tree.Insert(node, ee)
	if err := validator.ValidateChainLink(ee, node, time.Now()); err != nil {
		r.run.GBRsFail++
		rpmetrics.GBRsFail.Inc()
		return
	}
	if _, err := r.parser.ParseGBR(data); err != nil {
		r.run.GBRsFail++
		rpmetrics.GBRsFail.Inc()
		return
	}
	r.run.GBRsOK++
	rpmetrics.GBRsOK.Inc()
}
