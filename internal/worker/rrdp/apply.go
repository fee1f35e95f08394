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
	"strings"

	"github.com/netsec-ethz/rpki-client/internal/rperrors"
	"github.com/netsec-ethz/rpki-client/internal/validator"
)

// Applier writes RRDP publish/withdraw operations into a local mirror
// rooted at Dir, keyed by the object's URI path underneath its
// publication point.
type Applier struct {
	Dir   string
	Files map[string]struct{} // paths touched this run, for repotable tracking
}

func NewApplier(dir string) *Applier {
	return &Applier{Dir: dir, Files: make(map[string]struct{})}
}

// localPath maps a publish/withdraw uri attribute to its on-disk location.
// RFC 8182 publish/withdraw elements carry the object's canonical rsync://
// URI even when the object itself only ever travels over RRDP, so an RRDP
// mirror is addressable by the same rsync:// paths a plain rsync mirror
// would produce. uri is validated before any path is derived from it: it
// comes straight off the wire, read before any chain validation.
func (a *Applier) localPath(uri string) (string, error) {
	if err := validator.ValidateURI(uri, "rsync://"); err != nil {
		return "", err
	}
	return validator.ConfineToRoot(a.Dir, strings.TrimPrefix(uri, "rsync://")), nil
}

// ApplySnapshot writes every publish in a full snapshot. Snapshot publishes
// carry no per-object hash and none is checked here; the notification's
// overall snapshot hash is checked by the caller, per RFC 8182 §3.4.
func (a *Applier) ApplySnapshot(s *Snapshot) error {
	for _, p := range s.Publishes {
		if err := a.writeObject(p); err != nil {
			return err
		}
	}
	return nil
}

// ApplyDelta applies rrdp_handle_file's ADD/UPD/DEL semantics: a publish
// with no hash attribute is an ADD (fails if a differently-hashed object
// already occupies the path, e.g. a stale prior fetch; a byte-identical
// pre-existing file is tolerated as a no-op replay); a publish with a
// hash attribute is an UPD (the local copy's hash must match before
// replacing); a withdraw with a hash attribute is a DEL (the local copy's
// hash must match before removing).
func (a *Applier) ApplyDelta(d *Delta) error {
	for _, p := range d.Publishes {
		if p.Hash != "" {
			if err := a.checkExistingHash(p.URI, p.Hash); err != nil {
				return err
			}
			if err := a.writeObject(p); err != nil {
				return err
			}
			continue
		}
		raw, err := decodePublishContent(p)
		if err != nil {
			return err
		}
		if err := a.checkAddConflict(p.URI, raw); err != nil {
			return err
		}
		if err := a.writeRaw(p.URI, raw); err != nil {
			return err
		}
	}
	for _, wd := range d.Withdraws {
		if err := a.checkExistingHash(wd.URI, wd.Hash); err != nil {
			return err
		}
		path, err := a.localPath(wd.URI)
		if err != nil {
			return err
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return rperrors.Wrap(rperrors.KindFallback, "withdrawing RRDP object", err, "uri", wd.URI)
		}
		delete(a.Files, path)
	}
	return nil
}

func (a *Applier) checkExistingHash(uri, wantHex string) error {
	path, err := a.localPath(uri)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return rperrors.Wrap(rperrors.KindFallback, "reading local object before UPD/DEL", err, "uri", uri)
	}
	got := sha256.Sum256(data)
	want, err := hex.DecodeString(wantHex)
	if err != nil || hex.EncodeToString(got[:]) != hex.EncodeToString(want) {
		return rperrors.New(rperrors.KindFallback, "local object hash does not match delta operation", "uri", uri)
	}
	return nil
}

// checkAddConflict rejects an ADD whose target path is already populated
// with content other than newContent. A missing file is not a conflict; a
// byte-identical file is a harmless replay of an already-applied delta.
func (a *Applier) checkAddConflict(uri string, newContent []byte) error {
	path, err := a.localPath(uri)
	if err != nil {
		return err
	}
	existing, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return rperrors.Wrap(rperrors.KindFallback, "reading local object before ADD", err, "uri", uri)
	}
	got, want := sha256.Sum256(existing), sha256.Sum256(newContent)
	if got != want {
		return rperrors.New(rperrors.KindFallback, "ADD target already exists with a different hash", "uri", uri)
	}
	return nil
}

func decodePublishContent(p Publish) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(p.Content))
	if err != nil {
		return nil, rperrors.Wrap(rperrors.KindParse, "decoding base64 publish content", err, "uri", p.URI)
	}
	return raw, nil
}

func (a *Applier) writeObject(p Publish) error {
	raw, err := decodePublishContent(p)
	if err != nil {
		return err
	}
	return a.writeRaw(p.URI, raw)
}

func (a *Applier) writeRaw(uri string, raw []byte) error {
	path, err := a.localPath(uri)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return rperrors.Wrap(rperrors.KindFallback, "creating RRDP mirror directory", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return rperrors.Wrap(rperrors.KindFallback, "writing RRDP object", err, "uri", uri)
	}
	a.Files[path] = struct{}{}
	return nil
}
