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

package rpkiobj

import (
	"bufio"
	"crypto/x509"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"

	"github.com/netsec-ethz/rpki-client/internal/ipc"
	"github.com/netsec-ethz/rpki-client/internal/rperrors"
)

// validateSubjectPublicKeyInfo checks that key decodes as a well-formed
// X.509 SubjectPublicKeyInfo.
func validateSubjectPublicKeyInfo(key []byte) error {
	_, err := x509.ParsePKIXPublicKey(key)
	return err
}

// TAL is a parsed Trust Anchor Locator: an ordered list of candidate
// rsync URIs, the DER-encoded expected public key, and a human-readable
// description used as provenance on every derived VRP.
type TAL struct {
	Name   string // derived from the filename, used as provenance
	URIs   []string
	PubKey []byte // DER SubjectPublicKeyInfo
}

// LoadTAL parses an RFC 7730/8630 TAL file: comment lines, one or more URIs
// (one per line), a blank line, then a base64-encoded DER public key.
func LoadTAL(path string) (*TAL, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, rperrors.Parse("opening TAL", err, "path", path)
	}
	defer f.Close()

	tal := &TAL{
		Name: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
	}
	var b64 strings.Builder
	inKey := false
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case strings.HasPrefix(line, "#"):
			continue
		case line == "" && !inKey:
			inKey = true
		case inKey:
			b64.WriteString(line)
		default:
			tal.URIs = append(tal.URIs, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, rperrors.Parse("reading TAL", err, "path", path)
	}
	if len(tal.URIs) == 0 {
		return nil, rperrors.New(rperrors.KindParse, "TAL has no candidate URIs", "path", path)
	}
	key, err := base64.StdEncoding.DecodeString(b64.String())
	if err != nil {
		return nil, rperrors.Parse("decoding TAL public key", err, "path", path)
	}
	if err := validateSubjectPublicKeyInfo(key); err != nil {
		return nil, rperrors.Parse("TAL public key is not a well-formed SubjectPublicKeyInfo", err,
			"path", path)
	}
	tal.PubKey = key
	return tal, nil
}

// MarshalIPC implements ipc.Marshaler.
func (t *TAL) MarshalIPC(w *ipc.Buffer) {
	w.PutStr(t.Name)
	w.PutUint32(uint32(len(t.URIs)))
	for _, u := range t.URIs {
		w.PutStr(u)
	}
	w.PutBuf(t.PubKey)
}

// UnmarshalIPC implements ipc.Unmarshaler.
func (t *TAL) UnmarshalIPC(r *ipc.Reader) error {
	var err error
	if t.Name, err = r.GetStr(); err != nil {
		return err
	}
	n, err := r.GetUint32()
	if err != nil {
		return err
	}
	if n > 0 {
		t.URIs = make([]string, n)
	}
	for i := range t.URIs {
		if t.URIs[i], err = r.GetStr(); err != nil {
			return err
		}
	}
	t.PubKey, err = r.GetBuf()
	return err
}
