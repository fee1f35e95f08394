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
	"github.com/netsec-ethz/rpki-client/internal/ipc"
)

// ManifestEntry is one (filename, digest) pair listed in a manifest.
// Filenames are always basenames without path separators.
type ManifestEntry struct {
	File   string
	Hash   [32]byte // SHA-256
}

// MFT is the parsed content of a CMS-signed manifest (RFC 6486).
type MFT struct {
	AKI, SKI []byte
	AIA      string

	ManifestNumber uint64
	ThisUpdate     int64 // unix seconds
	NextUpdate     int64
	Stale          bool // set when wall time > NextUpdate

	Entries []ManifestEntry
}

// MarshalIPC implements ipc.Marshaler.
func (m *MFT) MarshalIPC(w *ipc.Buffer) {
	w.PutBuf(m.AKI)
	w.PutBuf(m.SKI)
	w.PutStr(m.AIA)
	w.PutUint64(m.ManifestNumber)
	w.PutUint64(uint64(m.ThisUpdate))
	w.PutUint64(uint64(m.NextUpdate))
	w.PutBool(m.Stale)
	w.PutUint32(uint32(len(m.Entries)))
	for _, e := range m.Entries {
		w.PutStr(e.File)
		w.PutBuf(e.Hash[:])
	}
}

// UnmarshalIPC implements ipc.Unmarshaler.
func (m *MFT) UnmarshalIPC(r *ipc.Reader) error {
	var err error
	if m.AKI, err = r.GetBuf(); err != nil {
		return err
	}
	if m.SKI, err = r.GetBuf(); err != nil {
		return err
	}
	if m.AIA, err = r.GetStr(); err != nil {
		return err
	}
	if m.ManifestNumber, err = r.GetUint64(); err != nil {
		return err
	}
	tu, err := r.GetUint64()
	if err != nil {
		return err
	}
	m.ThisUpdate = int64(tu)
	nu, err := r.GetUint64()
	if err != nil {
		return err
	}
	m.NextUpdate = int64(nu)
	if m.Stale, err = r.GetBool(); err != nil {
		return err
	}
	n, err := r.GetUint32()
	if err != nil {
		return err
	}
	if n > 0 {
		m.Entries = make([]ManifestEntry, n)
	}
	for i := range m.Entries {
		if m.Entries[i].File, err = r.GetStr(); err != nil {
			return err
		}
		h, err := r.GetBuf()
		if err != nil {
			return err
		}
		copy(m.Entries[i].Hash[:], h)
	}
	return nil
}
