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

import "github.com/netsec-ethz/rpki-client/internal/ipc"

// GBR is a Ghostbuster record: an opaque vCard payload plus AIA/AKI/SKI.
// It is validated but inert — it never contributes to the VRP store.
type GBR struct {
	AIA    string
	AKI    []byte
	SKI    []byte
	VCard  []byte
}

// MarshalIPC implements ipc.Marshaler.
func (g *GBR) MarshalIPC(w *ipc.Buffer) {
	w.PutStr(g.AIA)
	w.PutBuf(g.AKI)
	w.PutBuf(g.SKI)
	w.PutBuf(g.VCard)
}

// UnmarshalIPC implements ipc.Unmarshaler.
func (g *GBR) UnmarshalIPC(r *ipc.Reader) error {
	var err error
	if g.AIA, err = r.GetStr(); err != nil {
		return err
	}
	if g.AKI, err = r.GetBuf(); err != nil {
		return err
	}
	if g.SKI, err = r.GetBuf(); err != nil {
		return err
	}
	g.VCard, err = r.GetBuf()
	return err
}
