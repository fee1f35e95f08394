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
	"crypto/x509"

	"github.com/netsec-ethz/rpki-client/internal/ipc"
)

// CRL is a standard X.509 CRL carrying the issuer's AKI. It is indexed by
// AKI so the manifest walk can locate the CRL that revokes a given
// issuer's children.
type CRL struct {
	AKI []byte
	X509 *x509.RevocationList
}

// MarshalIPC implements ipc.Marshaler.
func (c *CRL) MarshalIPC(w *ipc.Buffer) {
	w.PutBuf(c.AKI)
	w.PutBuf(c.X509.Raw)
}

// UnmarshalIPC implements ipc.Unmarshaler.
func (c *CRL) UnmarshalIPC(r *ipc.Reader) error {
	var err error
	if c.AKI, err = r.GetBuf(); err != nil {
		return err
	}
	raw, err := r.GetBuf()
	if err != nil {
		return err
	}
	c.X509, err = x509.ParseRevocationList(raw)
	return err
}
