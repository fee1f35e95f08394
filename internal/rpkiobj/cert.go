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
	"net/netip"

	"github.com/netsec-ethz/rpki-client/internal/ipc"
	"github.com/netsec-ethz/rpki-client/internal/resources"
)

// Cert is the parsed content of an X.509 certificate with RFC 3779
// extensions.
type Cert struct {
	AS resources.ASSet
	IP resources.IPResourceSet

	// Repo is the issuing CA's publication point (rsync URI); empty only
	// for a bare EE certificate embedded in a signed object.
	Repo string
	// MFT is the manifest rsync URI published at Repo.
	MFT string
	// Notify is the optional RRDP notification HTTPS URI.
	Notify string
	// CRL is the rsync URI of the issuing CRL.
	CRL string
	// AIA is the issuer access URI; empty only for a trust anchor.
	AIA string

	AKI []byte // empty only for a trust anchor
	SKI []byte // always present

	Valid bool // set once resource containment against the chain succeeds

	// X509 is the opaque parsed handle used for signature verification.
	X509 *x509.Certificate

	NotBefore, NotAfter int64 // unix seconds, for VRP transitive expiry
}

// MarshalIPC implements ipc.Marshaler.
func (c *Cert) MarshalIPC(w *ipc.Buffer) {
	w.PutStr(c.Repo)
	w.PutStr(c.MFT)
	w.PutStr(c.Notify)
	w.PutStr(c.CRL)
	w.PutStr(c.AIA)
	w.PutBuf(c.AKI)
	w.PutBuf(c.SKI)
	w.PutBool(c.Valid)
	w.PutUint64(uint64(c.NotBefore))
	w.PutUint64(uint64(c.NotAfter))
	w.PutBuf(c.X509.Raw)
	marshalASSet(w, c.AS)
	marshalIPSet(w, c.IP)
}

// UnmarshalIPC implements ipc.Unmarshaler.
func (c *Cert) UnmarshalIPC(r *ipc.Reader) error {
	var err error
	if c.Repo, err = r.GetStr(); err != nil {
		return err
	}
	if c.MFT, err = r.GetStr(); err != nil {
		return err
	}
	if c.Notify, err = r.GetStr(); err != nil {
		return err
	}
	if c.CRL, err = r.GetStr(); err != nil {
		return err
	}
	if c.AIA, err = r.GetStr(); err != nil {
		return err
	}
	if c.AKI, err = r.GetBuf(); err != nil {
		return err
	}
	if c.SKI, err = r.GetBuf(); err != nil {
		return err
	}
	if c.Valid, err = r.GetBool(); err != nil {
		return err
	}
	nb, err := r.GetUint64()
	if err != nil {
		return err
	}
	c.NotBefore = int64(nb)
	na, err := r.GetUint64()
	if err != nil {
		return err
	}
	c.NotAfter = int64(na)
	raw, err := r.GetBuf()
	if err != nil {
		return err
	}
	x509cert, err := x509.ParseCertificate(raw)
	if err != nil {
		return err
	}
	c.X509 = x509cert
	if c.AS, err = unmarshalASSet(r); err != nil {
		return err
	}
	if c.IP, err = unmarshalIPSet(r); err != nil {
		return err
	}
	return nil
}

func marshalASSet(w *ipc.Buffer, s resources.ASSet) {
	w.PutBool(s.Inherit)
	w.PutUint32(uint32(len(s.Ranges)))
	for _, rg := range s.Ranges {
		w.PutUint32(rg.Min)
		w.PutUint32(rg.Max)
	}
}

func unmarshalASSet(r *ipc.Reader) (resources.ASSet, error) {
	var s resources.ASSet
	inherit, err := r.GetBool()
	if err != nil {
		return s, err
	}
	s.Inherit = inherit
	n, err := r.GetUint32()
	if err != nil {
		return s, err
	}
	if n > 0 {
		s.Ranges = make([]resources.ASRange, n)
	}
	for i := range s.Ranges {
		min, err := r.GetUint32()
		if err != nil {
			return s, err
		}
		max, err := r.GetUint32()
		if err != nil {
			return s, err
		}
		s.Ranges[i] = resources.ASRange{Min: min, Max: max}
	}
	return s, nil
}

func marshalIPSet(w *ipc.Buffer, s resources.IPResourceSet) {
	marshalIPFamily(w, s.V4)
	marshalIPFamily(w, s.V6)
}

func marshalIPFamily(w *ipc.Buffer, fs resources.IPFamilySet) {
	w.PutBool(fs.Inherit)
	w.PutUint32(uint32(len(fs.Elements)))
	for _, e := range fs.Elements {
		rg := resources.ComposeRange(e)
		from16 := rg.From().As16()
		to16 := rg.To().As16()
		w.PutBuf(from16[:])
		w.PutBuf(to16[:])
	}
}

func unmarshalIPFamily(r *ipc.Reader, afi resources.AFI) (resources.IPFamilySet, error) {
	var fs resources.IPFamilySet
	inherit, err := r.GetBool()
	if err != nil {
		return fs, err
	}
	fs.Inherit = inherit
	n, err := r.GetUint32()
	if err != nil {
		return fs, err
	}
	if n > 0 {
		fs.Elements = make([]resources.IPElement, n)
	}
	for i := range fs.Elements {
		fromB, err := r.GetBuf()
		if err != nil {
			return fs, err
		}
		toB, err := r.GetBuf()
		if err != nil {
			return fs, err
		}
		from := netip.AddrFrom16([16]byte(fromB))
		to := netip.AddrFrom16([16]byte(toB))
		if afi == resources.AFIv4 {
			from = from.Unmap()
			to = to.Unmap()
		}
		fs.Elements[i] = resources.RangeElement(from, to)
	}
	return fs, nil
}

func unmarshalIPSet(r *ipc.Reader) (resources.IPResourceSet, error) {
	var s resources.IPResourceSet
	var err error
	if s.V4, err = unmarshalIPFamily(r, resources.AFIv4); err != nil {
		return s, err
	}
	if s.V6, err = unmarshalIPFamily(r, resources.AFIv6); err != nil {
		return s, err
	}
	return s, nil
}
