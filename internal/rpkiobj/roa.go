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
	"net/netip"

	"github.com/netsec-ethz/rpki-client/internal/ipc"
	"github.com/netsec-ethz/rpki-client/internal/resources"
)

// ROAIPAddr is one (AFI, prefix, maxlength) entry of a ROA payload.
type ROAIPAddr struct {
	AFI       resources.AFI
	Prefix    netip.Prefix
	MaxLength int
}

// ROA is the parsed content of a signed Route Origin Authorization
// (RFC 6482).
type ROA struct {
	ASID uint32 // 0 means "disavow"
	IPAddrs []ROAIPAddr

	AIA string
	AKI []byte
	SKI []byte

	TAL     string // provenance
	Expires int64  // unix seconds, min NotAfter across the whole chain

	Valid bool
}

// MarshalIPC implements ipc.Marshaler.
func (r *ROA) MarshalIPC(w *ipc.Buffer) {
	w.PutUint32(r.ASID)
	w.PutStr(r.AIA)
	w.PutBuf(r.AKI)
	w.PutBuf(r.SKI)
	w.PutStr(r.TAL)
	w.PutUint64(uint64(r.Expires))
	w.PutBool(r.Valid)
	w.PutUint32(uint32(len(r.IPAddrs)))
	for _, a := range r.IPAddrs {
		w.PutUint8(uint8(a.AFI))
		ip16 := a.Prefix.Addr().As16()
		w.PutBuf(ip16[:])
		w.PutUint8(uint8(a.Prefix.Bits()))
		w.PutUint8(uint8(a.MaxLength))
	}
}

// UnmarshalIPC implements ipc.Unmarshaler.
func (roa *ROA) UnmarshalIPC(r *ipc.Reader) error {
	var err error
	if roa.ASID, err = r.GetUint32(); err != nil {
		return err
	}
	if roa.AIA, err = r.GetStr(); err != nil {
		return err
	}
	if roa.AKI, err = r.GetBuf(); err != nil {
		return err
	}
	if roa.SKI, err = r.GetBuf(); err != nil {
		return err
	}
	if roa.TAL, err = r.GetStr(); err != nil {
		return err
	}
	exp, err := r.GetUint64()
	if err != nil {
		return err
	}
	roa.Expires = int64(exp)
	if roa.Valid, err = r.GetBool(); err != nil {
		return err
	}
	n, err := r.GetUint32()
	if err != nil {
		return err
	}
	if n > 0 {
		roa.IPAddrs = make([]ROAIPAddr, n)
	}
	for i := range roa.IPAddrs {
		afi, err := r.GetUint8()
		if err != nil {
			return err
		}
		ipb, err := r.GetBuf()
		if err != nil {
			return err
		}
		bits, err := r.GetUint8()
		if err != nil {
			return err
		}
		maxlen, err := r.GetUint8()
		if err != nil {
			return err
		}
		addr := netip.AddrFrom16([16]byte(ipb))
		if resources.AFI(afi) == resources.AFIv4 {
			addr = addr.Unmap()
		}
		roa.IPAddrs[i] = ROAIPAddr{
			AFI:       resources.AFI(afi),
			Prefix:    netip.PrefixFrom(addr, int(bits)),
			MaxLength: int(maxlen),
		}
	}
	return nil
}
