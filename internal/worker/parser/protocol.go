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

// Package parser is the orchestrator's half of the parse pipeline: it
// spawns one parser worker process per run and dispatches DER/CMS decode
// requests to it over an internal/ipc framed connection. The worker
// process is the only place internal/cryptoengine decodes objects; the
// orchestrator holds no ASN.1 or X.509 parsing code of its own and calls
// into internal/cryptoengine only through internal/validator's signature
// checks.
package parser

import (
	"github.com/netsec-ethz/rpki-client/internal/ipc"
	"github.com/netsec-ethz/rpki-client/internal/rpkiobj"
)

// Op identifies which cryptoengine entry point a Request decodes with.
type Op uint8

const (
	// OpParseTA decodes a self-signed trust anchor certificate, checking
	// its public key against Req.TAL.
	OpParseTA Op = iota
	// OpEECert decodes the sole EE certificate embedded in a CMS signed
	// object without validating the object's own payload.
	OpEECert
	// OpParseManifest decodes and CMS-verifies a manifest.
	OpParseManifest
	// OpParseCRL decodes a CRL and verifies its signature against
	// Req.IssuerDER.
	OpParseCRL
	// OpParseCert decodes a CA or EE certificate.
	OpParseCert
	// OpParseROA decodes and CMS-verifies a ROA.
	OpParseROA
	// OpParseGBR decodes and CMS-verifies a Ghostbusters record.
	OpParseGBR
)

// Request asks the parser worker to decode Raw under Op's rules.
type Request struct {
	Op  Op
	Raw []byte

	// IssuerDER is the issuing CA's DER certificate, used only by
	// OpParseCRL to verify the CRL's signature.
	IssuerDER []byte

	// TAL is the trust anchor locator Raw is claimed to instantiate, used
	// only by OpParseTA.
	TAL *rpkiobj.TAL
}

// MarshalIPC implements ipc.Marshaler.
func (r *Request) MarshalIPC(w *ipc.Buffer) {
	w.PutUint8(uint8(r.Op))
	w.PutBuf(r.Raw)
	w.PutBuf(r.IssuerDER)
	w.PutBool(r.TAL != nil)
	if r.TAL != nil {
		r.TAL.MarshalIPC(w)
	}
}

// UnmarshalIPC implements ipc.Unmarshaler.
func (r *Request) UnmarshalIPC(rd *ipc.Reader) error {
	op, err := rd.GetUint8()
	if err != nil {
		return err
	}
	r.Op = Op(op)
	if r.Raw, err = rd.GetBuf(); err != nil {
		return err
	}
	if r.IssuerDER, err = rd.GetBuf(); err != nil {
		return err
	}
	hasTAL, err := rd.GetBool()
	if err != nil {
		return err
	}
	if hasTAL {
		r.TAL = &rpkiobj.TAL{}
		if err := r.TAL.UnmarshalIPC(rd); err != nil {
			return err
		}
	}
	return nil
}

// Response carries the object a Request's Op produced, or a parse failure.
// At most one of Cert/MFT/CRL/ROA/GBR is populated, matching the Request's
// Op.
type Response struct {
	OK     bool
	ErrMsg string

	Cert *rpkiobj.Cert
	MFT  *rpkiobj.MFT
	CRL  *rpkiobj.CRL
	ROA  *rpkiobj.ROA
	GBR  *rpkiobj.GBR
}

// MarshalIPC implements ipc.Marshaler.
func (r *Response) MarshalIPC(w *ipc.Buffer) {
	w.PutBool(r.OK)
	w.PutStr(r.ErrMsg)
	w.PutBool(r.Cert != nil)
	if r.Cert != nil {
		r.Cert.MarshalIPC(w)
	}
	w.PutBool(r.MFT != nil)
	if r.MFT != nil {
		r.MFT.MarshalIPC(w)
	}
	w.PutBool(r.CRL != nil)
	if r.CRL != nil {
		r.CRL.MarshalIPC(w)
	}
	w.PutBool(r.ROA != nil)
	if r.ROA != nil {
		r.ROA.MarshalIPC(w)
	}
	w.PutBool(r.GBR != nil)
	if r.GBR != nil {
		r.GBR.MarshalIPC(w)
	}
}

// UnmarshalIPC implements ipc.Unmarshaler.
func (r *Response) UnmarshalIPC(rd *ipc.Reader) error {
	var err error
	if r.OK, err = rd.GetBool(); err != nil {
		return err
	}
	if r.ErrMsg, err = rd.GetStr(); err != nil {
		return err
	}
	var hasCert, hasMFT, hasCRL, hasROA, hasGBR bool
	if hasCert, err = rd.GetBool(); err != nil {
		return err
	}
	if hasCert {
		r.Cert = &rpkiobj.Cert{}
		if err := r.Cert.UnmarshalIPC(rd); err != nil {
			return err
		}
	}
	if hasMFT, err = rd.GetBool(); err != nil {
		return err
	}
	if hasMFT {
		r.MFT = &rpkiobj.MFT{}
		if err := r.MFT.UnmarshalIPC(rd); err != nil {
			return err
		}
	}
	if hasCRL, err = rd.GetBool(); err != nil {
		return err
	}
	if hasCRL {
		r.CRL = &rpkiobj.CRL{}
		if err := r.CRL.UnmarshalIPC(rd); err != nil {
			return err
		}
	}
	if hasROA, err = rd.GetBool(); err != nil {
		return err
	}
	if hasROA {
		r.ROA = &rpkiobj.ROA{}
		if err := r.ROA.UnmarshalIPC(rd); err != nil {
			return err
		}
	}
	if hasGBR, err = rd.GetBool(); err != nil {
		return err
	}
	if hasGBR {
		r.GBR = &rpkiobj.GBR{}
		if err := r.GBR.UnmarshalIPC(rd); err != nil {
			return err
		}
	}
	return nil
}
