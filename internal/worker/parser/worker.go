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

package parser

import (
	"crypto/x509"
	"net"

	"github.com/netsec-ethz/rpki-client/internal/cryptoengine"
	"github.com/netsec-ethz/rpki-client/internal/ipc"
)

// RunWorker is the parser worker process's main loop: it reads one Request
// per frame from conn, decodes it with internal/cryptoengine, and writes
// back a Response. It does no network I/O and no filesystem writes; the
// orchestrator hands it bytes already read from the local cache. It
// returns only when conn is closed by the orchestrator or a framing error
// occurs.
func RunWorker(conn net.Conn) error {
	for {
		var req Request
		if err := ipc.Recv(conn, &req); err != nil {
			return err
		}
		resp := handle(&req)
		if err := ipc.Send(conn, resp); err != nil {
			return err
		}
	}
}

func handle(req *Request) *Response {
	switch req.Op {
	case OpParseTA:
		cert, err := cryptoengine.ParseTA(req.Raw, req.TAL)
		if err != nil {
			return &Response{ErrMsg: err.Error()}
		}
		return &Response{OK: true, Cert: cert}

	case OpEECert:
		cert, err := cryptoengine.EECert(req.Raw)
		if err != nil {
			return &Response{ErrMsg: err.Error()}
		}
		return &Response{OK: true, Cert: cert}

	case OpParseManifest:
		mft, err := cryptoengine.ParseManifest(req.Raw)
		if err != nil {
			return &Response{ErrMsg: err.Error()}
		}
		return &Response{OK: true, MFT: mft}

	case OpParseCRL:
		crl, err := cryptoengine.ParseCRL(req.Raw)
		if err != nil {
			return &Response{ErrMsg: err.Error()}
		}
		issuer, err := x509.ParseCertificate(req.IssuerDER)
		if err != nil {
			return &Response{ErrMsg: err.Error()}
		}
		if err := cryptoengine.VerifyCRL(crl, issuer); err != nil {
			return &Response{ErrMsg: err.Error()}
		}
		return &Response{OK: true, CRL: crl}

	case OpParseCert:
		cert, err := cryptoengine.ParseCert(req.Raw)
		if err != nil {
			return &Response{ErrMsg: err.Error()}
		}
		return &Response{OK: true, Cert: cert}

	case OpParseROA:
		roa, err := cryptoengine.ParseROA(req.Raw)
		if err != nil {
			return &Response{ErrMsg: err.Error()}
		}
		return &Response{OK: true, ROA: roa}

	case OpParseGBR:
		gbr, err := cryptoengine.ParseGBR(req.Raw)
		if err != nil {
			return &Response{ErrMsg: err.Error()}
		}
		return &Response{OK: true, GBR: gbr}

	default:
		return &Response{ErrMsg: "unknown parser op"}
	}
}
