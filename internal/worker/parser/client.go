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
	"context"
	"crypto/x509"

	"github.com/netsec-ethz/rpki-client/internal/ipc"
	"github.com/netsec-ethz/rpki-client/internal/rperrors"
	"github.com/netsec-ethz/rpki-client/internal/rpkiobj"
)

// Client is the orchestrator's handle to the single parser worker process.
// Unlike the rsync/RRDP worker pools, there is exactly one parser worker
// per run: decoding is CPU-bound and single-threaded on the orchestrator
// side of the pipeline already, so pooling would only add IPC overhead
// without shortening the critical path.
type Client struct {
	ch *ipc.Channel
}

// Spawn starts the parser worker process and returns a Client bound to it.
func Spawn(ctx context.Context, extraArgs ...string) (*Client, error) {
	ch, err := ipc.Spawn(ctx, ipc.RoleParser, extraArgs...)
	if err != nil {
		return nil, err
	}
	return &Client{ch: ch}, nil
}

// Close closes the connection to the parser worker.
func (c *Client) Close() error {
	return c.ch.Close()
}

func (c *Client) roundtrip(req *Request) (*Response, error) {
	if err := ipc.Send(c.ch.Conn, req); err != nil {
		return nil, rperrors.Transport("sending parse request", err)
	}
	var resp Response
	if err := ipc.Recv(c.ch.Conn, &resp); err != nil {
		return nil, rperrors.Transport("receiving parse response", err)
	}
	if !resp.OK {
		return nil, rperrors.New(rperrors.KindCrypto, resp.ErrMsg)
	}
	return &resp, nil
}

// ParseTA decodes a self-signed trust anchor certificate, checking its
// public key against tal.
func (c *Client) ParseTA(raw []byte, tal *rpkiobj.TAL) (*rpkiobj.Cert, error) {
	resp, err := c.roundtrip(&Request{Op: OpParseTA, Raw: raw, TAL: tal})
	if err != nil {
		return nil, err
	}
	return resp.Cert, nil
}

// EECert decodes the sole EE certificate embedded in a CMS signed object.
func (c *Client) EECert(raw []byte) (*rpkiobj.Cert, error) {
	resp, err := c.roundtrip(&Request{Op: OpEECert, Raw: raw})
	if err != nil {
		return nil, err
	}
	return resp.Cert, nil
}

// ParseManifest decodes and CMS-verifies a manifest.
func (c *Client) ParseManifest(raw []byte) (*rpkiobj.MFT, error) {
	resp, err := c.roundtrip(&Request{Op: OpParseManifest, Raw: raw})
	if err != nil {
		return nil, err
	}
	return resp.MFT, nil
}

// ParseCRL decodes a CRL and verifies its signature against issuer.
func (c *Client) ParseCRL(raw []byte, issuer *x509.Certificate) (*rpkiobj.CRL, error) {
	resp, err := c.roundtrip(&Request{Op: OpParseCRL, Raw: raw, IssuerDER: issuer.Raw})
	if err != nil {
		return nil, err
	}
	return resp.CRL, nil
}

// ParseCert decodes a CA or EE certificate.
func (c *Client) ParseCert(raw []byte) (*rpkiobj.Cert, error) {
	resp, err := c.roundtrip(&Request{Op: OpParseCert, Raw: raw})
	if err != nil {
		return nil, err
	}
	return resp.Cert, nil
}

// ParseROA decodes and CMS-verifies a ROA.
func (c *Client) ParseROA(raw []byte) (*rpkiobj.ROA, error) {
	resp, err := c.roundtrip(&Request{Op: OpParseROA, Raw: raw})
	if err != nil {
		return nil, err
	}
	return resp.ROA, nil
}

// ParseGBR decodes and CMS-verifies a Ghostbusters record.
func (c *Client) ParseGBR(raw []byte) (*rpkiobj.GBR, error) {
	resp, err := c.roundtrip(&Request{Op: OpParseGBR, Raw: raw})
	if err != nil {
		return nil, err
	}
	return resp.GBR, nil
}
