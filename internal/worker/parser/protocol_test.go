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
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/netsec-ethz/rpki-client/internal/ipc"
	"github.com/netsec-ethz/rpki-client/internal/rpkiobj"
)

func selfSignedX509(t *testing.T) *x509.Certificate {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "root"},
		NotBefore:             time.Unix(1700000000, 0),
		NotAfter:              time.Unix(1800000000, 0),
		IsCA:                  true,
		BasicConstraintsValid: true,
	}
	raw, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	x, err := x509.ParseCertificate(raw)
	require.NoError(t, err)
	return x
}

func TestRequestRoundTripPlain(t *testing.T) {
	req := &Request{Op: OpParseCert, Raw: []byte{0x30, 0x82, 0x01}}
	var buf bytes.Buffer
	require.NoError(t, ipc.Send(&buf, req))

	var got Request
	require.NoError(t, ipc.Recv(&buf, &got))
	require.Equal(t, *req, got)
}

func TestRequestRoundTripWithIssuerDER(t *testing.T) {
	req := &Request{Op: OpParseCRL, Raw: []byte{0x01, 0x02}, IssuerDER: []byte{0x03, 0x04, 0x05}}
	var buf bytes.Buffer
	require.NoError(t, ipc.Send(&buf, req))

	var got Request
	require.NoError(t, ipc.Recv(&buf, &got))
	require.Equal(t, *req, got)
}

func TestRequestRoundTripWithTAL(t *testing.T) {
	req := &Request{
		Op:  OpParseTA,
		Raw: []byte{0x30, 0x82},
		TAL: &rpkiobj.TAL{
			Name:   "ripe",
			URIs:   []string{"rsync://rpki.ripe.net/ta/ripe.cer"},
			PubKey: []byte{0x30, 0x0d},
		},
	}
	var buf bytes.Buffer
	require.NoError(t, ipc.Send(&buf, req))

	var got Request
	require.NoError(t, ipc.Recv(&buf, &got))
	require.Equal(t, *req, got)
}

func TestResponseRoundTripEachPayload(t *testing.T) {
	x := selfSignedX509(t)
	cases := []*Response{
		{OK: true, Cert: &rpkiobj.Cert{Repo: "rsync://repo.example/ca", X509: x, NotBefore: x.NotBefore.Unix(), NotAfter: x.NotAfter.Unix()}},
		{OK: true, MFT: &rpkiobj.MFT{ManifestNumber: 3}},
		{OK: true, ROA: &rpkiobj.ROA{ASID: 64500, TAL: "ripe"}},
		{OK: true, GBR: &rpkiobj.GBR{AIA: "rsync://repo.example/ca/ee.cer"}},
	}
	for _, resp := range cases {
		var buf bytes.Buffer
		require.NoError(t, ipc.Send(&buf, resp))

		var got Response
		require.NoError(t, ipc.Recv(&buf, &got))
		require.Equal(t, *resp, got)
	}
}

func TestResponseRoundTripFailure(t *testing.T) {
	resp := &Response{OK: false, ErrMsg: "manifest signature verification failed"}
	var buf bytes.Buffer
	require.NoError(t, ipc.Send(&buf, resp))

	var got Response
	require.NoError(t, ipc.Recv(&buf, &got))
	require.False(t, got.OK)
	require.Equal(t, "manifest signature verification failed", got.ErrMsg)
	require.Nil(t, got.Cert)
	require.Nil(t, got.MFT)
	require.Nil(t, got.CRL)
	require.Nil(t, got.ROA)
	require.Nil(t, got.GBR)
}
