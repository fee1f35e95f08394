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
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/netsec-ethz/rpki-client/internal/ipc"
)

func TestCRLRoundTrip(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	issuer := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		NotBefore:    time.Unix(1700000000, 0),
		NotAfter:     time.Unix(1800000000, 0),
		IsCA:         true,
		KeyUsage:     x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
	}
	issuerRaw, err := x509.CreateCertificate(rand.Reader, issuer, issuer, &key.PublicKey, key)
	require.NoError(t, err)
	issuerCert, err := x509.ParseCertificate(issuerRaw)
	require.NoError(t, err)

	tmpl := &x509.RevocationList{
		Number:     big.NewInt(1),
		ThisUpdate: time.Unix(1700000000, 0),
		NextUpdate: time.Unix(1700086400, 0),
	}
	raw, err := x509.CreateRevocationList(rand.Reader, tmpl, issuerCert, key)
	require.NoError(t, err)
	crl, err := x509.ParseRevocationList(raw)
	require.NoError(t, err)

	orig := &CRL{AKI: []byte{0x01, 0x02}, X509: crl}

	var buf ipc.Buffer
	orig.MarshalIPC(&buf)

	var got CRL
	require.NoError(t, got.UnmarshalIPC(ipc.NewReader(bytes.NewReader(buf.Bytes()))))
	require.Equal(t, orig, &got)
}
