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
	"crypto/x509/pkix"
	"math/big"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/netsec-ethz/rpki-client/internal/ipc"
	"github.com/netsec-ethz/rpki-client/internal/resources"
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
		SubjectKeyId:          []byte{0xaa, 0xbb},
		AuthorityKeyId:        []byte{0xcc, 0xdd},
	}
	raw, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	x, err := x509.ParseCertificate(raw)
	require.NoError(t, err)
	return x
}

// TestCertRoundTrip checks the round-trip IPC law: MarshalIPC followed by
// UnmarshalIPC reproduces the original structure. IP elements are built
// from RangeElement, since marshalIPFamily always canonicalizes to
// [min,max] byte form and a Prefix-shaped element would not compare equal
// to the range-shaped element the round trip produces.
func TestCertRoundTrip(t *testing.T) {
	x := selfSignedX509(t)
	orig := &Cert{
		AS: resources.ASSet{Ranges: []resources.ASRange{{Min: 64496, Max: 64511}}},
		IP: resources.IPResourceSet{
			V4: resources.IPFamilySet{Elements: []resources.IPElement{
				resources.RangeElement(netip.MustParseAddr("10.0.0.0"), netip.MustParseAddr("10.255.255.255")),
			}},
			V6: resources.IPFamilySet{Inherit: true},
		},
		Repo:      "rsync://repo.example/ca",
		MFT:       "rsync://repo.example/ca/ca.mft",
		Notify:    "https://repo.example/notification.xml",
		CRL:       "rsync://repo.example/ca/ca.crl",
		AIA:       "rsync://parent.example/parent.cer",
		AKI:       x.AuthorityKeyId,
		SKI:       x.SubjectKeyId,
		Valid:     true,
		X509:      x,
		NotBefore: x.NotBefore.Unix(),
		NotAfter:  x.NotAfter.Unix(),
	}

	var buf ipc.Buffer
	orig.MarshalIPC(&buf)

	var got Cert
	require.NoError(t, got.UnmarshalIPC(ipc.NewReader(bytes.NewReader(buf.Bytes()))))
	require.Equal(t, orig, &got)
}
