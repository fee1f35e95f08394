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

package cryptoengine

import (
	"crypto/rand"
	"crypto/x509"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseCRLAndVerify(t *testing.T) {
	root := genRoot(t, nil)

	tmpl := &x509.RevocationList{
		Number:     big.NewInt(1),
		ThisUpdate: time.Now().Add(-time.Hour),
		NextUpdate: time.Now().Add(time.Hour),
	}
	raw, err := x509.CreateRevocationList(rand.Reader, tmpl, root.x, root.key)
	require.NoError(t, err)

	crl, err := ParseCRL(raw)
	require.NoError(t, err)
	require.Equal(t, root.x.SubjectKeyId, crl.AKI)

	require.NoError(t, VerifyCRL(crl, root.x))
}

func TestParseCRLRejectsMissingAKI(t *testing.T) {
	key := genRoot(t, nil).key
	selfTmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		IsCA:         true,
	}
	certRaw, err := x509.CreateCertificate(rand.Reader, selfTmpl, selfTmpl, &key.PublicKey, key)
	require.NoError(t, err)
	noAKICert, err := x509.ParseCertificate(certRaw)
	require.NoError(t, err)

	tmpl := &x509.RevocationList{
		Number:     big.NewInt(1),
		ThisUpdate: time.Now().Add(-time.Hour),
		NextUpdate: time.Now().Add(time.Hour),
	}
	raw, err := x509.CreateRevocationList(rand.Reader, tmpl, noAKICert, key)
	require.NoError(t, err)

	_, err = ParseCRL(raw)
	require.Error(t, err)
}

func TestVerifyCRLRejectsWrongIssuer(t *testing.T) {
	root := genRoot(t, nil)
	other := genRoot(t, nil)

	tmpl := &x509.RevocationList{
		Number:     big.NewInt(1),
		ThisUpdate: time.Now().Add(-time.Hour),
		NextUpdate: time.Now().Add(time.Hour),
	}
	raw, err := x509.CreateRevocationList(rand.Reader, tmpl, root.x, root.key)
	require.NoError(t, err)
	crl, err := ParseCRL(raw)
	require.NoError(t, err)

	require.Error(t, VerifyCRL(crl, other.x))
}

func TestVerifyCertRejectsWrongIssuer(t *testing.T) {
	root := genRoot(t, nil)
	other := genRoot(t, nil)
	ee := genEE(t, root, nil)

	require.Error(t, VerifyCert(ee.x, other.x))
	require.NoError(t, VerifyCert(ee.x, root.x))
}
