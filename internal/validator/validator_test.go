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

package validator

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/netsec-ethz/rpki-client/internal/authtree"
	"github.com/netsec-ethz/rpki-client/internal/resources"
	"github.com/netsec-ethz/rpki-client/internal/rpkiobj"
)

func selfSignedCA(t *testing.T, as resources.ASSet, ip resources.IPResourceSet) *rpkiobj.Cert {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "root"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		SubjectKeyId:          []byte{0x01},
	}
	raw, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	x, err := x509.ParseCertificate(raw)
	require.NoError(t, err)
	return &rpkiobj.Cert{
		AS: as, IP: ip, SKI: x.SubjectKeyId, AKI: x.AuthorityKeyId,
		X509: x, NotBefore: x.NotBefore.Unix(), NotAfter: x.NotAfter.Unix(),
	}
}

func childCert(t *testing.T, parentKey *rsa.PrivateKey, parentCert *x509.Certificate,
	as resources.ASSet, ip resources.IPResourceSet) *rpkiobj.Cert {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject:      pkix.Name{CommonName: "child"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		SubjectKeyId: []byte{0x02},
	}
	raw, err := x509.CreateCertificate(rand.Reader, tmpl, parentCert, &key.PublicKey, parentKey)
	require.NoError(t, err)
	x, err := x509.ParseCertificate(raw)
	require.NoError(t, err)
	return &rpkiobj.Cert{
		AS: as, IP: ip, SKI: x.SubjectKeyId, AKI: x.AuthorityKeyId,
		X509: x, NotBefore: x.NotBefore.Unix(), NotAfter: x.NotAfter.Unix(),
	}
}

func TestValidateChainLinkAcceptsCoveredResources(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	rootAS := resources.ASSet{Ranges: []resources.ASRange{{Min: 100, Max: 200}}}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1), Subject: pkix.Name{CommonName: "root"},
		NotBefore: time.Now().Add(-time.Hour), NotAfter: time.Now().Add(time.Hour),
		IsCA: true, BasicConstraintsValid: true, SubjectKeyId: []byte{0x01},
	}
	raw, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	rootX, err := x509.ParseCertificate(raw)
	require.NoError(t, err)
	root := &rpkiobj.Cert{AS: rootAS, X509: rootX, SKI: rootX.SubjectKeyId,
		NotBefore: rootX.NotBefore.Unix(), NotAfter: rootX.NotAfter.Unix()}

	tree := authtree.New()
	rootNode, err := tree.InsertRoot("talA", root)
	require.NoError(t, err)

	child := childCert(t, key, rootX, resources.ASSet{Ranges: []resources.ASRange{{Min: 150, Max: 160}}},
		resources.IPResourceSet{})

	require.NoError(t, ValidateChainLink(child, rootNode, time.Now()))
	require.True(t, child.Valid)
}

func TestValidateChainLinkRejectsUncoveredResources(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	rootAS := resources.ASSet{Ranges: []resources.ASRange{{Min: 100, Max: 200}}}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1), Subject: pkix.Name{CommonName: "root"},
		NotBefore: time.Now().Add(-time.Hour), NotAfter: time.Now().Add(time.Hour),
		IsCA: true, BasicConstraintsValid: true, SubjectKeyId: []byte{0x01},
	}
	raw, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	rootX, err := x509.ParseCertificate(raw)
	require.NoError(t, err)
	root := &rpkiobj.Cert{AS: rootAS, X509: rootX, SKI: rootX.SubjectKeyId,
		NotBefore: rootX.NotBefore.Unix(), NotAfter: rootX.NotAfter.Unix()}

	tree := authtree.New()
	rootNode, err := tree.InsertRoot("talA", root)
	require.NoError(t, err)

	child := childCert(t, key, rootX, resources.ASSet{Ranges: []resources.ASRange{{Min: 300, Max: 400}}},
		resources.IPResourceSet{})

	require.Error(t, ValidateChainLink(child, rootNode, time.Now()))
	require.False(t, child.Valid)
}

func TestValidateFileHash(t *testing.T) {
	data := []byte("manifest entry contents")
	require.NoError(t, ValidateFileHash(data, sha256.Sum256(data)))
	require.Error(t, ValidateFileHash(data, sha256.Sum256([]byte("other"))))
}
