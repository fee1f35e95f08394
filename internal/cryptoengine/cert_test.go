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
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/netsec-ethz/rpki-client/internal/resources"
	"github.com/netsec-ethz/rpki-client/internal/rpkiobj"
)

func asExt(t *testing.T, inherit bool, ranges []resources.ASRange) pkix.Extension {
	return pkix.Extension{Id: oidAutonomousSysIds, Value: marshalASIdentifiersExt(t, inherit, ranges)}
}

func ipExt(t *testing.T, families []ipFamilyFixture) pkix.Extension {
	return pkix.Extension{Id: oidIPAddrBlocks, Value: marshalIPAddrBlocksExt(t, families)}
}

func TestParseCertFillsRFC3779Resources(t *testing.T) {
	root := genRoot(t, []pkix.Extension{
		asExt(t, false, []resources.ASRange{{Min: 64496, Max: 64511}}),
		ipExt(t, []ipFamilyFixture{{afi: resources.AFIv4, inherit: true}}),
	})
	cert, err := ParseCert(root.x.Raw)
	require.NoError(t, err)
	require.Equal(t, []resources.ASRange{{Min: 64496, Max: 64511}}, cert.AS.Ranges)
	require.True(t, cert.IP.V4.Inherit)
}

func TestParseCertRejectsMissingSKI(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	// Not a CA: crypto/x509 generates a SubjectKeyId for CA templates that
	// leave it empty, which would defeat this test.
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "no-ski"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  false,
		BasicConstraintsValid: true,
	}
	raw, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	_, err = ParseCert(raw)
	require.Error(t, err)
}

func TestParseCertRejectsMalformedDER(t *testing.T) {
	_, err := ParseCert([]byte("not a certificate"))
	require.Error(t, err)
}

func TestParseTAAcceptsMatchingKey(t *testing.T) {
	root := genRoot(t, nil)
	tal := &rpkiobj.TAL{Name: "talA", PubKey: root.x.RawSubjectPublicKeyInfo}

	cert, err := ParseTA(root.x.Raw, tal)
	require.NoError(t, err)
	require.Empty(t, cert.AIA)
}

func TestParseTARejectsKeyMismatch(t *testing.T) {
	root := genRoot(t, nil)
	other := genRoot(t, nil)
	tal := &rpkiobj.TAL{Name: "talA", PubKey: other.x.RawSubjectPublicKeyInfo}

	_, err := ParseTA(root.x.Raw, tal)
	require.Error(t, err)
}

func TestParseTARejectsNotSelfSigned(t *testing.T) {
	root := genRoot(t, nil)
	ee := genEE(t, root, nil) // not self-signed, not even a CA
	tal := &rpkiobj.TAL{Name: "talA", PubKey: ee.x.RawSubjectPublicKeyInfo}

	_, err := ParseTA(ee.x.Raw, tal)
	require.Error(t, err)
}

func TestParseTARejectsASInherit(t *testing.T) {
	root := genRoot(t, []pkix.Extension{asExt(t, true, nil)})
	tal := &rpkiobj.TAL{Name: "talA", PubKey: root.x.RawSubjectPublicKeyInfo}

	_, err := ParseTA(root.x.Raw, tal)
	require.Error(t, err)
}

func TestParseTARejectsIPInherit(t *testing.T) {
	root := genRoot(t, []pkix.Extension{ipExt(t, []ipFamilyFixture{{afi: resources.AFIv4, inherit: true}})})
	tal := &rpkiobj.TAL{Name: "talA", PubKey: root.x.RawSubjectPublicKeyInfo}

	_, err := ParseTA(root.x.Raw, tal)
	require.Error(t, err)
}

