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
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/netsec-ethz/rpki-client/internal/resources"
)

// wrapSET prepends a universal SET tag and DER length to content, the shape
// every CMS SET-typed field this package decodes into an asn1.RawValue
// expects on the wire.
func wrapSET(content []byte) []byte {
	return append(append([]byte{0x31}, encodeLength(len(content))...), content...)
}

// wrapContext0 prepends a constructed context-specific [0] tag, used for
// the EXPLICIT ContentInfo content and for the IMPLICIT certificates and
// signedAttrs fields: SET and SEQUENCE are always constructed, so the tag
// byte is the same whether the wrapping is implicit or explicit.
func wrapContext0(content []byte) []byte {
	return append(append([]byte{0xa0}, encodeLength(len(content))...), content...)
}

type fixtureKeyCert struct {
	key *rsa.PrivateKey
	x   *x509.Certificate
}

// genRoot builds a self-signed RSA CA certificate, optionally carrying RFC
// 3779 extensions when extraExts is non-nil.
func genRoot(t *testing.T, extraExts []pkix.Extension) *fixtureKeyCert {
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
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		SubjectKeyId:          []byte{0x01},
		ExtraExtensions:       extraExts,
	}
	raw, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	x, err := x509.ParseCertificate(raw)
	require.NoError(t, err)
	return &fixtureKeyCert{key: key, x: x}
}

// genEE builds an end-entity certificate signed by parent, the shape every
// CMS-signed object embeds as its sole certificate.
func genEE(t *testing.T, parent *fixtureKeyCert, extraExts []pkix.Extension) *fixtureKeyCert {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber:    big.NewInt(2),
		Subject:         pkix.Name{CommonName: "ee"},
		NotBefore:       time.Now().Add(-time.Hour),
		NotAfter:        time.Now().Add(time.Hour),
		SubjectKeyId:    []byte{0x02},
		ExtraExtensions: extraExts,
	}
	raw, err := x509.CreateCertificate(rand.Reader, tmpl, parent.x, &key.PublicKey, parent.key)
	require.NoError(t, err)
	x, err := x509.ParseCertificate(raw)
	require.NoError(t, err)
	return &fixtureKeyCert{key: key, x: x}
}

// buildSignedObject assembles a complete RFC 6488 CMS SignedData ContentInfo
// around eContent, embedding ee's certificate and signing with ee's key, the
// same wire shape ParseManifest/ParseROA/ParseGBR/unwrapSignedData decode.
func buildSignedObject(t *testing.T, ee *fixtureKeyCert, eContentType asn1.ObjectIdentifier, eContent []byte) []byte {
	t.Helper()

	digest := sha256.Sum256(eContent)
	ctInner, err := asn1.Marshal(eContentType)
	require.NoError(t, err)
	mdInner, err := asn1.Marshal(digest[:])
	require.NoError(t, err)

	ctAttr, err := asn1.Marshal(asn1Attribute{
		Type:   oidContentType,
		Values: asn1.RawValue{FullBytes: wrapSET(ctInner)},
	})
	require.NoError(t, err)
	mdAttr, err := asn1.Marshal(asn1Attribute{
		Type:   oidMessageDigest,
		Values: asn1.RawValue{FullBytes: wrapSET(mdInner)},
	})
	require.NoError(t, err)

	attrsContent := append(append([]byte{}, ctAttr...), mdAttr...)
	signedAttrs := asn1.RawValue{FullBytes: wrapContext0(attrsContent)}

	digestInput := append(append([]byte{0x31}, encodeLength(len(attrsContent))...), attrsContent...)
	sum := sha256.Sum256(digestInput)
	sig, err := rsa.SignPKCS1v15(rand.Reader, ee.key, crypto.SHA256, sum[:])
	require.NoError(t, err)

	si := asn1SignerInfo{
		Version:            3,
		Sid:                asn1.RawValue{FullBytes: append(append([]byte{0x80}, encodeLength(len(ee.x.SubjectKeyId))...), ee.x.SubjectKeyId...)},
		DigestAlgorithm:    asn1AlgorithmIdentifier{Algorithm: oidSHA256, Parameters: asn1.RawValue{FullBytes: []byte{0x05, 0x00}}},
		SignedAttrs:        signedAttrs,
		SignatureAlgorithm: asn1AlgorithmIdentifier{Algorithm: oidSHA256WithRSA, Parameters: asn1.RawValue{FullBytes: []byte{0x05, 0x00}}},
		Signature:          sig,
	}
	siDER, err := asn1.Marshal(si)
	require.NoError(t, err)

	digestAlgsInner, err := asn1.Marshal(asn1AlgorithmIdentifier{Algorithm: oidSHA256, Parameters: asn1.RawValue{FullBytes: []byte{0x05, 0x00}}})
	require.NoError(t, err)

	sd := asn1SignedData{
		Version:          3,
		DigestAlgorithms: asn1.RawValue{FullBytes: wrapSET(digestAlgsInner)},
		EncapContentInfo: asn1EncapContent{EContentType: eContentType, EContent: eContent},
		Certificates:     asn1.RawValue{FullBytes: wrapContext0(ee.x.Raw)},
		SignerInfos:      []asn1.RawValue{{FullBytes: siDER}},
	}
	sdDER, err := asn1.Marshal(sd)
	require.NoError(t, err)

	ci := asn1ContentInfo{
		ContentType: oidSignedData,
		Content:     asn1.RawValue{FullBytes: wrapContext0(sdDER)},
	}
	ciDER, err := asn1.Marshal(ci)
	require.NoError(t, err)
	return ciDER
}

// marshalASIdentifiersExt builds the id-pe-autonomousSysIds extension value
// for either an INHERIT asnum choice or an explicit list of ranges,
// mirroring decodeASIdOrRange/ExtractASIdentifiers's expected wire shape.
func marshalASIdentifiersExt(t *testing.T, inherit bool, ranges []resources.ASRange) []byte {
	t.Helper()
	var asnumInner []byte
	if inherit {
		asnumInner = []byte{0x05, 0x00} // NULL
	} else {
		var items []byte
		for _, r := range ranges {
			if r.Min == r.Max {
				b, err := asn1.Marshal(int64(r.Min))
				require.NoError(t, err)
				items = append(items, b...)
			} else {
				b, err := asn1.Marshal(struct{ Min, Max int64 }{int64(r.Min), int64(r.Max)})
				require.NoError(t, err)
				items = append(items, b...)
			}
		}
		asnumInner = append(append([]byte{0x30}, encodeLength(len(items))...), items...)
	}
	asnum := append(append([]byte{0xa0}, encodeLength(len(asnumInner))...), asnumInner...)
	return append(append([]byte{0x30}, encodeLength(len(asnum))...), asnum...)
}

// ipFamilyFixture describes one IPAddressFamily entry for
// marshalIPAddrBlocksExt, in either INHERIT or explicit-prefix form.
type ipFamilyFixture struct {
	afi      resources.AFI
	inherit  bool
	prefixes []asn1.BitString
}

// marshalIPAddrBlocksExt builds the id-pe-ipAddrBlocks extension value for a
// list of address families, mirroring decodeIPAddressOrRange/
// ExtractIPAddrBlocks's expected wire shape. Every prefix entry is encoded
// as an IPAddressOrRange addressPrefix choice (a bare BIT STRING); range
// choices are exercised directly against decodeIPAddressOrRange instead.
func marshalIPAddrBlocksExt(t *testing.T, families []ipFamilyFixture) []byte {
	t.Helper()
	var familiesContent []byte
	for _, fam := range families {
		afiBytes := []byte{0, byte(fam.afi)}
		afiDER, err := asn1.Marshal(afiBytes)
		require.NoError(t, err)

		var choice []byte
		if fam.inherit {
			choice = []byte{0x05, 0x00}
		} else {
			var items []byte
			for _, bs := range fam.prefixes {
				b, err := asn1.Marshal(bs)
				require.NoError(t, err)
				items = append(items, b...)
			}
			choice = append(append([]byte{0x30}, encodeLength(len(items))...), items...)
		}
		famContent := append(append([]byte{}, afiDER...), choice...)
		familiesContent = append(familiesContent, append(append([]byte{0x30}, encodeLength(len(famContent))...), famContent...)...)
	}
	return append(append([]byte{0x30}, encodeLength(len(familiesContent))...), familiesContent...)
}

// marshalSubjectInfoAccessExt builds a subjectInfoAccess extension value
// from (method OID, URI) pairs, mirroring decodeSubjectAccess's expected
// wire shape: a SEQUENCE of AccessDescription, each carrying a [6] IA5String
// GeneralName.
func marshalSubjectInfoAccessExt(t *testing.T, entries []struct {
	method asn1.ObjectIdentifier
	uri    string
}) []byte {
	t.Helper()
	var content []byte
	for _, e := range entries {
		methodDER, err := asn1.Marshal(e.method)
		require.NoError(t, err)
		uriTag := append(append([]byte{0x86}, encodeLength(len(e.uri))...), []byte(e.uri)...)
		descContent := append(append([]byte{}, methodDER...), uriTag...)
		content = append(content, append(append([]byte{0x30}, encodeLength(len(descContent))...), descContent...)...)
	}
	return append(append([]byte{0x30}, encodeLength(len(content))...), content...)
}
