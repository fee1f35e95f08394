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
	"bytes"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/asn1"

	"github.com/netsec-ethz/rpki-client/internal/rperrors"
)

var (
	oidContentType   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 3}
	oidMessageDigest = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 4}
	oidSHA256        = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 1}
	oidRSAEncryption = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 1}
	// RSASSA-PKCS1-v1_5 with SHA-256, the only signature algorithm RFC 7935
	// permits in RPKI signed objects.
	oidSHA256WithRSA = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 11}
)

type asn1Attribute struct {
	Type   asn1.ObjectIdentifier
	Values asn1.RawValue `asn1:"set"`
}

type asn1AlgorithmIdentifier struct {
	Algorithm  asn1.ObjectIdentifier
	Parameters asn1.RawValue `asn1:"optional"`
}

type asn1SignerInfo struct {
	Version            int
	Sid                asn1.RawValue
	DigestAlgorithm    asn1AlgorithmIdentifier
	SignedAttrs        asn1.RawValue `asn1:"optional,tag:0"`
	SignatureAlgorithm asn1AlgorithmIdentifier
	Signature          []byte
}

// verifySignedData re-parses the SignerInfo embedded in a SignedObject and
// checks the RSA-SHA256 signature over the signed attributes, and that the
// signed attributes commit to eContentType and the digest of eContent, per
// RFC 6488 §3 and RFC 5652 §5.4.
func verifySignedData(raw []byte, obj *SignedObject) error {
	var ci asn1ContentInfo
	if _, err := asn1.Unmarshal(raw, &ci); err != nil {
		return rperrors.Parse("re-decoding ContentInfo for verification", err)
	}
	var sd asn1SignedData
	if _, err := asn1.Unmarshal(ci.Content.Bytes, &sd); err != nil {
		return rperrors.Parse("re-decoding SignedData for verification", err)
	}
	var si asn1SignerInfo
	if _, err := asn1.Unmarshal(sd.SignerInfos[0].FullBytes, &si); err != nil {
		return rperrors.Parse("decoding SignerInfo", err)
	}
	if !si.DigestAlgorithm.Algorithm.Equal(oidSHA256) {
		return rperrors.New(rperrors.KindCrypto, "unsupported digest algorithm",
			"oid", si.DigestAlgorithm.Algorithm.String())
	}
	if !si.SignatureAlgorithm.Algorithm.Equal(oidSHA256WithRSA) &&
		!si.SignatureAlgorithm.Algorithm.Equal(oidRSAEncryption) {
		return rperrors.New(rperrors.KindCrypto, "unsupported signature algorithm",
			"oid", si.SignatureAlgorithm.Algorithm.String())
	}
	if len(si.SignedAttrs.Bytes) == 0 {
		return rperrors.New(rperrors.KindCrypto, "signerInfo missing signed attributes")
	}
	var attrs []asn1Attribute
	for rest := si.SignedAttrs.Bytes; len(rest) > 0; {
		var a asn1Attribute
		var err error
		if rest, err = asn1.Unmarshal(rest, &a); err != nil {
			return rperrors.Parse("decoding signed attributes", err)
		}
		attrs = append(attrs, a)
	}
	if err := checkSignedAttrs(attrs, obj); err != nil {
		return err
	}
	// The signature covers the signedAttrs SET, but re-encoded with a
	// universal SET OF tag (0x31) rather than the [0] IMPLICIT tag used on
	// the wire, per RFC 5652 §5.4.
	digestInput := si.SignedAttrs.Bytes
	digestInput = append([]byte{0x31}, encodeLength(len(digestInput))...)
	digestInput = append(digestInput, si.SignedAttrs.Bytes...)
	sum := sha256.Sum256(digestInput)

	pub, ok := obj.EECert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return rperrors.New(rperrors.KindCrypto, "EE certificate public key is not RSA")
	}
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, sum[:], si.Signature); err != nil {
		return rperrors.Wrap(rperrors.KindCrypto, "signature verification failed", err)
	}
	return nil
}

func checkSignedAttrs(attrs []asn1Attribute, obj *SignedObject) error {
	var gotContentType asn1.ObjectIdentifier
	var gotDigest []byte
	for _, a := range attrs {
		switch {
		case a.Type.Equal(oidContentType):
			if _, err := asn1.Unmarshal(a.Values.Bytes, &gotContentType); err != nil {
				return rperrors.Parse("decoding content-type attribute", err)
			}
		case a.Type.Equal(oidMessageDigest):
			var d []byte
			if _, err := asn1.Unmarshal(a.Values.Bytes, &d); err != nil {
				return rperrors.Parse("decoding message-digest attribute", err)
			}
			gotDigest = d
		}
	}
	if !gotContentType.Equal(obj.EContentType) {
		return rperrors.New(rperrors.KindCrypto, "signed content-type attribute does not match eContentType")
	}
	want := sha256.Sum256(obj.EContent)
	if !bytes.Equal(gotDigest, want[:]) {
		return rperrors.New(rperrors.KindCrypto, "signed message-digest attribute does not match eContent")
	}
	return nil
}

// encodeLength re-derives the DER length octets for n, used to rebuild the
// SignedAttrs SET tag+length header for the digest input.
func encodeLength(n int) []byte {
	if n < 0x80 {
		return []byte{byte(n)}
	}
	var b []byte
	for n > 0 {
		b = append([]byte{byte(n & 0xff)}, b...)
		n >>= 8
	}
	return append([]byte{byte(0x80 | len(b))}, b...)
}
