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
	"crypto/x509"
	"encoding/asn1"

	"github.com/netsec-ethz/rpki-client/internal/rperrors"
)

var oidSignedData = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 2}

// asn1ContentInfo is the outer CMS ContentInfo, RFC 5652 §3.
type asn1ContentInfo struct {
	ContentType asn1.ObjectIdentifier
	Content     asn1.RawValue `asn1:"explicit,tag:0"`
}

// asn1SignedData is CMS SignedData, RFC 5652 §5.1, trimmed to the fields
// RPKI signed objects populate (RFC 6488 forbids crls and requires exactly
// one signerInfo).
type asn1SignedData struct {
	Version          int
	DigestAlgorithms asn1.RawValue   `asn1:"set"`
	EncapContentInfo asn1EncapContent
	Certificates     asn1.RawValue   `asn1:"optional,tag:0"`
	SignerInfos      []asn1.RawValue `asn1:"set"`
}

type asn1EncapContent struct {
	EContentType asn1.ObjectIdentifier
	EContent     []byte `asn1:"explicit,optional,tag:0"`
}

// SignedObject is the structurally-decoded, not-yet-signature-verified
// content of an RFC 6488 signed object: the eContent payload plus the lone
// embedded EE certificate that supposedly signed it.
type SignedObject struct {
	EContentType asn1.ObjectIdentifier
	EContent     []byte
	EECert       *x509.Certificate
}

// unwrapSignedData decodes a CMS ContentInfo/SignedData structure without
// verifying the signature: structural decoding and signature verification
// are kept as separate steps.
func unwrapSignedData(raw []byte) (*SignedObject, error) {
	var ci asn1ContentInfo
	rest, err := asn1.Unmarshal(raw, &ci)
	if err != nil {
		return nil, rperrors.Parse("decoding CMS ContentInfo", err)
	}
	if len(rest) > 0 {
		return nil, rperrors.New(rperrors.KindParse, "trailing data after ContentInfo")
	}
	if !ci.ContentType.Equal(oidSignedData) {
		return nil, rperrors.New(rperrors.KindParse, "not a CMS SignedData object",
			"contentType", ci.ContentType.String())
	}
	var sd asn1SignedData
	if _, err := asn1.Unmarshal(ci.Content.Bytes, &sd); err != nil {
		return nil, rperrors.Parse("decoding CMS SignedData", err)
	}
	if sd.Version != 3 {
		return nil, rperrors.New(rperrors.KindParse, "unsupported CMS SignedData version",
			"version", sd.Version)
	}
	if len(sd.SignerInfos) != 1 {
		return nil, rperrors.New(rperrors.KindParse, "RPKI signed object must carry exactly one signerInfo",
			"count", len(sd.SignerInfos))
	}
	cert, err := extractSoleCertificate(sd.Certificates)
	if err != nil {
		return nil, err
	}
	return &SignedObject{
		EContentType: sd.EncapContentInfo.EContentType,
		EContent:     sd.EncapContentInfo.EContent,
		EECert:       cert,
	}, nil
}

// extractSoleCertificate decodes the CMS `certificates` [0] IMPLICIT SET OF
// CertificateChoices field, which RFC 6488 requires to hold exactly the
// signing EE certificate and nothing else.
func extractSoleCertificate(field asn1.RawValue) (*x509.Certificate, error) {
	if len(field.Bytes) == 0 {
		return nil, rperrors.New(rperrors.KindParse, "CMS SignedData missing embedded EE certificate")
	}
	var certs []asn1.RawValue
	for rest := field.Bytes; len(rest) > 0; {
		var c asn1.RawValue
		var err error
		if rest, err = asn1.Unmarshal(rest, &c); err != nil {
			return nil, rperrors.Parse("decoding CMS certificates field", err)
		}
		certs = append(certs, c)
	}
	if len(certs) != 1 {
		return nil, rperrors.New(rperrors.KindParse, "CMS SignedData must embed exactly one certificate",
			"count", len(certs))
	}
	cert, err := x509.ParseCertificate(certs[0].FullBytes)
	if err != nil {
		return nil, rperrors.Wrap(rperrors.KindCrypto, "parsing embedded EE certificate", err)
	}
	return cert, nil
}
