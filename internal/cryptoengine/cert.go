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
	"crypto/sha256"
	"crypto/x509"

	"github.com/netsec-ethz/rpki-client/internal/rperrors"
	"github.com/netsec-ethz/rpki-client/internal/rpkiobj"
)

// ParseCert decodes a DER-encoded CA or EE certificate into an rpkiobj.Cert,
// filling in RFC 3779 resources and the SIA/AIA/CRLDP access URIs. It does
// not verify the signature chain; that happens once the issuer is known, in
// Validate.
func ParseCert(raw []byte) (*rpkiobj.Cert, error) {
	x, err := x509.ParseCertificate(raw)
	if err != nil {
		return nil, rperrors.Wrap(rperrors.KindCrypto, "parsing certificate", err)
	}
	return buildCert(x)
}

func buildCert(x *x509.Certificate) (*rpkiobj.Cert, error) {
	as, ip, err := certResources(x)
	if err != nil {
		return nil, err
	}
	sa, err := decodeSubjectAccess(x)
	if err != nil {
		return nil, rperrors.Wrap(rperrors.KindParse, "decoding subjectInfoAccess", err)
	}
	var aia string
	if len(x.IssuingCertificateURL) > 0 {
		aia = x.IssuingCertificateURL[0]
	}
	var crl string
	if len(x.CRLDistributionPoints) > 0 {
		crl = x.CRLDistributionPoints[0]
	}
	if len(x.SubjectKeyId) == 0 {
		return nil, rperrors.New(rperrors.KindParse, "certificate missing Subject Key Identifier")
	}
	return &rpkiobj.Cert{
		AS:        as,
		IP:        ip,
		Repo:      sa.CARepository,
		MFT:       sa.RPKIManifest,
		Notify:    sa.RPKINotify,
		CRL:       crl,
		AIA:       aia,
		AKI:       x.AuthorityKeyId,
		SKI:       x.SubjectKeyId,
		X509:      x,
		NotBefore: x.NotBefore.Unix(),
		NotAfter:  x.NotAfter.Unix(),
	}, nil
}

// ParseTA decodes a self-signed trust anchor certificate, checking that its
// SubjectPublicKeyInfo matches the base64-encoded key carried by the TAL
// that names it (RFC 8630 §2.2). It does not perform a signature
// self-check; x509.Certificate.CheckSignatureFrom(itself) is left to
// Validate so all chain-building goes through one code path.
func ParseTA(raw []byte, tal *rpkiobj.TAL) (*rpkiobj.Cert, error) {
	x, err := x509.ParseCertificate(raw)
	if err != nil {
		return nil, rperrors.Wrap(rperrors.KindCrypto, "parsing trust anchor certificate", err)
	}
	spkiHash := sha256.Sum256(x.RawSubjectPublicKeyInfo)
	talHash := sha256.Sum256(tal.PubKey)
	if !bytes.Equal(spkiHash[:], talHash[:]) {
		return nil, rperrors.New(rperrors.KindCrypto,
			"trust anchor certificate public key does not match TAL", "tal", tal.Name)
	}
	if !x.IsCA || !bytes.Equal(x.RawIssuer, x.RawSubject) {
		return nil, rperrors.New(rperrors.KindCrypto, "trust anchor certificate is not self-signed")
	}
	cert, err := buildCert(x)
	if err != nil {
		return nil, err
	}
	if cert.AS.Inherit || cert.IP.V4.Inherit || cert.IP.V6.Inherit {
		return nil, rperrors.New(rperrors.KindParse,
			"trust anchor certificate asserts INHERIT", "tal", tal.Name)
	}
	cert.AIA = ""
	return cert, nil
}
