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

	"github.com/netsec-ethz/rpki-client/internal/rperrors"
	"github.com/netsec-ethz/rpki-client/internal/rpkiobj"
)

// ParseCRL decodes a DER-encoded X.509 CRL. Signature verification against
// the issuer happens in Validate once the issuing CA certificate is known.
func ParseCRL(raw []byte) (*rpkiobj.CRL, error) {
	x, err := x509.ParseRevocationList(raw)
	if err != nil {
		return nil, rperrors.Wrap(rperrors.KindCrypto, "parsing CRL", err)
	}
	aki := x.AuthorityKeyId
	if len(aki) == 0 {
		return nil, rperrors.New(rperrors.KindParse, "CRL missing Authority Key Identifier")
	}
	return &rpkiobj.CRL{AKI: aki, X509: x}, nil
}

// VerifyCRL checks the CRL's signature against the issuing CA certificate.
func VerifyCRL(crl *rpkiobj.CRL, issuer *x509.Certificate) error {
	if err := crl.X509.CheckSignatureFrom(issuer); err != nil {
		return rperrors.Wrap(rperrors.KindCrypto, "CRL signature verification failed", err)
	}
	return nil
}

// VerifyCert checks cert's signature against issuer, the black-box entry
// point Validate uses to walk the certificate chain one link at a time.
func VerifyCert(cert, issuer *x509.Certificate) error {
	if err := cert.CheckSignatureFrom(issuer); err != nil {
		return rperrors.Wrap(rperrors.KindCrypto, "certificate signature verification failed", err)
	}
	return nil
}
