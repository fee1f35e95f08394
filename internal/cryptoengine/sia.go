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
)

// crypto/x509 parses authorityInfoAccess but not subjectInfoAccess, so the
// access descriptions RPKI relies on (caRepository, rpkiManifest,
// signedObject, rpkiNotify) are decoded by hand here.
var (
	oidSubjectInfoAccess = asn1.ObjectIdentifier{2, 5, 29, 11}
	oidADCARepository    = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 48, 5}
	oidADRPKIManifest    = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 48, 10}
	oidADSignedObject    = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 48, 11}
	oidADRPKINotify      = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 48, 13}
)

type accessDescription struct {
	Method   asn1.ObjectIdentifier
	Location asn1.RawValue
}

// subjectAccess is the decoded subjectInfoAccess extension, split by
// well-known access method.
type subjectAccess struct {
	CARepository string // rsync directory URI, CA certs only
	RPKIManifest string // rsync URI, CA certs only
	SignedObject string // rsync URI, EE certs only
	RPKINotify   string // https URI, optional on CA certs
}

func decodeSubjectAccess(cert *x509.Certificate) (subjectAccess, error) {
	var sa subjectAccess
	for _, ext := range cert.Extensions {
		if !ext.Id.Equal(oidSubjectInfoAccess) {
			continue
		}
		var descs []accessDescription
		if _, err := asn1.Unmarshal(ext.Value, &descs); err != nil {
			return sa, err
		}
		for _, d := range descs {
			// GeneralName uniformResourceIdentifier is [6] IA5String,
			// tag class ContextSpecific tag 6, primitive.
			if d.Location.Class != asn1.ClassContextSpecific || d.Location.Tag != 6 {
				continue
			}
			uri := string(d.Location.Bytes)
			switch {
			case d.Method.Equal(oidADCARepository):
				sa.CARepository = uri
			case d.Method.Equal(oidADRPKIManifest):
				sa.RPKIManifest = uri
			case d.Method.Equal(oidADSignedObject):
				sa.SignedObject = uri
			case d.Method.Equal(oidADRPKINotify):
				sa.RPKINotify = uri
			}
		}
	}
	return sa, nil
}
