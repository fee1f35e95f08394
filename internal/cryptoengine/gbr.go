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
	"encoding/asn1"

	"github.com/netsec-ethz/rpki-client/internal/rperrors"
	"github.com/netsec-ethz/rpki-client/internal/rpkiobj"
)

var oidGhostbusters = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 1, 35}

// ParseGBR structurally decodes a Ghostbusters record's CMS wrapper and
// verifies the signature. The eContent is an opaque vCard (RFC 6350) blob;
// rpki-client never parses vCard fields, only relays them.
func ParseGBR(raw []byte) (*rpkiobj.GBR, error) {
	obj, err := unwrapSignedData(raw)
	if err != nil {
		return nil, err
	}
	if !obj.EContentType.Equal(oidGhostbusters) {
		return nil, rperrors.New(rperrors.KindParse, "GBR eContentType mismatch",
			"oid", obj.EContentType.String())
	}
	if err := verifySignedData(raw, obj); err != nil {
		return nil, err
	}
	var aia string
	if len(obj.EECert.IssuingCertificateURL) > 0 {
		aia = obj.EECert.IssuingCertificateURL[0]
	}
	return &rpkiobj.GBR{
		AIA:   aia,
		AKI:   obj.EECert.AuthorityKeyId,
		SKI:   obj.EECert.SubjectKeyId,
		VCard: obj.EContent,
	}, nil
}
