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
	"net/netip"

	"github.com/netsec-ethz/rpki-client/internal/rperrors"
	"github.com/netsec-ethz/rpki-client/internal/resources"
	"github.com/netsec-ethz/rpki-client/internal/rpkiobj"
)

var oidRouteOriginAuthz = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 1, 24}

type asn1ROAIPAddress struct {
	Address   asn1.BitString
	MaxLength int `asn1:"optional,default:-1"`
}

type asn1ROAIPAddressFamily struct {
	AddressFamily []byte
	Addresses     []asn1ROAIPAddress
}

type asn1RouteOriginAttestation struct {
	Version    int `asn1:"optional,default:0,explicit,tag:0"`
	ASID       int64
	IPAddrBlocks []asn1ROAIPAddressFamily
}

// ParseROA structurally decodes a ROA's CMS wrapper and RFC 6482 payload,
// and verifies the CMS signature. Chain-of-custody resource containment
// against the signing EE certificate is Validate's job.
func ParseROA(raw []byte) (*rpkiobj.ROA, error) {
	obj, err := unwrapSignedData(raw)
	if err != nil {
		return nil, err
	}
	if !obj.EContentType.Equal(oidRouteOriginAuthz) {
		return nil, rperrors.New(rperrors.KindParse, "ROA eContentType mismatch",
			"oid", obj.EContentType.String())
	}
	if err := verifySignedData(raw, obj); err != nil {
		return nil, err
	}
	var a asn1RouteOriginAttestation
	if _, err := asn1.Unmarshal(obj.EContent, &a); err != nil {
		return nil, rperrors.Parse("decoding RouteOriginAttestation payload", err)
	}
	if a.Version != 0 {
		return nil, rperrors.New(rperrors.KindParse, "ROA eContent version is not 0",
			"version", a.Version)
	}
	if a.ASID < 0 || a.ASID > 0xffffffff {
		return nil, rperrors.New(rperrors.KindParse, "ROA asID out of range", "asID", a.ASID)
	}
	var addrs []rpkiobj.ROAIPAddr
	for _, fam := range a.IPAddrBlocks {
		if len(fam.AddressFamily) < 2 {
			continue
		}
		var afi resources.AFI
		switch (uint16(fam.AddressFamily[0]) << 8) | uint16(fam.AddressFamily[1]) {
		case 1:
			afi = resources.AFIv4
		case 2:
			afi = resources.AFIv6
		default:
			return nil, rperrors.New(rperrors.KindParse, "ROA lists an unsupported address family")
		}
		for _, ipa := range fam.Addresses {
			width := afi.MaxPrefixLen()
			if ipa.Address.BitLength > width {
				return nil, rperrors.New(rperrors.KindParse, "ROA prefix length exceeds address family width")
			}
			addr := ipAddressToAddr(ipa.Address, afi, false)
			maxLen := ipa.MaxLength
			if maxLen < 0 {
				maxLen = ipa.Address.BitLength
			}
			if maxLen < ipa.Address.BitLength || maxLen > width {
				return nil, rperrors.New(rperrors.KindParse, "ROA maxLength out of range",
					"maxLength", maxLen)
			}
			addrs = append(addrs, rpkiobj.ROAIPAddr{
				AFI:       afi,
				Prefix:    netip.PrefixFrom(addr, ipa.Address.BitLength),
				MaxLength: maxLen,
			})
		}
	}
	var aia string
	if len(obj.EECert.IssuingCertificateURL) > 0 {
		aia = obj.EECert.IssuingCertificateURL[0]
	}
	return &rpkiobj.ROA{
		ASID:    uint32(a.ASID),
		IPAddrs: addrs,
		AIA:     aia,
		AKI:     obj.EECert.AuthorityKeyId,
		SKI:     obj.EECert.SubjectKeyId,
		Expires: obj.EECert.NotAfter.Unix(),
	}, nil
}
