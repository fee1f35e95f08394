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

// Package cryptoengine is the black-box boundary for ASN.1/CMS/X.509
// cryptographic primitives: certificate and CMS structural decoding plus
// signature verification live here, behind an interface the validation
// engine and fetch orchestrator consume without knowing the concrete
// crypto library underneath (crypto/x509 and encoding/asn1, using manual
// asn1.RawValue CHOICE decoding for the RFC 3779 extensions).
package cryptoengine

import (
	"crypto/x509"
	"encoding/asn1"
	"net/netip"

	"github.com/netsec-ethz/rpki-client/internal/rperrors"
	"github.com/netsec-ethz/rpki-client/internal/resources"
)

// OIDs from RFC 3779.
var (
	oidAutonomousSysIds = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 1, 8}
	oidIPAddrBlocks     = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 1, 7}
)

// asIDOrRange decodes one ASIdOrRange CHOICE: either an ASId (INTEGER) or an
// ASRange (SEQUENCE of two INTEGERs). encoding/asn1 has no CHOICE support so
// the raw tag is inspected manually, mirroring trc_asn1.go's handling of
// nested asn1.RawValue fields.
func decodeASIdOrRange(raw asn1.RawValue) (resources.ASRange, error) {
	switch raw.Tag {
	case asn1.TagInteger:
		var id int64
		if _, err := asn1.Unmarshal(raw.FullBytes, &id); err != nil {
			return resources.ASRange{}, err
		}
		return resources.ASRange{Min: uint32(id), Max: uint32(id)}, nil
	case asn1.TagSequence:
		var rg struct {
			Min int64
			Max int64
		}
		if _, err := asn1.Unmarshal(raw.FullBytes, &rg); err != nil {
			return resources.ASRange{}, err
		}
		return resources.ASRange{Min: uint32(rg.Min), Max: uint32(rg.Max)}, nil
	default:
		return resources.ASRange{}, rperrors.New(rperrors.KindParse, "unexpected ASIdOrRange tag",
			"tag", raw.Tag)
	}
}

// ExtractASIdentifiers decodes the id-pe-autonomousSysIds extension value
// (the ASIdentifiers SEQUENCE's asnum [0] EXPLICIT ASIdentifierChoice).
func ExtractASIdentifiers(extVal []byte) (resources.ASSet, error) {
	var out resources.ASSet
	var seq struct {
		ASNum asn1.RawValue `asn1:"optional,explicit,tag:0"`
		RDI   asn1.RawValue `asn1:"optional,explicit,tag:1"`
	}
	if _, err := asn1.Unmarshal(extVal, &seq); err != nil {
		return out, rperrors.Parse("decoding ASIdentifiers", err)
	}
	if len(seq.ASNum.Bytes) == 0 && seq.ASNum.FullBytes == nil {
		// asnum absent: treated as an empty (no AS resources) set.
		return out, nil
	}
	var choice asn1.RawValue
	if _, err := asn1.Unmarshal(seq.ASNum.Bytes, &choice); err != nil {
		return out, rperrors.Parse("decoding ASIdentifierChoice", err)
	}
	switch choice.Tag {
	case asn1.TagNull:
		out.Inherit = true
	case asn1.TagSequence:
		var items []asn1.RawValue
		if _, err := asn1.Unmarshal(choice.FullBytes, &items); err != nil {
			return out, rperrors.Parse("decoding ASIdOrRange sequence", err)
		}
		for _, it := range items {
			rg, err := decodeASIdOrRange(it)
			if err != nil {
				return out, err
			}
			out.Ranges = append(out.Ranges, rg)
		}
	default:
		return out, rperrors.New(rperrors.KindParse, "unexpected ASIdentifierChoice tag",
			"tag", choice.Tag)
	}
	if err := out.ValidateSorted(); err != nil {
		return out, err
	}
	return out, nil
}

// ipAddressToAddr converts an RFC 3779 IPAddress BIT STRING (an address
// prefix with implicit trailing zero bits) into a full-width netip.Addr,
// zero-padding (min) or one-padding (max) the unspecified low-order bits,
// per RFC 3779 §2.2.3.
func ipAddressToAddr(bits asn1.BitString, afi resources.AFI, padOnes bool) netip.Addr {
	width := 4
	if afi == resources.AFIv6 {
		width = 16
	}
	buf := make([]byte, width)
	copy(buf, bits.Bytes)
	if padOnes {
		fillTailOnes(buf, len(bits.Bytes), bits.BitLength)
	}
	if afi == resources.AFIv4 {
		var a4 [4]byte
		copy(a4[:], buf)
		return netip.AddrFrom4(a4)
	}
	var a16 [16]byte
	copy(a16[:], buf)
	return netip.AddrFrom16(a16)
}

// fillTailOnes sets to 1 every bit after bitLen within buf, used to build
// the maximum address of a prefix from its BIT STRING encoding.
func fillTailOnes(buf []byte, usedBytes, bitLen int) {
	if usedBytes > 0 && usedBytes <= len(buf) {
		lastByteBits := bitLen - (usedBytes-1)*8
		if lastByteBits < 8 {
			mask := byte(0xFF >> lastByteBits)
			buf[usedBytes-1] |= mask
		}
	}
	for i := usedBytes; i < len(buf); i++ {
		buf[i] = 0xFF
	}
}

func decodeIPAddressOrRange(raw asn1.RawValue, afi resources.AFI) (resources.IPElement, error) {
	switch raw.Tag {
	case asn1.TagBitString:
		var bs asn1.BitString
		if _, err := asn1.Unmarshal(raw.FullBytes, &bs); err != nil {
			return resources.IPElement{}, err
		}
		width := 32
		if afi == resources.AFIv6 {
			width = 128
		}
		if bs.BitLength > width {
			return resources.IPElement{}, rperrors.New(rperrors.KindParse,
				"IP prefix length exceeds address family width", "bits", bs.BitLength)
		}
		addr := ipAddressToAddr(bs, afi, false)
		return resources.PrefixElement(netip.PrefixFrom(addr, bs.BitLength)), nil
	case asn1.TagSequence:
		var rg struct {
			Min asn1.BitString
			Max asn1.BitString
		}
		if _, err := asn1.Unmarshal(raw.FullBytes, &rg); err != nil {
			return resources.IPElement{}, err
		}
		min := ipAddressToAddr(rg.Min, afi, false)
		max := ipAddressToAddr(rg.Max, afi, true)
		return resources.RangeElement(min, max), nil
	default:
		return resources.IPElement{}, rperrors.New(rperrors.KindParse,
			"unexpected IPAddressOrRange tag", "tag", raw.Tag)
	}
}

// ExtractIPAddrBlocks decodes the id-pe-ipAddrBlocks extension value: a
// SEQUENCE of IPAddressFamily, one per address family present.
func ExtractIPAddrBlocks(extVal []byte) (resources.IPResourceSet, error) {
	var out resources.IPResourceSet
	var families []struct {
		AddressFamily []byte
		Choice        asn1.RawValue
	}
	if _, err := asn1.Unmarshal(extVal, &families); err != nil {
		return out, rperrors.Parse("decoding IPAddrBlocks", err)
	}
	for _, fam := range families {
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
			continue // unknown address family: silently skip, per RFC 3779 guidance
		}
		var fs resources.IPFamilySet
		switch fam.Choice.Tag {
		case asn1.TagNull:
			fs.Inherit = true
		case asn1.TagSequence:
			var items []asn1.RawValue
			if _, err := asn1.Unmarshal(fam.Choice.FullBytes, &items); err != nil {
				return out, rperrors.Parse("decoding IPAddressOrRange sequence", err)
			}
			for _, it := range items {
				e, err := decodeIPAddressOrRange(it, afi)
				if err != nil {
					return out, err
				}
				fs.Elements = append(fs.Elements, e)
			}
		default:
			return out, rperrors.New(rperrors.KindParse, "unexpected IPAddressChoice tag",
				"tag", fam.Choice.Tag)
		}
		if afi == resources.AFIv4 {
			out.V4 = fs
		} else {
			out.V6 = fs
		}
	}
	if err := out.ValidateSorted(); err != nil {
		return out, err
	}
	return out, nil
}

// certResources locates and decodes both RFC 3779 extensions on cert,
// returning zero-value sets for a family that is absent (no resources of
// that kind claimed, not the same as Inherit).
func certResources(cert *x509.Certificate) (resources.ASSet, resources.IPResourceSet, error) {
	var as resources.ASSet
	var ip resources.IPResourceSet
	for _, ext := range cert.Extensions {
		switch {
		case ext.Id.Equal(oidAutonomousSysIds):
			a, err := ExtractASIdentifiers(ext.Value)
			if err != nil {
				return as, ip, err
			}
			as = a
		case ext.Id.Equal(oidIPAddrBlocks):
			i, err := ExtractIPAddrBlocks(ext.Value)
			if err != nil {
				return as, ip, err
			}
			ip = i
		}
	}
	return as, ip, nil
}
