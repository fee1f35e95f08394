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

// Package validator implements the chain-of-custody checks above the
// crypto engine: certificate signature and resource-containment validation
// against the authority tree, ROA prefix containment against its signing
// EE certificate, manifest file-hash verification, and CRL revocation
// checks. It sits above internal/cryptoengine (signature math) and
// internal/authtree (chain topology and resource grounding).
package validator

import (
	"crypto/sha256"
	"crypto/x509"
	"time"

	"github.com/netsec-ethz/rpki-client/internal/authtree"
	"github.com/netsec-ethz/rpki-client/internal/cryptoengine"
	"github.com/netsec-ethz/rpki-client/internal/resources"
	"github.com/netsec-ethz/rpki-client/internal/rperrors"
	"github.com/netsec-ethz/rpki-client/internal/rpkiobj"
)

// ValidateChainLink checks that child's signature verifies against parent,
// that child's validity interval is still current, and that every
// resource child claims is covered by parent's grounded resource set. On
// success it sets child.Valid.
func ValidateChainLink(child *rpkiobj.Cert, parent *authtree.Node, now time.Time) error {
	if authtree.IsPoisoned(parent) {
		return rperrors.New(rperrors.KindResource, "issuer is under a poisoned SKI collision")
	}
	if err := cryptoengine.VerifyCert(child.X509, parent.Cert.X509); err != nil {
		return err
	}
	if now.Before(time.Unix(child.NotBefore, 0)) || now.After(time.Unix(child.NotAfter, 0)) {
		return rperrors.New(rperrors.KindResource, "certificate is outside its validity interval")
	}
	if err := checkASContainment(child.AS, authtree.GroundedAS(parent)); err != nil {
		return err
	}
	if err := checkIPContainment(child.IP, authtree.GroundedIP(parent)); err != nil {
		return err
	}
	child.Valid = true
	return nil
}

func checkASContainment(child resources.ASSet, parent resources.ASSet) error {
	if child.Inherit {
		return nil
	}
	for _, rg := range child.Ranges {
		if resources.ASCheckCovered(rg, parent) != 1 {
			return rperrors.New(rperrors.KindResource, "AS resource not covered by issuer",
				"min", rg.Min, "max", rg.Max)
		}
	}
	return nil
}

func checkIPContainment(child, parent resources.IPResourceSet) error {
	if err := checkIPFamilyContainment(resources.AFIv4, child.V4, parent.V4); err != nil {
		return err
	}
	return checkIPFamilyContainment(resources.AFIv6, child.V6, parent.V6)
}

func checkIPFamilyContainment(afi resources.AFI, child, parent resources.IPFamilySet) error {
	if child.Inherit {
		return nil
	}
	for _, e := range child.Elements {
		rg := resources.ComposeRange(e)
		if resources.IPAddrCheckCovered(afi, rg.From(), rg.To(), resources.IPResourceSet{V4: parent, V6: parent}) != 1 {
			return rperrors.New(rperrors.KindResource, "IP resource not covered by issuer", "afi", afi.String())
		}
	}
	return nil
}

// ValidateROA checks that roa's ASID and every announced prefix are
// covered by the grounded resource set of the EE node that signed it, and
// that each prefix's maxLength is within the address family's bit width.
func ValidateROA(roa *rpkiobj.ROA, ee *authtree.Node) error {
	if authtree.IsPoisoned(ee) {
		return rperrors.New(rperrors.KindResource, "ROA signer is under a poisoned SKI collision")
	}
	as := authtree.GroundedAS(ee)
	if roa.ASID != 0 && resources.ASCheckCovered(resources.ASRange{Min: roa.ASID, Max: roa.ASID}, as) != 1 {
		return rperrors.New(rperrors.KindResource, "ROA ASID not covered by EE certificate", "asID", roa.ASID)
	}
	ip := authtree.GroundedIP(ee)
	for _, addr := range roa.IPAddrs {
		width := addr.AFI.MaxPrefixLen()
		if addr.MaxLength < addr.Prefix.Bits() || addr.MaxLength > width {
			return rperrors.New(rperrors.KindResource, "ROA maxLength out of range")
		}
		family := ip.V4
		if addr.AFI == resources.AFIv6 {
			family = ip.V6
		}
		elem := resources.PrefixElement(addr.Prefix)
		rg := resources.ComposeRange(elem)
		if resources.IPAddrCheckCovered(addr.AFI, rg.From(), rg.To(),
			resources.IPResourceSet{V4: family, V6: family}) != 1 {
			return rperrors.New(rperrors.KindResource, "ROA prefix not covered by EE certificate",
				"prefix", addr.Prefix.String())
		}
	}
	roa.Valid = true
	return nil
}

// ValidateFileHash checks data's SHA-256 digest against a manifest entry's
// recorded hash.
func ValidateFileHash(data []byte, want [32]byte) error {
	got := sha256.Sum256(data)
	if got != want {
		return rperrors.New(rperrors.KindResource, "file hash does not match manifest entry")
	}
	return nil
}

// IsRevoked reports whether cert's serial number appears in crl's revoked
// list.
func IsRevoked(crl *rpkiobj.CRL, cert *x509.Certificate) bool {
	for _, entry := range crl.X509.RevokedCertificateEntries {
		if entry.SerialNumber.Cmp(cert.SerialNumber) == 0 {
			return true
		}
	}
	return false
}
