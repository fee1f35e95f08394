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
	"math/big"
	"strings"
	"time"

	"github.com/netsec-ethz/rpki-client/internal/rperrors"
	"github.com/netsec-ethz/rpki-client/internal/rpkiobj"
)

var oidRPKIManifest = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 1, 26}

type asn1FileAndHash struct {
	File string
	Hash asn1.BitString
}

type asn1Manifest struct {
	Version        int `asn1:"optional,default:0,explicit,tag:0"`
	ManifestNumber *big.Int
	ThisUpdate     time.Time `asn1:"generalized"`
	NextUpdate     time.Time `asn1:"generalized"`
	FileHashAlg    asn1.ObjectIdentifier
	FileList       []asn1FileAndHash
}

// ParseManifest structurally decodes a manifest's CMS wrapper and RFC 6486
// payload, and verifies the CMS signature. It does not verify the manifest
// number or ThisUpdate/NextUpdate against a prior fetch, nor cross-check
// listed files against the directory; that is Validate's job.
func ParseManifest(raw []byte) (*rpkiobj.MFT, error) {
	obj, err := unwrapSignedData(raw)
	if err != nil {
		return nil, err
	}
	if !obj.EContentType.Equal(oidRPKIManifest) {
		return nil, rperrors.New(rperrors.KindParse, "manifest eContentType mismatch",
			"oid", obj.EContentType.String())
	}
	if err := verifySignedData(raw, obj); err != nil {
		return nil, err
	}
	var m asn1Manifest
	if _, err := asn1.Unmarshal(obj.EContent, &m); err != nil {
		return nil, rperrors.Parse("decoding Manifest payload", err)
	}
	if m.Version != 0 {
		return nil, rperrors.New(rperrors.KindParse, "manifest eContent version is not 0",
			"version", m.Version)
	}
	if !m.FileHashAlg.Equal(oidSHA256) {
		return nil, rperrors.New(rperrors.KindParse, "unsupported manifest file hash algorithm",
			"oid", m.FileHashAlg.String())
	}
	entries := make([]rpkiobj.ManifestEntry, 0, len(m.FileList))
	for _, fh := range m.FileList {
		if strings.ContainsAny(fh.File, "/\\") {
			return nil, rperrors.New(rperrors.KindParse, "manifest fileName is not a bare basename",
				"file", fh.File)
		}
		if fh.Hash.BitLength != 256 {
			return nil, rperrors.New(rperrors.KindParse, "manifest file hash is not 32 bytes",
				"file", fh.File)
		}
		var e rpkiobj.ManifestEntry
		e.File = fh.File
		copy(e.Hash[:], fh.Hash.Bytes)
		entries = append(entries, e)
	}
	var aia string
	if len(obj.EECert.IssuingCertificateURL) > 0 {
		aia = obj.EECert.IssuingCertificateURL[0]
	}
	return &rpkiobj.MFT{
		AKI:            obj.EECert.AuthorityKeyId,
		SKI:            obj.EECert.SubjectKeyId,
		AIA:            aia,
		ManifestNumber: uint64(m.ManifestNumber.Uint64()),
		ThisUpdate:     m.ThisUpdate.Unix(),
		NextUpdate:     m.NextUpdate.Unix(),
		Stale:          time.Now().After(m.NextUpdate),
		Entries:        entries,
	}, nil
}
