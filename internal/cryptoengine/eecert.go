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

import "github.com/netsec-ethz/rpki-client/internal/rpkiobj"

// EECert extracts the end-entity certificate embedded in a CMS-signed
// object (a manifest, ROA or Ghostbuster record) as an rpkiobj.Cert, for
// chain-of-custody validation against the authority tree. raw's CMS
// signature is not re-verified here; ParseManifest/ParseROA/ParseGBR
// already did that as part of decoding the same bytes.
func EECert(raw []byte) (*rpkiobj.Cert, error) {
	obj, err := unwrapSignedData(raw)
	if err != nil {
		return nil, err
	}
	return buildCert(obj.EECert)
}
