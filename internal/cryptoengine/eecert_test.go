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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEECertExtractsEmbeddedCertificate(t *testing.T) {
	root := genRoot(t, nil)
	ee := genEE(t, root, nil)
	raw := buildSignedObject(t, ee, oidGhostbusters, []byte("BEGIN:VCARD\r\nEND:VCARD\r\n"))

	cert, err := EECert(raw)
	require.NoError(t, err)
	require.Equal(t, ee.x.SubjectKeyId, cert.SKI)
	require.Equal(t, ee.x.AuthorityKeyId, cert.AKI)
}

func TestEECertRejectsMalformedCMS(t *testing.T) {
	_, err := EECert([]byte("not cms"))
	require.Error(t, err)
}
