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

package rpkiobj

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/netsec-ethz/rpki-client/internal/ipc"
)

func TestGBRRoundTrip(t *testing.T) {
	orig := &GBR{
		AIA:   "rsync://repo.example/ca/ee.cer",
		AKI:   []byte{0x01, 0x02},
		SKI:   []byte{0x03, 0x04},
		VCard: []byte("BEGIN:VCARD\nVERSION:4.0\nEND:VCARD\n"),
	}

	var buf ipc.Buffer
	orig.MarshalIPC(&buf)

	var got GBR
	require.NoError(t, got.UnmarshalIPC(ipc.NewReader(bytes.NewReader(buf.Bytes()))))
	require.Equal(t, orig, &got)
}
