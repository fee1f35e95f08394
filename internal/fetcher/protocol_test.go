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

package fetcher

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/netsec-ethz/rpki-client/internal/ipc"
	"github.com/netsec-ethz/rpki-client/internal/repotable"
)

func TestRequestRoundTrip(t *testing.T) {
	req := &Request{
		Kind:           repotable.KindRRDP,
		URI:            "https://repo.example/notification.xml",
		LocalDir:       "/var/cache/rpki-client",
		PriorSessionID: "abc-123",
		PriorSerial:    42,
	}
	var buf bytes.Buffer
	require.NoError(t, ipc.Send(&buf, req))

	var got Request
	require.NoError(t, ipc.Recv(&buf, &got))
	require.Equal(t, *req, got)
}

func TestResponseRoundTrip(t *testing.T) {
	resp := &Response{
		OK:        true,
		Fallback:  false,
		Files:     []string{"repo.example/a.roa", "repo.example/b.cer"},
		SessionID: "sess-1",
		Serial:    7,
	}
	var buf bytes.Buffer
	require.NoError(t, ipc.Send(&buf, resp))

	var got Response
	require.NoError(t, ipc.Recv(&buf, &got))
	require.Equal(t, *resp, got)
}

func TestResponseRoundTripFailure(t *testing.T) {
	resp := &Response{OK: false, ErrMsg: "connection refused", Fallback: true}
	var buf bytes.Buffer
	require.NoError(t, ipc.Send(&buf, resp))

	var got Response
	require.NoError(t, ipc.Recv(&buf, &got))
	require.False(t, got.OK)
	require.True(t, got.Fallback)
	require.Equal(t, "connection refused", got.ErrMsg)
	require.Empty(t, got.Files)
}
