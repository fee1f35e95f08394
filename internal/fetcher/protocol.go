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

// Package fetcher is the orchestrator's half of the fetch pipeline:
// it owns the repository table, spawns pools of rsync and RRDP worker
// processes (sized by PoolConfig), and dispatches fetch requests to
// them over internal/ipc framed connections, honoring the RRDP-preferred,
// rsync-fallback ordering and the StateFallback/StateFail/StateReady
// transitions of internal/repotable.
package fetcher

import (
	"github.com/netsec-ethz/rpki-client/internal/ipc"
	"github.com/netsec-ethz/rpki-client/internal/repotable"
)

// Request asks a worker process to synchronize one publication point.
type Request struct {
	Kind     repotable.Kind
	URI      string
	LocalDir string

	// PriorSessionID/PriorSerial carry RRDP session continuity state; zero
	// values force a full snapshot fetch.
	PriorSessionID string
	PriorSerial    uint64
}

// MarshalIPC implements ipc.Marshaler.
func (r *Request) MarshalIPC(w *ipc.Buffer) {
	w.PutUint8(uint8(r.Kind))
	w.PutStr(r.URI)
	w.PutStr(r.LocalDir)
	w.PutStr(r.PriorSessionID)
	w.PutUint64(r.PriorSerial)
}

// UnmarshalIPC implements ipc.Unmarshaler.
func (r *Request) UnmarshalIPC(rd *ipc.Reader) error {
	k, err := rd.GetUint8()
	if err != nil {
		return err
	}
	r.Kind = repotable.Kind(k)
	if r.URI, err = rd.GetStr(); err != nil {
		return err
	}
	if r.LocalDir, err = rd.GetStr(); err != nil {
		return err
	}
	if r.PriorSessionID, err = rd.GetStr(); err != nil {
		return err
	}
	r.PriorSerial, err = rd.GetUint64()
	return err
}

// Response reports the outcome of one Request.
type Response struct {
	OK       bool
	ErrMsg   string
	Fallback bool // RRDP failed in a way that should be retried over rsync

	Files []string // paths written under LocalDir this cycle

	// SessionID/Serial are only meaningful for a successful RRDP request.
	SessionID string
	Serial    uint64
}

// MarshalIPC implements ipc.Marshaler.
func (r *Response) MarshalIPC(w *ipc.Buffer) {
	w.PutBool(r.OK)
	w.PutStr(r.ErrMsg)
	w.PutBool(r.Fallback)
	w.PutUint32(uint32(len(r.Files)))
	for _, f := range r.Files {
		w.PutStr(f)
	}
	w.PutStr(r.SessionID)
	w.PutUint64(r.Serial)
}

// UnmarshalIPC implements ipc.Unmarshaler.
func (r *Response) UnmarshalIPC(rd *ipc.Reader) error {
	var err error
	if r.OK, err = rd.GetBool(); err != nil {
		return err
	}
	if r.ErrMsg, err = rd.GetStr(); err != nil {
		return err
	}
	if r.Fallback, err = rd.GetBool(); err != nil {
		return err
	}
	n, err := rd.GetUint32()
	if err != nil {
		return err
	}
	r.Files = make([]string, n)
	for i := range r.Files {
		if r.Files[i], err = rd.GetStr(); err != nil {
			return err
		}
	}
	if r.SessionID, err = rd.GetStr(); err != nil {
		return err
	}
	r.Serial, err = rd.GetUint64()
	return err
}
