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

// Package ipc implements the length-delimited framed encoding that every
// inter-process payload in the validator uses, plus the process-spawning
// machinery that turns each worker role into a real child process
// connected to the orchestrator over an AF_UNIX socketpair.
package ipc

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"

	"github.com/netsec-ethz/rpki-client/internal/rperrors"
)

// maxFrameLen bounds a single buf/str payload; a larger declared length is
// treated as a fatal framing error rather than an allocation of arbitrary
// size.
const maxFrameLen = 64 << 20 // 64MiB

// Buffer is an append-only byte buffer used by every *_buffer encoder.
type Buffer struct {
	b []byte
}

func (w *Buffer) Bytes() []byte { return w.b }

// PutUint8 appends a single byte (the `simple` primitive at width 1).
func (w *Buffer) PutUint8(v uint8) { w.b = append(w.b, v) }

// PutUint32 appends a uint32 in host byte order. Every worker is a
// same-endianness child of the same binary, so native order is
// deliberate, not an oversight.
func (w *Buffer) PutUint32(v uint32) {
	var tmp [4]byte
	binary.NativeEndian.PutUint32(tmp[:], v)
	w.b = append(w.b, tmp[:]...)
}

// PutUint64 appends a uint64 in host byte order.
func (w *Buffer) PutUint64(v uint64) {
	var tmp [8]byte
	binary.NativeEndian.PutUint64(tmp[:], v)
	w.b = append(w.b, tmp[:]...)
}

// PutBool appends a bool as one byte.
func (w *Buffer) PutBool(v bool) {
	if v {
		w.PutUint8(1)
	} else {
		w.PutUint8(0)
	}
}

// PutBuf appends the `buf` primitive: uint32 length || bytes.
func (w *Buffer) PutBuf(b []byte) {
	w.PutUint32(uint32(len(b)))
	w.b = append(w.b, b...)
}

// PutStr appends the `str` primitive: uint32 length || utf8 bytes, no NUL
// terminator on the wire.
func (w *Buffer) PutStr(s string) {
	w.PutBuf([]byte(s))
}

// Reader decodes the primitives written by Buffer from a blocking byte
// stream, preserving request/response order.
type Reader struct {
	r *bufio.Reader
}

// NewReader wraps r for framed decoding.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

func (r *Reader) readN(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// GetUint8 reads one byte.
func (r *Reader) GetUint8() (uint8, error) {
	b, err := r.r.ReadByte()
	if err != nil {
		return 0, err
	}
	return b, nil
}

// GetUint32 reads a host-byte-order uint32.
func (r *Reader) GetUint32() (uint32, error) {
	b, err := r.readN(4)
	if err != nil {
		return 0, err
	}
	return binary.NativeEndian.Uint32(b), nil
}

// GetUint64 reads a host-byte-order uint64.
func (r *Reader) GetUint64() (uint64, error) {
	b, err := r.readN(8)
	if err != nil {
		return 0, err
	}
	return binary.NativeEndian.Uint64(b), nil
}

// GetBool reads a one-byte bool.
func (r *Reader) GetBool() (bool, error) {
	b, err := r.GetUint8()
	if err != nil {
		return false, err
	}
	return b != 0, nil
}

// GetBuf reads the `buf` primitive. An empty buf reads back as nil.
func (r *Reader) GetBuf() ([]byte, error) {
	n, err := r.GetUint32()
	if err != nil {
		return nil, err
	}
	if n > maxFrameLen {
		return nil, rperrors.New(rperrors.KindFatal, "framed length exceeds limit",
			"len", n, "limit", maxFrameLen)
	}
	if n == 0 {
		return nil, nil
	}
	return r.readN(int(n))
}

// GetStr reads the `str` primitive.
func (r *Reader) GetStr() (string, error) {
	b, err := r.GetBuf()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// WriteFrame writes payload as one length-delimited frame: uint32 length ||
// payload. This is the outermost message framing every request/response
// crosses the wire as.
func WriteFrame(w io.Writer, payload []byte) error {
	var hdr [4]byte
	if len(payload) > maxFrameLen {
		return rperrors.New(rperrors.KindFatal, "outgoing frame exceeds limit", "len", len(payload))
	}
	binary.NativeEndian.PutUint32(hdr[:], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// ReadFrame reads one length-delimited frame written by WriteFrame.
func ReadFrame(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.NativeEndian.Uint32(hdr[:])
	if n > maxFrameLen {
		return nil, rperrors.New(rperrors.KindFatal, "incoming frame exceeds limit",
			"len", n, "limit", maxFrameLen)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Marshaler is implemented by every wire type's *_buffer step.
type Marshaler interface {
	MarshalIPC(w *Buffer)
}

// Unmarshaler is implemented by every wire type's *_read step.
type Unmarshaler interface {
	UnmarshalIPC(r *Reader) error
}

// Send frames and writes m's IPC encoding to w.
func Send(w io.Writer, m Marshaler) error {
	var buf Buffer
	m.MarshalIPC(&buf)
	return WriteFrame(w, buf.Bytes())
}

// Recv reads one frame from r and decodes it into m.
func Recv(r io.Reader, m Unmarshaler) error {
	raw, err := ReadFrame(r)
	if err != nil {
		return err
	}
	return m.UnmarshalIPC(NewReader(bytes.NewReader(raw)))
}
