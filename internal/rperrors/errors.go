// Copyright 2020 Anapaya Systems
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

// Package rperrors provides enhanced errors carrying structured log context,
// and classifies every error the validator can produce into one of the
// kinds enumerated by the error handling design: parse failure, crypto
// failure, resource-set violation, transport failure, protocol fallback, or
// fatal.
package rperrors

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap/zapcore"
)

// Kind classifies an error for statistics purposes.
type Kind int

const (
	// KindNone is the zero value; the error is not a classified validator error.
	KindNone Kind = iota
	// KindParse is a syntactic or RFC-structural failure.
	KindParse
	// KindCrypto is a signature, hash, or issuer-resolution failure.
	KindCrypto
	// KindResource is a resource-set containment failure.
	KindResource
	// KindTransport is a transport (rsync/HTTP/RRDP) failure.
	KindTransport
	// KindFallback marks a non-fatal protocol fallback (e.g. RRDP to rsync).
	KindFallback
	// KindFatal is a configuration or protocol-invariant violation that halts the run.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindParse:
		return "parse"
	case KindCrypto:
		return "crypto"
	case KindResource:
		return "resource"
	case KindTransport:
		return "transport"
	case KindFallback:
		return "fallback"
	case KindFatal:
		return "fatal"
	default:
		return "none"
	}
}

type ctxPair struct {
	Key   string
	Value interface{}
}

type basicError struct {
	msg   string
	kind  Kind
	cause error
	ctx   []ctxPair
}

func (e *basicError) Error() string {
	var buf bytes.Buffer
	buf.WriteString(e.msg)
	if len(e.ctx) != 0 {
		buf.WriteString(" ")
		encodeContext(&buf, e.ctx)
	}
	if e.cause != nil {
		fmt.Fprintf(&buf, ": %s", e.cause)
	}
	return buf.String()
}

func (e *basicError) Unwrap() error {
	return e.cause
}

// Is reports whether target is this error, ignoring context, so that
// sentinel errors created with New can be matched with errors.Is even after
// being wrapped.
func (e *basicError) Is(target error) bool {
	other, ok := target.(*basicError)
	if !ok {
		return false
	}
	return other == e
}

// MarshalLogObject implements zapcore.ObjectMarshaler for structured logging.
func (e *basicError) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("msg", e.msg)
	if e.kind != KindNone {
		enc.AddString("kind", e.kind.String())
	}
	if e.cause != nil {
		if m, ok := e.cause.(zapcore.ObjectMarshaler); ok {
			if err := enc.AddObject("cause", m); err != nil {
				return err
			}
		} else {
			enc.AddString("cause", e.cause.Error())
		}
	}
	for _, p := range e.ctx {
		enc.AddString(p.Key, fmt.Sprint(p.Value))
	}
	return nil
}

func mkCtx(errCtx []interface{}) []ctxPair {
	n := len(errCtx) / 2
	ctx := make([]ctxPair, n)
	for i := 0; i < n; i++ {
		ctx[i] = ctxPair{Key: fmt.Sprint(errCtx[2*i]), Value: errCtx[2*i+1]}
	}
	sort.Slice(ctx, func(a, b int) bool { return ctx[a].Key < ctx[b].Key })
	return ctx
}

// New creates a new classified error with the given message and context.
func New(kind Kind, msg string, errCtx ...interface{}) error {
	return &basicError{msg: msg, kind: kind, ctx: mkCtx(errCtx)}
}

// Wrap associates msg and errCtx with cause, preserving the classification
// of cause if it is itself a classified error and no kind is given.
func Wrap(kind Kind, msg string, cause error, errCtx ...interface{}) error {
	if kind == KindNone {
		kind = KindOf(cause)
	}
	return &basicError{msg: msg, kind: kind, cause: cause, ctx: mkCtx(errCtx)}
}

// KindOf returns the Kind an error was classified with, or KindNone if it
// was not produced by this package.
func KindOf(err error) Kind {
	var be *basicError
	if errors.As(err, &be) {
		return be.kind
	}
	return KindNone
}

// Parse wraps err (which may be nil, producing a bare classified error) as a
// KindParse error. Convenience constructor used pervasively by the object
// parsers.
func Parse(msg string, cause error, errCtx ...interface{}) error {
	return Wrap(KindParse, msg, cause, errCtx...)
}

// Crypto wraps err as a KindCrypto error.
func Crypto(msg string, cause error, errCtx ...interface{}) error {
	return Wrap(KindCrypto, msg, cause, errCtx...)
}

// Resource wraps err as a KindResource error.
func Resource(msg string, cause error, errCtx ...interface{}) error {
	return Wrap(KindResource, msg, cause, errCtx...)
}

// Transport wraps err as a KindTransport error.
func Transport(msg string, cause error, errCtx ...interface{}) error {
	return Wrap(KindTransport, msg, cause, errCtx...)
}

// Fallback wraps err as a KindFallback error.
func Fallback(msg string, cause error, errCtx ...interface{}) error {
	return Wrap(KindFallback, msg, cause, errCtx...)
}

// Fatal wraps err as a KindFatal error.
func Fatal(msg string, cause error, errCtx ...interface{}) error {
	return Wrap(KindFatal, msg, cause, errCtx...)
}

// List is a slice of errors that itself implements error.
type List []error

func (e List) Error() string {
	s := make([]string, 0, len(e))
	for _, err := range e {
		s = append(s, err.Error())
	}
	return fmt.Sprintf("[ %s ]", strings.Join(s, "; "))
}

// ToError returns e as an error, or nil if e is empty.
func (e List) ToError() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

func encodeContext(buf *bytes.Buffer, pairs []ctxPair) {
	buf.WriteString("{")
	for i, p := range pairs {
		fmt.Fprintf(buf, "%s=%v", p.Key, p.Value)
		if i != len(pairs)-1 {
			buf.WriteString("; ")
		}
	}
	buf.WriteString("}")
}
