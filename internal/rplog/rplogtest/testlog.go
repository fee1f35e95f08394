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

// Package rplogtest provides an rplog.Logger backed by zaptest, so tests
// exercising code paths that log can route output through t.Log instead of
// the process-wide root logger.
package rplogtest

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"

	"github.com/netsec-ethz/rpki-client/internal/rplog"
)

// New builds an rplog.Logger that writes every message to t via t.Log.
func New(t testing.TB, opts ...zaptest.LoggerOption) rplog.Logger {
	return &logger{z: zaptest.NewLogger(t, opts...)}
}

type logger struct {
	z *zap.Logger
}

func (l *logger) New(ctx ...any) rplog.Logger {
	return &logger{z: l.z.With(convertCtx(ctx)...)}
}

func (l *logger) Debug(msg string, ctx ...any) { l.z.Debug(msg, convertCtx(ctx)...) }
func (l *logger) Info(msg string, ctx ...any)  { l.z.Info(msg, convertCtx(ctx)...) }
func (l *logger) Warn(msg string, ctx ...any)  { l.z.Warn(msg, convertCtx(ctx)...) }
func (l *logger) Error(msg string, ctx ...any) { l.z.Error(msg, convertCtx(ctx)...) }

func (l *logger) Enabled(lvl rplog.Level) bool {
	return l.z.Core().Enabled(zapcore.Level(lvl))
}

func convertCtx(ctx []any) []zap.Field {
	fields := make([]zap.Field, 0, len(ctx)/2)
	for i := 0; i+1 < len(ctx); i += 2 {
		key, ok := ctx[i].(string)
		if !ok {
			key = "?"
		}
		fields = append(fields, zap.Any(key, ctx[i+1]))
	}
	return fields
}
