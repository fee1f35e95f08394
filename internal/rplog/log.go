// Copyright 2018 ETH Zurich
// Copyright 2019 ETH Zurich, Anapaya Systems
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

// Package rplog wraps zap into the structured Logger interface used
// throughout the validator, and implements the cryptowarnx/cryptoerrx
// diagnostic helpers that funnel every crypto-engine complaint through one
// place.
package rplog

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/netsec-ethz/rpki-client/internal/rperrors"
)

// Level mirrors zapcore.Level so callers don't need to import zap directly.
type Level int8

const (
	DebugLevel Level = Level(zapcore.DebugLevel)
	InfoLevel  Level = Level(zapcore.InfoLevel)
	WarnLevel  Level = Level(zapcore.WarnLevel)
	ErrorLevel Level = Level(zapcore.ErrorLevel)
)

// Logger is the structured logger interface threaded through the validator.
type Logger interface {
	New(ctx ...interface{}) Logger
	Debug(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
	Enabled(lvl Level) bool
}

type logger struct {
	z *zap.Logger
}

func (l *logger) New(ctx ...interface{}) Logger {
	return &logger{z: l.z.With(convertCtx(ctx)...)}
}

func (l *logger) Debug(msg string, ctx ...interface{}) { l.z.Debug(msg, convertCtx(ctx)...) }
func (l *logger) Info(msg string, ctx ...interface{})  { l.z.Info(msg, convertCtx(ctx)...) }
func (l *logger) Warn(msg string, ctx ...interface{})  { l.z.Warn(msg, convertCtx(ctx)...) }
func (l *logger) Error(msg string, ctx ...interface{}) { l.z.Error(msg, convertCtx(ctx)...) }
func (l *logger) Enabled(lvl Level) bool {
	return l.z.Core().Enabled(zapcore.Level(lvl))
}

func convertCtx(ctx []interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(ctx)/2)
	for i := 0; i+1 < len(ctx); i += 2 {
		key, ok := ctx[i].(string)
		if !ok {
			key = fmt.Sprint(ctx[i])
		}
		fields = append(fields, zap.Any(key, ctx[i+1]))
	}
	return fields
}

var (
	rootMu sync.RWMutex
	root   Logger = &logger{z: zap.NewNop()}
)

// Setup installs the process-wide root logger at the given level, writing
// human-readable console output to stderr. The validate command passes the
// level named by the configuration's log_level.
func Setup(lvl Level) {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	enc := zapcore.NewConsoleEncoder(cfg)
	core := zapcore.NewCore(enc, zapcore.Lock(os.Stderr), zapcore.Level(lvl))
	z := zap.New(core, zap.AddCaller())

	rootMu.Lock()
	root = &logger{z: z}
	rootMu.Unlock()
}

// Root returns the process-wide root logger. Never returns nil.
func Root() Logger {
	rootMu.RLock()
	defer rootMu.RUnlock()
	return root
}

type loggerContextKey struct{}

// CtxWith returns a context that carries logger, recoverable with FromCtx.
func CtxWith(ctx context.Context, l Logger) context.Context {
	if ctx == nil {
		panic("nil context")
	}
	return context.WithValue(ctx, loggerContextKey{}, l)
}

// FromCtx returns the logger embedded in ctx, or Root() if none is attached.
// Never returns nil.
func FromCtx(ctx context.Context) Logger {
	if ctx == nil {
		return Root()
	}
	if l, ok := ctx.Value(loggerContextKey{}).(Logger); ok {
		return l
	}
	return Root()
}

// WithLabels returns a derived context carrying a logger with the given
// structured labels attached, plus the logger itself for convenience.
func WithLabels(ctx context.Context, labels ...interface{}) (context.Context, Logger) {
	l := FromCtx(ctx).New(labels...)
	return CtxWith(ctx, l), l
}

var useColor = isatty.IsTerminal(os.Stderr.Fd())

// CryptoWarn formats a non-fatal crypto-engine diagnostic through the
// root logger. It never terminates the process.
func CryptoWarn(ctx context.Context, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if useColor {
		msg = color.YellowString(msg)
	}
	FromCtx(ctx).Warn(msg)
}

// CryptoFatal formats a fatal crypto-engine diagnostic and returns an
// error classified as fatal; callers propagate it to main, which exits
// non-zero after logging it.
func CryptoFatal(ctx context.Context, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	if useColor {
		msg = color.RedString(msg)
	}
	FromCtx(ctx).Error(msg)
	return rperrors.New(rperrors.KindFatal, msg)
}
