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

package rplog_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/netsec-ethz/rpki-client/internal/rplog"
	"github.com/netsec-ethz/rpki-client/internal/rplog/rplogtest"
)

func TestCtxWithRoundTripsThroughFromCtx(t *testing.T) {
	l := rplogtest.New(t)
	ctx := rplog.CtxWith(context.Background(), l)
	require.Same(t, l, rplog.FromCtx(ctx))
}

func TestFromCtxFallsBackToRootWithoutAttachedLogger(t *testing.T) {
	require.Equal(t, rplog.Root(), rplog.FromCtx(context.Background()))
	require.Equal(t, rplog.Root(), rplog.FromCtx(nil))
}

func TestWithLabelsAttachesDerivedLogger(t *testing.T) {
	base := rplogtest.New(t)
	ctx, derived := rplog.WithLabels(rplog.CtxWith(context.Background(), base), "repo", "rsync://example")
	require.Same(t, derived, rplog.FromCtx(ctx))
}

func TestCryptoWarnDoesNotPanicWithoutAttachedLogger(t *testing.T) {
	require.NotPanics(t, func() {
		rplog.CryptoWarn(context.Background(), "manifest %s has expired EE cert", "x.mft")
	})
}
