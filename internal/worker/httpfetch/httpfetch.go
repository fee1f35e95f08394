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

// Package httpfetch implements plain HTTPS GETs (used for RRDP
// notification/snapshot/delta documents), with conditional-GET state
// cached across calls so an unchanged resource costs a 304 round trip
// instead of a full re-download.
package httpfetch

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/netsec-ethz/rpki-client/internal/rperrors"
)

type condState struct {
	ETag         string
	LastModified string
}

// Fetcher performs conditional HTTPS GETs, remembering ETag/Last-Modified
// per URI for cacheStateTTL so repeated fetches of an unchanged resource
// short-circuit on the server's 304.
type Fetcher struct {
	Client    *http.Client
	UserAgent string

	state *cache.Cache
}

const cacheStateTTL = 24 * time.Hour

// NewFetcher builds a Fetcher with the given timeout and User-Agent.
func NewFetcher(timeout time.Duration, userAgent string) *Fetcher {
	return &Fetcher{
		Client:    &http.Client{Timeout: timeout},
		UserAgent: userAgent,
		state:     cache.New(cacheStateTTL, cacheStateTTL/2),
	}
}

// Result is the outcome of a Fetch call.
type Result struct {
	Body      []byte
	NotModified bool
}

// Fetch performs a conditional GET against uri.
func (f *Fetcher) Fetch(ctx context.Context, uri string) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return Result{}, rperrors.Wrap(rperrors.KindTransport, "building HTTP request", err, "uri", uri)
	}
	req.Header.Set("User-Agent", f.UserAgent)
	if v, ok := f.state.Get(uri); ok {
		st := v.(condState)
		if st.ETag != "" {
			req.Header.Set("If-None-Match", st.ETag)
		}
		if st.LastModified != "" {
			req.Header.Set("If-Modified-Since", st.LastModified)
		}
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return Result{}, rperrors.Wrap(rperrors.KindTransport, "HTTP fetch failed", err, "uri", uri)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return Result{NotModified: true}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, rperrors.New(rperrors.KindTransport, "unexpected HTTP status",
			"uri", uri, "status", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, rperrors.Wrap(rperrors.KindTransport, "reading HTTP body", err, "uri", uri)
	}

	f.state.Set(uri, condState{
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
	}, cache.DefaultExpiration)

	return Result{Body: body}, nil
}
