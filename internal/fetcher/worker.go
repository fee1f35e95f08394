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
	"context"
	"net"
	"time"

	"github.com/netsec-ethz/rpki-client/internal/ipc"
	"github.com/netsec-ethz/rpki-client/internal/rrdpstate"
	"github.com/netsec-ethz/rpki-client/internal/worker/httpfetch"
	"github.com/netsec-ethz/rpki-client/internal/worker/rrdp"
	"github.com/netsec-ethz/rpki-client/internal/worker/rsync"
)

// httpAdapter satisfies rrdp.HTTPGetter over an httpfetch.Fetcher, whose
// richer Result type the RRDP package doesn't need to know about.
type httpAdapter struct{ f *httpfetch.Fetcher }

func (a httpAdapter) Fetch(ctx context.Context, uri string) ([]byte, bool, error) {
	res, err := a.f.Fetch(ctx, uri)
	if err != nil {
		return nil, false, err
	}
	return res.Body, res.NotModified, nil
}

// RunRsyncWorker is the rsync worker process's main loop: it reads one
// Request per frame from conn, mirrors the module with the system rsync
// binary, and writes back a Response. It returns only when conn is closed
// by the orchestrator or a framing error occurs.
func RunRsyncWorker(ctx context.Context, conn net.Conn, timeout time.Duration) error {
	f := &rsync.Fetcher{CacheDir: "", Timeout: timeout}
	return serve(conn, func(req *Request) *Response {
		f.CacheDir = req.LocalDir
		res, err := f.Fetch(ctx, req.URI)
		if err != nil {
			return &Response{ErrMsg: err.Error()}
		}
		return &Response{OK: true, Files: res.Files}
	})
}

// RunHTTPWorker is the plain-HTTP worker's main loop, used for one-shot GETs
// outside of the RRDP protocol (currently unused directly by the
// orchestrator, which drives HTTP fetches through RunRRDPWorker, but kept
// as its own role so a future bare-HTTP publication point does not need a
// new worker binary).
func RunHTTPWorker(ctx context.Context, conn net.Conn, timeout time.Duration, userAgent string) error {
	f := httpfetch.NewFetcher(timeout, userAgent)
	return serve(conn, func(req *Request) *Response {
		_, err := f.Fetch(ctx, req.URI)
		if err != nil {
			return &Response{ErrMsg: err.Error()}
		}
		return &Response{OK: true}
	})
}

// RunRRDPWorker is the RRDP worker's main loop: it fetches the notification
// document over HTTP, decides between the delta chain and a full snapshot,
// and applies the result into LocalDir.
func RunRRDPWorker(ctx context.Context, conn net.Conn, timeout time.Duration, userAgent string) error {
	httpF := httpfetch.NewFetcher(timeout, userAgent)
	getter := httpAdapter{f: httpF}
	return serve(conn, func(req *Request) *Response {
		notifBody, notModified, err := getter.Fetch(ctx, req.URI)
		if err != nil {
			return &Response{ErrMsg: err.Error(), Fallback: true}
		}
		if notModified {
			return &Response{OK: true, SessionID: req.PriorSessionID, Serial: req.PriorSerial}
		}
		prior := rrdpstate.Session{SessionID: req.PriorSessionID, Serial: req.PriorSerial}
		sess, applier, err := rrdp.Fetch(ctx, getter, prior, notifBody, req.LocalDir)
		if err != nil {
			return &Response{ErrMsg: err.Error(), Fallback: true}
		}
		files := make([]string, 0, len(applier.Files))
		for p := range applier.Files {
			files = append(files, p)
		}
		return &Response{OK: true, Files: files, SessionID: sess.SessionID, Serial: sess.Serial}
	})
}

func serve(conn net.Conn, handle func(*Request) *Response) error {
	for {
		var req Request
		if err := ipc.Recv(conn, &req); err != nil {
			return err
		}
		resp := handle(&req)
		if err := ipc.Send(conn, resp); err != nil {
			return err
		}
	}
}
