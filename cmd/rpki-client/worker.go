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

package main

import (
	"context"
	"os"
	"time"

	"github.com/netsec-ethz/rpki-client/internal/fetcher"
	"github.com/netsec-ethz/rpki-client/internal/ipc"
	"github.com/netsec-ethz/rpki-client/internal/worker/parser"
)

// Environment variables the orchestrator sets on every spawned worker
// process, alongside ipc.RoleEnvVar, to pass the configured transport
// timeout and User-Agent without inventing a second IPC round trip just
// to bootstrap the worker.
const (
	envRsyncTimeout = "RPKI_CLIENT_RSYNC_TIMEOUT"
	envHTTPTimeout  = "RPKI_CLIENT_HTTP_TIMEOUT"
	envUserAgent    = "RPKI_CLIENT_USER_AGENT"
)

const defaultTimeout = 5 * time.Minute
const defaultUserAgent = "rpki-client"

func envDuration(name string, fallback time.Duration) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

// runWorker re-executes the current process into one of the fetch worker
// roles, reading its inherited end of the orchestrator's socketpair from
// fd 3 and serving requests until the orchestrator closes the connection.
func runWorker(role ipc.Role) error {
	conn, err := ipc.WorkerConn()
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx := context.Background()
	userAgent := os.Getenv(envUserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	switch role {
	case ipc.RoleParser:
		return parser.RunWorker(conn)
	case ipc.RoleRsync:
		return fetcher.RunRsyncWorker(ctx, conn, envDuration(envRsyncTimeout, defaultTimeout))
	case ipc.RoleHTTP:
		return fetcher.RunHTTPWorker(ctx, conn, envDuration(envHTTPTimeout, defaultTimeout), userAgent)
	case ipc.RoleRRDP:
		return fetcher.RunRRDPWorker(ctx, conn, envDuration(envHTTPTimeout, defaultTimeout), userAgent)
	default:
		return errUnknownRole(role)
	}
}

type errUnknownRole ipc.Role

func (e errUnknownRole) Error() string {
	return "unknown worker role: " + string(e)
}
