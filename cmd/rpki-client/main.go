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

// Command rpki-client fetches and validates RPKI repository data and
// emits router-consumable Validated ROA Payload output. The same binary
// re-executes itself into a worker role (internal/ipc's RoleEnvVar) for
// each rsync/HTTP/RRDP fetch process the orchestrator spawns.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/netsec-ethz/rpki-client/internal/ipc"
)

var rootCmd = &cobra.Command{
	Use:   "rpki-client",
	Short: "RPKI relying-party validator",
	Long: `rpki-client fetches certificates, manifests, CRLs, ROAs and
Ghostbusters records from the RPKI repository hierarchy, validates their
chain of custody against a configured set of trust anchors, and emits the
resulting Validated ROA Payload set for router consumption.`,
}

func main() {
	if role := os.Getenv(ipc.RoleEnvVar); role != "" {
		if err := runWorker(ipc.Role(role)); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(sampleConfigCmd)
}
