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
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/netsec-ethz/rpki-client/internal/debugsrv"
	"github.com/netsec-ethz/rpki-client/internal/output"
	"github.com/netsec-ethz/rpki-client/internal/resources"
	"github.com/netsec-ethz/rpki-client/internal/rpkicfg"
	"github.com/netsec-ethz/rpki-client/internal/rplog"
	"github.com/netsec-ethz/rpki-client/internal/runner"
	"github.com/netsec-ethz/rpki-client/internal/vrpstore"
)

var (
	configPath string
	debugAddr  string
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Fetch RPKI repository data and emit Validated ROA Payloads",
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().StringVarP(&configPath, "config", "c", "/etc/rpki-client/rpki-client.toml",
		"path to the TOML configuration file")
	validateCmd.Flags().StringVar(&debugAddr, "debug-addr", "",
		"if set, serve /metrics and /healthz on this address for the duration of the run")
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := rpkicfg.Load(configPath)
	if err != nil {
		return err
	}
	rplog.Setup(cfg.Level())
	log := rplog.Root()
	if cfg.Sandbox {
		log.Warn("sandboxing is not available on this platform; running unsandboxed")
	}

	ready := false
	if debugAddr != "" {
		srv := &http.Server{Addr: debugAddr, Handler: debugsrv.New(func() bool { return ready })}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Warn("debug server exited", "err", err)
			}
		}()
		defer srv.Close()
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return err
	}

	r, err := runner.New(cfg)
	if err != nil {
		return err
	}
	ready = true

	vrps, run, err := r.Run(cmd.Context())
	if err != nil {
		return err
	}
	run.Render(os.Stdout)

	return writeOutputs(cfg, vrps.All())
}

func writeOutputs(cfg *rpkicfg.Config, vrps []vrpstore.VRP) error {
	if cfg.OutFormats.Has(rpkicfg.OutFormatCSV) {
		if err := writeTo(cfg.OutputDir, "csv.txt", func(w *os.File) error { return output.WriteCSV(w, vrps) }); err != nil {
			return err
		}
	}
	if cfg.OutFormats.Has(rpkicfg.OutFormatJSON) {
		if err := writeTo(cfg.OutputDir, "json.json", func(w *os.File) error { return output.WriteJSON(w, vrps) }); err != nil {
			return err
		}
	}
	if cfg.OutFormats.Has(rpkicfg.OutFormatOpenBGPD) {
		if err := writeTo(cfg.OutputDir, "openbgpd.conf", func(w *os.File) error { return output.WriteOpenBGPD(w, vrps) }); err != nil {
			return err
		}
	}
	if cfg.OutFormats.Has(rpkicfg.OutFormatBIRD1v4) {
		if err := writeTo(cfg.OutputDir, "bird1_v4.conf", func(w *os.File) error {
			return output.WriteBIRD1(w, vrps, resources.AFIv4)
		}); err != nil {
			return err
		}
	}
	if cfg.OutFormats.Has(rpkicfg.OutFormatBIRD1v6) {
		if err := writeTo(cfg.OutputDir, "bird1_v6.conf", func(w *os.File) error {
			return output.WriteBIRD1(w, vrps, resources.AFIv6)
		}); err != nil {
			return err
		}
	}
	if cfg.OutFormats.Has(rpkicfg.OutFormatBIRD2) {
		if err := writeTo(cfg.OutputDir, "bird2.conf", func(w *os.File) error { return output.WriteBIRD2(w, vrps) }); err != nil {
			return err
		}
	}
	return nil
}

func writeTo(dir, name string, write func(*os.File) error) error {
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return err
	}
	defer f.Close()
	return write(f)
}
