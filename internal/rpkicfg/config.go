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

// Package rpkicfg is the run configuration for the validator: cache/output
// directories, transport timeouts, output format selection and the
// logging level, loadable from a TOML file (the validate command's
// --config flag names the file; no flag overrides a field).
package rpkicfg

import (
	"bytes"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/netsec-ethz/rpki-client/internal/rperrors"
	"github.com/netsec-ethz/rpki-client/internal/rplog"
)

// OutFormat is one bit of the output-format selection bitmask.
type OutFormat uint8

const (
	OutFormatCSV OutFormat = 1 << iota
	OutFormatJSON
	OutFormatOpenBGPD
	OutFormatBIRD1v4
	OutFormatBIRD1v6
	OutFormatBIRD2
)

// Has reports whether f is selected in the receiver bitmask.
func (m OutFormat) Has(f OutFormat) bool { return m&f != 0 }

// Config is the validator's run configuration.
type Config struct {
	CacheDir  string `toml:"cache_dir"`
	OutputDir string `toml:"output_dir"`
	TALDir    string `toml:"tal_dir"`

	OutFormats OutFormat `toml:"-"`

	RsyncTimeout time.Duration `toml:"rsync_timeout"`
	HTTPTimeout  time.Duration `toml:"http_timeout"`
	UserAgent    string        `toml:"user_agent"`

	LogLevel string `toml:"log_level"`

	// Sandbox records operator intent to run sandboxed. rpki-client has no
	// portable Go equivalent of pledge(2)/chroot(2) it can apply
	// automatically, so a true value only produces a startup warning; see
	// SPEC_FULL.md §13's Open Question decision.
	Sandbox bool `toml:"sandbox"`
}

// InitDefaults fills in every unset field with its default value.
func (c *Config) InitDefaults() {
	if c.CacheDir == "" {
		c.CacheDir = "/var/cache/rpki-client"
	}
	if c.OutputDir == "" {
		c.OutputDir = "/var/lib/rpki-client"
	}
	if c.TALDir == "" {
		c.TALDir = "/etc/rpki-client/tals"
	}
	if c.OutFormats == 0 {
		c.OutFormats = OutFormatCSV
	}
	if c.RsyncTimeout == 0 {
		c.RsyncTimeout = 5 * time.Minute
	}
	if c.HTTPTimeout == 0 {
		c.HTTPTimeout = 5 * time.Minute
	}
	if c.UserAgent == "" {
		c.UserAgent = "rpki-client"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.CacheDir == "" || c.OutputDir == "" || c.TALDir == "" {
		return rperrors.New(rperrors.KindFatal, "cache_dir, output_dir and tal_dir must all be set")
	}
	if c.RsyncTimeout <= 0 || c.HTTPTimeout <= 0 {
		return rperrors.New(rperrors.KindFatal, "transport timeouts must be positive")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return rperrors.New(rperrors.KindFatal, "invalid log_level", "value", c.LogLevel)
	}
	return nil
}

// Sample renders a commented sample TOML configuration.
func (c Config) Sample() []byte {
	var buf bytes.Buffer
	buf.WriteString("# rpki-client configuration\n")
	buf.WriteString("cache_dir = \"/var/cache/rpki-client\"\n")
	buf.WriteString("output_dir = \"/var/lib/rpki-client\"\n")
	buf.WriteString("tal_dir = \"/etc/rpki-client/tals\"\n")
	buf.WriteString("rsync_timeout = \"5m\"\n")
	buf.WriteString("http_timeout = \"5m\"\n")
	buf.WriteString("user_agent = \"rpki-client\"\n")
	buf.WriteString("log_level = \"info\"\n")
	buf.WriteString("sandbox = false\n")
	return buf.Bytes()
}

// Load reads and decodes a TOML config file, then applies defaults.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, rperrors.Wrap(rperrors.KindFatal, "reading config file", err)
	}
	var c Config
	if err := toml.Unmarshal(raw, &c); err != nil {
		return nil, rperrors.Wrap(rperrors.KindFatal, "decoding config file", err)
	}
	c.InitDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Level maps the configured level name to an rplog.Level.
func (c Config) Level() rplog.Level {
	switch c.LogLevel {
	case "debug":
		return rplog.DebugLevel
	case "warn":
		return rplog.WarnLevel
	case "error":
		return rplog.ErrorLevel
	default:
		return rplog.InfoLevel
	}
}
