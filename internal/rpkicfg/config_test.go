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

package rpkicfg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/netsec-ethz/rpki-client/internal/rplog"
)

func TestInitDefaultsFillsEverything(t *testing.T) {
	var c Config
	c.InitDefaults()
	require.NoError(t, c.Validate())
	require.Equal(t, OutFormatCSV, c.OutFormats)
	require.Equal(t, "info", c.LogLevel)
}

func TestInitDefaultsPreservesSetFields(t *testing.T) {
	c := Config{CacheDir: "/tmp/cache"}
	c.InitDefaults()
	require.Equal(t, "/tmp/cache", c.CacheDir)
}

func TestValidateRejectsBadLogLevel(t *testing.T) {
	c := Config{CacheDir: "a", OutputDir: "b", TALDir: "c", RsyncTimeout: 1, HTTPTimeout: 1, LogLevel: "verbose"}
	require.Error(t, c.Validate())
}

func TestValidateRejectsMissingDirs(t *testing.T) {
	var c Config
	c.InitDefaults()
	c.CacheDir = ""
	require.Error(t, c.Validate())
}

func TestOutFormatHasChecksBitmask(t *testing.T) {
	m := OutFormatCSV | OutFormatBIRD2
	require.True(t, m.Has(OutFormatCSV))
	require.True(t, m.Has(OutFormatBIRD2))
	require.False(t, m.Has(OutFormatJSON))
}

func TestLevelMapsLogLevelName(t *testing.T) {
	c := Config{LogLevel: "debug"}
	require.Equal(t, rplog.DebugLevel, c.Level())
	c.LogLevel = "unknown"
	require.Equal(t, rplog.InfoLevel, c.Level())
}

func TestLoadReadsAndAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rpki-client.toml")
	require.NoError(t, os.WriteFile(path, []byte(`cache_dir = "/data/cache"`+"\n"), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/data/cache", c.CacheDir)
	require.Equal(t, "/var/lib/rpki-client", c.OutputDir)
}

func TestLoadRejectsMalformedTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("not = [valid"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
