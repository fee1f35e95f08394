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

package rsync

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestModuleDirStripsSchemeAndKeepsStructure(t *testing.T) {
	root := t.TempDir()

	got, err := moduleDir(root, "rsync://repo.example/module")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "repo.example/module"), got)

	got, err = moduleDir(root, "rsync://repo.example/module/sub/")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "repo.example/module/sub"), got)
}

func TestModuleDirRejectsWrongScheme(t *testing.T) {
	_, err := moduleDir(t.TempDir(), "https://repo.example/module")
	require.Error(t, err)
}

func TestModuleDirRejectsPathTraversal(t *testing.T) {
	root := t.TempDir()
	got, err := moduleDir(root, "rsync://repo.example/../../../etc/cron.d/x")
	require.Error(t, err)
	require.Empty(t, got)
}

func TestModuleDirRejectsControlCharacters(t *testing.T) {
	_, err := moduleDir(t.TempDir(), "rsync://repo.example/mod\x00ule")
	require.Error(t, err)
}

func TestListFilesFindsRegularFilesOnly(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.cer"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "b.roa"), []byte("y"), 0o644))

	files, err := listFiles(root)
	require.NoError(t, err)
	require.Len(t, files, 2)
}

func TestListFilesMissingRootIsNotAnError(t *testing.T) {
	files, err := listFiles(filepath.Join(t.TempDir(), "does-not-exist"))
	require.NoError(t, err)
	require.Empty(t, files)
}
