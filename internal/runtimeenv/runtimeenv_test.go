// Copyright (C) dcrunner contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package runtimeenv

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnvFileMissingIsNotAnError(t *testing.T) {
	err := LoadEnvFile(filepath.Join(t.TempDir(), "does-not-exist.env"))
	assert.NoError(t, err)
}

func TestLoadEnvFileSetsVariables(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("DCRUNNER_TEST_VAR=hello\n"), 0o644))

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "hello", os.Getenv("DCRUNNER_TEST_VAR"))
}

func TestPluginSearchPathsEmpty(t *testing.T) {
	t.Setenv(DefaultPluginPathEnv, "")
	assert.Nil(t, PluginSearchPaths())
}

func TestPluginSearchPathsSplitsList(t *testing.T) {
	t.Setenv(DefaultPluginPathEnv, "/opt/dcrunner/plugins"+string(os.PathListSeparator)+"/usr/local/lib/dcrunner")
	got := PluginSearchPaths()
	assert.Equal(t, []string{"/opt/dcrunner/plugins", "/usr/local/lib/dcrunner"}, got)
}
