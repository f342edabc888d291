package plugin

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, dir, filename, content string) string {
	t.Helper()
	path := filepath.Join(dir, filename)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadManifest_Valid(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, "echo.yaml", `
name: echo
version: "1.0.0"
description: echoes input
command: echo-plugin
args: ["--stdio"]
env:
  LOG_LEVEL: debug
tools:
  - echo.say
`)

	m, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, "echo", m.Name)
	assert.Equal(t, "echo-plugin", m.Command)
	assert.Equal(t, []string{"--stdio"}, m.Args)
	assert.Equal(t, "debug", m.Env["LOG_LEVEL"])
	assert.Equal(t, []string{"echo.say"}, m.Tools)
}

func TestLoadManifest_MissingName(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, "bad.yaml", "command: foo\n")
	_, err := LoadManifest(path)
	require.Error(t, err)
}

func TestLoadManifest_MissingCommand(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, "bad.yaml", "name: foo\n")
	_, err := LoadManifest(path)
	require.Error(t, err)
}

func TestLoadManifests_SkipsBadFileContinuesWithRest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "good.yaml", "name: good\ncommand: good-bin\n")
	writeManifest(t, dir, "bad.yaml", "name: bad\n") // missing command
	writeManifest(t, dir, "notes.txt", "not a manifest")

	manifests, err := LoadManifests(dir)
	require.NoError(t, err)
	require.Len(t, manifests, 1)
	assert.Equal(t, "good", manifests[0].Name)
}

func TestLoadManifests_MissingDirectoryReturnsEmpty(t *testing.T) {
	manifests, err := LoadManifests(filepath.Join(t.TempDir(), "does-not-exist"))
	require.NoError(t, err)
	assert.Empty(t, manifests)
}

func TestLoadManifests_EmptyDirArgReturnsNil(t *testing.T) {
	manifests, err := LoadManifests("")
	require.NoError(t, err)
	assert.Nil(t, manifests)
}
