package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromFileWritesDefaultsWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "nesdis.yaml")

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 4096, cfg.Disassembly.QueueSize)
	assert.FileExists(t, path)
}

func TestLoadFromFileRoundTripsEditedValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nesdis.yaml")

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	cfg.LogLevel = "debug"
	cfg.Paths.ROMs = "/roms"
	require.NoError(t, cfg.SaveToFile(path))

	reloaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", reloaded.LogLevel)
	assert.Equal(t, "/roms", reloaded.Paths.ROMs)
}

func TestSaveToFileSetsPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nesdis.yaml")
	cfg := New()
	require.NoError(t, cfg.SaveToFile(path))
	assert.Equal(t, path, cfg.Path())
}
