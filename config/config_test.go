package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, uint8(0x3), cfg.Cache.ICacheEnableSets)
	assert.True(t, cfg.Cache.DcacheWriteback)
	assert.Equal(t, uint64(2*1024*1024), cfg.Cache.BcacheSize)
	assert.Equal(t, uint64(0), cfg.Cache.AmaskBits)
	assert.False(t, cfg.Log.Verbose)
}

func TestGetConfigPath(t *testing.T) {
	path := GetConfigPath()

	require.NotEmpty(t, path)
	assert.Equal(t, "config.toml", filepath.Base(path))

	switch runtime.GOOS {
	case "darwin", "linux":
		dir := filepath.Dir(path)
		if path != "config.toml" {
			assert.Equal(t, "ev6core", filepath.Base(dir))
		}
	}
}

func TestGetLogPath(t *testing.T) {
	path := GetLogPath()
	require.NotEmpty(t, path)
}

func TestSaveAndLoad(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "test_config.toml")

	cfg := DefaultConfig()
	cfg.Cache.ICacheEnableSets = 0x1
	cfg.Cache.DcacheWriteback = false
	cfg.Cache.BcacheSize = 4 * 1024 * 1024
	cfg.Cache.AmaskBits = 0x6
	cfg.Log.Verbose = true

	require.NoError(t, cfg.SaveTo(configPath))
	require.FileExists(t, configPath)

	loaded, err := LoadFrom(configPath)
	require.NoError(t, err)

	assert.Equal(t, uint8(0x1), loaded.Cache.ICacheEnableSets)
	assert.False(t, loaded.Cache.DcacheWriteback)
	assert.Equal(t, uint64(4*1024*1024), loaded.Cache.BcacheSize)
	assert.Equal(t, uint64(0x6), loaded.Cache.AmaskBits)
	assert.True(t, loaded.Log.Verbose)
}

func TestLoadNonExistent(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "nonexistent.toml")

	cfg, err := LoadFrom(configPath)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadInvalidTOML(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "invalid.toml")

	invalidTOML := `
[cache]
bcache_size = "not a number"
`
	require.NoError(t, os.WriteFile(configPath, []byte(invalidTOML), 0644))

	_, err := LoadFrom(configPath)
	assert.Error(t, err)
}

func TestSaveCreatesDirectory(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "subdir1", "subdir2", "config.toml")

	cfg := DefaultConfig()
	require.NoError(t, cfg.SaveTo(configPath))
	require.FileExists(t, configPath)

	dir := filepath.Dir(configPath)
	_, err := os.Stat(dir)
	require.NoError(t, err)
}
