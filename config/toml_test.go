package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureRoot(t *testing.T) {
	tmpDir := t.TempDir()

	EnsureRoot(tmpDir)

	_, err := os.Stat(filepath.Join(tmpDir, defaultConfigDir))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(tmpDir, defaultDataDir))
	assert.NoError(t, err)
}

func TestWriteConfigFileRoundTrips(t *testing.T) {
	tmpDir := t.TempDir()
	EnsureRoot(tmpDir)

	cfg := DefaultConfig()
	require.NoError(t, WriteConfigFile(tmpDir, cfg))

	data, err := os.ReadFile(filepath.Join(tmpDir, defaultConfigFilePath))
	require.NoError(t, err)
	assert.Contains(t, string(data), "[dispatcher]")
	assert.Contains(t, string(data), "[chainsync]")
	assert.Contains(t, string(data), "[cache]")
	assert.Contains(t, string(data), "[utpool]")
	assert.Contains(t, string(data), "[instrumentation]")
}

func TestResetTestRoot(t *testing.T) {
	cfg, err := ResetTestRoot(t.TempDir(), "reset-test-root")
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(cfg.RootDir, defaultConfigFilePath))
	assert.NoError(t, err)
	_, err = os.Stat(cfg.DataDir())
	assert.NoError(t, err)
}
