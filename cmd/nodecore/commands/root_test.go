package commands

import (
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/tendermint/nodecore/config"
)

// resetConf clears viper's bound state and returns a fresh Config rooted
// at dir, mirroring clearConfig's role in the teacher's own root_test.go.
func resetConf(t *testing.T, dir string) *config.Config {
	t.Helper()
	viper.Reset()
	c := config.DefaultConfig()
	c.SetRoot(dir)
	return c
}

func TestParseConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	c := resetConf(t, dir)

	viper.Set("home", dir)
	viper.Set("log_level", c.LogLevel)
	viper.Set("log_format", c.LogFormat)

	require.NoError(t, ParseConfig(c))
	require.Equal(t, dir, c.RootDir)
	require.Equal(t, filepath.Join(dir, c.DataDirectory), c.DataDir())
}

func TestParseConfigRejectsInvalidLogFormat(t *testing.T) {
	dir := t.TempDir()
	c := resetConf(t, dir)

	viper.Set("home", dir)
	viper.Set("log_level", c.LogLevel)
	viper.Set("log_format", "not-a-format")

	require.Error(t, ParseConfig(c))
}

func TestParseConfigHonorsRootDirOverride(t *testing.T) {
	base := t.TempDir()
	override := filepath.Join(base, "somewhere-else")
	c := resetConf(t, base)

	viper.Set("home", override)
	viper.Set("log_level", c.LogLevel)
	viper.Set("log_format", c.LogFormat)

	require.NoError(t, ParseConfig(c))
	require.Equal(t, override, c.RootDir)
}
