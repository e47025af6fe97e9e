package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tendermint/nodecore/config"
	ncos "github.com/tendermint/nodecore/libs/os"
)

// InitFilesCmd writes a default config.toml (and creates the data
// directory) under conf.RootDir, without overwriting one that already
// exists.
var InitFilesCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a nodecore home directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		config.EnsureRoot(conf.RootDir)

		configPath := filepath.Join(conf.RootDir, "config", "config.toml")
		if ncos.FileExists(configPath) {
			fmt.Printf("Found existing config.toml: %s\n", configPath)
			return nil
		}
		if err := config.WriteConfigFile(conf.RootDir, config.DefaultConfig()); err != nil {
			return err
		}
		fmt.Printf("Initialized nodecore home directory: %s\n", conf.RootDir)
		return nil
	},
}
