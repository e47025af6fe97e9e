package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tendermint/nodecore/config"
	"github.com/tendermint/nodecore/libs/cli"
	"github.com/tendermint/nodecore/libs/log"
)

// conf and logger are shared across every subcommand RootCmd carries:
// PersistentPreRunE fills conf in place from viper once flags are
// bound, then rebuilds logger at the level/format the resulting config
// names.
var (
	conf   = config.DefaultConfig()
	logger = log.NewNopLogger()
)

// RootCmd is the nodecore root command every subcommand attaches to.
var RootCmd = &cobra.Command{
	Use:   "nodecore",
	Short: "Ingests and applies blocks and transactions against a pluggable chain state",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == VersionCmd.Name() {
			return nil
		}
		if err := cli.BindFlagsLoadViper(cmd, args); err != nil {
			return err
		}
		if err := ParseConfig(conf); err != nil {
			// A config load failure exits -1 here, directly, rather
			// than returning through cobra; main.go also exits -1 for
			// any error Execute returns, and only the start command
			// exits -2 or -3.
			fmt.Fprintln(os.Stderr, err)
			os.Exit(-1)
		}
		logger = log.NewDefaultLogger(os.Stdout, conf.LogFormat, conf.LogLevel)
		return nil
	},
}

// ParseConfig unmarshals viper's bound flags/env/file layers onto conf,
// ensures its root directory exists, and validates it.
func ParseConfig(conf *config.Config) error {
	if err := viper.Unmarshal(conf); err != nil {
		return err
	}
	conf.SetRoot(conf.RootDir)
	config.EnsureRoot(conf.RootDir)
	return errors.Wrap(conf.ValidateBasic(), "error in config file")
}

func init() {
	RootCmd.PersistentFlags().StringP(cli.HomeFlag, "", os.ExpandEnv(filepath.Join("$HOME", config.DefaultHomeDir)), "directory for config and data")
	RootCmd.PersistentFlags().Bool(cli.TraceFlag, false, "print out full stack trace on errors")
	RootCmd.PersistentFlags().String("log_level", conf.LogLevel, "log level")
	RootCmd.PersistentFlags().String("log_format", conf.LogFormat, "log output format: plain or json")
	cobra.OnInitialize(func() { cli.InitEnv("NODECORE") })
}
