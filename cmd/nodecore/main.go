package main

import (
	"fmt"
	"os"

	"github.com/tendermint/nodecore/cmd/nodecore/commands"
	"github.com/tendermint/nodecore/internal/node"
	"github.com/tendermint/nodecore/libs/cli"
)

func main() {
	rootCmd := commands.RootCmd
	rootCmd.AddCommand(
		commands.InitFilesCmd,
		commands.VersionCmd,
		commands.NewRunNodeCmd(node.DefaultNewNode),
	)

	cmd := cli.PrepareBaseCmd(rootCmd, "NODECORE", os.ExpandEnv("$HOME/.nodecore"))
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(-1)
	}
}
