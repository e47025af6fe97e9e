package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the nodecore release version, set at build time via
// -ldflags.
var Version = "dev"

// VersionCmd prints the nodecore version.
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version info",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(Version)
	},
}
