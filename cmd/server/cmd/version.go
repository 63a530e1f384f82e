package cmd

import (
	"fmt"
	"github.com/spf13/cobra"
	"runtime"
)

// Set at build time via -ldflags "-X smoothstreamd/cmd/server/cmd.Version=...".
var (
	Version = "dev"
	Commit  = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "smoothstreamd %s (commit %s, %s, %s/%s)\n",
			Version, Commit, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
