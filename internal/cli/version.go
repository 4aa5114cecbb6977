package cmd

import (
	"github.com/spf13/cobra"

	"github.com/rohmanhakim/site-archiver/internal/build"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the site-archiver version.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("site-archiver %s (built %s)\n", build.FullVersion(), build.BuildTime)
	},
}
