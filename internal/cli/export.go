package cmd

import (
	"net/url"

	"github.com/spf13/cobra"
)

// exportCmd re-renders a cached session without touching the network.
// It shares the persistent output flags with the root command, so a
// session crawled as markdown can be exported again as chunked PDF.
var exportCmd = &cobra.Command{
	Use:   "export <session-id>",
	Short: "Assemble output from a cached session without crawling.",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
	sink := newSink()
	store := maintenanceStore()

	meta, _, _, err := store.LoadSession(args[0])
	if err != nil {
		return err
	}
	seed, parseErr := url.Parse(meta.BaseURL)
	if parseErr != nil {
		return parseErr
	}

	cfg, cfgErr := InitConfigWithError(*seed)
	if cfgErr != nil {
		return cfgErr
	}
	return assembleSession(cmd, cfg, sink, store, args[0])
}
