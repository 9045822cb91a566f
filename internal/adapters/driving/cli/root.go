// Package cli implements the command-line interface. Commands build
// their dependencies through the package-level wiring hooks so tests
// can substitute fakes.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/driftline-labs/driftline/internal/logger"
)

var (
	version   = "dev"
	verbose   bool
	configDir string
	dataDir   string
)

var rootCmd = &cobra.Command{
	Use:   "driftline",
	Short: "Sync documents from configured sources into an ingestion pipeline",
	Long: `Driftline discovers documents in configured sources, filters them,
and submits them in batches to a downstream ingestion pipeline.
It keeps a per-source cursor so periodic syncs only pick up changes.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "configuration directory (default ~/.driftline)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (default ~/.driftline/data)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string printed by the version command.
func SetVersion(v string) {
	version = v
}
