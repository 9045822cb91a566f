package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/driftline-labs/driftline/internal/core/domain"
	"github.com/driftline-labs/driftline/internal/core/ports/driving"
)

var syncCmd = &cobra.Command{
	Use:   "sync [source-id]",
	Short: "Run one incremental sync cycle",
	Long: `Discovers items changed since the last sync and submits them to the
pipeline. If a source ID is provided, that source is synced; otherwise
the first configured source is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSyncCmd,
}

var ingestCmd = &cobra.Command{
	Use:   "ingest [source-id]",
	Short: "Run one full discover and ingest cycle",
	Long: `Scans the whole source, filters items, and submits everything to the
pipeline in batches. Use this for the initial load of a source.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngestCmd,
}

func init() {
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(ingestCmd)
}

func runSyncCmd(cmd *cobra.Command, args []string) error {
	return runCycle(cmd, args, "Running incremental sync...", func(conn *connector) error {
		return conn.service.RunSyncCycle(cmd.Context())
	})
}

func runIngestCmd(cmd *cobra.Command, args []string) error {
	return runCycle(cmd, args, "Running full ingest...", func(conn *connector) error {
		return conn.service.RunIngestCycle(cmd.Context())
	})
}

func runCycle(cmd *cobra.Command, args []string, banner string, cycle func(*connector) error) error {
	sourceID := ""
	if len(args) > 0 {
		sourceID = args[0]
	}

	conn, err := buildConnector(sourceID, progressPrinter(cmd))
	if err != nil {
		return err
	}
	defer conn.close()

	if err := conn.service.Register(cmd.Context()); err != nil {
		return fmt.Errorf("register source: %w", err)
	}

	cmd.Println(banner)
	if err := cycle(conn); err != nil {
		return fmt.Errorf("cycle failed: %w", err)
	}

	printStats(cmd, conn.service.Snapshot())
	return nil
}

// progressPrinter writes batch progress on a single rewritten line.
func progressPrinter(cmd *cobra.Command) driving.ProgressFunc {
	return func(p driving.Progress) {
		cmd.Printf("\rBatch %d/%d: %d/%d items (%d failed)",
			p.BatchIndex+1, p.TotalBatches, p.ProcessedCount, p.TotalCount, p.FailCount)
	}
}

func printStats(cmd *cobra.Command, snapshot domain.ConnectorSnapshot) {
	cmd.Printf("\nDone: %d discovered, %d ingested, %d failed.\n",
		snapshot.Stats.TotalDiscovered, snapshot.Stats.IngestedCount, snapshot.Stats.FailedCount)
}
