package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [source-id]",
	Short: "Run the periodic scheduler until interrupted",
	Long: `Starts the background scheduler: a coarse full-ingest task and a fine
incremental sync task fire on their configured intervals until the
process receives SIGINT or SIGTERM.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRunCmd,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRunCmd(cmd *cobra.Command, args []string) error {
	sourceID := ""
	if len(args) > 0 {
		sourceID = args[0]
	}

	conn, err := buildConnector(sourceID, nil)
	if err != nil {
		return err
	}
	defer conn.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := conn.service.Register(ctx); err != nil {
		return fmt.Errorf("register source: %w", err)
	}

	if err := conn.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	cmd.Println("Scheduler running. Press Ctrl+C to stop.")
	<-ctx.Done()

	cmd.Println("\nShutting down...")
	conn.scheduler.Stop()
	return nil
}
