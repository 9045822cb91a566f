package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/driftline-labs/driftline/internal/adapters/driven/config/file"
	"github.com/driftline-labs/driftline/internal/adapters/driven/storage/sqlite"
	"github.com/driftline-labs/driftline/internal/core/domain"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configured sources, cursors and task state",
	Args:  cobra.NoArgs,
	RunE:  runStatusCmd,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatusCmd(cmd *cobra.Command, _ []string) error {
	cfgStore, err := file.NewConfigStore(configDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg := cfgStore.Config()

	if len(cfg.Sources) == 0 {
		cmd.Println("No sources configured.")
		return nil
	}

	store, err := sqlite.NewStore(dataDir)
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}
	defer store.Close()

	ctx := cmd.Context()
	states := store.SyncStateStore()

	cmd.Println("Sources:")
	for _, source := range cfg.Sources {
		sourceType := source.Type
		if sourceType == "" {
			sourceType = "filesystem"
		}
		cmd.Printf("  %s  %s  %s\n", source.ID, sourceType, source.Path)

		state, err := states.Get(ctx, source.ID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			cmd.Println("    never synced")
		case err != nil:
			return fmt.Errorf("read sync state: %w", err)
		default:
			cmd.Printf("    cursor %s, last sync %s\n",
				state.LastSyncTime.Format("2006-01-02 15:04:05"),
				state.LastSync.Format("2006-01-02 15:04:05"))
		}
	}

	tasks, err := store.SchedulerStore().ListTasks(ctx)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}
	if len(tasks) == 0 {
		return nil
	}

	cmd.Println("Tasks:")
	for _, task := range tasks {
		line := fmt.Sprintf("  %s  every %s", task.ID, task.Interval)
		if !task.LastRun.IsZero() {
			line += fmt.Sprintf(", last run %s", task.LastRun.Format("2006-01-02 15:04:05"))
		}
		if task.LastError != "" {
			line += fmt.Sprintf(", last error: %s", task.LastError)
		}
		cmd.Println(line)
	}

	return nil
}
