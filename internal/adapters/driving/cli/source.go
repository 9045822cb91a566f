package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/driftline-labs/driftline/internal/adapters/driven/config/file"
)

var sourceCmd = &cobra.Command{
	Use:   "source",
	Short: "Manage configured sources",
}

var sourceAddName string

var sourceAddCmd = &cobra.Command{
	Use:   "add <path>",
	Short: "Add a filesystem source",
	Args:  cobra.ExactArgs(1),
	RunE:  runSourceAdd,
}

var sourceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured sources",
	Args:  cobra.NoArgs,
	RunE:  runSourceList,
}

func init() {
	sourceAddCmd.Flags().StringVar(&sourceAddName, "name", "", "display name (defaults to the directory name)")
	sourceCmd.AddCommand(sourceAddCmd)
	sourceCmd.AddCommand(sourceListCmd)
	rootCmd.AddCommand(sourceCmd)
}

func runSourceAdd(cmd *cobra.Command, args []string) error {
	path, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	name := sourceAddName
	if name == "" {
		name = filepath.Base(path)
	}

	cfgStore, err := file.NewConfigStore(configDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	source, err := cfgStore.AddSource(file.SourceConfig{
		Type: "filesystem",
		Name: name,
		Path: path,
	})
	if err != nil {
		return fmt.Errorf("add source: %w", err)
	}

	cmd.Printf("Added source %s (%s)\n", source.ID, path)
	return nil
}

func runSourceList(cmd *cobra.Command, _ []string) error {
	cfgStore, err := file.NewConfigStore(configDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	sources := cfgStore.Config().Sources
	if len(sources) == 0 {
		cmd.Println("No sources configured.")
		return nil
	}

	for _, source := range sources {
		sourceType := source.Type
		if sourceType == "" {
			sourceType = "filesystem"
		}
		cmd.Printf("%s  %s  %s  %s\n", source.ID, sourceType, source.Name, source.Path)
	}
	return nil
}
