package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"codemap/internal/config"
	"codemap/internal/errors"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize codemap configuration",
	Long:  "Creates a .codemap/ directory with the default configuration in the workspace root",
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing configuration")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	root, err := workspaceRoot()
	if err != nil {
		return errors.New(errors.InternalError, "resolving workspace root", err)
	}

	configPath := filepath.Join(root, config.DirName, "config.json")
	if _, statErr := os.Stat(configPath); statErr == nil && !initForce {
		// Already initialized is success.
		fmt.Println("codemap already initialized.")
		fmt.Printf("Configuration at: %s\n", configPath)
		fmt.Println("\nRun 'codemap init --force' to overwrite it.")
		return nil
	}

	if err := config.DefaultConfig().Save(root); err != nil {
		return errors.New(errors.InternalError, "writing configuration", err)
	}

	fmt.Printf("Configuration written to: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Add installations under integrations.installations")
	fmt.Println("  2. Write a repository tree snapshot to trees.snapshotPath")
	fmt.Println("  3. Run 'codemap derive --event <file>'")
	return nil
}
