package main

import (
	"github.com/spf13/cobra"

	"codemap/internal/version"
)

var (
	rootDir   string
	verbosity int
	quiet     bool
)

var rootCmd = &cobra.Command{
	Use:   "codemap",
	Short: "codemap - derive code mappings from error events",
	Long: `codemap derives code mappings and in-app stack trace rules from the
stack frames of error events. A code mapping rewrites a stack trace path
prefix into a repository path prefix so frames can be linked to source.

Derivation state (repositories, code mappings and rule lists) is kept in a
sqlite database under .codemap/ in the workspace root.`,
	Version:      version.Info(),
	SilenceUsage: true,
}

func init() {
	rootCmd.SetVersionTemplate(version.Full() + "\n")
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", "", "Workspace root holding .codemap/ (default: current directory)")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase log verbosity (-v debug)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress log output")
}
