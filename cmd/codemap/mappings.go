package main

import (
	"context"

	"github.com/spf13/cobra"

	"codemap/internal/storage"
)

var (
	mappingsProject int64
	mappingsFormat  string
)

var mappingsCmd = &cobra.Command{
	Use:   "mappings",
	Short: "Inspect code mappings",
}

var mappingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a project's code mappings",
	Long: `List the code mappings stored for a project, both manual and
automatically generated.

Examples:
  codemap mappings list --project 1
  codemap mappings list --project 1 --format json`,
	RunE: runMappingsList,
}

func init() {
	mappingsListCmd.Flags().Int64Var(&mappingsProject, "project", 0, "Project ID")
	mappingsListCmd.Flags().StringVar(&mappingsFormat, "format", "human", "Output format (json, human)")
	_ = mappingsListCmd.MarkFlagRequired("project")

	mappingsCmd.AddCommand(mappingsListCmd)
	rootCmd.AddCommand(mappingsCmd)
}

func runMappingsList(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ms, err := storage.NewCodeMappingStore(a.db).ListByProject(context.Background(), mappingsProject)
	if err != nil {
		return err
	}
	return printResponse(convertMappings(mappingsProject, ms), mappingsFormat)
}
