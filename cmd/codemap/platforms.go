package main

import (
	"os"

	"github.com/spf13/cobra"

	"codemap/internal/platform"
)

var platformsFormat string

var platformsCmd = &cobra.Command{
	Use:   "platforms",
	Short: "Show the effective platform table",
	Long: `Show the built-in platform table merged with the TOML overrides from
platforms.overridesPath.`,
	RunE: runPlatforms,
}

func init() {
	platformsCmd.Flags().StringVar(&platformsFormat, "format", "human", "Output format (json, human, toml)")
	rootCmd.AddCommand(platformsCmd)
}

func runPlatforms(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	// toml output is a complete overrides file for platforms.overridesPath.
	if platformsFormat == "toml" {
		data, err := platform.MarshalOverrides(a.platforms)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	}
	return printResponse(convertPlatforms(a.platforms), platformsFormat)
}
