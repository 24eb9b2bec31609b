package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"codemap/internal/rules"
	"codemap/internal/storage"
)

var (
	rulesProject int64
	rulesFormat  string
	rulesFile    string
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect and edit in-app stack trace rules",
	Long: `Each project has two rule lists. Automatic rules are written by
derivation; manual rules are written by people and are never modified by
derivation. Manual rules take precedence when both match a module.`,
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show a project's automatic and manual rules",
	RunE:  runRulesList,
}

var rulesSetManualCmd = &cobra.Command{
	Use:   "set-manual",
	Short: "Replace a project's manual rules",
	Long: `Replace the manual rule list from a file ("-" for stdin), one rule per
line in the form "stack.module:<pattern> +app|-app".

Examples:
  codemap rules set-manual --project 1 --file rules.txt
  echo 'stack.module:com.example.** -app' | codemap rules set-manual --project 1 --file -`,
	RunE: runRulesSetManual,
}

var rulesCheckCmd = &cobra.Command{
	Use:   "check <module>",
	Short: "Evaluate the effective rules against a module",
	Args:  cobra.ExactArgs(1),
	RunE:  runRulesCheck,
}

func init() {
	for _, c := range []*cobra.Command{rulesListCmd, rulesSetManualCmd, rulesCheckCmd} {
		c.Flags().Int64Var(&rulesProject, "project", 0, "Project ID")
		_ = c.MarkFlagRequired("project")
	}
	rulesListCmd.Flags().StringVar(&rulesFormat, "format", "human", "Output format (json, human)")
	rulesCheckCmd.Flags().StringVar(&rulesFormat, "format", "human", "Output format (json, human)")
	rulesSetManualCmd.Flags().StringVar(&rulesFile, "file", "", "Rules file, or - for stdin")
	_ = rulesSetManualCmd.MarkFlagRequired("file")

	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesSetManualCmd)
	rulesCmd.AddCommand(rulesCheckCmd)
	rootCmd.AddCommand(rulesCmd)
}

func runRulesList(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	state, err := a.db.LoadState(context.Background(), rulesProject, 0, 0)
	if err != nil {
		return err
	}
	return printResponse(&RulesResponseCLI{
		ProjectID: rulesProject,
		Manual:    ruleStrings(state.ManualRules),
		Automatic: ruleStrings(state.AutomaticRules),
	}, rulesFormat)
}

func runRulesSetManual(cmd *cobra.Command, args []string) error {
	var (
		data []byte
		err  error
	)
	if rulesFile == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(rulesFile)
	}
	if err != nil {
		return err
	}
	list := rules.ParseList(string(data))

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	for _, line := range list.Opaque() {
		a.logger.Warn("Keeping rule line outside the stack.module grammar verbatim", "line", line)
	}

	if err := storage.NewOptionStore(a.db).Set(context.Background(), rulesProject, storage.ManualRulesKey, list.String()); err != nil {
		return err
	}
	fmt.Printf("Set %d manual rules for project %d\n", len(list), rulesProject)
	return nil
}

func runRulesCheck(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	state, err := a.db.LoadState(context.Background(), rulesProject, 0, 0)
	if err != nil {
		return err
	}
	inApp, matched := rules.Effective(state.ManualRules, state.AutomaticRules).InApp(args[0])
	return printResponse(&RuleCheckResponseCLI{
		ProjectID: rulesProject,
		Module:    args[0],
		Matched:   matched,
		InApp:     inApp,
	}, rulesFormat)
}
