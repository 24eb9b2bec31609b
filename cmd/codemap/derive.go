package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"codemap/internal/derive"
	"codemap/internal/frames"
)

var (
	deriveEvent       string
	deriveTrees       string
	deriveOrg         int64
	deriveFormat      string
	deriveShowMetrics bool

	batchDir         string
	batchConcurrency int
)

var deriveCmd = &cobra.Command{
	Use:   "derive",
	Short: "Derive code mappings from one event",
	Long: `Derive code mappings and in-app rules from the stack frames of one
error event (JSON) and commit them to the project's configuration.

Platforms configured for dry run only report what would be created.

Examples:
  codemap derive --event event.json
  codemap derive --event event.json --trees trees.yaml.zst --format human
  codemap derive --event event.json --org 42 --metrics`,
	RunE: runDerive,
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Derive code mappings from a directory of events",
	Long: `Process every *.json event in a directory concurrently. Runs for the
same project contend on the project lock; a run that loses halts and leaves
the derivation to a later event.

Examples:
  codemap batch --dir events/ --concurrency 8`,
	RunE: runBatch,
}

func init() {
	deriveCmd.Flags().StringVar(&deriveEvent, "event", "", "Event JSON file")
	deriveCmd.Flags().StringVar(&deriveTrees, "trees", "", "Repository tree snapshot (default: trees.snapshotPath)")
	deriveCmd.Flags().Int64Var(&deriveOrg, "org", 0, "Override the event's organization ID")
	deriveCmd.Flags().StringVar(&deriveFormat, "format", "human", "Output format (json, human)")
	deriveCmd.Flags().BoolVar(&deriveShowMetrics, "metrics", false, "Print metric counters to stderr")
	_ = deriveCmd.MarkFlagRequired("event")

	batchCmd.Flags().StringVar(&batchDir, "dir", "", "Directory of event JSON files")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", derive.DefaultConcurrency, "Events processed in parallel")
	batchCmd.Flags().StringVar(&deriveTrees, "trees", "", "Repository tree snapshot (default: trees.snapshotPath)")
	batchCmd.Flags().StringVar(&deriveFormat, "format", "human", "Output format (json, human)")
	batchCmd.Flags().BoolVar(&deriveShowMetrics, "metrics", false, "Print metric counters to stderr")
	_ = batchCmd.MarkFlagRequired("dir")

	rootCmd.AddCommand(deriveCmd)
	rootCmd.AddCommand(batchCmd)
}

func runDerive(cmd *cobra.Command, args []string) error {
	ev, err := frames.LoadEvent(deriveEvent)
	if err != nil {
		return err
	}
	if deriveOrg != 0 {
		ev.OrganizationID = deriveOrg
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	engine, err := a.engine(deriveTrees)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	out := engine.ProcessEvent(ctx, ev)
	if err := printResponse(convertOutcome(out), deriveFormat); err != nil {
		return err
	}
	if deriveShowMetrics {
		a.printMetrics()
	}
	if out.Status == derive.StatusFailure {
		return fmt.Errorf("derivation failed: %w", out.Err)
	}
	return nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	paths, err := filepath.Glob(filepath.Join(batchDir, "*.json"))
	if err != nil {
		return err
	}
	sort.Strings(paths)

	events := make([]*frames.Event, 0, len(paths))
	for _, p := range paths {
		ev, err := frames.LoadEvent(p)
		if err != nil {
			return err
		}
		events = append(events, ev)
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	engine, err := a.engine(deriveTrees)
	if err != nil {
		return err
	}
	a.logger.Info("Processing events", "count", len(events), "concurrency", batchConcurrency)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	outcomes := derive.NewRunner(engine).ProcessAll(ctx, events, batchConcurrency)

	resp := &BatchResponseCLI{Summary: derive.Summarize(outcomes)}
	for _, o := range outcomes {
		resp.Outcomes = append(resp.Outcomes, convertOutcome(o))
	}
	if err := printResponse(resp, deriveFormat); err != nil {
		return err
	}
	if deriveShowMetrics {
		a.printMetrics()
	}
	if resp.Summary.Failure > 0 {
		return fmt.Errorf("%d of %d derivations failed", resp.Summary.Failure, len(outcomes))
	}
	return nil
}
