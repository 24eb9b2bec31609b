package derive

import (
	"context"

	"golang.org/x/sync/errgroup"

	"codemap/internal/frames"
)

// DefaultConcurrency is used when ProcessAll is given a non-positive limit.
const DefaultConcurrency = 4

// Runner processes batches of events on one Engine.
type Runner struct {
	engine *Engine
}

// NewRunner creates a runner for engine.
func NewRunner(engine *Engine) *Runner {
	return &Runner{engine: engine}
}

// ProcessAll processes events with at most concurrency runs in flight and
// returns one outcome per event, in input order. Runs for the same project
// contend on the project lock; losers halt.
func (r *Runner) ProcessAll(ctx context.Context, events []*frames.Event, concurrency int) []Outcome {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	outcomes := make([]Outcome, len(events))

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, ev := range events {
		i, ev := i, ev
		g.Go(func() error {
			outcomes[i] = r.engine.ProcessEvent(ctx, ev)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}
