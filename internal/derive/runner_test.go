package derive

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codemap/internal/frames"
	"codemap/internal/repotree"
)

func TestRunner_ProcessAllKeepsOrder(t *testing.T) {
	f := newFixture(t, map[string][]string{repo1: {"src/foo/bar.py", "src/app/main.py"}})
	r := NewRunner(f.engine())

	events := []*frames.Event{
		event("python", pathFrame("foo/bar.py")),
		event("other", pathFrame("foo/bar.py")),
		event("python", pathFrame("nope/none.py")),
	}
	for i, ev := range events {
		ev.EventID = fmt.Sprintf("e%d", i)
		ev.ProjectID = int64(100 + i)
	}

	outcomes := r.ProcessAll(context.Background(), events, 2)
	require.Len(t, outcomes, 3)
	for i, o := range outcomes {
		assert.Equal(t, fmt.Sprintf("e%d", i), o.EventID)
	}
	assert.Equal(t, ReasonApplied, outcomes[0].Reason)
	assert.Equal(t, ReasonUnsupportedPlatform, outcomes[1].Reason)
	assert.Equal(t, ReasonNoMatches, outcomes[2].Reason)

	s := Summarize(outcomes)
	assert.Equal(t, Summary{Success: 3, RepositoriesCreated: 1, MappingsCreated: 1}, s)
}

func TestRunner_SameProjectContention(t *testing.T) {
	f := newFixture(t, map[string][]string{repo1: {"src/foo/bar.py"}})
	r := NewRunner(f.engine())

	events := make([]*frames.Event, 8)
	for i := range events {
		events[i] = event("python", pathFrame("foo/bar.py"))
	}

	outcomes := r.ProcessAll(context.Background(), events, 4)
	for _, o := range outcomes {
		assert.Contains(t, []Status{StatusSuccess, StatusHalt}, o.Status, "err: %v", o.Err)
		if o.Status == StatusHalt {
			assert.Equal(t, "lock_unavailable", o.Reason)
		}
	}
	assert.Len(t, f.mappings(t), 1, "the mapping is created exactly once")
	assert.Equal(t, 1, Summarize(outcomes).MappingsCreated)
}

func TestRunner_DefaultConcurrency(t *testing.T) {
	f := newFixture(t, nil)
	f.opts.Trees = repotree.StaticProvider{}
	r := NewRunner(f.engine())

	outcomes := r.ProcessAll(context.Background(), []*frames.Event{event("python", pathFrame("foo/bar.py"))}, 0)
	require.Len(t, outcomes, 1)
	assert.Equal(t, ReasonNoMatches, outcomes[0].Reason)
}
