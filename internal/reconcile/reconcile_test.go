package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codemap/internal/codemapping"
	"codemap/internal/frames"
	"codemap/internal/platform"
	"codemap/internal/repotree"
	"codemap/internal/rules"
)

var (
	repo1 = repotree.Repository{Name: "test-org/repo1", Branch: "master"}
	repo2 = repotree.Repository{Name: "test-org/repo2", Branch: "master"}
	java  = frames.Categorizer{Platform: platform.DefaultRegistry().Lookup("java")}
)

func mustRules(t *testing.T, text string) rules.List {
	t.Helper()
	return rules.ParseList(text)
}

func TestCompute_NewMappingsAndRepositories(t *testing.T) {
	state := State{ProjectID: 1, OrganizationID: 2, Repositories: []string{repo1.Name}}
	candidates := codemapping.Result{Mappings: []codemapping.CodeMapping{
		{Repo: repo1, StackRoot: "foo/", SourceRoot: "src/foo/"},
		{Repo: repo2, StackRoot: "baz/", SourceRoot: "app/baz/"},
	}}

	plan := Compute(state, candidates, Options{IntegrationID: 3})
	assert.Equal(t, int64(1), plan.ProjectID)
	assert.Equal(t, int64(3), plan.IntegrationID)
	assert.Len(t, plan.NewMappings, 2)
	assert.Equal(t, []repotree.Repository{repo2}, plan.NewRepositories)
	assert.False(t, plan.RulesChanged())
	assert.False(t, plan.Empty())
}

func TestCompute_SkipsExistingAndManualShadowed(t *testing.T) {
	state := State{
		Mappings: []Mapping{
			{RepoName: "repo", StackRoot: "foo/", SourceRoot: "src/foo/", AutomaticallyGenerated: false},
			{RepoName: repo1.Name, StackRoot: "app/", SourceRoot: "src/app/", AutomaticallyGenerated: true},
		},
		Repositories: []string{"repo", repo1.Name},
	}
	candidates := codemapping.Result{Mappings: []codemapping.CodeMapping{
		{Repo: repo1, StackRoot: "foo/", SourceRoot: "lib/foo/"},
		{Repo: repo1, StackRoot: "app/", SourceRoot: "src/app/"},
	}}

	plan := Compute(state, candidates, Options{})
	assert.Empty(t, plan.NewMappings)
	assert.Empty(t, plan.NewRepositories)
	assert.Equal(t, 2, plan.Skipped)
	assert.True(t, plan.Empty())
}

func TestCompute_AppendsRulesWithoutClobbering(t *testing.T) {
	state := State{
		AutomaticRules: mustRules(t, "stack.module:a.** +app"),
		ManualRules:    mustRules(t, "stack.module:com.example.** -app"),
		Mappings:       []Mapping{{StackRoot: "a/", SourceRoot: "src/a/", AutomaticallyGenerated: true}},
	}
	candidates := codemapping.Result{
		Mappings: []codemapping.CodeMapping{
			{Repo: repo1, StackRoot: "x/y/", SourceRoot: "src/x/y/"},
			{Repo: repo1, StackRoot: "com/example/", SourceRoot: "src/com/example/"},
		},
		Rules: mustRules(t, "stack.module:x.y.** +app\nstack.module:com.example.** +app\nstack.module:a.** +app"),
	}

	plan := Compute(state, candidates, Options{Categorizer: java})
	assert.Equal(t, "stack.module:x.y.** +app", plan.AddedRules.String())
	assert.Equal(t, "stack.module:a.** +app\nstack.module:x.y.** +app", plan.AutomaticRules.String())
	assert.Empty(t, plan.RemovedRules)
}

func TestCompute_OldGranularityRuleIsKept(t *testing.T) {
	state := State{
		Mappings:       []Mapping{{RepoName: "repo1", StackRoot: "uk.co.**", SourceRoot: "src/uk/co/", AutomaticallyGenerated: true}},
		Repositories:   []string{"repo1"},
		AutomaticRules: mustRules(t, "stack.module:uk.co.** +app"),
	}
	candidates := codemapping.Result{
		Mappings: []codemapping.CodeMapping{{Repo: repo1, StackRoot: "uk/co/example/", SourceRoot: "src/uk/co/example/"}},
		Rules:    mustRules(t, "stack.module:uk.co.example.** +app"),
	}

	plan := Compute(state, candidates, Options{Categorizer: java})
	assert.Len(t, plan.NewMappings, 1)
	assert.Equal(t, []repotree.Repository{repo1}, plan.NewRepositories)
	assert.Equal(t, "stack.module:uk.co.** +app\nstack.module:uk.co.example.** +app", plan.AutomaticRules.String())
}

func TestCompute_PrunesUnintendedRules(t *testing.T) {
	state := State{AutomaticRules: mustRules(t, "stack.module:akka.** +app\nstack.module:foo.bar.** +app")}

	plan := Compute(state, codemapping.Result{}, Options{Categorizer: java})
	assert.Equal(t, "stack.module:akka.** +app", plan.RemovedRules.String())
	assert.Equal(t, "stack.module:foo.bar.** +app", plan.AutomaticRules.String())
	assert.True(t, plan.RulesChanged())
}

func TestCompute_BackedInternalRuleIsKept(t *testing.T) {
	state := State{
		AutomaticRules: mustRules(t, "stack.module:android.app.** +app"),
		Mappings:       []Mapping{{StackRoot: "android/app/", SourceRoot: "src/android/app/", AutomaticallyGenerated: true}},
	}

	plan := Compute(state, codemapping.Result{}, Options{Categorizer: java})
	assert.Empty(t, plan.RemovedRules)
	assert.Equal(t, "stack.module:android.app.** +app", plan.AutomaticRules.String())
}

func TestCompute_PruneUnbacked(t *testing.T) {
	state := State{
		AutomaticRules: mustRules(t, "stack.module:foo.bar.** +app\nstack.module:a.** +app"),
		ManualRules:    mustRules(t, "stack.module:akka.** +app"),
	}
	candidates := codemapping.Result{
		Mappings: []codemapping.CodeMapping{{Repo: repo1, StackRoot: "a/", SourceRoot: "src/a/"}},
	}

	plan := Compute(state, candidates, Options{Categorizer: java, PruneUnbacked: true})
	assert.Equal(t, "stack.module:foo.bar.** +app", plan.RemovedRules.String())
	assert.Equal(t, "stack.module:a.** +app", plan.AutomaticRules.String(), "rule backed by a new mapping is kept")
	assert.Equal(t, "stack.module:akka.** +app", state.ManualRules.String(), "manual rules are never pruned")
}

func TestCompute_DoesNotMutateState(t *testing.T) {
	state := State{AutomaticRules: mustRules(t, "stack.module:akka.** +app\nstack.module:foo.bar.** +app")}
	candidates := codemapping.Result{Rules: mustRules(t, "stack.module:x.** +app")}

	_ = Compute(state, candidates, Options{Categorizer: java})
	assert.Equal(t, "stack.module:akka.** +app\nstack.module:foo.bar.** +app", state.AutomaticRules.String())
}

func TestCompute_PruneUnbackedSettlesWhenManualMappingCovers(t *testing.T) {
	state := State{
		Mappings:     []Mapping{{RepoName: repo1.Name, StackRoot: "com/example/", SourceRoot: "src/com/example/"}},
		Repositories: []string{repo1.Name},
	}
	candidates := codemapping.Result{
		Mappings: []codemapping.CodeMapping{{Repo: repo1, StackRoot: "com/example/", SourceRoot: "src/com/example/"}},
		Rules:    mustRules(t, "stack.module:com.example.** +app"),
	}
	opts := Options{Categorizer: java, PruneUnbacked: true}

	first := Compute(state, candidates, opts)
	assert.Empty(t, first.NewMappings)
	assert.Equal(t, "stack.module:com.example.** +app", first.AddedRules.String())
	assert.Empty(t, first.RemovedRules)

	state.AutomaticRules = first.AutomaticRules
	for i := 0; i < 2; i++ {
		again := Compute(state, candidates, opts)
		require.True(t, again.Empty(), "run %d: added=%q removed=%q", i+2, again.AddedRules.String(), again.RemovedRules.String())
		assert.Equal(t, "stack.module:com.example.** +app", again.AutomaticRules.String())
	}
}

func TestCompute_CandidateRuleIsNeverRemovedAndReadded(t *testing.T) {
	state := State{AutomaticRules: mustRules(t, "stack.module:akka.actor.** +app")}
	candidates := codemapping.Result{Rules: mustRules(t, "stack.module:akka.actor.** +app")}

	plan := Compute(state, candidates, Options{Categorizer: java, PruneUnbacked: true})
	assert.Empty(t, plan.RemovedRules)
	assert.Empty(t, plan.AddedRules)
	assert.True(t, plan.Empty())
}

func TestCompute_OpaqueRulesAreKept(t *testing.T) {
	state := State{
		AutomaticRules: mustRules(t, "family:native function:std::* -app\nstack.module:akka.** +app"),
		ManualRules:    mustRules(t, "family:native -app"),
	}

	plan := Compute(state, codemapping.Result{}, Options{Categorizer: java, PruneUnbacked: true})
	assert.Equal(t, "stack.module:akka.** +app", plan.RemovedRules.String())
	assert.Equal(t, "family:native function:std::* -app", plan.AutomaticRules.String())
}
