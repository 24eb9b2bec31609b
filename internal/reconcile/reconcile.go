// Package reconcile merges freshly derived code mappings and in-app rules
// into a project's existing configuration.
package reconcile

import (
	"codemap/internal/codemapping"
	"codemap/internal/frames"
	"codemap/internal/repotree"
	"codemap/internal/rules"
)

// Mapping is a persisted code mapping as seen by the reconciler.
type Mapping struct {
	RepoName               string
	StackRoot              string
	SourceRoot             string
	AutomaticallyGenerated bool
}

// State is everything the reconciler reads about one project. It is loaded
// and committed while holding the project's lock.
type State struct {
	ProjectID      int64
	OrganizationID int64
	Mappings       []Mapping
	// Repositories are the names already registered for the organization
	// and integration.
	Repositories   []string
	ManualRules    rules.List
	AutomaticRules rules.List
}

// Options controls reconciliation policy.
type Options struct {
	IntegrationID int64
	Categorizer   frames.Categorizer
	// PruneUnbacked removes every automatic rule that no automatically
	// generated mapping or current candidate backs, not only rules for
	// internal packages.
	PruneUnbacked bool
}

// Plan is the unit of commit: the changes to apply atomically.
type Plan struct {
	ProjectID       int64
	OrganizationID  int64
	IntegrationID   int64
	NewRepositories []repotree.Repository
	NewMappings     []codemapping.CodeMapping
	AddedRules      rules.List
	RemovedRules    rules.List
	// AutomaticRules is the complete automatic rule list after the plan.
	AutomaticRules rules.List
	// Skipped counts candidates already present or shadowed by a manual
	// mapping.
	Skipped int
}

// RulesChanged reports whether the automatic rule list is modified.
func (p Plan) RulesChanged() bool {
	return len(p.AddedRules) > 0 || len(p.RemovedRules) > 0
}

// Empty reports whether the plan changes nothing.
func (p Plan) Empty() bool {
	return len(p.NewRepositories) == 0 && len(p.NewMappings) == 0 && !p.RulesChanged()
}

// Compute builds the plan for merging candidates into state. It does not
// modify state.
func Compute(state State, candidates codemapping.Result, opts Options) Plan {
	plan := Plan{
		ProjectID:      state.ProjectID,
		OrganizationID: state.OrganizationID,
		IntegrationID:  opts.IntegrationID,
	}

	exact := make(map[[2]string]bool, len(state.Mappings))
	manualRoots := make(map[string]bool)
	// backedRoots are stack roots whose automatic rule is still wanted.
	backedRoots := make(map[string]bool)
	for _, m := range state.Mappings {
		exact[[2]string{m.StackRoot, m.SourceRoot}] = true
		if m.AutomaticallyGenerated {
			backedRoots[m.StackRoot] = true
		} else {
			manualRoots[m.StackRoot] = true
		}
	}
	knownRepos := make(map[string]bool, len(state.Repositories))
	for _, name := range state.Repositories {
		knownRepos[name] = true
	}

	for _, c := range candidates.Mappings {
		key := [2]string{c.StackRoot, c.SourceRoot}
		// A candidate still backs its rule when an existing mapping covers it.
		backedRoots[c.StackRoot] = true
		if exact[key] || manualRoots[c.StackRoot] {
			plan.Skipped++
			continue
		}
		exact[key] = true
		plan.NewMappings = append(plan.NewMappings, c)

		if !knownRepos[c.Repo.Name] {
			knownRepos[c.Repo.Name] = true
			plan.NewRepositories = append(plan.NewRepositories, c.Repo)
		}
	}

	kept, removed := state.AutomaticRules.Without(func(r rules.Rule) bool {
		if candidates.Rules.HasPattern(r.Pattern) {
			return false
		}
		return unintended(r, backedRoots, opts)
	})
	plan.RemovedRules = removed

	for _, r := range candidates.Rules {
		if state.ManualRules.HasPattern(r.Pattern) || kept.HasPattern(r.Pattern) {
			continue
		}
		kept = append(kept, r)
		plan.AddedRules = append(plan.AddedRules, r)
	}
	plan.AutomaticRules = kept

	return plan
}

// unintended reports whether an automatic rule should be pruned: neither an
// automatically generated mapping nor a current candidate backs it, and
// either its package is platform internals or unbacked rules are pruned
// unconditionally.
func unintended(r rules.Rule, backedRoots map[string]bool, opts Options) bool {
	prefix := r.PackagePrefix()
	if prefix == "" || backedRoots[r.StackRoot()] {
		return false
	}
	return opts.PruneUnbacked || opts.Categorizer.IsCategorizedPrefix(prefix)
}
