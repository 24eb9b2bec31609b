package derive

import (
	"strings"
	"time"

	"codemap/internal/codemapping"
	"codemap/internal/errors"
	"codemap/internal/frames"
	"codemap/internal/reconcile"
	"codemap/internal/storage"
)

// Status is the outcome class of a run.
type Status string

const (
	StatusSuccess Status = "success"
	StatusHalt    Status = "halt"
	StatusFailure Status = "failure"
)

// Reasons reported with successful runs.
const (
	ReasonUnsupportedPlatform = "unsupported_platform"
	ReasonNoEligibleFrames    = "no_eligible_frames"
	ReasonNoMatches           = "no_matches"
	ReasonNoChanges           = "no_changes"
	ReasonDryRun              = "dry_run"
	ReasonApplied             = "applied"
)

// Outcome is the result of processing one event. Err is set for halts and
// failures only.
type Outcome struct {
	RunID     string
	EventID   string
	ProjectID int64
	Platform  string
	Status    Status
	Reason    string
	DryRun    bool
	Err       error

	Selection frames.Selection
	Derived   codemapping.Result
	Plan      reconcile.Plan
	Applied   storage.ApplyResult
	Duration  time.Duration
}

// CandidateMappings returns the mappings the run created, or would have
// created on a dry run.
func (o Outcome) CandidateMappings() []codemapping.CodeMapping {
	return o.Plan.NewMappings
}

// CandidateRules returns the serialized in-app rules the run added, or would
// have added on a dry run.
func (o Outcome) CandidateRules() []string {
	out := make([]string, 0, len(o.Plan.AddedRules))
	for _, r := range o.Plan.AddedRules {
		out = append(out, r.String())
	}
	return out
}

func (o *Outcome) succeed(reason string) {
	o.Status = StatusSuccess
	o.Reason = reason
	o.Err = nil
}

// fail classifies err as a halt or a failure.
func (o *Outcome) fail(err error) {
	o.Err = err
	o.Reason = strings.ToLower(string(errors.CodeOf(err)))
	if errors.IsHalt(err) {
		o.Status = StatusHalt
	} else {
		o.Status = StatusFailure
	}
}

// Summary aggregates the outcomes of a batch.
type Summary struct {
	Success             int `json:"success"`
	Halt                int `json:"halt"`
	Failure             int `json:"failure"`
	RepositoriesCreated int `json:"repositoriesCreated"`
	MappingsCreated     int `json:"mappingsCreated"`
	RulesAdded          int `json:"rulesAdded"`
	RulesRemoved        int `json:"rulesRemoved"`
}

// Summarize counts outcomes by status and totals the committed changes.
// Dry runs contribute to the status counts only.
func Summarize(outcomes []Outcome) Summary {
	var s Summary
	for _, o := range outcomes {
		switch o.Status {
		case StatusSuccess:
			s.Success++
		case StatusHalt:
			s.Halt++
		case StatusFailure:
			s.Failure++
		}
		if o.DryRun {
			continue
		}
		s.RepositoriesCreated += o.Applied.RepositoriesCreated
		s.MappingsCreated += o.Applied.MappingsCreated
		if o.Applied.RulesWritten {
			s.RulesAdded += len(o.Plan.AddedRules)
			s.RulesRemoved += len(o.Plan.RemovedRules)
		}
	}
	return s
}
