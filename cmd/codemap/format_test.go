package main

import (
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"codemap/internal/codemapping"
	"codemap/internal/derive"
	"codemap/internal/platform"
	"codemap/internal/reconcile"
	"codemap/internal/repotree"
	"codemap/internal/rules"
	"codemap/internal/storage"
)

func sampleOutcome() derive.Outcome {
	return derive.Outcome{
		RunID:     "run-1",
		EventID:   "e1",
		ProjectID: 1,
		Platform:  "java",
		Status:    derive.StatusSuccess,
		Reason:    derive.ReasonApplied,
		Plan: reconcile.Plan{
			NewMappings: []codemapping.CodeMapping{{
				Repo:       repotree.Repository{Name: "test-org/repo1", Branch: "main"},
				StackRoot:  "com/example/",
				SourceRoot: "src/com/example/",
			}},
			AddedRules:   rules.List{{Pattern: "com.example.**", InApp: true}},
			RemovedRules: rules.List{{Pattern: "akka.**", InApp: true}},
		},
		Duration: 3 * time.Millisecond,
	}
}

func TestFormatResponse_JSON(t *testing.T) {
	result, err := FormatResponse(convertOutcome(sampleOutcome()), FormatJSON)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{
		`"status": "success"`,
		`"stackRoot": "com/example/"`,
		`"stack.module:com.example.** +app"`,
		`"durationMs": 3`,
	} {
		if !strings.Contains(result, want) {
			t.Errorf("JSON output missing %s:\n%s", want, result)
		}
	}
}

func TestFormatResponse_UnsupportedFormat(t *testing.T) {
	_, err := FormatResponse(map[string]string{"key": "value"}, "xml")
	if err == nil {
		t.Fatal("expected error for unsupported format")
	}
	if !strings.Contains(err.Error(), "unsupported format") {
		t.Errorf("error should mention unsupported format, got: %v", err)
	}
}

func TestFormatOutcomeHuman(t *testing.T) {
	result, err := FormatResponse(convertOutcome(sampleOutcome()), FormatHuman)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{
		"Event e1, project 1, java: success",
		`"com/example/" -> "src/com/example/" (test-org/repo1)`,
		"Added rules:\n    stack.module:com.example.** +app",
		"Removed rules:\n    stack.module:akka.** +app",
	} {
		if !strings.Contains(result, want) {
			t.Errorf("human output missing %q:\n%s", want, result)
		}
	}
}

func TestConvertOutcome_Error(t *testing.T) {
	o := derive.Outcome{Status: derive.StatusHalt, Reason: "lock_unavailable", Err: stderrors.New("locked")}
	resp := convertOutcome(o)
	if resp.Error != "locked" {
		t.Errorf("Error = %q, want %q", resp.Error, "locked")
	}
	if resp.Mappings == nil || len(resp.Mappings) != 0 {
		t.Errorf("Mappings = %v, want empty non-nil slice", resp.Mappings)
	}
}

func TestFormatMappingsHuman(t *testing.T) {
	resp := convertMappings(1, []*storage.CodeMapping{
		{RepositoryName: "repo", StackRoot: "foo/", SourceRoot: "src/foo/", DefaultBranch: "main"},
		{RepositoryName: "repo", StackRoot: "", SourceRoot: "", DefaultBranch: "main", AutomaticallyGenerated: true},
	})
	result := formatMappingsHuman(resp)

	if !strings.Contains(result, `[manual] "foo/" -> "src/foo/" (repo@main)`) {
		t.Errorf("missing manual mapping:\n%s", result)
	}
	if !strings.Contains(result, `[auto] "" -> "" (repo@main)`) {
		t.Errorf("missing automatic mapping:\n%s", result)
	}
	if got := formatMappingsHuman(convertMappings(2, nil)); got != "No code mappings for project 2\n" {
		t.Errorf("empty output = %q", got)
	}
}

func TestFormatRuleCheckHuman(t *testing.T) {
	tests := []struct {
		resp RuleCheckResponseCLI
		want string
	}{
		{RuleCheckResponseCLI{Module: "a.B"}, "a.B: no rule matches\n"},
		{RuleCheckResponseCLI{Module: "a.B", Matched: true, InApp: true}, "a.B: in-app\n"},
		{RuleCheckResponseCLI{Module: "a.B", Matched: true}, "a.B: not in-app\n"},
	}
	for _, tt := range tests {
		if got := formatRuleCheckHuman(&tt.resp); got != tt.want {
			t.Errorf("formatRuleCheckHuman(%+v) = %q, want %q", tt.resp, got, tt.want)
		}
	}
}

func TestConvertPlatforms(t *testing.T) {
	resp := convertPlatforms(platform.DefaultRegistry())
	var java *PlatformCLI
	for i := range resp.Platforms {
		if resp.Platforms[i].Name == "java" {
			java = &resp.Platforms[i]
		}
	}
	if java == nil {
		t.Fatal("java missing from platform table")
	}
	if !java.Supported || len(java.InternalModules) == 0 {
		t.Errorf("java = %+v, want supported with internal modules", java)
	}
	if !strings.Contains(formatPlatformsHuman(resp), "java") {
		t.Error("human output missing java")
	}
}

func TestFormatBatchHuman(t *testing.T) {
	resp := &BatchResponseCLI{
		Summary:  derive.Summary{Success: 1, Halt: 1, MappingsCreated: 1},
		Outcomes: []*OutcomeResponseCLI{convertOutcome(sampleOutcome())},
	}
	result := formatBatchHuman(resp)
	if !strings.Contains(result, "1 success, 1 halt, 0 failure") {
		t.Errorf("missing summary:\n%s", result)
	}
	if !strings.Contains(result, "mappings=1 rules=1") {
		t.Errorf("missing per-event counts:\n%s", result)
	}
}
