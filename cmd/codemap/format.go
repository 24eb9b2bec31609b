package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"codemap/internal/derive"
	"codemap/internal/platform"
	"codemap/internal/rules"
	"codemap/internal/storage"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatHuman OutputFormat = "human"
)

// FormatResponse formats a response according to the specified format
func FormatResponse(resp interface{}, format OutputFormat) (string, error) {
	switch format {
	case FormatJSON:
		return formatJSON(resp)
	case FormatHuman:
		return formatHuman(resp)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

func formatJSON(resp interface{}) (string, error) {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

func formatHuman(resp interface{}) (string, error) {
	switch v := resp.(type) {
	case *OutcomeResponseCLI:
		return formatOutcomeHuman(v), nil
	case *BatchResponseCLI:
		return formatBatchHuman(v), nil
	case *MappingsResponseCLI:
		return formatMappingsHuman(v), nil
	case *RulesResponseCLI:
		return formatRulesHuman(v), nil
	case *RuleCheckResponseCLI:
		return formatRuleCheckHuman(v), nil
	case *PlatformsResponseCLI:
		return formatPlatformsHuman(v), nil
	default:
		return formatJSON(resp)
	}
}

// MappingCLI is one code mapping in CLI output.
type MappingCLI struct {
	Repository             string `json:"repository"`
	StackRoot              string `json:"stackRoot"`
	SourceRoot             string `json:"sourceRoot"`
	Branch                 string `json:"branch,omitempty"`
	AutomaticallyGenerated bool   `json:"automaticallyGenerated"`
}

// OutcomeResponseCLI is the CLI view of one derivation run.
type OutcomeResponseCLI struct {
	RunID        string       `json:"runId"`
	EventID      string       `json:"eventId"`
	ProjectID    int64        `json:"projectId"`
	Platform     string       `json:"platform"`
	Status       string       `json:"status"`
	Reason       string       `json:"reason,omitempty"`
	DryRun       bool         `json:"dryRun"`
	Error        string       `json:"error,omitempty"`
	Eligible     int          `json:"eligibleFrames"`
	Unmatched    int          `json:"unmatchedFrames"`
	Conflicts    int          `json:"conflicts"`
	Skipped      int          `json:"skipped"`
	Mappings     []MappingCLI `json:"mappings"`
	AddedRules   []string     `json:"addedRules"`
	RemovedRules []string     `json:"removedRules"`
	DurationMs   int64        `json:"durationMs"`
}

// BatchResponseCLI is the CLI view of a batch run.
type BatchResponseCLI struct {
	Summary  derive.Summary        `json:"summary"`
	Outcomes []*OutcomeResponseCLI `json:"outcomes"`
}

// MappingsResponseCLI lists a project's code mappings.
type MappingsResponseCLI struct {
	ProjectID int64        `json:"projectId"`
	Mappings  []MappingCLI `json:"mappings"`
}

// RulesResponseCLI lists a project's rule lists.
type RulesResponseCLI struct {
	ProjectID int64    `json:"projectId"`
	Manual    []string `json:"manual"`
	Automatic []string `json:"automatic"`
}

// RuleCheckResponseCLI is the effective in-app decision for one module.
type RuleCheckResponseCLI struct {
	ProjectID int64  `json:"projectId"`
	Module    string `json:"module"`
	Matched   bool   `json:"matched"`
	InApp     bool   `json:"inApp"`
}

// PlatformCLI is one row of the platform table.
type PlatformCLI struct {
	Name                string   `json:"name"`
	Kind                string   `json:"kind"`
	Supported           bool     `json:"supported"`
	DryRun              bool     `json:"dryRun"`
	DryRunOrganizations []int64  `json:"dryRunOrganizations,omitempty"`
	Extensions          []string `json:"extensions"`
	InternalModules     []string `json:"internalModules,omitempty"`
}

// PlatformsResponseCLI is the effective platform table.
type PlatformsResponseCLI struct {
	Platforms []PlatformCLI `json:"platforms"`
}

func convertOutcome(o derive.Outcome) *OutcomeResponseCLI {
	resp := &OutcomeResponseCLI{
		RunID:        o.RunID,
		EventID:      o.EventID,
		ProjectID:    o.ProjectID,
		Platform:     o.Platform,
		Status:       string(o.Status),
		Reason:       o.Reason,
		DryRun:       o.DryRun,
		Eligible:     len(o.Selection.Eligible),
		Unmatched:    o.Derived.Unmatched,
		Conflicts:    o.Derived.Conflicts,
		Skipped:      o.Plan.Skipped,
		Mappings:     []MappingCLI{},
		AddedRules:   o.CandidateRules(),
		RemovedRules: ruleStrings(o.Plan.RemovedRules),
		DurationMs:   o.Duration.Milliseconds(),
	}
	if o.Err != nil {
		resp.Error = o.Err.Error()
	}
	for _, m := range o.CandidateMappings() {
		resp.Mappings = append(resp.Mappings, MappingCLI{
			Repository:             m.Repo.Name,
			StackRoot:              m.StackRoot,
			SourceRoot:             m.SourceRoot,
			Branch:                 m.Repo.Branch,
			AutomaticallyGenerated: true,
		})
	}
	return resp
}

func convertMappings(projectID int64, ms []*storage.CodeMapping) *MappingsResponseCLI {
	resp := &MappingsResponseCLI{ProjectID: projectID, Mappings: []MappingCLI{}}
	for _, m := range ms {
		resp.Mappings = append(resp.Mappings, MappingCLI{
			Repository:             m.RepositoryName,
			StackRoot:              m.StackRoot,
			SourceRoot:             m.SourceRoot,
			Branch:                 m.DefaultBranch,
			AutomaticallyGenerated: m.AutomaticallyGenerated,
		})
	}
	return resp
}

func convertPlatforms(reg *platform.Registry) *PlatformsResponseCLI {
	resp := &PlatformsResponseCLI{}
	for _, name := range reg.Names() {
		c := reg.Lookup(name)
		resp.Platforms = append(resp.Platforms, PlatformCLI{
			Name:                c.Name,
			Kind:                c.Kind.String(),
			Supported:           c.Supported,
			DryRun:              c.DryRun,
			DryRunOrganizations: c.DryRunOrganizations,
			Extensions:          c.Extensions,
			InternalModules:     c.InternalModules,
		})
	}
	return resp
}

func ruleStrings(l rules.List) []string {
	out := make([]string, 0, len(l))
	for _, r := range l {
		out = append(out, r.String())
	}
	return out
}

func formatOutcomeHuman(o *OutcomeResponseCLI) string {
	var b strings.Builder

	mode := ""
	if o.DryRun {
		mode = " (dry run)"
	}
	b.WriteString(fmt.Sprintf("Event %s, project %d, %s: %s%s\n", o.EventID, o.ProjectID, o.Platform, o.Status, mode))
	if o.Reason != "" {
		b.WriteString(fmt.Sprintf("  Reason: %s\n", o.Reason))
	}
	if o.Error != "" {
		b.WriteString(fmt.Sprintf("  Error: %s\n", o.Error))
	}
	b.WriteString(fmt.Sprintf("  Frames: %d eligible, %d unmatched, %d conflicts\n", o.Eligible, o.Unmatched, o.Conflicts))

	if len(o.Mappings) > 0 {
		b.WriteString("  Code mappings:\n")
		for _, m := range o.Mappings {
			b.WriteString(fmt.Sprintf("    %q -> %q (%s)\n", m.StackRoot, m.SourceRoot, m.Repository))
		}
	}
	if len(o.AddedRules) > 0 {
		b.WriteString("  Added rules:\n")
		for _, r := range o.AddedRules {
			b.WriteString("    " + r + "\n")
		}
	}
	if len(o.RemovedRules) > 0 {
		b.WriteString("  Removed rules:\n")
		for _, r := range o.RemovedRules {
			b.WriteString("    " + r + "\n")
		}
	}
	b.WriteString(fmt.Sprintf("  Run %s in %dms\n", o.RunID, o.DurationMs))
	return b.String()
}

func formatBatchHuman(resp *BatchResponseCLI) string {
	var b strings.Builder
	for _, o := range resp.Outcomes {
		line := fmt.Sprintf("%-8s %-24s project=%d event=%s", o.Status, o.Reason, o.ProjectID, o.EventID)
		if len(o.Mappings) > 0 || len(o.AddedRules) > 0 {
			line += fmt.Sprintf(" mappings=%d rules=%d", len(o.Mappings), len(o.AddedRules))
		}
		b.WriteString(line + "\n")
	}
	s := resp.Summary
	b.WriteString(strings.Repeat("-", 60) + "\n")
	b.WriteString(fmt.Sprintf("%d success, %d halt, %d failure\n", s.Success, s.Halt, s.Failure))
	b.WriteString(fmt.Sprintf("Created %d repositories, %d code mappings; added %d rules, removed %d\n",
		s.RepositoriesCreated, s.MappingsCreated, s.RulesAdded, s.RulesRemoved))
	return b.String()
}

func formatMappingsHuman(resp *MappingsResponseCLI) string {
	if len(resp.Mappings) == 0 {
		return fmt.Sprintf("No code mappings for project %d\n", resp.ProjectID)
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Code mappings for project %d:\n", resp.ProjectID))
	for _, m := range resp.Mappings {
		origin := "manual"
		if m.AutomaticallyGenerated {
			origin = "auto"
		}
		b.WriteString(fmt.Sprintf("  [%s] %q -> %q (%s@%s)\n", origin, m.StackRoot, m.SourceRoot, m.Repository, m.Branch))
	}
	return b.String()
}

func formatRulesHuman(resp *RulesResponseCLI) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Rules for project %d\n", resp.ProjectID))
	section := func(title string, list []string) {
		b.WriteString(title + ":\n")
		if len(list) == 0 {
			b.WriteString("  (none)\n")
		}
		for _, r := range list {
			b.WriteString("  " + r + "\n")
		}
	}
	section("Automatic", resp.Automatic)
	section("Manual", resp.Manual)
	return b.String()
}

func formatRuleCheckHuman(resp *RuleCheckResponseCLI) string {
	switch {
	case !resp.Matched:
		return fmt.Sprintf("%s: no rule matches\n", resp.Module)
	case resp.InApp:
		return fmt.Sprintf("%s: in-app\n", resp.Module)
	default:
		return fmt.Sprintf("%s: not in-app\n", resp.Module)
	}
}

func formatPlatformsHuman(resp *PlatformsResponseCLI) string {
	var b strings.Builder
	for _, p := range resp.Platforms {
		flags := []string{p.Kind}
		if !p.Supported {
			flags = append(flags, "unsupported")
		}
		if p.DryRun {
			flags = append(flags, "dry-run")
		}
		if len(p.DryRunOrganizations) > 0 {
			flags = append(flags, fmt.Sprintf("dry-run orgs %v", p.DryRunOrganizations))
		}
		b.WriteString(fmt.Sprintf("%-12s %s\n", p.Name, strings.Join(flags, ", ")))
		b.WriteString(fmt.Sprintf("  extensions: %s\n", strings.Join(p.Extensions, " ")))
		if len(p.InternalModules) > 0 {
			b.WriteString(fmt.Sprintf("  internal:   %s\n", strings.Join(p.InternalModules, " ")))
		}
	}
	return b.String()
}

// printResponse formats resp and writes it to stdout.
func printResponse(resp interface{}, format string) error {
	out, err := FormatResponse(resp, OutputFormat(format))
	if err != nil {
		return err
	}
	fmt.Println(strings.TrimRight(out, "\n"))
	return nil
}
