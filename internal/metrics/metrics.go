// Package metrics records derivation counters. Recording is best effort: a
// nil *Recorder accepts every call and records nothing.
package metrics

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder owns the derivation metrics and the registry they live in.
type Recorder struct {
	registry *prometheus.Registry

	rulesCreated        *prometheus.CounterVec
	mappingsCreated     *prometheus.CounterVec
	repositoriesCreated *prometheus.CounterVec
	rulesRemoved        *prometheus.CounterVec
	outcomes            *prometheus.CounterVec
	duration            *prometheus.HistogramVec
}

// NewRecorder creates a recorder with its own registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,

		// rulesCreated counts in-app rules added to automatic rule lists
		rulesCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "codemap_in_app_stack_trace_rules_created_total",
			Help: "In-app stack trace rules created, by dry run and platform",
		}, []string{"dry_run", "platform"}),

		mappingsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "codemap_code_mapping_created_total",
			Help: "Code mappings created, by dry run and platform",
		}, []string{"dry_run", "platform"}),

		repositoriesCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "codemap_repository_created_total",
			Help: "Repository records created, by dry run and platform",
		}, []string{"dry_run", "platform"}),

		rulesRemoved: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "codemap_unintended_rules_removed_total",
			Help: "Automatic rules pruned because nothing backs them",
		}, []string{"platform"}),

		outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "codemap_derivation_outcome_total",
			Help: "Derivation runs by outcome and reason",
		}, []string{"outcome", "reason"}),

		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "codemap_derivation_duration_seconds",
			Help:    "Derivation run duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		}, []string{"outcome"}),
	}
}

// Registry returns the registry holding the recorder's metrics.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// RulesCreated adds n created in-app rules.
func (r *Recorder) RulesCreated(platform string, dryRun bool, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.rulesCreated.WithLabelValues(strconv.FormatBool(dryRun), platform).Add(float64(n))
}

// CodeMappingsCreated adds n created code mappings.
func (r *Recorder) CodeMappingsCreated(platform string, dryRun bool, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.mappingsCreated.WithLabelValues(strconv.FormatBool(dryRun), platform).Add(float64(n))
}

// RepositoriesCreated adds n created repository records.
func (r *Recorder) RepositoriesCreated(platform string, dryRun bool, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.repositoriesCreated.WithLabelValues(strconv.FormatBool(dryRun), platform).Add(float64(n))
}

// RulesRemoved adds n pruned automatic rules.
func (r *Recorder) RulesRemoved(platform string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.rulesRemoved.WithLabelValues(platform).Add(float64(n))
}

// Outcome records one finished run.
func (r *Recorder) Outcome(outcome, reason string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.outcomes.WithLabelValues(outcome, reason).Inc()
	r.duration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// WriteSummary writes every non-zero counter as "name{labels} value", sorted.
func (r *Recorder) WriteSummary(w io.Writer) error {
	if r == nil {
		return nil
	}
	families, err := r.registry.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}

	var lines []string
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if m.GetCounter() == nil || m.GetCounter().GetValue() == 0 {
				continue
			}
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
			}
			lines = append(lines, fmt.Sprintf("%s{%s} %g", mf.GetName(), strings.Join(labels, ","), m.GetCounter().GetValue()))
		}
	}
	sort.Strings(lines)
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
