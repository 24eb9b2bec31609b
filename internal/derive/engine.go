// Package derive runs code mapping derivation for error events.
//
// A run selects the event's eligible frames, resolves the organization's
// installation, fetches its repository trees, matches frames to files and
// reconciles the candidates with the project's stored configuration under a
// per-project lock. Every run ends in an Outcome; nothing is returned as an
// error or panic to the caller.
package derive

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"codemap/internal/codemapping"
	"codemap/internal/errors"
	"codemap/internal/frames"
	"codemap/internal/integration"
	"codemap/internal/lock"
	"codemap/internal/metrics"
	"codemap/internal/platform"
	"codemap/internal/reconcile"
	"codemap/internal/repotree"
	"codemap/internal/slogutil"
	"codemap/internal/storage"
)

// Store loads and commits a project's derivation state.
type Store interface {
	LoadState(ctx context.Context, projectID, organizationID, integrationID int64) (reconcile.State, error)
	Apply(ctx context.Context, plan reconcile.Plan) (storage.ApplyResult, error)
}

// Options wires an Engine to its collaborators.
type Options struct {
	Platforms *platform.Registry
	Resolver  integration.Resolver
	Trees     repotree.Provider
	Store     Store
	Locker    lock.Locker
	Metrics   *metrics.Recorder // optional
	Logger    *slog.Logger      // optional

	// FetchTimeout bounds one tree fetch. Zero means no bound beyond ctx.
	FetchTimeout  time.Duration
	PruneUnbacked bool
}

// Engine processes events. It is safe for concurrent use.
type Engine struct {
	platforms     *platform.Registry
	resolver      integration.Resolver
	trees         repotree.Provider
	store         Store
	locker        lock.Locker
	metrics       *metrics.Recorder
	logger        *slog.Logger
	fetchTimeout  time.Duration
	pruneUnbacked bool
}

// New creates an Engine.
func New(opts Options) *Engine {
	if opts.Platforms == nil {
		opts.Platforms = platform.DefaultRegistry()
	}
	if opts.Locker == nil {
		opts.Locker = lock.NewMemoryLocker()
	}
	if opts.Logger == nil {
		opts.Logger = slogutil.NewDiscardLogger()
	}
	return &Engine{
		platforms:     opts.Platforms,
		resolver:      opts.Resolver,
		trees:         opts.Trees,
		store:         opts.Store,
		locker:        opts.Locker,
		metrics:       opts.Metrics,
		logger:        opts.Logger,
		fetchTimeout:  opts.FetchTimeout,
		pruneUnbacked: opts.PruneUnbacked,
	}
}

// ProcessEvent derives code mappings from ev and commits them, or only
// computes them when the platform is in dry-run mode for the organization.
func (e *Engine) ProcessEvent(ctx context.Context, ev *frames.Event) (out Outcome) {
	start := time.Now()
	if ev == nil {
		out = Outcome{RunID: uuid.New().String()}
		out.fail(errors.New(errors.InternalError, "nil event", nil))
		e.metrics.Outcome(string(out.Status), out.Reason, time.Since(start))
		e.report(e.logger.With("run_id", out.RunID), out)
		return out
	}
	out = Outcome{
		RunID:     uuid.New().String(),
		EventID:   ev.EventID,
		ProjectID: ev.ProjectID,
		Platform:  ev.Platform,
	}
	logger := e.logger.With(
		"run_id", out.RunID,
		"project_id", ev.ProjectID,
		"event_id", ev.EventID,
		"platform", ev.Platform,
	)

	defer func() {
		if r := recover(); r != nil {
			out.fail(errors.New(errors.InternalError, "derivation panicked", fmt.Errorf("%v", r)))
		}
		out.Duration = time.Since(start)
		e.metrics.Outcome(string(out.Status), out.Reason, out.Duration)
		e.report(logger, out)
	}()

	e.run(ctx, ev, &out, logger)
	return out
}

func (e *Engine) run(ctx context.Context, ev *frames.Event, out *Outcome, logger *slog.Logger) {
	if err := ctx.Err(); err != nil {
		out.fail(errors.New(errors.InternalError, "run cancelled", err))
		return
	}

	cfg := e.platforms.Lookup(ev.Platform)
	if !cfg.Supported {
		out.succeed(ReasonUnsupportedPlatform)
		return
	}
	out.DryRun = cfg.IsDryRun(ev.OrganizationID)
	out.Selection = frames.Select(cfg, ev.Frames())

	var integrationID int64
	if len(out.Selection.Eligible) > 0 {
		inst, err := e.resolver.Installation(ctx, ev.OrganizationID)
		if err != nil {
			out.fail(installationError(err))
			return
		}
		integrationID = inst.IntegrationID

		trees, err := e.fetchTrees(ctx, ev.OrganizationID)
		if err != nil {
			out.fail(err)
			return
		}
		idx := repotree.NewIndex(trees)
		out.Derived = codemapping.Derive(cfg, idx, out.Selection.Eligible)

		logger.Debug("Matched frames",
			"eligible", len(out.Selection.Eligible),
			"indexed_files", idx.Len(),
			"matches", len(out.Derived.Matches),
			"unmatched", out.Derived.Unmatched,
			"conflicts", out.Derived.Conflicts,
		)
		for _, m := range out.Derived.Matches {
			logger.Debug("Frame matched",
				"frame", m.Frame.Raw,
				"repo", m.File.Repo.Name,
				"file", m.File.Path,
				"stack_root", m.Mapping.StackRoot,
				"source_root", m.Mapping.SourceRoot,
			)
		}
	}

	// Dry runs never write, so they read the state without the lock.
	if !out.DryRun {
		lk, err := e.locker.TryAcquire(ctx, lock.ProjectKey(ev.ProjectID))
		if err != nil {
			out.fail(lockError(err))
			return
		}
		defer lk.Release()
	}

	state, err := e.store.LoadState(ctx, ev.ProjectID, ev.OrganizationID, integrationID)
	if err != nil {
		out.fail(errors.New(errors.StorageError, "loading project state", err))
		return
	}
	out.Plan = reconcile.Compute(state, out.Derived, reconcile.Options{
		IntegrationID: integrationID,
		Categorizer:   frames.Categorizer{Platform: cfg},
		PruneUnbacked: e.pruneUnbacked,
	})

	if out.Plan.Empty() {
		switch {
		case len(out.Selection.Eligible) == 0:
			out.succeed(ReasonNoEligibleFrames)
		case len(out.Derived.Mappings) == 0:
			out.succeed(ReasonNoMatches)
		default:
			out.succeed(ReasonNoChanges)
		}
		return
	}

	if out.DryRun {
		e.metrics.RepositoriesCreated(cfg.Name, true, len(out.Plan.NewRepositories))
		e.metrics.CodeMappingsCreated(cfg.Name, true, len(out.Plan.NewMappings))
		e.metrics.RulesCreated(cfg.Name, true, len(out.Plan.AddedRules))
		out.succeed(ReasonDryRun)
		return
	}

	applied, err := e.store.Apply(ctx, out.Plan)
	if err != nil {
		out.fail(errors.New(errors.StorageError, "applying derivation plan", err))
		return
	}
	out.Applied = applied

	e.metrics.RepositoriesCreated(cfg.Name, false, applied.RepositoriesCreated)
	e.metrics.CodeMappingsCreated(cfg.Name, false, applied.MappingsCreated)
	if applied.RulesWritten {
		e.metrics.RulesCreated(cfg.Name, false, len(out.Plan.AddedRules))
		e.metrics.RulesRemoved(cfg.Name, len(out.Plan.RemovedRules))
	}
	out.succeed(ReasonApplied)
}

// fetchTrees loads the organization's trees within the fetch timeout.
func (e *Engine) fetchTrees(ctx context.Context, organizationID int64) ([]repotree.Tree, error) {
	fetchCtx := ctx
	if e.fetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, e.fetchTimeout)
		defer cancel()
	}

	trees, err := e.trees.Trees(fetchCtx, organizationID)
	if err == nil {
		return trees, nil
	}

	var apiErr *repotree.APIError
	switch {
	case stderrors.As(err, &apiErr):
		return nil, errors.New(errors.UpstreamAPIError, "fetching repository trees", err)
	case stderrors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		return nil, errors.New(errors.UpstreamAPIError, "repository tree fetch timed out", err)
	default:
		return nil, errors.New(errors.InternalError, "fetching repository trees", err)
	}
}

func installationError(err error) error {
	if stderrors.Is(err, integration.ErrInstallationNotFound) {
		return errors.New(errors.InstallationNotFound, "resolving installation", err)
	}
	return errors.New(errors.InternalError, "resolving installation", err)
}

func lockError(err error) error {
	if stderrors.Is(err, lock.ErrLockUnavailable) {
		return errors.New(errors.LockUnavailable, "acquiring project lock", err)
	}
	return errors.New(errors.InternalError, "acquiring project lock", err)
}

func (e *Engine) report(logger *slog.Logger, out Outcome) {
	switch out.Status {
	case StatusHalt:
		logger.Info("Derivation halted", "reason", out.Reason, "error", out.Err)
	case StatusFailure:
		logger.Error("Derivation failed", "reason", out.Reason, "error", out.Err)
	default:
		logger.Info("Derivation finished",
			"reason", out.Reason,
			"dry_run", out.DryRun,
			"new_mappings", len(out.Plan.NewMappings),
			"added_rules", len(out.Plan.AddedRules),
			"removed_rules", len(out.Plan.RemovedRules),
			"duration_ms", out.Duration.Milliseconds(),
		)
	}
}
