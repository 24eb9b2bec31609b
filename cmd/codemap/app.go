package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"codemap/internal/config"
	"codemap/internal/derive"
	"codemap/internal/errors"
	"codemap/internal/integration"
	"codemap/internal/lock"
	"codemap/internal/metrics"
	"codemap/internal/platform"
	"codemap/internal/repotree"
	"codemap/internal/slogutil"
	"codemap/internal/storage"
)

// app holds what every command needs: configuration, logger, database and
// the effective platform table.
type app struct {
	root      string
	cfg       *config.Config
	logger    *slog.Logger
	db        *storage.DB
	platforms *platform.Registry
	metrics   *metrics.Recorder
	logFile   io.Closer
}

// workspaceRoot returns --root or the current directory.
func workspaceRoot() (string, error) {
	if rootDir != "" {
		return rootDir, nil
	}
	return os.Getwd()
}

// openApp loads configuration and opens the database.
func openApp() (*app, error) {
	root, err := workspaceRoot()
	if err != nil {
		return nil, errors.New(errors.InternalError, "resolving workspace root", err)
	}

	cfg, err := config.LoadConfig(root)
	if err != nil {
		return nil, errors.New(errors.ConfigInvalid, "loading configuration", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.New(errors.ConfigInvalid, "validating configuration", err)
	}

	level := slogutil.LevelFromString(cfg.Logging.Level)
	if verbosity > 0 || quiet {
		level = slogutil.LevelFromVerbosity(verbosity, quiet)
	}
	logger, logFile, err := slogutil.Setup(os.Stderr, cfg.Logging.Format, level, cfg.Logging.File)
	if err != nil {
		return nil, errors.New(errors.ConfigInvalid, "opening log file", err)
	}

	a := &app{root: root, cfg: cfg, logger: logger, logFile: logFile, metrics: metrics.NewRecorder()}

	a.platforms = platform.DefaultRegistry()
	if cfg.Platforms.OverridesPath != "" {
		a.platforms, err = platform.LoadOverrides(cfg.Platforms.OverridesPath, a.platforms)
		if err != nil {
			a.Close()
			return nil, errors.New(errors.ConfigInvalid, "loading platform overrides", err)
		}
		logger.Debug("Loaded platform overrides", "path", cfg.Platforms.OverridesPath)
	}

	a.db, err = storage.Open(cfg.Storage.Path, logger)
	if err != nil {
		a.Close()
		return nil, errors.New(errors.StorageError, "opening database", err)
	}
	return a, nil
}

// engine builds a derivation engine. treesPath overrides the configured
// snapshot when set.
func (a *app) engine(treesPath string) (*derive.Engine, error) {
	resolver, err := integration.NewCachedResolver(
		integration.NewStaticResolver(a.cfg.Integrations.Installations),
		a.cfg.Integrations.CacheSize,
	)
	if err != nil {
		return nil, errors.New(errors.ConfigInvalid, "creating installation resolver", err)
	}

	if treesPath == "" {
		treesPath = a.cfg.Trees.SnapshotPath
	}

	var locker lock.Locker
	switch a.cfg.Locks.Mode {
	case "memory":
		locker = lock.NewMemoryLocker()
	default:
		locker = lock.NewFileLocker(a.cfg.Locks.Dir)
	}

	return derive.New(derive.Options{
		Platforms:     a.platforms,
		Resolver:      resolver,
		Trees:         repotree.NewSnapshotProvider(treesPath, a.cfg.Trees.Exclude, a.logger),
		Store:         a.db,
		Locker:        locker,
		Metrics:       a.metrics,
		Logger:        a.logger,
		FetchTimeout:  a.cfg.Trees.FetchTimeout(),
		PruneUnbacked: a.cfg.Reconcile.PruneUnbackedRules,
	}), nil
}

// Close releases the database and log file.
func (a *app) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("Failed to close database", "error", err)
		}
	}
	if a.logFile != nil {
		_ = a.logFile.Close()
	}
}

// printMetrics writes the non-zero counters to stderr.
func (a *app) printMetrics() {
	fmt.Fprintln(os.Stderr, "metrics:")
	if err := a.metrics.WriteSummary(os.Stderr); err != nil {
		a.logger.Warn("Failed to write metrics", "error", err)
	}
}
