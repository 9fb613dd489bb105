package app

import (
	"context"

	"github.com/oshokin/lrc-harvester/internal/config"
	"github.com/oshokin/lrc-harvester/internal/logger"
	"github.com/oshokin/lrc-harvester/internal/scheduler"
	"github.com/oshokin/lrc-harvester/internal/watcher"
)

// ExecuteDownload runs the one-shot batch pipeline (§1 "download"): scan
// the library once, resolving and writing lyrics sidecars for every
// observed track, then exit.
func ExecuteDownload(ctx context.Context, cfg *config.Config) {
	p, err := buildPipeline(ctx, cfg)
	if err != nil {
		logger.Fatalf(ctx, "Failed to initialize pipeline: %v", err)
	}

	defer p.Close(ctx)

	if !cfg.DryRun {
		if err = p.store.AddDirectory(ctx, cfg.LibraryPath); err != nil {
			logger.Warnf(ctx, "Failed to register library root, continuing: %v", err)
		}
	}

	sched := scheduler.New(cfg.MaxConcurrentResolves, resolverAdapter{inner: p.resolver}, p.store, cfg.DryRun,
		newProgressReporter("download"))

	processor := &batchProcessor{cfg: cfg, store: p.store, sched: sched}

	w := watcher.New(cfg.LibraryPath, cfg.DebounceSeconds, cfg.BatchSize, audioExtensions(), processor.process)

	if err = w.InitialScan(ctx); err != nil {
		logger.Errorf(ctx, "Library scan failed: %v", err)
	}

	logger.Infof(ctx, "Download pass complete for %q", cfg.LibraryPath)
}

// ExecuteWatch runs the long-running directory-watch pipeline (§1 "watch",
// §4.7): an optional initial scan, then fsnotify-driven debounced batches
// until ctx is cancelled.
func ExecuteWatch(ctx context.Context, cfg *config.Config) {
	p, err := buildPipeline(ctx, cfg)
	if err != nil {
		logger.Fatalf(ctx, "Failed to initialize pipeline: %v", err)
	}

	defer p.Close(ctx)

	if !cfg.DryRun {
		if err = p.store.AddDirectory(ctx, cfg.LibraryPath); err != nil {
			logger.Warnf(ctx, "Failed to register library root, continuing: %v", err)
		}
	}

	sched := scheduler.New(cfg.MaxConcurrentResolves, resolverAdapter{inner: p.resolver}, p.store, cfg.DryRun,
		newProgressReporter("watch"))

	processor := &batchProcessor{cfg: cfg, store: p.store, sched: sched}

	w := watcher.New(cfg.LibraryPath, cfg.DebounceSeconds, cfg.BatchSize, audioExtensions(), processor.process)

	if cfg.InitialScan {
		if err = w.InitialScan(ctx); err != nil {
			logger.Errorf(ctx, "Initial library scan failed: %v", err)
		}
	}

	logger.Infof(ctx, "Watching %q for changes", cfg.LibraryPath)

	if err = w.Run(ctx); err != nil {
		logger.Errorf(ctx, "Watcher terminated: %v", err)
	}
}
