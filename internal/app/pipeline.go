package app

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/oshokin/lrc-harvester/internal/cache"
	"github.com/oshokin/lrc-harvester/internal/client/lrclib"
	"github.com/oshokin/lrc-harvester/internal/config"
	"github.com/oshokin/lrc-harvester/internal/constants"
	"github.com/oshokin/lrc-harvester/internal/logger"
	"github.com/oshokin/lrc-harvester/internal/lyrics"
	"github.com/oshokin/lrc-harvester/internal/mirror"
	"github.com/oshokin/lrc-harvester/internal/resolver"
	"github.com/oshokin/lrc-harvester/internal/scheduler"
	"github.com/oshokin/lrc-harvester/internal/trackstore"
)

// trackStoreFilename is the fixed name of the library catalog database
// under the configured data directory (§4.5).
const trackStoreFilename = "lrcget.db"

// cacheDirName is the subdirectory of the data directory holding the
// file-index cache tier (§4.2.c).
const cacheDirName = "cache"

// pipeline bundles every component the download/watch entry points share:
// the cache composite, optional mirror DB, track store, and resolver built
// on top of them.
type pipeline struct {
	cacheTier *cache.Composite
	remoteKV  *cache.RemoteKVTier // nil if unconfigured, kept for Close
	mirrorDB  *mirror.DB          // nil if unconfigured
	store     *trackstore.Store
	resolver  *resolver.Resolver
}

// buildPipeline wires the cache tiers, mirror DB, HTTP client, resolver and
// track store from cfg, per SPEC_FULL's MODULE MAP.
func buildPipeline(ctx context.Context, cfg *config.Config) (*pipeline, error) {
	memoryTier, err := cache.NewMemoryTier(cfg.CacheMaxEntries, cfg.ParsedCacheMaxAge, cfg.ParsedCacheNegativeMaxAge)
	if err != nil {
		return nil, fmt.Errorf("failed to build memory cache tier: %w", err)
	}

	fileTier, err := cache.NewFileIndexTier(
		ctx, filepath.Join(cfg.DataDir, cacheDirName), cfg.ParsedCacheMaxAge, cfg.ParsedCacheNegativeMaxAge)
	if err != nil {
		return nil, fmt.Errorf("failed to build file-index cache tier: %w", err)
	}

	var remoteKV *cache.RemoteKVTier

	// Only append the remote-KV tier when configured: a typed nil pointer
	// would be a non-nil cache.Tier that NewComposite cannot skip.
	tiers := []cache.Tier{memoryTier}
	if cfg.RemoteKVAddress != "" {
		remoteKV = cache.NewRemoteKVTier(cfg.RemoteKVAddress, cfg.ParsedCacheMaxAge, cfg.ParsedCacheNegativeMaxAge)
		tiers = append(tiers, remoteKV)
	}

	tiers = append(tiers, fileTier)

	cacheTier := cache.NewComposite(tiers...)

	var mirrorDB *mirror.DB
	if cfg.MirrorDBPath != "" {
		mirrorDB, err = mirror.Open(ctx, cfg.MirrorDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open mirror database: %w", err)
		}
	}

	store, err := trackstore.Open(ctx, filepath.Join(cfg.DataDir, trackStoreFilename))
	if err != nil {
		return nil, fmt.Errorf("failed to open track store: %w", err)
	}

	client := lrclib.New(cfg.LyricsAPIBaseURL)
	res := resolver.New(cacheTier, mirrorDB, client, cfg.EnableFuzzySearch)

	return &pipeline{
		cacheTier: cacheTier,
		remoteKV:  remoteKV,
		mirrorDB:  mirrorDB,
		store:     store,
		resolver:  res,
	}, nil
}

// Close releases every owned resource, logging but swallowing failures so
// one broken collaborator does not block the rest of shutdown.
func (p *pipeline) Close(ctx context.Context) {
	if err := p.cacheTier.Flush(ctx); err != nil {
		logger.Warnf(ctx, "Failed to flush cache: %v", err)
	}

	if p.remoteKV != nil {
		if err := p.remoteKV.Close(); err != nil {
			logger.Warnf(ctx, "Failed to close remote-KV client: %v", err)
		}
	}

	if p.mirrorDB != nil {
		if err := p.mirrorDB.Close(); err != nil {
			logger.Warnf(ctx, "Failed to close mirror database: %v", err)
		}
	}

	if err := p.store.Close(); err != nil {
		logger.Warnf(ctx, "Failed to close track store: %v", err)
	}
}

// resolverAdapter satisfies scheduler.Resolver over *resolver.Resolver,
// translating scheduler's decoupled ResolverTrack into resolver.Track so
// the two packages never import each other (§9: avoiding an import cycle).
type resolverAdapter struct {
	inner *resolver.Resolver
}

func (a resolverAdapter) Resolve(ctx context.Context, t scheduler.ResolverTrack) (lyrics.Record, error) {
	return a.inner.Resolve(ctx, resolver.Track{
		Title:           t.Title,
		Artist:          t.Artist,
		Album:           t.Album,
		DurationSeconds: t.DurationSeconds,
	})
}

// audioExtensions returns the built-in audio-file detection set for the
// watcher/scanner (§4.7); no configuration setting replaces it.
func audioExtensions() map[string]struct{} {
	return constants.AudioExtensions
}
