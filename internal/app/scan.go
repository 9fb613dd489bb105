package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/oshokin/lrc-harvester/internal/config"
	"github.com/oshokin/lrc-harvester/internal/constants"
	"github.com/oshokin/lrc-harvester/internal/logger"
	"github.com/oshokin/lrc-harvester/internal/scheduler"
	"github.com/oshokin/lrc-harvester/internal/trackstore"
)

// batchProcessor converts a batch of file paths into track-store rows and
// drives them through the scheduler, implementing §4.7's "per-file
// processing" step for both the one-shot initial scan and the live watcher.
type batchProcessor struct {
	cfg   *config.Config
	store *trackstore.Store
	sched *scheduler.Scheduler
}

// process implements watcher.BatchFunc / the download command's per-batch
// step: re-derive metadata, apply the skip policy, upsert, then resolve.
func (b *batchProcessor) process(ctx context.Context, paths []string) {
	tracks := make([]*trackstore.Track, 0, len(paths))

	for _, path := range paths {
		if b.skip(path) {
			logger.Debugf(ctx, "Skipping %q: sidecar already satisfies skip policy", path)

			continue
		}

		t := deriveTrack(path)

		if !b.cfg.DryRun {
			if err := b.store.AddTrack(ctx, t); err != nil {
				logger.Warnf(ctx, "Failed to upsert track %q, continuing: %v", path, err)
			}
		}

		tracks = append(tracks, t)
	}

	if len(tracks) > 0 {
		b.sched.Run(ctx, tracks)
	}
}

// skip implements the skip-if-synced / skip-if-plain policy (§4.7, §1):
// a file already carrying the sidecar(s) the policy requires is left alone.
func (b *batchProcessor) skip(path string) bool {
	if b.cfg.SkipIfSynced && sidecarExists(path, constants.ExtensionSyncedLyrics) {
		return true
	}

	if b.cfg.SkipIfPlain && sidecarExists(path, constants.ExtensionPlainLyrics) {
		return true
	}

	return false
}

func sidecarExists(audioPath, extension string) bool {
	sidecarPath := strings.TrimSuffix(audioPath, filepath.Ext(audioPath)) + extension

	_, err := os.Stat(sidecarPath)

	return err == nil
}

// deriveTrack builds a minimal Track identity from the file path. Real tag
// extraction is an external collaborator per spec §1 ("the core does not
// parse audio formats itself"); absent one, title/artist fall back to the
// conventional "Artist - Title" filename pattern and duration stays at
// zero until a tag reader is wired in.
func deriveTrack(path string) *trackstore.Track {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	title, artist := base, ""

	if idx := strings.Index(base, " - "); idx > 0 {
		artist = strings.TrimSpace(base[:idx])
		title = strings.TrimSpace(base[idx+len(" - "):])
	}

	return &trackstore.Track{
		FilePath: path,
		Title:    title,
		Artist:   artist,
	}
}
