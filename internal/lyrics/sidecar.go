package lyrics

import (
	"context"
	"fmt"
	"os"

	"github.com/oshokin/lrc-harvester/internal/constants"
	"github.com/oshokin/lrc-harvester/internal/logger"
	"github.com/oshokin/lrc-harvester/internal/utils"
)

// instrumentalContent is the exact single-line content written for an
// Instrumental record (§6).
const instrumentalContent = "[au: instrumental]"

// WriteSidecars writes or deletes the .lrc/.txt sidecars next to audioPath
// for record, following the §6 write discipline. Writes go through a
// ".part" temp file followed by an atomic rename, the teacher's discipline
// for never leaving a half-written file behind.
func WriteSidecars(ctx context.Context, audioPath string, record Record) error {
	lrcPath := utils.SetFileExtension(audioPath, constants.ExtensionSyncedLyrics, true)
	txtPath := utils.SetFileExtension(audioPath, constants.ExtensionPlainLyrics, true)

	switch record.Kind {
	case KindInstrumental:
		if err := writeOrDelete(ctx, lrcPath, instrumentalContent); err != nil {
			return err
		}

		return deleteIfExists(ctx, txtPath)
	case KindSynced:
		if err := writeOrDelete(ctx, lrcPath, record.SyncedText); err != nil {
			return err
		}

		return deleteIfExists(ctx, txtPath)
	case KindPlain:
		if err := writeOrDelete(ctx, txtPath, record.PlainText); err != nil {
			return err
		}

		return deleteIfExists(ctx, lrcPath)
	case KindBoth:
		if err := writeOrDelete(ctx, lrcPath, record.SyncedText); err != nil {
			return err
		}

		return writeOrDelete(ctx, txtPath, record.PlainText)
	case KindNotFound:
		return nil
	default:
		return fmt.Errorf("unknown lyrics record kind: %v", record.Kind)
	}
}

// writeOrDelete writes content to path, or deletes path if content is
// empty (§6: "Empty payload strings are treated as delete the corresponding
// sidecar").
func writeOrDelete(ctx context.Context, path, content string) error {
	if content == "" {
		return deleteIfExists(ctx, path)
	}

	return atomicWrite(ctx, path, content)
}

// atomicWrite writes content to path via a sibling ".part" file and rename,
// so a crash mid-write never leaves a half-written sidecar.
func atomicWrite(ctx context.Context, path, content string) error {
	partPath := path + constants.ExtensionPartial

	if err := os.WriteFile(partPath, []byte(content), constants.DefaultFilePermissions); err != nil {
		return fmt.Errorf("failed to write temp sidecar %q: %w", partPath, err)
	}

	if err := os.Rename(partPath, path); err != nil {
		logger.Warnf(ctx, "Failed to rename %q to %q: %v", partPath, path, err)

		return fmt.Errorf("failed to rename sidecar into place: %w", err)
	}

	return nil
}

// deleteIfExists removes path, tolerating it already being absent.
func deleteIfExists(ctx context.Context, path string) error {
	exists, err := utils.IsFileExist(path)
	if err != nil {
		return fmt.Errorf("failed to stat sidecar %q: %w", path, err)
	}

	if !exists {
		return nil
	}

	if err = os.Remove(path); err != nil {
		logger.Warnf(ctx, "Failed to remove stale sidecar %q: %v", path, err)

		return fmt.Errorf("failed to remove sidecar %q: %w", path, err)
	}

	return nil
}
