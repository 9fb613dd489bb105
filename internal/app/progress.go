package app

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"github.com/oshokin/lrc-harvester/internal/scheduler"
)

// forceTerminalUIEnvVar opts back into the full-screen/TTY UI even when one
// of the non-interactive environment markers below is set (§6).
const forceTerminalUIEnvVar = "LRCGET_FORCE_TERMINAL_UI"

// nonInteractiveEnvVars are environment markers that, unless overridden,
// force the structured single-line status log instead of a progress bar
// (§6 "Environment detection").
var nonInteractiveEnvVars = []string{"CI", "DOCKER", "GITHUB_ACTIONS"} //nolint:gochecknoglobals // immutable lookup list.

// wantsTerminalUI implements §6's detection rule: a progress bar only when
// stdout is a TTY and no non-interactive marker is set, or when the
// operator forces it.
func wantsTerminalUI() bool {
	if os.Getenv(forceTerminalUIEnvVar) != "" {
		return true
	}

	if !isatty.IsTerminal(os.Stdout.Fd()) {
		return false
	}

	for _, name := range nonInteractiveEnvVars {
		if os.Getenv(name) != "" {
			return false
		}
	}

	return true
}

// newProgressReporter builds the scheduler.ProgressFunc for one batch,
// rendering either a live terminal progress bar or structured single-line
// status records per §6's environment-detection rule.
func newProgressReporter(label string) scheduler.ProgressFunc {
	if wantsTerminalUI() {
		return newTerminalProgressReporter(label)
	}

	return newStructuredProgressReporter(label)
}

// newTerminalProgressReporter drives a schollz/progressbar/v3 bar keyed to
// the batch total, describing outcomes with go-humanize counts.
func newTerminalProgressReporter(label string) scheduler.ProgressFunc {
	var (
		mu  sync.Mutex
		bar *progressbar.ProgressBar
	)

	return func(state scheduler.ProgressState) {
		mu.Lock()
		defer mu.Unlock()

		if bar == nil {
			bar = progressbar.NewOptions64(state.Total,
				progressbar.OptionSetDescription(label),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
		}

		_ = bar.Set64(state.Processed) //nolint:errcheck // Rendering failures are not actionable mid-run.

		if state.Processed >= state.Total {
			fmt.Printf("%s: %s processed (%s synced, %s plain, %s missing, %s errored)\n",
				label,
				humanize.Comma(state.Processed), humanize.Comma(state.Synced), humanize.Comma(state.Plain),
				humanize.Comma(state.Missing), humanize.Comma(state.Errored))
		}
	}
}

// newStructuredProgressReporter emits one timestamped, leveled status line
// per batch completion, per §6's non-TTY fallback.
func newStructuredProgressReporter(label string) scheduler.ProgressFunc {
	return func(state scheduler.ProgressState) {
		level := "INFO"
		if state.Errored > 0 {
			level = "WARN"
		}

		if state.Processed < state.Total {
			return
		}

		fmt.Printf("%s %s %s: processed=%s synced=%s plain=%s missing=%s errored=%s\n",
			time.Now().UTC().Format(time.RFC3339), level, label,
			humanize.Comma(state.Processed), humanize.Comma(state.Synced), humanize.Comma(state.Plain),
			humanize.Comma(state.Missing), humanize.Comma(state.Errored))
	}
}
