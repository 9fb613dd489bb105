package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/oshokin/lrc-harvester/internal/app"
	"github.com/oshokin/lrc-harvester/internal/config"
	"github.com/oshokin/lrc-harvester/internal/logger"
)

var (
	// configFilenameFromFlag stores the config filename provided via command-line flag.
	//
	//nolint:gochecknoglobals // It is required for configuration initialization before the application starts.
	configFilenameFromFlag string

	// appConfig stores the application configuration loaded from file and flags.
	//
	//nolint:gochecknoglobals,lll // It is initialized once during the application's startup and shared across the command execution logic.
	appConfig *config.Config

	// rootCmd is the main Cobra command for the application.
	//
	//nolint:gochecknoglobals,lll // Cobra command requires a global definition for proper command-line parsing and execution.
	rootCmd = &cobra.Command{
		Use:   "lrc-harvester",
		Short: "Acquire song lyrics for a local music library.",
		Long: `lrc-harvester automates acquisition of song lyrics for a local music
library. Given a root directory of audio files, it extracts metadata,
queries a remote lyrics service, and writes sidecar lyric files next to
each track.

It runs in one-shot batch mode ("download") and in long-running
directory-watch mode ("watch").`,
		PersistentPreRunE: initConfig,
	}

	// downloadCmd runs the one-shot batch pipeline (spec §1 "download").
	//
	//nolint:gochecknoglobals // Cobra command requires a global definition.
	downloadCmd = &cobra.Command{
		Use:   "download",
		Short: "Scan the library once and write missing lyrics sidecars.",
		Run: func(cmd *cobra.Command, _ []string) {
			app.ExecuteDownload(cmd.Context(), appConfig)
		},
	}

	// watchCmd runs the long-running directory-watch pipeline (spec §4.7).
	//
	//nolint:gochecknoglobals // Cobra command requires a global definition.
	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Watch the library for new or changed audio files and keep lyrics in sync.",
		Run: func(cmd *cobra.Command, _ []string) {
			app.ExecuteWatch(cmd.Context(), appConfig)
		},
	}
)

// Execute executes the root command.
func Execute() {
	signals := []os.Signal{syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM}
	ctx, stop := signal.NotifyContext(context.Background(), signals...)

	defer func() {
		_ = logger.Logger().Sync() //nolint:errcheck // No need to check the error here, application will exit anyway.
	}()

	defer stop()

	go func() {
		defer stop()

		err := rootCmd.ExecuteContext(ctx)
		cobra.CheckErr(err)
	}()

	<-ctx.Done()
}

//nolint:gochecknoinits // Cobra requires the init function to set up flags before the command is executed.
func init() {
	rootCmd.PersistentFlags().StringVarP(
		&configFilenameFromFlag,
		"config",
		"c",
		"",
		fmt.Sprintf("path to the configuration file (default is '%s')", config.DefaultConfigFilename))

	for _, subCmd := range []*cobra.Command{downloadCmd, watchCmd} {
		flags := subCmd.Flags()

		flags.StringP("library-path", "L", "", "root directory of the music library to scan/watch (overrides config)")
		flags.StringP("data-dir", "d", "", "directory holding the track store, cache index and local databases (overrides config)")
		flags.Bool("dry-run", false, "preview the pipeline without writing sidecars or the track store (overrides config)")
		flags.Bool("fuzzy", false, "enable mirror/remote fuzzy search fallback when an exact lookup misses (overrides config)")
		flags.Int64P("concurrency", "j", 0, "maximum number of concurrent lyrics resolves (overrides config)")

		rootCmd.AddCommand(subCmd)
	}

	watchCmd.Flags().Int64("debounce-seconds", 0, "debounce tick period for batching filesystem events, clamped to [1, 3600] (overrides config)")
	watchCmd.Flags().Int64("batch-size", 0, "maximum files drained per debounce tick, clamped to [1, 1000] (overrides config)")
	watchCmd.Flags().Bool("initial-scan", false, "enumerate the whole library before watching begins (overrides config)")
}

func initConfig(cmd *cobra.Command, _ []string) error {
	var err error

	appConfig, err = config.LoadConfig(configFilenameFromFlag)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err = bindFlagsToConfig(cmd.Flags(), appConfig); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	if err = config.ValidateConfig(appConfig); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger.SetLevel(appConfig.ParsedLogLevel)

	return nil
}

func bindFlagsToConfig(flags *pflag.FlagSet, cfg *config.Config) error {
	if err := bindStringFlag(flags, "library-path", &cfg.LibraryPath); err != nil {
		return err
	}

	if err := bindStringFlag(flags, "data-dir", &cfg.DataDir); err != nil {
		return err
	}

	if err := bindBoolFlag(flags, "dry-run", &cfg.DryRun); err != nil {
		return err
	}

	if err := bindBoolFlag(flags, "fuzzy", &cfg.EnableFuzzySearch); err != nil {
		return err
	}

	if err := bindInt64Flag(flags, "concurrency", &cfg.MaxConcurrentResolves); err != nil {
		return err
	}

	if err := bindInt64Flag(flags, "debounce-seconds", &cfg.DebounceSeconds); err != nil {
		return err
	}

	if err := bindInt64Flag(flags, "batch-size", &cfg.BatchSize); err != nil {
		return err
	}

	return bindBoolFlag(flags, "initial-scan", &cfg.InitialScan)
}

func bindStringFlag(flags *pflag.FlagSet, name string, dest *string) error {
	flag := flags.Lookup(name)
	if flag == nil || !flag.Changed {
		return nil
	}

	value, err := flags.GetString(name)
	if err != nil {
		return fmt.Errorf("failed to get %s value: %w", name, err)
	}

	*dest = value

	return nil
}

func bindBoolFlag(flags *pflag.FlagSet, name string, dest *bool) error {
	flag := flags.Lookup(name)
	if flag == nil || !flag.Changed {
		return nil
	}

	value, err := flags.GetBool(name)
	if err != nil {
		return fmt.Errorf("failed to get %s value: %w", name, err)
	}

	*dest = value

	return nil
}

func bindInt64Flag(flags *pflag.FlagSet, name string, dest *int64) error {
	flag := flags.Lookup(name)
	if flag == nil || !flag.Changed {
		return nil
	}

	value, err := flags.GetInt64(name)
	if err != nil {
		return fmt.Errorf("failed to get %s value: %w", name, err)
	}

	*dest = value

	return nil
}
