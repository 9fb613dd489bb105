package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/lrc-harvester/internal/constants"
	"github.com/oshokin/lrc-harvester/internal/logger"
)

// Config holds all configuration settings for the lyrics acquisition
// pipeline: resolver, cache tiers, mirror DB, HTTP client, scheduler and
// watcher.
type Config struct {
	// LibraryPath is the root directory of the music library to scan/watch.
	LibraryPath string `mapstructure:"library_path"`
	// DataDir holds the track-store DB and the on-disk cache index. The
	// mirror DB lives at MirrorDBPath instead.
	DataDir string `mapstructure:"data_dir"`
	// LogLevel specifies the logging verbosity level.
	LogLevel string `mapstructure:"log_level"`
	// DryRun previews the pipeline without writing sidecars or the track store.
	DryRun bool `mapstructure:"dry_run"`

	// LyricsAPIBaseURL is the base URL of the remote lyrics HTTP API (§4.4).
	LyricsAPIBaseURL string `mapstructure:"lyrics_api_base_url"`
	// RetryAttemptsCount must be a positive integer. The HTTP client does not read it: it always
	// makes up to three attempts per remote call, including the first.
	RetryAttemptsCount int64 `mapstructure:"retry_attempts_count"`

	// MirrorDBPath is the optional local mirror database path (§4.3). Empty disables the mirror tier.
	MirrorDBPath string `mapstructure:"mirror_db_path"`

	// RemoteKVAddress is the optional remote-KV cache address (§4.2.b), e.g. "localhost:6379". Empty disables the tier.
	RemoteKVAddress string `mapstructure:"remote_kv_address"`

	// CacheMaxEntries bounds the in-memory tier (§4.2.a).
	CacheMaxEntries int `mapstructure:"cache_max_entries"`
	// CacheMaxAge is the TTL for a positive cache hit (e.g. "168h").
	CacheMaxAge string `mapstructure:"cache_max_age"`
	// CacheNegativeMaxAge is the TTL for a cached NotFound result. Empty defaults to one quarter of CacheMaxAge.
	CacheNegativeMaxAge string `mapstructure:"cache_negative_max_age"`

	// MaxConcurrentResolves is the scheduler's permit-pool size P (§4.6).
	MaxConcurrentResolves int64 `mapstructure:"max_concurrent_resolves"`

	// SkipIfSynced skips a file that already has a `.lrc` sidecar.
	SkipIfSynced bool `mapstructure:"skip_if_synced"`
	// SkipIfPlain skips a file that already has a `.txt` sidecar.
	SkipIfPlain bool `mapstructure:"skip_if_plain"`

	// EnableFuzzySearch opts `resolve` into steps 6-7 of §4.1 (mirror fuzzy search, remote search fallback).
	EnableFuzzySearch bool `mapstructure:"enable_fuzzy_search"`

	// DebounceSeconds is the watcher's debounce tick period, clamped to [1, 3600] (§4.7).
	DebounceSeconds int64 `mapstructure:"debounce_seconds"`
	// BatchSize is the watcher's per-tick drain size, clamped to [1, 1000] (§4.7).
	BatchSize int64 `mapstructure:"batch_size"`
	// InitialScan enumerates the whole tree before watching begins.
	InitialScan bool `mapstructure:"initial_scan"`

	// ParsedLogLevel is the parsed zap log level.
	ParsedLogLevel zapcore.Level
	// ParsedCacheMaxAge is the parsed positive-hit cache TTL.
	ParsedCacheMaxAge time.Duration
	// ParsedCacheNegativeMaxAge is the parsed negative-hit cache TTL.
	ParsedCacheNegativeMaxAge time.Duration
}

const (
	// DefaultConfigFilename is the default name of the configuration file.
	DefaultConfigFilename = ".lrc-harvester.yaml"

	// DefaultLyricsAPIBaseURL is the default base URL of the remote lyrics API (§4.4, §6).
	DefaultLyricsAPIBaseURL = "https://lrclib.net"

	// DefaultMaxLogLength is the default maximum size (in bytes) for a single logged HTTP dump.
	DefaultMaxLogLength = 1 * 1024 * 1024 // 1 MB

	// DefaultCacheMaxEntries is the default in-memory tier capacity (§4.2.a).
	DefaultCacheMaxEntries = 10_000

	// DefaultCacheMaxAge is the default positive-hit cache TTL (§4.2.a): 7 days.
	DefaultCacheMaxAge = 7 * 24 * time.Hour

	// negativeCacheTTLDivisor is the default ratio of negative to positive TTL (§4.1: "default ¼ of the hit TTL").
	negativeCacheTTLDivisor = 4

	// minDebounceSeconds and maxDebounceSeconds bound the watcher's debounce tick (§4.7, §8).
	minDebounceSeconds = 1
	maxDebounceSeconds = 3600

	// minBatchSize and maxBatchSize bound the watcher's per-tick drain size (§4.7, §8).
	minBatchSize = 1
	maxBatchSize = 1000
)

// Static error definitions for better error handling.
var (
	// ErrEmptyLibraryPath indicates that the library path is missing.
	ErrEmptyLibraryPath = errors.New("library_path cannot be empty")
	// ErrUnknownLogLevel indicates that the log level is not recognized.
	ErrUnknownLogLevel = errors.New("unknown log level")
	// ErrInvalidRetryAttempts indicates that the retry attempts count is invalid.
	ErrInvalidRetryAttempts = errors.New("retry_attempts_count must be a positive integer")
	// ErrInvalidConcurrency indicates that the resolve concurrency cap is invalid.
	ErrInvalidConcurrency = errors.New("max_concurrent_resolves must be a positive integer")
	// ErrInvalidCacheMaxEntries indicates that the in-memory cache capacity is invalid.
	ErrInvalidCacheMaxEntries = errors.New("cache_max_entries must be a positive integer")
	// ErrInvalidCacheMaxAge indicates that the cache TTL is invalid.
	ErrInvalidCacheMaxAge = errors.New("cache_max_age must be a positive duration")
)

// LoadConfig loads configuration settings from a YAML file.
func LoadConfig(configFilename string) (*Config, error) {
	if configFilename == "" {
		configFilename = DefaultConfigFilename
	}

	viper.SetConfigFile(configFilename)

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config from file: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// ValidateConfig checks the configuration for validity, clamps
// out-of-range values per §4.7/§8, and sets derived fields.
func ValidateConfig(cfg *Config) error {
	if strings.TrimSpace(cfg.LibraryPath) == "" {
		return ErrEmptyLibraryPath
	}

	if cfg.LyricsAPIBaseURL == "" {
		cfg.LyricsAPIBaseURL = DefaultLyricsAPIBaseURL
	}

	parsedLogLevel, isLogLevelCorrect := logger.ParseLogLevel(cfg.LogLevel)
	if !isLogLevelCorrect {
		return fmt.Errorf("%w: '%s'", ErrUnknownLogLevel, cfg.LogLevel)
	}

	cfg.ParsedLogLevel = parsedLogLevel

	if cfg.RetryAttemptsCount <= 0 {
		return ErrInvalidRetryAttempts
	}

	if cfg.MaxConcurrentResolves <= 0 {
		return ErrInvalidConcurrency
	}

	if cfg.CacheMaxEntries <= 0 {
		return ErrInvalidCacheMaxEntries
	}

	if cfg.CacheMaxAge == "" {
		cfg.ParsedCacheMaxAge = DefaultCacheMaxAge
	} else {
		parsed, err := time.ParseDuration(cfg.CacheMaxAge)
		if err != nil {
			return fmt.Errorf("failed to parse cache_max_age: %w", err)
		}

		if parsed <= 0 {
			return ErrInvalidCacheMaxAge
		}

		cfg.ParsedCacheMaxAge = parsed
	}

	if cfg.CacheNegativeMaxAge == "" {
		cfg.ParsedCacheNegativeMaxAge = cfg.ParsedCacheMaxAge / negativeCacheTTLDivisor
	} else {
		parsed, err := time.ParseDuration(cfg.CacheNegativeMaxAge)
		if err != nil {
			return fmt.Errorf("failed to parse cache_negative_max_age: %w", err)
		}

		cfg.ParsedCacheNegativeMaxAge = parsed
	}

	cfg.DebounceSeconds = clamp(cfg.DebounceSeconds, minDebounceSeconds, maxDebounceSeconds)
	cfg.BatchSize = clamp(cfg.BatchSize, minBatchSize, maxBatchSize)

	return nil
}

// clamp constrains v to the closed interval [lo, hi]. A non-positive v
// (the zero value for an unset mapstructure field) is treated as below
// the floor, per §4.7/§8's "out of bounds are clamped" rule.
func clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}

// SaveConfig saves the configuration to the file while preserving the
// original format and order; only library_path is ever rewritten here.
func SaveConfig(cfg *Config) error {
	configFile := getConfigFilePath()

	originalContent, err := os.ReadFile(configFile)
	if err != nil {
		return handleMissingConfigFile(configFile, cfg.LibraryPath, err)
	}

	var node yaml.Node
	if err = yaml.Unmarshal(originalContent, &node); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	updateLibraryPathInNode(&node, cfg.LibraryPath)

	newContent, err := yaml.Marshal(&node)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}

	if err = os.WriteFile(configFile, newContent, constants.DefaultFilePermissions); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// getConfigFilePath returns the config file path from viper or the default.
func getConfigFilePath() string {
	configFile := viper.ConfigFileUsed()
	if configFile == "" {
		return DefaultConfigFilename
	}

	return configFile
}

// handleMissingConfigFile creates a new config file if it doesn't exist.
func handleMissingConfigFile(configFile, libraryPath string, err error) error {
	if !os.IsNotExist(err) {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	viper.Set("library_path", libraryPath)

	if err = viper.SafeWriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	return nil
}

// updateLibraryPathInNode updates the library_path value in the YAML node tree.
func updateLibraryPathInNode(node *yaml.Node, libraryPath string) {
	if len(node.Content) == 0 || node.Content[0].Kind != yaml.MappingNode {
		return
	}

	mapNode := node.Content[0]

	for i := 0; i < len(mapNode.Content); i += 2 {
		keyNode := mapNode.Content[i]
		valueNode := mapNode.Content[i+1]

		if keyNode.Value == "library_path" {
			valueNode.Value = libraryPath

			if valueNode.Style == 0 {
				valueNode.Style = yaml.DoubleQuotedStyle
			}

			break
		}
	}
}
