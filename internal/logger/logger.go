package logger

import (
	"context"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

//nolint:gochecknoglobals // process-wide logger state, guarded by atomic.Value/atomic.Int32.
var (
	currentLogger atomic.Value
	currentLevel  atomic.Int32
	initOnce      sync.Once
)

func init() {
	initOnce.Do(func() {
		currentLevel.Store(int32(zapcore.InfoLevel))
		currentLogger.Store(New(zapcore.InfoLevel))
	})
}

// New builds a zap.Logger at the given level. A nil level enabler defaults
// to info.
func New(level zapcore.LevelEnabler) *zap.Logger {
	if level == nil {
		level = zapcore.InfoLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderCfg),
		zapcore.Lock(zapcore.AddSync(os.Stdout)),
		level,
	)

	return zap.New(core, zap.AddCaller())
}

// ParseLogLevel parses a case-insensitive, whitespace-tolerant log level
// name into a zapcore.Level. It returns (zapcore.InfoLevel, false) for any
// unrecognized or empty input.
func ParseLogLevel(s string) (zapcore.Level, bool) {
	normalized := strings.ToLower(strings.TrimSpace(s))

	switch normalized {
	case "debug":
		return zapcore.DebugLevel, true
	case "info":
		return zapcore.InfoLevel, true
	case "warn", "warning":
		return zapcore.WarnLevel, true
	case "error":
		return zapcore.ErrorLevel, true
	case "dpanic":
		return zapcore.DPanicLevel, true
	case "panic":
		return zapcore.PanicLevel, true
	case "fatal":
		return zapcore.FatalLevel, true
	default:
		return zapcore.InfoLevel, false
	}
}

// Logger returns the current process-wide logger.
func Logger() *zap.Logger {
	return currentLogger.Load().(*zap.Logger) //nolint:forcetypeassert // only ever set via SetLogger/init.
}

// SetLogger replaces the process-wide logger.
func SetLogger(l *zap.Logger) {
	currentLogger.Store(l)
}

// Level returns the process-wide configured log level.
func Level() zapcore.Level {
	return zapcore.Level(currentLevel.Load())
}

// SetLevel updates the process-wide log level and rebuilds the logger so
// the new level takes effect immediately.
func SetLevel(level zapcore.Level) {
	currentLevel.Store(int32(level))
	SetLogger(New(level))
}

// ctx is accepted on every call below (rather than threading a *zap.Logger
// through every component) so a future correlation-id extractor has a single
// seam to hook into; today it is otherwise unused.

// Debug logs msg at debug level, scoped to ctx.
func Debug(_ context.Context, msg string) { Logger().Debug(msg) }

// Debugf logs a formatted message at debug level, scoped to ctx.
func Debugf(_ context.Context, format string, args ...any) {
	Logger().Sugar().Debugf(format, args...)
}

// DebugKV logs msg at debug level with alternating key/value pairs, scoped to ctx.
func DebugKV(_ context.Context, msg string, kvs ...any) {
	Logger().Sugar().Debugw(msg, kvs...)
}

// Info logs msg at info level, scoped to ctx.
func Info(_ context.Context, msg string) { Logger().Info(msg) }

// Infof logs a formatted message at info level, scoped to ctx.
func Infof(_ context.Context, format string, args ...any) {
	Logger().Sugar().Infof(format, args...)
}

// InfoKV logs msg at info level with alternating key/value pairs, scoped to ctx.
func InfoKV(_ context.Context, msg string, kvs ...any) {
	Logger().Sugar().Infow(msg, kvs...)
}

// Warn logs msg at warn level, scoped to ctx.
func Warn(_ context.Context, msg string) { Logger().Warn(msg) }

// Warnf logs a formatted message at warn level, scoped to ctx.
func Warnf(_ context.Context, format string, args ...any) {
	Logger().Sugar().Warnf(format, args...)
}

// WarnKV logs msg at warn level with alternating key/value pairs, scoped to ctx.
func WarnKV(_ context.Context, msg string, kvs ...any) {
	Logger().Sugar().Warnw(msg, kvs...)
}

// Error logs msg at error level, scoped to ctx.
func Error(_ context.Context, msg string) { Logger().Error(msg) }

// Errorf logs a formatted message at error level, scoped to ctx.
func Errorf(_ context.Context, format string, args ...any) {
	Logger().Sugar().Errorf(format, args...)
}

// ErrorKV logs msg at error level with alternating key/value pairs, scoped to ctx.
func ErrorKV(_ context.Context, msg string, kvs ...any) {
	Logger().Sugar().Errorw(msg, kvs...)
}

// Fatalf logs a formatted message at fatal level, scoped to ctx, then exits the process.
func Fatalf(_ context.Context, format string, args ...any) {
	Logger().Sugar().Fatalf(format, args...)
}
