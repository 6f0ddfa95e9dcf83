// Package logger provides a simple levelled logging interface on top of zap.
package logger

import (
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level represents the logging level.
type Level int

// Log levels.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelNone
)

// String returns the string representation of the level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return ""
	}
}

// ParseLevel converts a level name (debug, info, warn, error, none) to a Level.
// Unknown names map to LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "none", "off", "quiet":
		return LevelNone
	default:
		return LevelInfo
	}
}

// silent is above every level zap emits through this package.
const silent = zapcore.FatalLevel + 1

func (l Level) zap() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelInfo:
		return zapcore.InfoLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return silent
	}
}

func fromZap(z zapcore.Level) Level {
	switch {
	case z <= zapcore.DebugLevel:
		return LevelDebug
	case z == zapcore.InfoLevel:
		return LevelInfo
	case z == zapcore.WarnLevel:
		return LevelWarn
	case z < silent:
		return LevelError
	default:
		return LevelNone
	}
}

const name = "contextgroups"

// Logger writes printf-style messages at a level that can change at run
// time. Loggers derived with Named share the level of their parent.
type Logger struct {
	level zap.AtomicLevel

	mu    sync.RWMutex
	sugar *zap.SugaredLogger
}

var defaultLogger = New(os.Stderr, LevelInfo)

// Default returns the default logger.
func Default() *Logger {
	return defaultLogger
}

// SetDefault sets the default logger.
func SetDefault(l *Logger) {
	defaultLogger = l
}

// New creates a logger writing console-encoded lines to output.
func New(output io.Writer, level Level) *Logger {
	l := &Logger{level: zap.NewAtomicLevelAt(level.zap())}
	l.sugar = l.build(output)
	return l
}

// FromZap wraps an existing zap logger. Entries below level are dropped
// even when z would accept them.
func FromZap(z *zap.Logger, level Level) *Logger {
	l := &Logger{level: zap.NewAtomicLevelAt(level.zap())}
	l.sugar = z.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return &levelCore{Core: c, level: l.level}
	})).Sugar()
	return l
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return FromZap(zap.NewNop(), LevelNone)
}

func (l *Logger) build(output io.Writer) *zap.SugaredLogger {
	enc := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:          "ts",
		LevelKey:         "level",
		NameKey:          "logger",
		MessageKey:       "msg",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		EncodeTime:       zapcore.TimeEncoderOfLayout("15:04:05"),
		EncodeDuration:   zapcore.StringDurationEncoder,
		EncodeName:       zapcore.FullNameEncoder,
		ConsoleSeparator: " ",
	})
	core := zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(output)), l.level)
	return zap.New(core).Named(name).Sugar()
}

// levelCore filters a wrapped core by an atomic level.
type levelCore struct {
	zapcore.Core
	level zap.AtomicLevel
}

func (c *levelCore) Enabled(lvl zapcore.Level) bool {
	return c.level.Enabled(lvl) && c.Core.Enabled(lvl)
}

func (c *levelCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.level.Enabled(e.Level) {
		return ce
	}
	return c.Core.Check(e, ce)
}

func (c *levelCore) With(fields []zapcore.Field) zapcore.Core {
	return &levelCore{Core: c.Core.With(fields), level: c.level}
}

// Named returns a logger whose lines carry sub appended to the logger
// name, e.g. "contextgroups.closure". It shares l's level; SetOutput on
// either logger does not affect the other.
func (l *Logger) Named(sub string) *Logger {
	return &Logger{level: l.level, sugar: l.sugared().Named(sub)}
}

// SetLevel sets the logging level.
func (l *Logger) SetLevel(level Level) {
	l.level.SetLevel(level.zap())
}

// Level returns the current logging level.
func (l *Logger) Level() Level {
	return fromZap(l.level.Level())
}

// SetOutput sets the output writer.
func (l *Logger) SetOutput(w io.Writer) {
	sugar := l.build(w)
	l.mu.Lock()
	l.sugar = sugar
	l.mu.Unlock()
}

// Zap returns the underlying zap logger for structured logging.
func (l *Logger) Zap() *zap.Logger {
	return l.sugared().Desugar()
}

// Sync flushes buffered log entries.
func (l *Logger) Sync() error {
	return l.sugared().Sync()
}

func (l *Logger) sugared() *zap.SugaredLogger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sugar
}

// Debug logs a debug message.
func (l *Logger) Debug(format string, args ...any) { l.sugared().Debugf(format, args...) }

// Info logs an info message.
func (l *Logger) Info(format string, args ...any) { l.sugared().Infof(format, args...) }

// Warn logs a warning message.
func (l *Logger) Warn(format string, args ...any) { l.sugared().Warnf(format, args...) }

// Error logs an error message.
func (l *Logger) Error(format string, args ...any) { l.sugared().Errorf(format, args...) }

// Package-level functions use the default logger.

func Debug(format string, args ...any) { defaultLogger.Debug(format, args...) }

func Info(format string, args ...any) { defaultLogger.Info(format, args...) }

func Warn(format string, args ...any) { defaultLogger.Warn(format, args...) }

func Error(format string, args ...any) { defaultLogger.Error(format, args...) }

// SetLevel sets the level of the default logger.
func SetLevel(level Level) {
	defaultLogger.SetLevel(level)
}

// SetOutput sets the output of the default logger.
func SetOutput(w io.Writer) {
	defaultLogger.SetOutput(w)
}

// Disable disables all logging.
func Disable() {
	defaultLogger.SetLevel(LevelNone)
}
