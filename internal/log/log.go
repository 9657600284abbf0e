package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

type Level string

const (
	LevelTrace Level = "TRACE"
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// slogTrace sits below slog.LevelDebug so -vv output can be filtered out
// separately from -v output.
const slogTrace = slog.Level(-8)

var (
	mu       sync.Mutex
	logger   *slog.Logger
	levelVar = new(slog.LevelVar)
)

// current returns the global logger, installing a text handler on stderr
// at INFO unless Init was called first.
func current() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		logger = newLogger(os.Stderr, "text")
	}
	return logger
}

func newLogger(w io.Writer, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: levelVar,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == slogTrace {
					a.Value = slog.StringValue(string(LevelTrace))
				}
			}
			return a
		},
	}

	var h slog.Handler
	switch strings.ToLower(format) {
	case "json":
		h = slog.NewJSONHandler(w, opts)
	default:
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}

// Init replaces the global logger. format is "text" or "json"; a nil writer
// means stderr.
func Init(w io.Writer, format string) {
	if w == nil {
		w = os.Stderr
	}
	mu.Lock()
	defer mu.Unlock()
	logger = newLogger(w, format)
}

func SetLevel(l Level) {
	levelVar.Set(toSlog(l))
}

// LevelFromVerbosity maps the count of -v flags to a level.
func LevelFromVerbosity(v int) Level {
	switch {
	case v <= 0:
		return LevelInfo
	case v == 1:
		return LevelDebug
	default:
		return LevelTrace
	}
}

func Trace(msg string, kv ...any) {
	logWithLevel(LevelTrace, msg, kv...)
}

func Debug(msg string, kv ...any) {
	logWithLevel(LevelDebug, msg, kv...)
}

func Info(msg string, kv ...any) {
	logWithLevel(LevelInfo, msg, kv...)
}

func Warn(msg string, kv ...any) {
	logWithLevel(LevelWarn, msg, kv...)
}

func Error(msg string, err error, kv ...any) {
	// Prepend error into key-value list.
	extended := append([]any{"err", err}, kv...)
	logWithLevel(LevelError, msg, extended...)
}

// Enabled reports whether messages at level l are currently emitted.
func Enabled(l Level) bool {
	return toSlog(l) >= levelVar.Level()
}

func logWithLevel(level Level, msg string, kv ...any) {
	current().Log(context.Background(), toSlog(level), msg, kv...)
}

func toSlog(l Level) slog.Level {
	switch l {
	case LevelTrace:
		return slogTrace
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// CronLogger adapts this package to the cron.Logger interface.
type CronLogger struct{}

func (CronLogger) Info(msg string, keysAndValues ...any) {
	Debug("cron: "+msg, keysAndValues...)
}

func (CronLogger) Error(err error, msg string, keysAndValues ...any) {
	Error("cron: "+msg, err, keysAndValues...)
}
