// Package logger provides a logging capability for bwcli for running as a
// CLI. Output goes to stderr so command results on stdout stay parseable.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"sync/atomic"

	"github.com/spf13/viper"
)

var singleton atomic.Pointer[slog.Logger]

// unstructuredLogs reports whether logs should be human-readable text
// rather than JSON. Defaults to true for interactive CLI use.
func unstructuredLogs() bool {
	unstructuredLogs, err := strconv.ParseBool(os.Getenv("UNSTRUCTURED_LOGS"))
	if err != nil {
		return true
	}
	return unstructuredLogs
}

// Initialize creates and configures the process logger. The debug viper
// flag lowers the level to debug.
func Initialize() {
	initializeWithWriter(os.Stderr)
}

func initializeWithWriter(w io.Writer) {
	level := slog.LevelInfo
	if viper.GetBool("debug") {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	if unstructuredLogs() {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{
			Level: level,
			ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
				// timestamps are noise on an interactive terminal
				if a.Key == slog.TimeKey {
					return slog.Attr{}
				}
				return a
			},
		})
	} else {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	}

	singleton.Store(slog.New(handler))
}

// Get returns the current process logger, initializing it on first use.
func Get() *slog.Logger {
	if l := singleton.Load(); l != nil {
		return l
	}
	Initialize()
	return singleton.Load()
}

// With returns a logger carrying the given structured attributes.
func With(args ...any) *slog.Logger {
	return Get().With(args...)
}

// Debug logs a message at debug level.
func Debug(msg string) { log(slog.LevelDebug, msg) }

// Debugf logs a formatted message at debug level.
func Debugf(format string, args ...any) { log(slog.LevelDebug, fmt.Sprintf(format, args...)) }

// Debugw logs a message at debug level with key-value pairs.
func Debugw(msg string, keysAndValues ...any) { logw(slog.LevelDebug, msg, keysAndValues...) }

// Info logs a message at info level.
func Info(msg string) { log(slog.LevelInfo, msg) }

// Infof logs a formatted message at info level.
func Infof(format string, args ...any) { log(slog.LevelInfo, fmt.Sprintf(format, args...)) }

// Infow logs a message at info level with key-value pairs.
func Infow(msg string, keysAndValues ...any) { logw(slog.LevelInfo, msg, keysAndValues...) }

// Warn logs a message at warn level.
func Warn(msg string) { log(slog.LevelWarn, msg) }

// Warnf logs a formatted message at warn level.
func Warnf(format string, args ...any) { log(slog.LevelWarn, fmt.Sprintf(format, args...)) }

// Warnw logs a message at warn level with key-value pairs.
func Warnw(msg string, keysAndValues ...any) { logw(slog.LevelWarn, msg, keysAndValues...) }

// Error logs a message at error level.
func Error(msg string) { log(slog.LevelError, msg) }

// Errorf logs a formatted message at error level.
func Errorf(format string, args ...any) { log(slog.LevelError, fmt.Sprintf(format, args...)) }

// Errorw logs a message at error level with key-value pairs.
func Errorw(msg string, keysAndValues ...any) { logw(slog.LevelError, msg, keysAndValues...) }

func log(level slog.Level, msg string) {
	Get().Log(context.Background(), level, msg)
}

func logw(level slog.Level, msg string, keysAndValues ...any) {
	Get().Log(context.Background(), level, msg, keysAndValues...)
}
