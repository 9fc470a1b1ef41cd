// Package logging configures the process-wide slog loggers.
//
// Console output is human-readable text on stderr. When a log file path is
// configured, records are additionally written as JSON to a rotating file
// managed by lumberjack.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	LevelTrace = slog.Level(-8)
	LevelFatal = slog.Level(12)
)

// Add trace and fatal level names.
var levelNames = map[slog.Leveler]string{
	LevelTrace: "TRACE",
	LevelFatal: "FATAL",
}

// Config controls logger output and file rotation.
type Config struct {
	Level      slog.Level
	FilePath   string // empty disables the JSON file log
	MaxSizeMB  int    // rotate after this many megabytes
	MaxBackups int    // rotated files to keep
	MaxAgeDays int    // days to keep rotated files
	Compress   bool
}

var (
	mu         sync.RWMutex
	rootLogger *slog.Logger
	levelVar   = new(slog.LevelVar)
)

// replaceLevel renders custom level names in both handlers.
func replaceLevel(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		level, ok := a.Value.Any().(slog.Level)
		if !ok {
			return a
		}
		levelLabel, exists := levelNames[level]
		if !exists {
			levelLabel = level.String()
		}
		a.Value = slog.StringValue(levelLabel)
	}
	return a
}

// Init installs the console logger and, if cfg.FilePath is set, the rotating
// JSON file logger. The returned function closes the file writer.
func Init(cfg Config) (func() error, error) {
	return initWithWriter(os.Stderr, cfg)
}

func initWithWriter(console io.Writer, cfg Config) (func() error, error) {
	levelVar.Set(cfg.Level)

	handlers := []slog.Handler{
		slog.NewTextHandler(console, &slog.HandlerOptions{
			Level:       levelVar,
			ReplaceAttr: replaceLevel,
		}),
	}

	closeFunc := func() error { return nil }
	if cfg.FilePath != "" {
		writer, err := newRotatingWriter(cfg)
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, slog.NewJSONHandler(writer, &slog.HandlerOptions{
			Level:       levelVar,
			ReplaceAttr: replaceLevel,
		}))
		closeFunc = writer.Close
	}

	var handler slog.Handler = handlers[0]
	if len(handlers) > 1 {
		handler = &fanoutHandler{handlers: handlers}
	}

	logger := slog.New(handler)

	mu.Lock()
	rootLogger = logger
	mu.Unlock()

	slog.SetDefault(logger)
	return closeFunc, nil
}

// newRotatingWriter creates the lumberjack writer, making sure the log
// directory exists first (lumberjack doesn't create directories).
func newRotatingWriter(cfg Config) (*lumberjack.Logger, error) {
	logDir := filepath.Dir(cfg.FilePath)
	if logDir != "." {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
		}
	}

	maxSize := cfg.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 100
	}
	maxBackups := cfg.MaxBackups
	if maxBackups <= 0 {
		maxBackups = 3
	}
	maxAge := cfg.MaxAgeDays
	if maxAge <= 0 {
		maxAge = 28
	}

	return &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
		MaxAge:     maxAge,
		Compress:   cfg.Compress,
	}, nil
}

// SetLevel changes the minimum level of all configured handlers at runtime.
func SetLevel(level slog.Level) {
	levelVar.Set(level)
}

// ForService returns a logger tagged with the given service name.
// Before Init is called it derives from slog.Default().
func ForService(serviceName string) *slog.Logger {
	mu.RLock()
	base := rootLogger
	mu.RUnlock()

	if base == nil {
		base = slog.Default()
	}
	return base.With("service", serviceName)
}

// Fatal logs at the custom fatal level and exits.
func Fatal(msg string, args ...any) {
	slog.Log(context.Background(), LevelFatal, msg, args...)
	os.Exit(1)
}

// Trace logs at the custom trace level.
func Trace(msg string, args ...any) {
	slog.Log(context.Background(), LevelTrace, msg, args...)
}

// fanoutHandler duplicates records to several handlers.
type fanoutHandler struct {
	handlers []slog.Handler
}

func (h *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, handler := range h.handlers {
		if !handler.Enabled(ctx, r.Level) {
			continue
		}
		if err := handler.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithAttrs(attrs)
	}
	return &fanoutHandler{handlers: next}
}

func (h *fanoutHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithGroup(name)
	}
	return &fanoutHandler{handlers: next}
}
