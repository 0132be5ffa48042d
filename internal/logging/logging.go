// Package logging builds the process slog logger from config.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/barneyonline/core/internal/config"
)

// New returns a logger writing to stdout, and additionally to a rotated file
// when cfg.File is set. The returned closer releases the file.
func New(cfg *config.LoggingConfig, version string) (*slog.Logger, io.Closer) {
	if cfg == nil {
		cfg = &config.LoggingConfig{}
	}

	var (
		output io.Writer = os.Stdout
		closer io.Closer = nopCloser{}
	)
	if cfg.File != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    int(cfg.MaxSizeMB),
			MaxBackups: int(cfg.MaxBackups),
			MaxAge:     int(cfg.MaxAgeDays),
			Compress:   cfg.Compress,
		}
		output = io.MultiWriter(os.Stdout, file)
		closer = file
	}

	return NewWithWriter(output, cfg.Level, cfg.Format, version), closer
}

// NewWithWriter builds a logger for an explicit destination.
func NewWithWriter(w io.Writer, level, format, version string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", "gohome"),
		slog.String("version", version),
	})
	return slog.New(handler)
}

// ParseLevel converts debug, info, warn or error to a slog level. Unknown
// values map to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
