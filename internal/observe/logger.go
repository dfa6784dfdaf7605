// Package observe sets up process-wide structured logging.
package observe

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/vaultmind/vaultmind/internal/config"
)

// NewLogger builds a [slog.Logger] from a [config.LoggingConfig]. When
// cfg.Path is empty, logs go to stderr; otherwise they are appended to the
// named file. An invalid cfg.Level falls back to info.
func NewLogger(cfg config.LoggingConfig) (*slog.Logger, func() error, error) {
	w := os.Stderr
	closeFn := func() error { return nil }

	if cfg.Path != "" {
		f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("observe: open log file %q: %w", cfg.Path, err)
		}
		w = f
		closeFn = f.Close
	}

	opts := &slog.HandlerOptions{Level: levelFor(cfg.Level)}
	logger := slog.New(slog.NewJSONHandler(w, opts))
	return logger, closeFn, nil
}

func levelFor(l config.Level) slog.Level {
	switch l {
	case config.LevelDebug:
		return slog.LevelDebug
	case config.LevelWarn:
		return slog.LevelWarn
	case config.LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
