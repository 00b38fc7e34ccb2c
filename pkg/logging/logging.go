// Package logging builds the slog loggers the engine components
// accept. Hosts that already have a logger can pass it directly;
// components given no logger fall back to Nop.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Format selects the log output format.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Config holds logger construction settings.
type Config struct {
	// Level is the minimum level to emit. Defaults to Info.
	Level slog.Level

	// Format selects text or JSON output. Defaults to text.
	Format Format

	// Output receives the log lines. Defaults to os.Stderr.
	Output io.Writer
}

// New creates a logger from cfg.
func New(cfg Config) *slog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: cfg.Level}

	var handler slog.Handler
	if cfg.Format == FormatJSON {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	} else {
		handler = slog.NewTextHandler(cfg.Output, opts)
	}

	return slog.New(handler)
}

// Nop returns a logger that discards everything.
func Nop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
