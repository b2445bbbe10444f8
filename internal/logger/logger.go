package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Config holds logger options
type Config struct {
	Environment string // development -> human readable console, otherwise JSON
	Level       string // trace, debug, info, warn, error
}

// New creates a structured logger for the service
func New(cfg Config) zerolog.Logger {
	var w io.Writer = os.Stdout
	if cfg.Environment == "development" {
		w = zerolog.ConsoleWriter{Out: os.Stdout}
	}
	return NewWithWriter(w, cfg.Level)
}

// NewWithWriter creates a logger writing to w at the given level.
// Unknown levels fall back to info.
func NewWithWriter(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	return zerolog.New(w).
		Level(lvl).
		With().
		Timestamp().
		Str("service", "podexport").
		Logger()
}
