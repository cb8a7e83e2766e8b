package bootstrap

import (
	"io"
	"time"

	"github.com/dominhhai/mws-sdk/config"
	"github.com/rs/zerolog"
)

// NewLogger builds the application logger. An unknown level falls back to info.
func NewLogger(cfg config.LoggingConfig, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
