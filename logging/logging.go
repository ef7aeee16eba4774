package logging

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	Level  string
	Pretty bool
}

// New returns a logger writing JSON lines to w, or human readable lines when
// Pretty is set. An unknown level falls back to info.
func New(w io.Writer, config Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(config.Level)
	if err != nil || config.Level == "" {
		level = zerolog.InfoLevel
	}

	output := w
	if config.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
		}
	}

	return zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger()
}
