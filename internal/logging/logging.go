// Package logging builds the zerolog loggers used by the command line and
// the run workspace.
package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
)

// New returns a timestamped logger at the given level. With console set the
// output is human readable, otherwise one JSON object per line.
func New(w io.Writer, level string, console bool) zerolog.Logger {
	lvl, err := ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	if console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// ParseLevel accepts zerolog level names; an empty string means info.
func ParseLevel(level string) (zerolog.Level, error) {
	s := strings.ToLower(strings.TrimSpace(level))
	if s == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return lvl, nil
}

// Tee returns a logger that writes every event to console and, as JSON
// lines, to file. The run log is written through it.
func Tee(console io.Writer, file io.Writer, level string, pretty bool) zerolog.Logger {
	lvl, err := ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	out := console
	if pretty {
		out = zerolog.ConsoleWriter{Out: console, TimeFormat: "15:04:05"}
	}
	return zerolog.New(zerolog.MultiLevelWriter(out, file)).Level(lvl).With().Timestamp().Logger()
}
