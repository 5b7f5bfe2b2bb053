package infra

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the structured logger passed through the application.
type Logger = zerolog.Logger

// NewLogger writes JSON to stdout, or colourised console lines in
// development. level overrides the environment default when it parses.
func NewLogger(appEnv, level string) Logger {
	return newLogger(os.Stdout, appEnv, level)
}

func newLogger(out io.Writer, appEnv, level string) Logger {
	dev := appEnv == "development" || appEnv == "cli"
	if dev {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: appEnv == "cli"}
	}
	return zerolog.New(out).
		Level(parseLevel(level, dev)).
		With().
		Timestamp().
		Logger()
}

func parseLevel(level string, dev bool) zerolog.Level {
	level = strings.ToLower(strings.TrimSpace(level))
	if lvl, err := zerolog.ParseLevel(level); err == nil && level != "" {
		return lvl
	}
	if dev {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}
