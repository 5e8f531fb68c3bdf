// Package logging builds the slog loggers used by the entrypoints.
package logging

import (
	"io"
	"log/slog"
	"strings"

	charmlog "github.com/charmbracelet/log"
)

// New returns a JSON logger, or a charm text logger when format is "text".
// Unknown levels fall back to info.
func New(w io.Writer, format, level string) *slog.Logger {
	if strings.EqualFold(format, "text") {
		l := charmlog.NewWithOptions(w, charmlog.Options{
			ReportTimestamp: true,
			TimeFormat:      "15:04:05",
			Level:           charmLevel(level),
		})
		return slog.New(l)
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slogLevel(level)}))
}

func slogLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func charmLevel(s string) charmlog.Level {
	l, err := charmlog.ParseLevel(strings.ToLower(s))
	if err != nil {
		return charmlog.InfoLevel
	}
	return l
}
