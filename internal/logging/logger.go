package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Setup installs the JSON stdout logger as the slog default.
func Setup(level string) {
	slog.SetDefault(slog.New(NewStdoutHandler(os.Stdout, level)))
}

func NewStdoutHandler(w io.Writer, level string) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})
}

// ParseLevel maps debug/info/warn/error to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
