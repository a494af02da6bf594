package observability

import (
	"log/slog"
	"os"
	"strings"
)

// LoggerConfig selects the handler format and minimum level.
type LoggerConfig struct {
	Level  string // debug, info, warn, error
	Format string // json or text
}

// NewLogger builds a slog.Logger writing to stderr. Unknown levels fall
// back to info; any format other than "text" produces JSON.
func NewLogger(cfg LoggerConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
