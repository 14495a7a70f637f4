package runtime

import (
	"log/slog"
	"os"
	"strings"

	"github.com/md-rashed-zaman/batfeed/libs/config"
)

// NewLogger returns the JSON logger every service writes to stdout.
// LOG_LEVEL selects the minimum level (debug, info, warn, error).
func NewLogger(service string) *slog.Logger {
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: ParseLevel(config.String("LOG_LEVEL", "info")),
	})
	return slog.New(h).With("service", service)
}

func ParseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
