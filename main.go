// Command convbot is the Twitch chat bot that answers conversion questions
// like "100 usd to eur" or "3 miles to km".
// It:
//   - Loads configuration and initializes structured logging.
//   - Joins the configured Twitch channels and replies to conversion
//     expressions, using ECB reference rates for currencies and the
//     DuckDuckGo Instant Answer API for everything else.
//   - Fetches the rate table at startup and optionally keeps it warm.
//   - Exposes a minimal HTTP server with /healthz, /readyz, /metrics,
//     /rates and /convert.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// parseLevel maps LOG_LEVEL values to slog levels. ok is false for unknown values.
func parseLevel(s string) (lvl slog.Level, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "warn":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	case "info", "":
		return slog.LevelInfo, true
	default:
		return slog.LevelInfo, false
	}
}

// setupLogging configures the default logger (level + format). Defaults:
// level=info, format=text. Logs go to stderr so command output stays clean.
func setupLogging(level, format string) {
	lvl, ok := parseLevel(level)
	if !ok {
		// unknown level -> keep info but note once using temporary logger
		tmp := slog.New(slog.NewTextHandler(os.Stderr, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", level))
	}
	format = strings.ToLower(format) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	default:
		format = "text"
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Debug("logger initialized", slog.String("level", lvl.String()), slog.String("format", format))
}
