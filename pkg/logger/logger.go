// Package logger provides the application-wide slog setup and shared
// logging attribute helpers.
package logger

import (
	"log/slog"
	"os"
	"strings"

	"go.uber.org/fx"
)

// Module provides the application logger.
var Module = fx.Module("logger",
	fx.Provide(NewLogger),
)

// NewLogger creates the root slog.Logger. The level comes from LOG_LEVEL
// (debug, info, warn, error; default info). Local environments get a text
// handler, everything else structured JSON.
func NewLogger() *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	env := os.Getenv("GO_ENV")
	if env == "" || env == "local" || env == "development" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

// Scope returns the scope attribute identifying a component
// (e.g. "graph.svc", "graph.repo", "mirror").
func Scope(scope string) slog.Attr {
	return slog.String("scope", scope)
}

// Error returns the error attribute.
func Error(err error) slog.Attr {
	return slog.Any("error", err)
}
