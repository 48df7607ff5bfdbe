// Package main provides the entry point for the graph backend API server.
package main

import (
	"log/slog"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/ai4kg/server/domain/files"
	"github.com/ai4kg/server/domain/graph"
	"github.com/ai4kg/server/domain/health"
	"github.com/ai4kg/server/domain/monitoring"
	"github.com/ai4kg/server/domain/users"
	"github.com/ai4kg/server/internal/config"
	"github.com/ai4kg/server/internal/database"
	"github.com/ai4kg/server/internal/migrate"
	"github.com/ai4kg/server/internal/mirror"
	"github.com/ai4kg/server/internal/server"
	"github.com/ai4kg/server/pkg/auth"
	"github.com/ai4kg/server/pkg/logger"
)

func main() {
	// Load .env files if present (for local development). Load() won't
	// overwrite existing vars, Overload() will.
	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local")

	fx.New(
		// Logging
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log}
		}),

		// Infrastructure modules
		logger.Module,
		config.Module,
		database.Module,
		migrate.Module,
		server.Module,
		mirror.Module,

		// Auth module
		auth.Module,

		// Domain modules
		health.Module,
		monitoring.Module,
		users.Module,
		graph.Module,
		files.Module,
	).Run()
}
