package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/david/samdaily/internal/api"
	"github.com/david/samdaily/internal/auth"
	"github.com/david/samdaily/internal/config"
	"github.com/david/samdaily/internal/db"
	"github.com/david/samdaily/internal/logging"
	"github.com/david/samdaily/internal/pipeline"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logging.Setup(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}
	if cfg.JWTSecret == "" {
		slog.Error("invalid configuration", slog.String("field", "jwt_secret"), slog.String("reason", "is required for the admin server"))
		os.Exit(1)
	}

	var store *db.Store
	if cfg.DatabaseURL != "" {
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", slog.Any("error", err))
			os.Exit(1)
		}
		defer pool.Close()

		if err := db.Migrate(ctx, pool); err != nil {
			slog.Error("migration failed", slog.Any("error", err))
			os.Exit(1)
		}
		store = db.NewStore(pool)
	}

	runner, err := pipeline.NewRunner(cfg, store)
	if err != nil {
		slog.Error("failed to build pipeline", slog.Any("error", err))
		os.Exit(1)
	}

	authService := auth.NewService(cfg.AdminPasswordHash, cfg.JWTSecret)
	srv := api.NewServer(runner, store, authService, cfg.CORSOrigins)

	slog.Info("server starting", slog.String("port", cfg.Port))
	if err := srv.Start(cfg.Port); err != nil {
		slog.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
