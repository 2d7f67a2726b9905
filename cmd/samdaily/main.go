package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/david/samdaily/internal/config"
	"github.com/david/samdaily/internal/db"
	"github.com/david/samdaily/internal/logging"
	"github.com/david/samdaily/internal/pipeline"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logging.Setup(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		var cfgErr *config.ConfigError
		if errors.As(err, &cfgErr) {
			slog.Error("invalid configuration", slog.String("field", cfgErr.Field), slog.String("reason", cfgErr.Reason))
		} else {
			slog.Error("invalid configuration", slog.Any("error", err))
		}
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

	results, err := runner.RunAll(ctx)
	for id, stats := range results {
		slog.Info("run summary",
			slog.String("search", id),
			slog.Int("found", stats.ItemsFound),
			slog.Int("unique", stats.ItemsDeduped),
			slog.Int("keywords_failed", stats.KeywordsFailed),
			slog.Bool("email_sent", stats.EmailSent),
			slog.Duration("duration", stats.Duration))
	}
	if err != nil {
		slog.Error("run finished with failures", slog.Any("error", err))
		os.Exit(1)
	}

	slog.Info("done")
}
