// Package main implements the entry point for the topicgen server, which
// scans topics with remaining question capacity and generates questions for
// them through queue-delivered jobs.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/phrazzld/topicgen/internal/config"
	"github.com/phrazzld/topicgen/internal/platform/logger"
	"github.com/phrazzld/topicgen/internal/platform/postgres"
	"github.com/phrazzld/topicgen/internal/platform/tracing"
)

func main() {
	migrateCmd := flag.String("migrate", "", "run a migration command (up, down, status, version) and exit")
	flag.Parse()

	if err := run(*migrateCmd); err != nil {
		log.Fatalf("topicgen: %v", err)
	}
}

func run(migrateCmd string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	l, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}
	l.Info("server configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Server.LogLevel),
		slog.String("environment", cfg.Server.Environment),
		slog.String("queue_provider", cfg.Queue.Provider))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := setupDatabase(ctx, cfg.Database, l)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			l.Error("failed to close database", slog.String("error", err.Error()))
		}
	}()

	if migrateCmd != "" {
		return postgres.RunMigrations(ctx, db, l, migrateCmd)
	}

	if cfg.Database.AutoMigrate {
		if err := postgres.MigrateUp(ctx, db, l); err != nil {
			return fmt.Errorf("failed to apply migrations: %w", err)
		}
	}

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, cfg.Server.Environment, l)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			l.Error("failed to flush traces", slog.String("error", err.Error()))
		}
	}()

	app, err := newApplication(ctx, cfg, l, db)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.cleanup()

	return app.serve(ctx)
}
