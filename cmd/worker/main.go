package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"thetalkingdrone/internal/config"
	"thetalkingdrone/internal/events"
	natspub "thetalkingdrone/internal/events/nats"
	"thetalkingdrone/internal/logging"
	"thetalkingdrone/internal/repo/postgres"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "dotenv: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.LoadWorker()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogPretty, os.Stdout).With().Str("component", "outbox").Logger()
	if !cfg.OutboxEnabled {
		logger.Info().Msg("outbox disabled; exiting")
		return
	}
	if cfg.NATSURL == "" {
		logger.Fatal().Msg("NATS_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("db error")
	}
	defer pool.Close()

	if cfg.MigrateOnStart {
		if err := postgres.ApplyMigrations(ctx, pool); err != nil {
			logger.Fatal().Err(err).Msg("migration error")
		}
	}

	publisher, err := natspub.New(cfg.NATSURL, cfg.NATSSubjectPrefix)
	if err != nil {
		logger.Fatal().Err(err).Msg("nats error")
	}
	defer publisher.Close()

	worker := &events.OutboxWorker{
		Repo:         postgres.NewStore(pool),
		Publisher:    publisher,
		PollInterval: cfg.OutboxInterval,
		BatchSize:    cfg.OutboxBatch,
		Logger:       logger,
	}

	logger.Info().Dur("interval", cfg.OutboxInterval).Int("batch", cfg.OutboxBatch).Msg("outbox worker running")
	if err := worker.Start(ctx); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		logger.Fatal().Err(err).Msg("worker error")
	}
}
