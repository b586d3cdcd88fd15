package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"thetalkingdrone/internal/auth"
	"thetalkingdrone/internal/broker"
	"thetalkingdrone/internal/config"
	"thetalkingdrone/internal/domain"
	"thetalkingdrone/internal/environment"
	"thetalkingdrone/internal/events"
	natspub "thetalkingdrone/internal/events/nats"
	"thetalkingdrone/internal/fleet"
	"thetalkingdrone/internal/flight"
	"thetalkingdrone/internal/link/natslink"
	"thetalkingdrone/internal/logging"
	"thetalkingdrone/internal/repo/postgres"
	"thetalkingdrone/internal/repo/sqlite"
	"thetalkingdrone/internal/service"
	"thetalkingdrone/internal/transport/grpcapi"
	"thetalkingdrone/internal/transport/httpapi"
	"thetalkingdrone/internal/transport/thriftapi"
)

// store is what the service needs from an event store: a sink, a readable log and an outbox.
type store interface {
	events.Sink
	events.Log
	events.OutboxRepository
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "dotenv: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogPretty, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}

func run(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	natsURL := cfg.NATSURL
	if cfg.NATSEmbedded {
		embedded, err := broker.StartEmbedded("127.0.0.1", cfg.NATSEmbeddedPort, logger)
		if err != nil {
			return fmt.Errorf("embedded nats: %w", err)
		}
		defer embedded.Shutdown()
		natsURL = embedded.ClientURL()
	}

	var publisher events.Publisher = events.NoopPublisher{}
	var nc *nats.Conn
	if natsURL != "" {
		natsPublisher, err := natspub.New(natsURL, cfg.NATSSubjectPrefix)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer natsPublisher.Close()
		publisher = natsPublisher
		nc = natsPublisher.Conn()
	}

	registry := fleet.New(fleet.Config{
		Environment:   cfg.Environment,
		Flight:        cfg.Flight,
		ClockInterval: cfg.ClockInterval,
	}, logger)
	if cfg.LinkEnabled {
		if nc == nil {
			return errors.New("LINK_ENABLED requires NATS_URL or NATS_EMBEDDED")
		}
		registry.RegisterBackend(fleet.BackendLink, linkFactory(nc, cfg.NATSSubjectPrefix, cfg.LinkTimeout))
	}
	registry.Start()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		registry.Shutdown(shutdownCtx)
	}()

	svc := service.New(registry, st, st, logger)
	authenticator := auth.New(cfg.JWTSecret, cfg.JWTTTL)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewServer(svc, authenticator, cfg.DefaultModel),
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpcapi.NewServer(svc, authenticator, cfg.DefaultModel)
	grpcListener, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	thriftServer, err := thriftapi.NewServer(cfg.ThriftAddr, svc, authenticator, cfg.DefaultModel)
	if err != nil {
		return fmt.Errorf("thrift: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("http listening")
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		logger.Info().Str("addr", cfg.GRPCAddr).Msg("grpc listening")
		err := grpcServer.Serve(grpcListener)
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		logger.Info().Str("addr", cfg.ThriftAddr).Msg("thrift listening")
		return thriftServer.Serve()
	})

	if cfg.OutboxEnabled {
		worker := &events.OutboxWorker{
			Repo:         st,
			Publisher:    publisher,
			PollInterval: cfg.OutboxInterval,
			BatchSize:    cfg.OutboxBatch,
			Logger:       logger.With().Str("component", "outbox").Logger(),
		}
		g.Go(func() error {
			logger.Info().Dur("interval", cfg.OutboxInterval).Int("batch", cfg.OutboxBatch).Msg("outbox worker running")
			return ignoreCanceled(worker.Start(ctx))
		})
	}

	if cfg.TelemetryInterval > 0 {
		broadcaster := &events.TelemetryBroadcaster{
			Source:    svc,
			Publisher: publisher,
			Interval:  cfg.TelemetryInterval,
			Logger:    logger.With().Str("component", "telemetry").Logger(),
		}
		g.Go(func() error {
			return ignoreCanceled(broadcaster.Start(ctx))
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
		grpcServer.GracefulStop()
		_ = thriftServer.Stop()
		return nil
	})

	return g.Wait()
}

// openStore picks Postgres, then SQLite, then an in-memory log.
func openStore(ctx context.Context, cfg config.Config, logger zerolog.Logger) (store, func(), error) {
	switch {
	case cfg.DatabaseURL != "":
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("db: %w", err)
		}
		if cfg.MigrateOnStart {
			if err := postgres.ApplyMigrations(ctx, pool); err != nil {
				pool.Close()
				return nil, nil, fmt.Errorf("migrations: %w", err)
			}
		}
		logger.Info().Msg("flight log: postgres")
		return postgres.NewStore(pool), pool.Close, nil
	case cfg.SQLitePath != "":
		s, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite: %w", err)
		}
		logger.Info().Str("path", cfg.SQLitePath).Msg("flight log: sqlite")
		return s, func() { _ = s.Close() }, nil
	default:
		logger.Info().Msg("flight log: memory")
		return events.NewMemoryOutbox(10000), func() {}, nil
	}
}

func linkFactory(nc *nats.Conn, prefix string, timeout time.Duration) fleet.Factory {
	return func(drone domain.Drone, env *environment.Environment, opts flight.Options, logger zerolog.Logger) (flight.Controller, error) {
		link := natslink.New(nc, prefix, drone.ID, timeout)
		return flight.NewLinkedEngine(drone, env, link, opts, logger), nil
	}
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}
