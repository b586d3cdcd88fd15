package broker

import (
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/rs/zerolog"
)

// Embedded is an in-process NATS server for single-node deployments and tests.
type Embedded struct {
	srv    *server.Server
	logger zerolog.Logger
}

// StartEmbedded starts a NATS server on host:port. Port -1 picks a random free port.
func StartEmbedded(host string, port int, logger zerolog.Logger) (*Embedded, error) {
	if host == "" {
		host = "127.0.0.1"
	}
	opts := &server.Options{
		Host:           host,
		Port:           port,
		NoLog:          true,
		NoSigs:         true,
		MaxControlLine: 4096,
	}
	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create nats server: %w", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("nats server not ready for connections")
	}
	e := &Embedded{srv: ns, logger: logger.With().Str("component", "broker").Logger()}
	e.logger.Info().Str("url", ns.ClientURL()).Msg("embedded nats started")
	return e, nil
}

func (e *Embedded) ClientURL() string {
	return e.srv.ClientURL()
}

func (e *Embedded) Shutdown() {
	e.srv.Shutdown()
	e.srv.WaitForShutdown()
	e.logger.Info().Msg("embedded nats stopped")
}
