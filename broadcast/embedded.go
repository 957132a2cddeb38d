package broadcast

import (
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"go.uber.org/zap"
)

// readyTimeout bounds the wait for the embedded server to accept clients
const readyTimeout = 10 * time.Second

// Embedded is an in-process NATS server for local event watchers
type Embedded struct {
	server *server.Server
	log    *zap.Logger
}

// StartEmbedded starts a NATS server on host:port; port -1 picks a free port
func StartEmbedded(host string, port int, log *zap.Logger) (*Embedded, error) {
	if log == nil {
		log = zap.NewNop()
	}
	opts := &server.Options{
		Host:   host,
		Port:   port,
		NoLog:  true,
		NoSigs: true,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create NATS server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(readyTimeout) {
		ns.Shutdown()
		return nil, fmt.Errorf("NATS server not ready for connections")
	}

	log.Info("embedded NATS started", zap.String("url", ns.ClientURL()))
	return &Embedded{server: ns, log: log}, nil
}

// ClientURL returns the URL clients connect to
func (e *Embedded) ClientURL() string {
	return e.server.ClientURL()
}

// Shutdown stops the server and waits for it to exit
func (e *Embedded) Shutdown() {
	e.server.Shutdown()
	e.server.WaitForShutdown()
	e.log.Debug("embedded NATS stopped")
}
