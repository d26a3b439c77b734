package events

import (
	"fmt"

	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/pub"

	// Register all transports (tcp, ipc, inproc, ws).
	_ "go.nanomsg.org/mangos/v3/transport/all"

	"github.com/tagwatch/tagwatch/pkg/logging"
)

// nngPublisher broadcasts events on a mangos PUB socket. Pure Go, no cgo.
type nngPublisher struct {
	sock   mangos.Socket
	logger logging.Logger
}

func newNNGPublisher(endpoint string, logger logging.Logger) (*nngPublisher, error) {
	sock, err := pub.NewSocket()
	if err != nil {
		return nil, fmt.Errorf("create pub socket: %w", err)
	}
	if err := sock.Listen(endpoint); err != nil {
		sock.Close()
		return nil, fmt.Errorf("listen on %s: %w", endpoint, err)
	}
	logger.Info("event publisher listening",
		logging.Component("events"),
		logging.String("transport", "nng"),
		logging.String("endpoint", endpoint))
	return &nngPublisher{sock: sock, logger: logger}, nil
}

func (p *nngPublisher) Publish(event *Event) error {
	buf, err := frame(event)
	if err != nil {
		return err
	}
	if err := p.sock.Send(buf); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

func (p *nngPublisher) Close() error {
	return p.sock.Close()
}
