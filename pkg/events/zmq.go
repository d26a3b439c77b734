//go:build zmq
// +build zmq

package events

import (
	"fmt"

	zmq "github.com/pebbe/zmq4"

	"github.com/tagwatch/tagwatch/pkg/logging"
)

// zmqPublisher broadcasts events on a ZeroMQ PUB socket. Requires libzmq,
// hence the build tag.
type zmqPublisher struct {
	sock   *zmq.Socket
	logger logging.Logger
}

func newZMQPublisher(endpoint string, logger logging.Logger) (*zmqPublisher, error) {
	sock, err := zmq.NewSocket(zmq.PUB)
	if err != nil {
		return nil, fmt.Errorf("create pub socket: %w", err)
	}
	if err := sock.Bind(endpoint); err != nil {
		sock.Close()
		return nil, fmt.Errorf("bind %s: %w", endpoint, err)
	}
	logger.Info("event publisher listening",
		logging.Component("events"),
		logging.String("transport", "zmq"),
		logging.String("endpoint", endpoint))
	return &zmqPublisher{sock: sock, logger: logger}, nil
}

func (p *zmqPublisher) Publish(event *Event) error {
	buf, err := frame(event)
	if err != nil {
		return err
	}
	if _, err := p.sock.SendBytes(buf, 0); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

func (p *zmqPublisher) Close() error {
	return p.sock.Close()
}
