//go:build !zmq
// +build !zmq

package events

import (
	"errors"

	"github.com/tagwatch/tagwatch/pkg/logging"
)

func newZMQPublisher(string, logging.Logger) (Publisher, error) {
	return nil, errors.New("zmq transport requires building with -tags zmq")
}
