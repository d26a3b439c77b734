// Package events publishes analysis results on a pub socket so downstream
// consumers (alerting, dashboards) can subscribe to container changes.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tagwatch/tagwatch/pkg/logging"
)

// Topic prefixes the wire frames so subscribers can filter.
const Topic = "tagwatch.analysis"

// Event is the JSON payload published after each container analysis.
type Event struct {
	RunID        string    `json:"run_id"`
	Timestamp    time.Time `json:"timestamp"`
	ContainerID  string    `json:"container_id"`
	PropertyID   string    `json:"property_id"`
	NewVersionID string    `json:"new_version_id"`
	OldVersionID string    `json:"old_version_id,omitempty"`
	Rollback     bool      `json:"rollback,omitempty"`
	ChangedCount int       `json:"changed_count"`
	Impacted     bool      `json:"impacted"`
	Descriptions []string  `json:"descriptions,omitempty"`
}

// Publisher sends events to subscribers. Implementations are not required to
// be safe for concurrent Publish calls.
type Publisher interface {
	Publish(event *Event) error
	Close() error
}

// NewPublisher builds the publisher for a configured transport. Supported
// transports are "nng", "zmq" and "none" (or empty).
func NewPublisher(transport, endpoint string, logger logging.Logger) (Publisher, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	switch transport {
	case "", "none":
		return NopPublisher{}, nil
	case "nng":
		return newNNGPublisher(endpoint, logger)
	case "zmq":
		return newZMQPublisher(endpoint, logger)
	default:
		return nil, fmt.Errorf("unknown events transport %q", transport)
	}
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(*Event) error { return nil }
func (NopPublisher) Close() error         { return nil }

// frame renders the wire format: topic, one space, JSON payload.
func frame(event *Event) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, len(Topic)+1+len(payload))
	buf = append(buf, Topic...)
	buf = append(buf, ' ')
	buf = append(buf, payload...)
	return buf, nil
}
