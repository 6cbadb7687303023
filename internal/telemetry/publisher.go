// Package telemetry forwards generated readings to an external sink.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/devrev/organsim/internal/model"
	"go.uber.org/zap"
)

// Sink names accepted by New.
const (
	SinkNone  = "none"
	SinkMQTT  = "mqtt"
	SinkRedis = "redis"
)

// Event is the envelope published for every reading.
type Event struct {
	Organ     model.Organ `json:"organ"`
	SessionID string      `json:"session_id"`
	Condition string      `json:"condition"`
	Reading   any         `json:"reading"`
	SentAt    string      `json:"sent_at"`
}

// NewEvent wraps a reading for publication.
func NewEvent(organ model.Organ, sessionID string, condition model.Condition, reading any) Event {
	return Event{
		Organ:     organ,
		SessionID: sessionID,
		Condition: string(condition),
		Reading:   reading,
		SentAt:    model.Timestamp(time.Now()),
	}
}

func (e Event) encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal telemetry event: %w", err)
	}
	return data, nil
}

// Publisher sends reading events to a sink.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Noop discards every event.
type Noop struct{}

// Publish implements Publisher.
func (Noop) Publish(context.Context, Event) error { return nil }

// Close implements Publisher.
func (Noop) Close() error { return nil }

// Options selects and configures the sink.
type Options struct {
	Sink   string
	MQTT   MQTTOptions
	Stream StreamOptions
}

// New creates the publisher for opts.Sink. An empty sink disables telemetry.
func New(opts Options, logger *zap.Logger) (Publisher, error) {
	switch opts.Sink {
	case "", SinkNone:
		return Noop{}, nil
	case SinkMQTT:
		return NewMQTTPublisher(opts.MQTT, logger)
	case SinkRedis:
		return NewStreamPublisher(opts.Stream, logger)
	default:
		return nil, fmt.Errorf("unknown telemetry sink %q", opts.Sink)
	}
}
