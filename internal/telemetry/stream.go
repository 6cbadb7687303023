package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StreamOptions configures a StreamPublisher.
type StreamOptions struct {
	Addr     string
	Password string
	DB       int
	Stream   string
	MaxLen   int64
}

type streamClient interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	Close() error
}

// StreamPublisher appends events to a capped Redis stream.
type StreamPublisher struct {
	client streamClient
	stream string
	maxLen int64
	logger *zap.Logger
}

// NewStreamPublisher connects to Redis.
func NewStreamPublisher(opts StreamOptions, logger *zap.Logger) (*StreamPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return newStreamPublisher(client, opts, logger), nil
}

func newStreamPublisher(client streamClient, opts StreamOptions, logger *zap.Logger) *StreamPublisher {
	stream := opts.Stream
	if stream == "" {
		stream = "organsim:readings"
	}
	return &StreamPublisher{client: client, stream: stream, maxLen: opts.MaxLen, logger: logger}
}

// Publish appends e with XADD, trimming the stream approximately to MaxLen.
func (p *StreamPublisher) Publish(ctx context.Context, e Event) error {
	payload, err := e.encode()
	if err != nil {
		return err
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"organ":      string(e.Organ),
			"session_id": e.SessionID,
			"data":       string(payload),
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to add to stream %s: %w", p.stream, err)
	}
	return nil
}

// Close closes the Redis client.
func (p *StreamPublisher) Close() error {
	return p.client.Close()
}
