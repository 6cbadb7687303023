package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/devrev/organsim/internal/model"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisOptions configures a RedisStore.
type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
}

// RedisStore implements Store on Redis, one JSON document per session.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisStore connects to Redis and namespaces keys by organ.
func NewRedisStore(opts RedisOptions, organ model.Organ, logger *zap.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return newRedisStore(client, opts, organ, logger), nil
}

func newRedisStore(client *redis.Client, opts RedisOptions, organ model.Organ, logger *zap.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: fmt.Sprintf("%s%s:", opts.KeyPrefix, organ),
		ttl:    opts.TTL,
		logger: logger,
	}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

// Load reads the profile of a session.
func (s *RedisStore) Load(ctx context.Context, id string) (model.PatientProfile, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.DefaultProfile(), nil
	}
	if err != nil {
		return model.PatientProfile{}, fmt.Errorf("failed to load session %s: %w", id, err)
	}

	p := model.DefaultProfile()
	if err := json.Unmarshal(data, &p); err != nil {
		return model.PatientProfile{}, fmt.Errorf("failed to unmarshal session %s: %w", id, err)
	}
	return p, nil
}

// Save writes the profile and refreshes its TTL.
func (s *RedisStore) Save(ctx context.Context, id string, p model.PatientProfile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal session %s: %w", id, err)
	}

	ttl := s.ttl
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, s.key(id), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session %s: %w", id, err)
	}
	return nil
}

// Ping checks the Redis connection
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client
func (s *RedisStore) Close() error {
	return s.client.Close()
}
