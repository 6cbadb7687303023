package server

import (
	"fmt"

	"github.com/devrev/organsim/internal/config"
	"github.com/devrev/organsim/internal/model"
	"github.com/devrev/organsim/internal/session"
	"github.com/devrev/organsim/internal/telemetry"
	"go.uber.org/zap"
)

// NewSessionStore builds the session store selected by cfg.Session.Backend.
func NewSessionStore(cfg config.SessionConfig, organ model.Organ, logger *zap.Logger) (session.Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return session.NewMemoryStore(cfg.MaxSessions, cfg.TTL, logger), nil
	case "redis":
		return session.NewRedisStore(session.RedisOptions{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
			TTL:       cfg.TTL,
		}, organ, logger)
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
	}
}

// NewPublisher builds the telemetry publisher selected by cfg.Sink.
func NewPublisher(cfg config.TelemetryConfig, logger *zap.Logger) (telemetry.Publisher, error) {
	return telemetry.New(telemetry.Options{
		Sink: cfg.Sink,
		MQTT: telemetry.MQTTOptions{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			QoS:         byte(cfg.MQTT.QoS),
		},
		Stream: telemetry.StreamOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Stream:   cfg.Redis.Stream,
			MaxLen:   cfg.Redis.MaxLen,
		},
	}, logger)
}
