package telemetry

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// MQTTOptions configures an MQTTPublisher.
type MQTTOptions struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	QoS         byte
}

type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTPublisher publishes events to <prefix>/<organ>/readings.
type MQTTPublisher struct {
	client mqttClient
	prefix string
	qos    byte
	logger *zap.Logger
}

// NewMQTTPublisher connects to the broker.
func NewMQTTPublisher(opts MQTTOptions, logger *zap.Logger) (*MQTTPublisher, error) {
	co := mqtt.NewClientOptions()
	co.AddBroker(opts.Broker)
	co.SetClientID(opts.ClientID)
	if opts.Username != "" {
		co.SetUsername(opts.Username)
	}
	if opts.Password != "" {
		co.SetPassword(opts.Password)
	}
	co.SetAutoReconnect(true)
	co.SetCleanSession(true)
	co.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", zap.Error(err))
	})

	client := mqtt.NewClient(co)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	logger.Info("Connected to MQTT broker", zap.String("broker", opts.Broker))
	return newMQTTPublisher(client, opts, logger), nil
}

func newMQTTPublisher(client mqttClient, opts MQTTOptions, logger *zap.Logger) *MQTTPublisher {
	prefix := opts.TopicPrefix
	if prefix == "" {
		prefix = "organsim"
	}
	return &MQTTPublisher{client: client, prefix: prefix, qos: opts.QoS, logger: logger}
}

// Topic returns the topic readings of organ are published on.
func (p *MQTTPublisher) Topic(e Event) string {
	return fmt.Sprintf("%s/%s/readings", p.prefix, e.Organ)
}

// Publish sends e and waits for the broker until ctx is done.
func (p *MQTTPublisher) Publish(ctx context.Context, e Event) error {
	payload, err := e.encode()
	if err != nil {
		return err
	}

	topic := p.Topic(e)
	token := p.client.Publish(topic, p.qos, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("publish to %s: %w", topic, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() error {
	p.client.Disconnect(uint((250 * time.Millisecond).Milliseconds()))
	return nil
}
