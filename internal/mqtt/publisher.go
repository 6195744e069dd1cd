package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/fkcurrie/ledpanel-golang/internal/types"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
	quiesceMillis  = 250
)

// ErrTimeout is returned when the broker does not acknowledge in time
var ErrTimeout = errors.New("mqtt: timed out waiting for broker")

// Client is the part of the paho client the publisher uses
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// Publisher publishes display mode changes as retained JSON messages
type Publisher struct {
	client Client
	topic  string
}

// New connects to the configured broker
func New(cfg types.MQTTConfig) (*Publisher, error) {
	options := mqtt.NewClientOptions()
	options.AddBroker(cfg.Broker)
	options.SetClientID(cfg.ClientID)
	options.SetConnectTimeout(connectTimeout)
	options.SetAutoReconnect(true)

	client := mqtt.NewClient(options)
	t := client.Connect()
	if !t.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Broker, ErrTimeout)
	}
	if err := t.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Broker, err)
	}

	return NewWithClient(client, cfg.Topic), nil
}

// NewWithClient publishes under topic with an existing client
func NewWithClient(client Client, topic string) *Publisher {
	return &Publisher{
		client: client,
		topic:  topic,
	}
}

// ModeTopic is where mode changes are published
func (p *Publisher) ModeTopic() string {
	return p.topic + "/mode"
}

// PublishMode publishes event with QoS 1, retained, and waits for the broker
func (p *Publisher) PublishMode(ctx context.Context, event types.ModeEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode mode event: %w", err)
	}

	t := p.client.Publish(p.ModeTopic(), 1, true, payload)

	timer := time.NewTimer(publishTimeout)
	defer timer.Stop()

	select {
	case <-t.Done():
		return t.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrTimeout
	}
}

// Close disconnects from the broker
func (p *Publisher) Close() {
	p.client.Disconnect(quiesceMillis)
}
