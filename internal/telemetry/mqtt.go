package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/danielpatrickdp/ccs-cadence/internal/mode"
	"github.com/danielpatrickdp/ccs-cadence/internal/pipeline"
)

// ErrPublishTimeout is returned when the broker does not acknowledge in time.
var ErrPublishTimeout = errors.New("mqtt publish timed out")

// #region publisher

// Publisher is the part of mqtt.Client the telemetry sink needs.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTConfig holds broker settings.
type MQTTConfig struct {
	Broker   string
	ClientID string
	Topic    string
	QoS      byte
	Retained bool
	Timeout  time.Duration
}

// DefaultMQTTConfig targets a local broker.
func DefaultMQTTConfig() MQTTConfig {
	return MQTTConfig{
		Broker:   "tcp://localhost:1883",
		ClientID: "ccs-tx",
		Topic:    "ccs/cadence",
		QoS:      0,
		Retained: true,
		Timeout:  2 * time.Second,
	}
}

// Dial connects to the configured broker.
func Dial(cfg MQTTConfig) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, token.Error())
	}
	return client, nil
}

// #endregion publisher

// #region sink

// MQTTPublisher is an interval sink that publishes the pipeline snapshot as
// JSON on every change.
type MQTTPublisher struct {
	client Publisher
	cfg    MQTTConfig

	mu     sync.Mutex
	source func() pipeline.Snapshot
}

// NewMQTTPublisher wraps client. source may be nil until SetSource.
func NewMQTTPublisher(client Publisher, cfg MQTTConfig, source func() pipeline.Snapshot) *MQTTPublisher {
	return &MQTTPublisher{client: client, cfg: cfg, source: source}
}

// SetSource attaches the snapshot source.
func (p *MQTTPublisher) SetSource(source func() pipeline.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.source = source
}

// ApplyInterval implements cadence.Sink.
func (p *MQTTPublisher) ApplyInterval(m mode.Mode, intervalMs int64) error {
	p.mu.Lock()
	source := p.source
	p.mu.Unlock()

	msg := Message{Mode: m.String(), IntervalMs: intervalMs}
	if source != nil {
		msg = MessageFromSnapshot(source())
		msg.Mode = m.String()
		msg.IntervalMs = intervalMs
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal telemetry: %w", err)
	}

	token := p.client.Publish(p.cfg.Topic, p.cfg.QoS, p.cfg.Retained, payload)
	if !token.WaitTimeout(p.cfg.Timeout) {
		return fmt.Errorf("publish %s: %w", p.cfg.Topic, ErrPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", p.cfg.Topic, err)
	}
	return nil
}

// #endregion sink
