package event

import (
	"fmt"
	"log"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type MQTTConfig struct {
	Broker   string
	ClientID string
	Topic    string
	QoS      byte
	Retained bool
	// DeviceID is copied into every payload.
	DeviceID string
	Timeout  time.Duration
}

// publisher is the subset of mqtt.Client the sink needs.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTSink publishes events as JSON.
type MQTTSink struct {
	cfg    MQTTConfig
	client publisher
	close  func()
}

// NewMQTTSink connects to the broker.
func NewMQTTSink(cfg MQTTConfig) (*MQTTSink, error) {
	cfg, err := normalizeMQTTConfig(cfg)
	if err != nil {
		return nil, err
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(cfg.Timeout)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.Timeout) {
		return nil, fmt.Errorf("mqtt connect %s: timeout after %s", cfg.Broker, cfg.Timeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, err)
	}
	log.Printf("mqtt connected broker=%s client_id=%s topic=%s", cfg.Broker, cfg.ClientID, cfg.Topic)

	return &MQTTSink{
		cfg:    cfg,
		client: client,
		close:  func() { client.Disconnect(250) },
	}, nil
}

func normalizeMQTTConfig(cfg MQTTConfig) (MQTTConfig, error) {
	cfg.Broker = strings.TrimSpace(cfg.Broker)
	cfg.Topic = strings.TrimSpace(cfg.Topic)
	if cfg.Broker == "" {
		return cfg, fmt.Errorf("mqtt broker is required")
	}
	if cfg.Topic == "" {
		return cfg, fmt.Errorf("mqtt topic is required")
	}
	if cfg.QoS > 2 {
		return cfg, fmt.Errorf("mqtt qos must be 0, 1 or 2")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "fleettrack"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return cfg, nil
}

func (s *MQTTSink) Send(ev Event) error {
	b, err := marshalPayload(s.cfg.DeviceID, ev)
	if err != nil {
		return fmt.Errorf("mqtt payload: %w", err)
	}
	token := s.client.Publish(s.cfg.Topic, s.cfg.QoS, s.cfg.Retained, b)
	if !token.WaitTimeout(s.cfg.Timeout) {
		return fmt.Errorf("mqtt publish: timeout after %s", s.cfg.Timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish: %w", err)
	}
	return nil
}

func (s *MQTTSink) Close() {
	if s == nil || s.close == nil {
		return
	}
	s.close()
}
