package sender

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"smartfan/internal/config"
	"smartfan/internal/logger"
	"smartfan/internal/report"
)

const (
	publishTimeout = 5 * time.Second
	disconnectMS   = 1000
)

// MQTTSender publishes each report as a retained status message on
// <prefix>/<host>/status and keeps <prefix>/<host>/online current through
// the broker's last will.
type MQTTSender struct {
	client      paho.Client
	statusTopic string
	onlineTopic string
	qos         byte
	retain      bool

	mu     sync.Mutex
	closed bool
}

// NewMQTTSender connects to the broker and announces the controller online.
func NewMQTTSender(cfg config.MQTTConfig, host string) (*MQTTSender, error) {
	status, online := mqttTopics(cfg.TopicPrefix, host)

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(online, "offline", cfg.QoS, true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		client.Disconnect(0)
		return nil, fmt.Errorf("mqtt connect to %s timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", cfg.Broker, err)
	}

	s := newMQTTSender(client, status, online, cfg.QoS, cfg.Retain)
	if err := s.publish(online, []byte("online"), true); err != nil {
		logger.WithComponent("mqtt-sender").Warn().Err(err).Msg("Failed to announce online state")
	}

	logger.WithComponent("mqtt-sender").Info().
		Str("broker", cfg.Broker).
		Str("topic", status).
		Msg("MQTT sender connected")
	return s, nil
}

func newMQTTSender(client paho.Client, statusTopic, onlineTopic string, qos byte, retain bool) *MQTTSender {
	return &MQTTSender{
		client:      client,
		statusTopic: statusTopic,
		onlineTopic: onlineTopic,
		qos:         qos,
		retain:      retain,
	}
}

// mqttTopics builds the status and online topics. Wildcards and separators
// in the host name would break the topic tree, so they are replaced.
func mqttTopics(prefix, host string) (status, online string) {
	host = strings.NewReplacer("/", "_", "+", "_", "#", "_").Replace(host)
	if host == "" {
		host = "unknown"
	}
	base := strings.TrimSuffix(prefix, "/") + "/" + host
	return base + "/status", base + "/online"
}

// Send publishes the report and waits for the broker acknowledgement.
func (s *MQTTSender) Send(ctx context.Context, cycle *report.Cycle) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}

	payload, err := encode(cycle, false)
	if err != nil {
		return err
	}

	token := s.client.Publish(s.statusTopic, s.qos, s.retain, payload)
	select {
	case <-token.Done():
	case <-time.After(publishTimeout):
		return fmt.Errorf("mqtt publish to %s timed out", s.statusTopic)
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish to %s: %w", s.statusTopic, err)
	}
	return nil
}

func (s *MQTTSender) publish(topic string, payload []byte, retain bool) error {
	token := s.client.Publish(topic, s.qos, retain, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("mqtt publish to %s timed out", topic)
	}
	return token.Error()
}

// Close marks the controller offline and disconnects.
func (s *MQTTSender) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if err := s.publish(s.onlineTopic, []byte("offline"), true); err != nil {
		logger.WithComponent("mqtt-sender").Warn().Err(err).Msg("Failed to announce offline state")
	}
	s.client.Disconnect(disconnectMS)
	return nil
}
