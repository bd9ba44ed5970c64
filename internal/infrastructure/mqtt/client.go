package mqtt

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/astrohub/indiweb-core/internal/infrastructure/config"
)

// Connection constants.
const (
	// connectTimeout is the maximum time to wait for initial connection.
	connectTimeout = 10 * time.Second

	// publishTimeout is the maximum time to wait for publish acknowledgment.
	publishTimeout = 5 * time.Second

	// disconnectQuiesce is the time to wait for pending operations on
	// disconnect, in milliseconds.
	disconnectQuiesce = 1000

	// keepAlive is the keepalive interval for the connection.
	keepAlive = 60 * time.Second
)

// Topics published by the announcer.
const (
	// TopicStatus carries the retained server status document.
	TopicStatus = "indiweb/status"

	// TopicEvents carries supervisor lifecycle events.
	TopicEvents = "indiweb/events"
)

// Sentinel errors.
var (
	ErrNotConnected  = errors.New("mqtt client not connected")
	ErrPublishFailed = errors.New("mqtt publish failed")
)

// Logger defines the logging interface used by the client.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Client announces server status and lifecycle events over MQTT.
// Optional: the service runs fine without a broker; publishes are
// best-effort once connected and auto-reconnect is left to paho.
type Client struct {
	client pahomqtt.Client
	qos    byte
	logger Logger
}

// Connect creates a client and connects to the configured broker.
// A last-will message marks the status topic offline if the
// connection drops uncleanly.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	c := &Client{
		qos:    byte(cfg.QoS), //nolint:gosec // QoS validated to 0..2 in config
		logger: noopLogger{},
	}

	opts := buildClientOptions(cfg)
	c.client = pahomqtt.NewClient(opts)

	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("connecting to mqtt broker: timeout after %v", connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connecting to mqtt broker: %w", err)
	}

	return c, nil
}

// buildClientOptions creates paho options from indiweb config.
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port))
	opts.SetClientID(cfg.Broker.ClientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetKeepAlive(keepAlive)

	// Broker marks us offline if the connection drops uncleanly.
	opts.SetWill(TopicStatus, `{"online":false}`, byte(cfg.QoS), true) //nolint:gosec // QoS validated in config

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	return opts
}

// SetLogger sets the logger for the client.
func (c *Client) SetLogger(logger Logger) {
	c.logger = logger
}

// PublishStatus publishes the retained server status document.
func (c *Client) PublishStatus(status any) error {
	return c.publishJSON(TopicStatus, status, true)
}

// PublishEvent publishes a lifecycle event, not retained.
func (c *Client) PublishEvent(event any) error {
	return c.publishJSON(TopicEvents, event, false)
}

func (c *Client) publishJSON(topic string, payload any, retained bool) error {
	if c.client == nil || !c.client.IsConnected() {
		return ErrNotConnected
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling payload for %s: %w", topic, err)
	}

	token := c.client.Publish(topic, c.qos, retained, data)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("%w: timeout publishing to %s", ErrPublishFailed, topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPublishFailed, topic, err)
	}

	c.logger.Debug("mqtt published", "topic", topic, "retained", retained)
	return nil
}

// IsConnected reports whether the broker connection is up.
func (c *Client) IsConnected() bool {
	return c.client != nil && c.client.IsConnected()
}

// HealthCheck verifies the broker connection.
func (c *Client) HealthCheck(_ context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// Close publishes an offline status and disconnects cleanly.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	if c.client.IsConnected() {
		// Best effort; the will covers unclean drops.
		_ = c.publishJSON(TopicStatus, map[string]bool{"online": false}, true) //nolint:errcheck // Shutdown path
		c.client.Disconnect(disconnectQuiesce)
	}
	return nil
}
