package mqtt

import (
	"context"
	"errors"
	"testing"

	"github.com/astrohub/indiweb-core/internal/infrastructure/config"
)

func TestBuildClientOptions(t *testing.T) {
	cfg := config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "broker.local",
			Port:     1883,
			ClientID: "indiweb-test",
		},
		QoS: 1,
	}

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 {
		t.Fatalf("expected 1 broker, got %d", len(opts.Servers))
	}
	if opts.Servers[0].Scheme != "tcp" {
		t.Errorf("scheme = %q, want tcp", opts.Servers[0].Scheme)
	}
	if opts.Servers[0].Host != "broker.local:1883" {
		t.Errorf("host = %q", opts.Servers[0].Host)
	}
	if opts.ClientID != "indiweb-test" {
		t.Errorf("client id = %q", opts.ClientID)
	}
	if !opts.WillEnabled {
		t.Error("expected last-will to be configured")
	}
	if opts.WillTopic != TopicStatus {
		t.Errorf("will topic = %q, want %q", opts.WillTopic, TopicStatus)
	}
}

func TestBuildClientOptions_TLS(t *testing.T) {
	cfg := config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host: "broker.local",
			Port: 8883,
			TLS:  true,
		},
	}

	opts := buildClientOptions(cfg)

	if opts.Servers[0].Scheme != "ssl" {
		t.Errorf("scheme = %q, want ssl", opts.Servers[0].Scheme)
	}
	if opts.TLSConfig == nil {
		t.Fatal("expected TLS config")
	}
}

func TestBuildClientOptions_Auth(t *testing.T) {
	cfg := config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{Host: "h", Port: 1883},
		Auth:   config.MQTTAuthConfig{Username: "observer", Password: "secret"},
	}

	opts := buildClientOptions(cfg)

	if opts.Username != "observer" {
		t.Errorf("username = %q", opts.Username)
	}
}

func TestPublish_NotConnected(t *testing.T) {
	c := &Client{logger: noopLogger{}}

	if err := c.PublishStatus(map[string]bool{"online": true}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("PublishStatus() error = %v, want ErrNotConnected", err)
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestClose_NeverConnected(t *testing.T) {
	c := &Client{}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
