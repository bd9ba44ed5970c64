package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the INDI web manager.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Web       WebConfig       `yaml:"web"`
	INDI      INDIConfig      `yaml:"indi"`
	Database  DatabaseConfig  `yaml:"database"`
	Logging   LoggingConfig   `yaml:"logging"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Agent     AgentConfig     `yaml:"agent"`
	System    SystemConfig    `yaml:"system"`
}

// WebConfig contains HTTP API server settings.
type WebConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts WebTimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// WebTimeoutConfig contains HTTP timeout settings in seconds.
type WebTimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// INDIConfig contains settings for the managed indiserver process.
type INDIConfig struct {
	// Binary is the path to the indiserver executable.
	// Default: "indiserver" (resolved via PATH).
	Binary string `yaml:"binary"`

	// Port is the default client port indiserver binds to when a profile
	// does not specify one.
	Port int `yaml:"port"`

	// FIFOPath is where indiserver creates its control pipe.
	FIFOPath string `yaml:"fifo_path"`

	// ConfigDir is indiserver's working/config directory (driver configs
	// and the profile database live under it).
	ConfigDir string `yaml:"config_dir"`

	// DataDir is the directory of driver definition XML files.
	DataDir string `yaml:"data_dir"`

	// MaxClients is passed to indiserver's -m flag (MB of buffering
	// allowed per client before it is dropped).
	MaxClients int `yaml:"max_clients"`

	// StartTimeout bounds how long Start waits for the control pipe to
	// become openable after spawning indiserver.
	StartTimeout time.Duration `yaml:"start_timeout"`

	// GracefulTimeout is how long Stop waits after SIGTERM before SIGKILL.
	GracefulTimeout time.Duration `yaml:"graceful_timeout"`

	// AutoConnectDelay is how long after a profile start the deferred
	// auto-connect sweep fires.
	AutoConnectDelay time.Duration `yaml:"autoconnect_delay"`
}

// DatabaseConfig contains SQLite settings for the profile store.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// WebSocketConfig contains settings for the /api/events WebSocket endpoint.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// MQTTConfig contains settings for the optional MQTT status announcer.
type MQTTConfig struct {
	Enabled bool             `yaml:"enabled"`
	Broker  MQTTBrokerConfig `yaml:"broker"`
	Auth    MQTTAuthConfig   `yaml:"auth"`
	QoS     int              `yaml:"qos"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// InfluxDBConfig contains settings for the optional lifecycle event recorder.
type InfluxDBConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Token   string `yaml:"token"`
	Org     string `yaml:"org"`
	Bucket  string `yaml:"bucket"`
}

// AgentConfig contains settings for the INDIHub relay agent.
type AgentConfig struct {
	// Binary is the path to the indihub-agent executable.
	Binary string `yaml:"binary"`
}

// SystemConfig contains OS-level command settings.
type SystemConfig struct {
	// Sudo prefixes reboot/poweroff commands with sudo.
	Sudo bool `yaml:"sudo"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: INDIWEB_SECTION_KEY
// For example: INDIWEB_DATABASE_PATH, INDIWEB_WEB_PORT
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	// Paths from file or environment may use ~ shorthand.
	cfg.INDI.ConfigDir = expandHome(cfg.INDI.ConfigDir)
	cfg.INDI.DataDir = expandHome(cfg.INDI.DataDir)
	cfg.Database.Path = expandHome(cfg.Database.Path)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default INDI settings matching upstream indiserver conventions.
const (
	defaultINDIPort   = 7624
	defaultMaxClients = 100
)

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Web: WebConfig{
			Host: "0.0.0.0",
			Port: 8624,
			Timeouts: WebTimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		INDI: INDIConfig{
			Binary:           "indiserver",
			Port:             defaultINDIPort,
			FIFOPath:         "/tmp/indiFIFO",
			ConfigDir:        expandHome("~/.indi"),
			DataDir:          "/usr/share/indi",
			MaxClients:       defaultMaxClients,
			StartTimeout:     10 * time.Second,
			GracefulTimeout:  10 * time.Second,
			AutoConnectDelay: 3 * time.Second,
		},
		Database: DatabaseConfig{
			Path:        expandHome("~/.indi/profiles.db"),
			WALMode:     true,
			BusyTimeout: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "indiweb-core",
			},
			QoS: 1,
		},
		Agent: AgentConfig{
			Binary: "indihub-agent",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: INDIWEB_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("INDIWEB_WEB_HOST"); v != "" {
		cfg.Web.Host = v
	}
	if v := os.Getenv("INDIWEB_WEB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Web.Port = port
		}
	}
	if v := os.Getenv("INDIWEB_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("INDIWEB_INDI_BINARY"); v != "" {
		cfg.INDI.Binary = v
	}
	if v := os.Getenv("INDIWEB_INDI_FIFO"); v != "" {
		cfg.INDI.FIFOPath = v
	}
	if v := os.Getenv("INDIWEB_INDI_DATA_DIR"); v != "" {
		cfg.INDI.DataDir = v
	}
	if v := os.Getenv("INDIWEB_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("INDIWEB_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("INDIWEB_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Web.Port < 1 || c.Web.Port > 65535 {
		errs = append(errs, "web.port must be between 1 and 65535")
	}
	if c.INDI.Port < 1 || c.INDI.Port > 65535 {
		errs = append(errs, "indi.port must be between 1 and 65535")
	}
	if c.INDI.Binary == "" {
		errs = append(errs, "indi.binary is required")
	}
	if c.INDI.FIFOPath == "" {
		errs = append(errs, "indi.fifo_path is required")
	}
	if c.INDI.DataDir == "" {
		errs = append(errs, "indi.data_dir is required")
	}
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when influxdb is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the web read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.Web.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the web write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.Web.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the web idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.Web.Timeouts.Idle) * time.Second
}

// expandHome replaces a leading ~ with the current user's home directory.
// Returns the path unchanged if the home directory cannot be determined.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return home + strings.TrimPrefix(path, "~")
}
