package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
web:
  host: "127.0.0.1"
  port: 9624
indi:
  binary: "/usr/bin/indiserver"
  port: 7624
  fifo_path: "/tmp/test-fifo"
  data_dir: "/usr/share/indi"
database:
  path: "/tmp/test-profiles.db"
  wal_mode: true
  busy_timeout: 5
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Web.Host != "127.0.0.1" {
		t.Errorf("Web.Host = %q, want %q", cfg.Web.Host, "127.0.0.1")
	}
	if cfg.Web.Port != 9624 {
		t.Errorf("Web.Port = %d, want 9624", cfg.Web.Port)
	}
	if cfg.INDI.Binary != "/usr/bin/indiserver" {
		t.Errorf("INDI.Binary = %q, want %q", cfg.INDI.Binary, "/usr/bin/indiserver")
	}
	if cfg.Database.Path != "/tmp/test-profiles.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test-profiles.db")
	}
}

func TestLoad_Defaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("{}\n"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Web.Port != 8624 {
		t.Errorf("default Web.Port = %d, want 8624", cfg.Web.Port)
	}
	if cfg.INDI.Port != 7624 {
		t.Errorf("default INDI.Port = %d, want 7624", cfg.INDI.Port)
	}
	if cfg.INDI.FIFOPath != "/tmp/indiFIFO" {
		t.Errorf("default INDI.FIFOPath = %q, want /tmp/indiFIFO", cfg.INDI.FIFOPath)
	}
	if cfg.INDI.AutoConnectDelay != 3*time.Second {
		t.Errorf("default AutoConnectDelay = %v, want 3s", cfg.INDI.AutoConnectDelay)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("default Logging.Level = %q, want info", cfg.Logging.Level)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
web:
  port: 99999
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected validation error for out-of-range port, got nil")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("{}\n"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	t.Setenv("INDIWEB_DATABASE_PATH", "/tmp/override.db")
	t.Setenv("INDIWEB_WEB_PORT", "9999")
	t.Setenv("INDIWEB_INDI_FIFO", "/tmp/override-fifo")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/tmp/override.db" {
		t.Errorf("Database.Path = %q, want env override", cfg.Database.Path)
	}
	if cfg.Web.Port != 9999 {
		t.Errorf("Web.Port = %d, want 9999", cfg.Web.Port)
	}
	if cfg.INDI.FIFOPath != "/tmp/override-fifo" {
		t.Errorf("INDI.FIFOPath = %q, want env override", cfg.INDI.FIFOPath)
	}
}

func TestValidate_MQTTQoS(t *testing.T) {
	cfg := defaultConfig()
	cfg.MQTT.QoS = 3
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() expected error for qos=3, got nil")
	}
}

func TestValidate_InfluxRequiresURL(t *testing.T) {
	cfg := defaultConfig()
	cfg.InfluxDB.Enabled = true
	cfg.InfluxDB.URL = ""
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() expected error for enabled influxdb without url, got nil")
	}
}
