package main

import "testing"

func TestGetConfigPath_Default(t *testing.T) {
	t.Setenv("INDIWEB_CONFIG", "")

	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}
}

func TestGetConfigPath_EnvOverride(t *testing.T) {
	t.Setenv("INDIWEB_CONFIG", "/etc/indiweb/config.yaml")

	if got := getConfigPath(); got != "/etc/indiweb/config.yaml" {
		t.Errorf("getConfigPath() = %q", got)
	}
}
