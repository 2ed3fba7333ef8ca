package api

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.BindAddr != "127.0.0.1" {
		t.Errorf("DefaultConfig() BindAddr = %q, want 127.0.0.1", config.BindAddr)
	}
	if config.BindPort != DefaultAPIPort {
		t.Errorf("DefaultConfig() BindPort = %d, want %d", config.BindPort, DefaultAPIPort)
	}
	if config.WriteTimeout <= 30*time.Second {
		t.Errorf("DefaultConfig() WriteTimeout = %v, must exceed the default add timeout", config.WriteTimeout)
	}
}

func TestConfig_Validate(t *testing.T) {
	svc := newTestService(t)

	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"empty bind address", func(c *Config) { c.BindAddr = "" }, "bind address"},
		{"zero port", func(c *Config) { c.BindPort = 0 }, "bind port"},
		{"port too high", func(c *Config) { c.BindPort = 99999 }, "bind port"},
		{"zero read timeout", func(c *Config) { c.ReadTimeout = 0 }, "read timeout"},
		{"zero write timeout", func(c *Config) { c.WriteTimeout = 0 }, "write timeout"},
		{"missing registry", func(c *Config) { c.Registry = nil }, "registry"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			config.Registry = svc
			tt.modify(config)

			err := config.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Config.Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Config.Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}
