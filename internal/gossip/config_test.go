package gossip

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.NodeName = "node-1"
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.BindAddr != "0.0.0.0" {
		t.Errorf("Expected BindAddr=0.0.0.0, got %v", config.BindAddr)
	}
	if config.BindPort != 4210 {
		t.Errorf("Expected BindPort=4210, got %v", config.BindPort)
	}
	if config.EventBufferSize != 1024 {
		t.Errorf("Expected EventBufferSize=1024, got %v", config.EventBufferSize)
	}
	if config.JoinTimeout != 30*time.Second {
		t.Errorf("Expected JoinTimeout=30s, got %v", config.JoinTimeout)
	}
	if config.Tags == nil || len(config.Tags) != 0 {
		t.Errorf("Expected empty initialized Tags, got %v", config.Tags)
	}
	if config.NodeName != "" {
		t.Errorf("Expected NodeName to be empty by default, got %v", config.NodeName)
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name          string
		modify        func(c *Config)
		expectedError string
	}{
		{"valid defaults", func(c *Config) {}, ""},
		{"valid identity", func(c *Config) {
			c.MemberAddress = "0x0000000000000000000000000000000000000001"
			c.App2AppDestination = "kld://app2app/a"
			c.JoinAddrs = []string{"10.0.0.1:4200"}
		}, ""},
		{"dynamic port", func(c *Config) { c.BindPort = 0 }, ""},
		{"empty node name", func(c *Config) { c.NodeName = "" }, "node name cannot be empty"},
		{"bad node name", func(c *Config) { c.NodeName = "Node 1" }, "invalid node name"},
		{"hostname bind address", func(c *Config) { c.BindAddr = "localhost" }, "invalid bind address"},
		{"port too high", func(c *Config) { c.BindPort = 99999 }, "invalid bind port"},
		{"bad member address", func(c *Config) { c.MemberAddress = "0x1234" }, "invalid member address"},
		{"bad join address", func(c *Config) { c.JoinAddrs = []string{"nowhere"} }, "invalid join addresses"},
		{"zero buffer", func(c *Config) { c.EventBufferSize = 0 }, "event buffer size must be positive, got: 0"},
		{"zero retries", func(c *Config) { c.JoinRetries = 0 }, "join retries must be positive"},
		{"reserved tag", func(c *Config) { c.Tags = map[string]string{TagMemberAddress: "x"} }, "reserved"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(cfg)
			err := validateConfig(cfg)

			if tt.expectedError == "" {
				if err != nil {
					t.Errorf("Expected valid config, got error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Expected error containing %q, got nil", tt.expectedError)
			}
			if !strings.Contains(err.Error(), tt.expectedError) {
				t.Errorf("Expected error to contain %q, got %q", tt.expectedError, err.Error())
			}
		})
	}
}

func TestValidateConfigNil(t *testing.T) {
	if err := validateConfig(nil); err == nil {
		t.Error("Expected validateConfig to fail with nil config")
	}
}

func TestIdentityTags(t *testing.T) {
	cfg := validConfig()
	cfg.MemberAddress = "0x0000000000000000000000000000000000000001"
	cfg.DocExchangeDestination = "kld://docex/a"
	cfg.APIPort = 5000

	tags := cfg.identityTags()
	if tags[TagMemberAddress] != cfg.MemberAddress {
		t.Errorf("Expected member address tag, got %v", tags)
	}
	if tags[TagAPIPort] != "5000" {
		t.Errorf("Expected api_port=5000, got %q", tags[TagAPIPort])
	}
	if _, ok := tags[TagApp2AppDestination]; ok {
		t.Errorf("Empty destinations must not be advertised, got %v", tags)
	}
}
