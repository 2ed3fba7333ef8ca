package config

import (
	"net"
	"testing"
)

// TestDefaultBindAddrIsValidIP validates that the default bind address is a valid IPv4 address
func TestDefaultBindAddrIsValidIP(t *testing.T) {
	ip := net.ParseIP(DefaultBindAddr)
	if ip == nil {
		t.Fatalf("DefaultBindAddr %q is not a valid IP address", DefaultBindAddr)
	}
	if ip.To4() == nil {
		t.Errorf("DefaultBindAddr %q is not a valid IPv4 address", DefaultBindAddr)
	}
}

// TestDefaultPorts validates that default ports are usable and distinct
func TestDefaultPorts(t *testing.T) {
	tests := []struct {
		name string
		port int
	}{
		{"api port", DefaultAPIPort},
		{"gossip port", DefaultGossipPort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.port < 1024 || tt.port > 65535 {
				t.Errorf("%s = %d, want an unprivileged port", tt.name, tt.port)
			}
		})
	}

	if DefaultAPIPort == DefaultGossipPort {
		t.Errorf("API and gossip default ports must differ, both are %d", DefaultAPIPort)
	}
}

// TestDefaultStrings validates string defaults are populated
func TestDefaultStrings(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected string
	}{
		{"log level", DefaultLogLevel, "INFO"},
		{"data dir", DefaultDataDir, "./data"},
		{"database backend", DefaultDatabaseBackend, "goleveldb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != tt.expected {
				t.Errorf("%s = %q, want %q", tt.name, tt.value, tt.expected)
			}
		})
	}
}
