package config

import (
	"strings"
	"testing"
)

func TestValidateGlobalFlags(t *testing.T) {
	tests := []struct {
		name          string
		apiAddr       string
		output        string
		timeout       int
		errorContains string
	}{
		{"defaults", DefaultAPIAddr, "table", 8, ""},
		{"json output", "10.0.0.7:8010", "json", 8, ""},
		{"missing port", "127.0.0.1", "table", 8, "invalid API address"},
		{"hostname", "localhost:8010", "table", 8, "invalid API address"},
		{"wildcard", "0.0.0.0:8010", "table", 8, "unroutable"},
		{"port zero", "127.0.0.1:0", "table", 8, "API port"},
		{"bad output", DefaultAPIAddr, "yaml", 8, "invalid output format"},
		{"zero timeout", DefaultAPIAddr, "table", 0, "timeout must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Global.APIAddr = tt.apiAddr
			Global.Output = tt.output
			Global.Timeout = tt.timeout

			err := ValidateGlobalFlags(nil, nil)
			if tt.errorContains == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errorContains) {
				t.Fatalf("expected error containing %q, got %v", tt.errorContains, err)
			}
		})
	}
}
