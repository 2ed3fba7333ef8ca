// Package api provides the trail HTTP API server.
//
// The server exposes the registry (members, asset and payment definitions
// and instances), the batches produced by the batching engine, the gossip
// peer table and Prometheus metrics. trailctl and application clients use it.
package api

import (
	"fmt"
	"time"

	"github.com/concave-dev/trail/internal/api/handlers"
	configDefaults "github.com/concave-dev/trail/internal/config"
	"github.com/concave-dev/trail/internal/registry"
	"github.com/concave-dev/trail/internal/validate"
)

const (
	// DefaultAPIPort is the default port for HTTP API server
	DefaultAPIPort = configDefaults.DefaultAPIPort
)

// Config holds the parameters for running the HTTP API server.
type Config struct {
	BindAddr    string        `mapstructure:"bind-addr"`
	BindPort    int           `mapstructure:"bind-port"`
	ReadTimeout time.Duration `mapstructure:"read-timeout"`
	// Must exceed the batch add timeout: batched mutations return only
	// once their batch is persisted.
	WriteTimeout time.Duration `mapstructure:"write-timeout"`

	Registry *registry.Service   `mapstructure:"-"`
	Batches  handlers.BatchStats `mapstructure:"-"`
	Peers    handlers.PeerSource `mapstructure:"-"` // nil when gossip is disabled
}

// DefaultConfig returns an API configuration bound to loopback.
func DefaultConfig() *Config {
	return &Config{
		BindAddr:     "127.0.0.1",
		BindPort:     DefaultAPIPort,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
}

// Validate checks network settings and that the services are wired.
func (c *Config) Validate() error {
	if err := validate.ValidateRequiredString(c.BindAddr, "bind address"); err != nil {
		return err
	}
	if err := validate.ValidatePortRange(c.BindPort); err != nil {
		return fmt.Errorf("bind port validation failed: %w", err)
	}
	if err := validate.ValidatePositiveTimeout(c.ReadTimeout, "read timeout"); err != nil {
		return err
	}
	if err := validate.ValidatePositiveTimeout(c.WriteTimeout, "write timeout"); err != nil {
		return err
	}
	if c.Registry == nil {
		return fmt.Errorf("registry service cannot be nil")
	}
	return nil
}
