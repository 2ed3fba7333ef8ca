// Package dispatch submits work to the outside world: batch payloads and
// definitions are pinned to IPFS, and transactions are sent through the
// REST API gateway of the ledger. The BatchDispatcher ties both together as
// the dispatch function of the batching engine.
package dispatch

import (
	"fmt"
	"time"

	"github.com/concave-dev/trail/internal/validate"
)

const (
	DefaultIPFSURL        = "http://127.0.0.1:5001"
	DefaultGatewayURL     = "http://127.0.0.1:8080"
	DefaultRequestTimeout = 30 * time.Second
)

// Config holds the endpoints used for dispatch.
type Config struct {
	IPFSURL         string        `json:"ipfsURL" mapstructure:"ipfs-url" validate:"required,url"`
	GatewayURL      string        `json:"gatewayURL" mapstructure:"gateway-url" validate:"required,url"`
	GatewayUsername string        `json:"gatewayUsername,omitempty" mapstructure:"gateway-username"`
	GatewayPassword string        `json:"-" mapstructure:"gateway-password"`
	RequestTimeout  time.Duration `json:"requestTimeout" mapstructure:"request-timeout"`
}

// DefaultConfig returns endpoints for a local IPFS node and gateway.
func DefaultConfig() *Config {
	return &Config{
		IPFSURL:        DefaultIPFSURL,
		GatewayURL:     DefaultGatewayURL,
		RequestTimeout: DefaultRequestTimeout,
	}
}

// Validate checks the endpoints and timeout.
func (c *Config) Validate() error {
	if err := validate.ValidateStruct(c); err != nil {
		return fmt.Errorf("dispatch config: %w", err)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("dispatch config: request timeout must be positive, got %v", c.RequestTimeout)
	}
	if (c.GatewayUsername == "") != (c.GatewayPassword == "") {
		return fmt.Errorf("dispatch config: gateway username and password must be set together")
	}
	return nil
}
