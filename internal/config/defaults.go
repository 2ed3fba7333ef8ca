// Package config provides default values shared by trail components (API,
// gossip, persistence) so the daemon flags and the component configs agree.
package config

const (
	// DefaultBindAddr binds network services on all interfaces.
	// TODO: Add support for IPv6 bind addresses (::)
	DefaultBindAddr = "0.0.0.0"

	// DefaultLogLevel is the default log level for all components.
	DefaultLogLevel = "INFO"

	// DefaultDataDir holds the embedded document store.
	DefaultDataDir = "./data"

	// DefaultAPIPort is the HTTP API port.
	DefaultAPIPort = 8010

	// DefaultGossipPort is the serf gossip port.
	DefaultGossipPort = 4210

	// DefaultDatabaseBackend selects the embedded goleveldb store.
	DefaultDatabaseBackend = "goleveldb"
)
