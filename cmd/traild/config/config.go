// Package config holds the traild daemon configuration.
//
// Values come from, in order of precedence: command line flags, TRAIL_
// environment variables (optionally loaded from a .env file), a config file
// given with --config, and the defaults below. The component configs for
// persistence, dispatch, notifications and batching are embedded as nested
// sections so a config file mirrors the package layout:
//
//	api: 0.0.0.0:8010
//	database:
//	  backend: postgres
//	  dsn: postgres://trail@localhost/trail
//	batch:
//	  batch_max_records: 500
//
// The daemon reads Global after Load and ValidateConfig have run.
package config

import (
	"github.com/concave-dev/trail/internal/batch"
	configDefaults "github.com/concave-dev/trail/internal/config"
	"github.com/concave-dev/trail/internal/database"
	"github.com/concave-dev/trail/internal/dispatch"
	"github.com/concave-dev/trail/internal/notify"
)

// ConfigField identifies settings whose default behavior depends on whether
// the operator set them.
type ConfigField int

const (
	APIField ConfigField = iota
	GossipField
	LogFileField
)

const (
	DefaultAPI      = configDefaults.DefaultBindAddr + ":8010"
	DefaultGossip   = configDefaults.DefaultBindAddr + ":4210"
	DefaultLogLevel = configDefaults.DefaultLogLevel
	DefaultEnvFile  = ".env"
	DefaultMaxPorts = 100
)

// Config is the complete daemon configuration.
type Config struct {
	ConfigFile string `mapstructure:"-"` // Optional config file (YAML, JSON or TOML)
	EnvFile    string `mapstructure:"-"` // Optional .env file loaded before env binding

	APIAddr    string   `mapstructure:"api"`         // HTTP API address
	APIPort    int      `mapstructure:"-"`           // Derived from APIAddr
	GossipAddr string   `mapstructure:"gossip"`      // Serf gossip address
	GossipPort int      `mapstructure:"-"`           // Derived from GossipAddr
	NoGossip   bool     `mapstructure:"no-gossip"`   // Run without peer discovery
	JoinAddrs  []string `mapstructure:"join"`        // Gossip peers to join
	StrictJoin bool     `mapstructure:"strict-join"` // Exit if joining fails
	NodeName   string   `mapstructure:"name"`        // Node name, generated when empty
	LogLevel   string   `mapstructure:"log-level"`   // DEBUG, INFO, WARN, ERROR
	LogFile    string   `mapstructure:"log-file"`    // Log to a file instead of stderr
	MaxPorts   int      `mapstructure:"max-ports"`   // Ports tried when the default API port is busy

	// Member identity advertised over gossip
	MemberAddress          string `mapstructure:"member-address"`
	App2AppDestination     string `mapstructure:"app2app-destination"`
	DocExchangeDestination string `mapstructure:"docexchange-destination"`

	Database database.Config `mapstructure:"database"`
	Dispatch dispatch.Config `mapstructure:"dispatch"`
	Notify   notify.Config   `mapstructure:"notify"`
	Batch    batch.Config    `mapstructure:"batch"`

	apiExplicitlySet     bool
	gossipExplicitlySet  bool
	logFileExplicitlySet bool
}

// Global is the daemon configuration populated by the root command.
var Global = Default()

// Default returns a configuration holding every default value.
func Default() Config {
	return Config{
		EnvFile:    DefaultEnvFile,
		APIAddr:    DefaultAPI,
		GossipAddr: DefaultGossip,
		LogLevel:   DefaultLogLevel,
		MaxPorts:   DefaultMaxPorts,
		Database:   *database.DefaultConfig(),
		Dispatch:   *dispatch.DefaultConfig(),
		Notify:     *notify.DefaultConfig(),
		Batch:      *batch.DefaultConfig(),
	}
}

// SetExplicitlySet records whether the operator set field.
func (c *Config) SetExplicitlySet(field ConfigField, value bool) {
	switch field {
	case APIField:
		c.apiExplicitlySet = value
	case GossipField:
		c.gossipExplicitlySet = value
	case LogFileField:
		c.logFileExplicitlySet = value
	}
}

// IsExplicitlySet reports whether the operator set field.
func (c *Config) IsExplicitlySet(field ConfigField) bool {
	switch field {
	case APIField:
		return c.apiExplicitlySet
	case GossipField:
		return c.gossipExplicitlySet
	case LogFileField:
		return c.logFileExplicitlySet
	}
	return false
}
