package gossip

import (
	"fmt"
	"strconv"
	"time"

	configDefaults "github.com/concave-dev/trail/internal/config"
	"github.com/concave-dev/trail/internal/validate"
)

// Tags advertised by every trail node. Peers read them to learn which member
// a node acts for and where its private messaging endpoints live.
const (
	TagNodeID                 = "node_id"
	TagMemberAddress          = "member_address"
	TagApp2AppDestination     = "app2app_destination"
	TagDocExchangeDestination = "docexchange_destination"
	TagAPIPort                = "api_port"
)

// Config holds configuration for the gossip Manager.
type Config struct {
	BindAddr  string   `mapstructure:"bind-addr"`
	BindPort  int      `mapstructure:"bind-port"`
	NodeName  string   `mapstructure:"node-name"`
	JoinAddrs []string `mapstructure:"join"`

	// Identity advertised to peers
	MemberAddress          string `mapstructure:"member-address"`
	App2AppDestination     string `mapstructure:"app2app-destination"`
	DocExchangeDestination string `mapstructure:"docexchange-destination"`
	APIPort                int    `mapstructure:"-"`

	Tags map[string]string `mapstructure:"-"` // Extra user tags

	EventBufferSize     int           `mapstructure:"event-buffer-size"`
	JoinRetries         int           `mapstructure:"join-retries"`
	JoinTimeout         time.Duration `mapstructure:"join-timeout"`
	DeadNodeReclaimTime time.Duration `mapstructure:"dead-node-reclaim-time"`
	LogLevel            string        `mapstructure:"-"`
}

// DefaultConfig returns a default configuration for the gossip Manager.
func DefaultConfig() *Config {
	return &Config{
		BindAddr:            configDefaults.DefaultBindAddr,
		BindPort:            configDefaults.DefaultGossipPort,
		EventBufferSize:     1024,
		JoinRetries:         3,
		JoinTimeout:         30 * time.Second,
		DeadNodeReclaimTime: 10 * time.Minute,
		LogLevel:            configDefaults.DefaultLogLevel,
		Tags:                make(map[string]string),
	}
}

// validateConfig validates manager configuration
func validateConfig(config *Config) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if config.NodeName == "" {
		return fmt.Errorf("node name cannot be empty")
	}
	if err := validate.NodeNameFormat(config.NodeName); err != nil {
		return fmt.Errorf("invalid node name: %w", err)
	}

	if err := validate.ValidateField(config.BindAddr, "required,ip"); err != nil {
		return fmt.Errorf("invalid bind address: %w", err)
	}
	if err := validate.ValidateField(config.BindPort, "min=0,max=65535"); err != nil {
		return fmt.Errorf("invalid bind port: %w", err)
	}

	if config.MemberAddress != "" {
		if err := validate.MemberAddress(config.MemberAddress); err != nil {
			return fmt.Errorf("invalid member address: %w", err)
		}
	}
	if len(config.JoinAddrs) > 0 {
		if err := validate.ValidateAddressList(config.JoinAddrs); err != nil {
			return fmt.Errorf("invalid join addresses: %w", err)
		}
	}

	if config.EventBufferSize < 1 {
		return fmt.Errorf("event buffer size must be positive, got: %d", config.EventBufferSize)
	}
	if config.JoinRetries < 1 {
		return fmt.Errorf("join retries must be positive, got: %d", config.JoinRetries)
	}

	if err := validateTags(config.Tags); err != nil {
		return fmt.Errorf("invalid tags: %w", err)
	}
	return nil
}

// validateTags validates that user-provided tags don't use reserved names
func validateTags(tags map[string]string) error {
	reservedTags := map[string]bool{
		TagNodeID:                 true,
		TagMemberAddress:          true,
		TagApp2AppDestination:     true,
		TagDocExchangeDestination: true,
		TagAPIPort:                true,
	}

	for tagName := range tags {
		if reservedTags[tagName] {
			return fmt.Errorf("tag name '%s' is reserved and cannot be used", tagName)
		}
	}
	return nil
}

// identityTags returns the system tags for this node.
func (c *Config) identityTags() map[string]string {
	tags := make(map[string]string, 4)
	if c.MemberAddress != "" {
		tags[TagMemberAddress] = c.MemberAddress
	}
	if c.App2AppDestination != "" {
		tags[TagApp2AppDestination] = c.App2AppDestination
	}
	if c.DocExchangeDestination != "" {
		tags[TagDocExchangeDestination] = c.DocExchangeDestination
	}
	if c.APIPort > 0 {
		tags[TagAPIPort] = strconv.Itoa(c.APIPort)
	}
	return tags
}
