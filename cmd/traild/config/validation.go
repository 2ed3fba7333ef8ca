package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/concave-dev/trail/internal/logging"
	"github.com/concave-dev/trail/internal/validate"
)

// InitializeConfig applies environment overrides that predate TRAIL_
// variables.
func InitializeConfig() {
	if os.Getenv("DEBUG") == "true" {
		Global.LogLevel = "DEBUG"
		logging.Info("DEBUG environment variable detected, setting log level to DEBUG")
	}
	Global.LogLevel = strings.ToUpper(Global.LogLevel)
}

// ValidateConfig validates Global and splits the API and gossip addresses
// into host and port.
func ValidateConfig() error {
	if Global.MaxPorts < 1 || Global.MaxPorts > 10000 {
		logging.Error("Invalid max-ports value: %d (must be between 1 and 10000)", Global.MaxPorts)
		return fmt.Errorf("max-ports must be between 1 and 10000, got: %d", Global.MaxPorts)
	}

	if err := logging.ValidateLogLevel(Global.LogLevel); err != nil {
		return err
	}

	apiNetAddr, err := validate.ParseBindAddress(Global.APIAddr)
	if err != nil {
		logging.Error("Invalid API address '%s': %v", Global.APIAddr, err)
		return fmt.Errorf("invalid API address: %w", err)
	}
	if Global.apiExplicitlySet {
		if err := validate.ValidateField(apiNetAddr.Port, "required,min=1,max=65535"); err != nil {
			logging.Error("API port cannot be 0 (auto-assigned) - clients and peers need a known port")
			return fmt.Errorf("API address requires specific port (not 0): %w", err)
		}
	}
	Global.APIAddr = apiNetAddr.Host
	Global.APIPort = apiNetAddr.Port

	if Global.NoGossip {
		if len(Global.JoinAddrs) > 0 {
			return fmt.Errorf("cannot use --join with --no-gossip")
		}
	} else {
		gossipNetAddr, err := validate.ParseBindAddress(Global.GossipAddr)
		if err != nil {
			logging.Error("Invalid gossip address '%s': %v", Global.GossipAddr, err)
			return fmt.Errorf("invalid gossip address: %w", err)
		}
		if err := validate.ValidateField(gossipNetAddr.Port, "required,min=1,max=65535"); err != nil {
			logging.Error("Gossip port cannot be 0 (auto-assigned) - peers need a known port to join")
			return fmt.Errorf("gossip address requires specific port (not 0): %w", err)
		}
		Global.GossipAddr = gossipNetAddr.Host
		Global.GossipPort = gossipNetAddr.Port

		if len(Global.JoinAddrs) > 0 {
			if err := validate.ValidateAddressList(Global.JoinAddrs); err != nil {
				logging.Error("Invalid join addresses: %v", err)
				return fmt.Errorf("invalid join addresses: %w", err)
			}
		}
	}

	if Global.NodeName != "" {
		originalName := Global.NodeName
		Global.NodeName = strings.ToLower(Global.NodeName)
		if originalName != Global.NodeName {
			logging.Warn("Node name '%s' converted to lowercase: '%s'", originalName, Global.NodeName)
		}
		if err := validate.NodeNameFormat(Global.NodeName); err != nil {
			logging.Error("Invalid node name '%s': %v", Global.NodeName, err)
			return fmt.Errorf("invalid node name: %w", err)
		}
	}

	if Global.MemberAddress != "" {
		if err := validate.MemberAddress(Global.MemberAddress); err != nil {
			return fmt.Errorf("invalid member address: %w", err)
		}
	}

	if err := Global.Database.Validate(); err != nil {
		return err
	}
	if err := Global.Dispatch.Validate(); err != nil {
		return err
	}
	if err := Global.Notify.Validate(); err != nil {
		return err
	}
	if err := Global.Batch.Validate(); err != nil {
		return fmt.Errorf("batch config: %w", err)
	}
	return nil
}
