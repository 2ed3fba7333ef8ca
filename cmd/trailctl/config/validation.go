package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/concave-dev/trail/internal/logging"
	"github.com/concave-dev/trail/internal/validate"
)

// ValidateGlobalFlags validates the persistent flags before any command runs.
func ValidateGlobalFlags(cmd *cobra.Command, args []string) error {
	if err := ValidateAPIAddress(); err != nil {
		return err
	}
	if err := ValidateOutputFormat(); err != nil {
		return err
	}
	if Global.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %d", Global.Timeout)
	}
	return nil
}

// ValidateAPIAddress checks that --api is a routable host:port.
func ValidateAPIAddress() error {
	netAddr, err := validate.ParseBindAddress(Global.APIAddr)
	if err != nil {
		logging.Error("Invalid API address '%s': %v", Global.APIAddr, err)
		return fmt.Errorf("invalid API address - expected format: host:port (e.g., %s)", DefaultAPIAddr)
	}

	if netAddr.Host == "0.0.0.0" {
		logging.Error("Unroutable API address '0.0.0.0:%d' - cannot connect to 0.0.0.0", netAddr.Port)
		return fmt.Errorf("unroutable API address - use 127.0.0.1 or a specific IP address")
	}

	if err := validate.ValidateField(netAddr.Port, "required,min=1,max=65535"); err != nil {
		logging.Error("Invalid API port %d: %v", netAddr.Port, err)
		return fmt.Errorf("API port must be between 1-65535")
	}
	return nil
}

// ValidateOutputFormat checks --output.
func ValidateOutputFormat() error {
	switch Global.Output {
	case "table", "json":
		return nil
	}
	logging.Error("Invalid output format '%s' - valid formats are: table, json", Global.Output)
	return fmt.Errorf("invalid output format - valid: table, json")
}
