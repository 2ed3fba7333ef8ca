package commands

import (
	"github.com/spf13/cobra"
)

// Health command
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Show node health and open batch processors",
	Long: `Show the health of the traild node, its version and uptime, and the
batch processors currently accumulating or dispatching records.`,
	Example: `  # Show health of the local node
  trailctl health

  # Output in JSON format
  trailctl -o json health`,
	Args: cobra.NoArgs,
	// RunE will be set by the main package that imports this
}

// GetHealthCommand returns the health command for handler assignment
func GetHealthCommand() *cobra.Command {
	return healthCmd
}
