package handlers

import (
	"github.com/concave-dev/trail/cmd/trailctl/client"
	"github.com/concave-dev/trail/cmd/trailctl/config"
	"github.com/concave-dev/trail/cmd/trailctl/display"
	"github.com/concave-dev/trail/cmd/trailctl/utils"
	"github.com/concave-dev/trail/internal/logging"
	"github.com/spf13/cobra"
)

// HandleHealth handles the health command.
func HandleHealth(cmd *cobra.Command, args []string) error {
	utils.SetupLogging()

	logging.Info("Fetching health from API server: %s", config.Global.APIAddr)

	health, err := client.CreateAPIClient().GetHealth()
	if err != nil {
		return err
	}

	display.DisplayHealth(health)
	logging.Success("Node is %s", health.Status)
	return nil
}
