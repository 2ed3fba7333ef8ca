package handlers

import (
	"github.com/concave-dev/trail/cmd/trailctl/client"
	"github.com/concave-dev/trail/cmd/trailctl/config"
	"github.com/concave-dev/trail/cmd/trailctl/display"
	"github.com/concave-dev/trail/cmd/trailctl/utils"
	"github.com/concave-dev/trail/internal/logging"
	"github.com/spf13/cobra"
)

// HandleMemberList handles member ls.
func HandleMemberList(cmd *cobra.Command, args []string) error {
	utils.SetupLogging()

	logging.Info("Fetching members from API server: %s", config.Global.APIAddr)

	members, err := client.CreateAPIClient().GetMembers(config.Member.Owned, config.Member.Limit)
	if err != nil {
		return err
	}

	display.DisplayMembers(members)
	logging.Success("Successfully retrieved %d members", len(members))
	return nil
}
