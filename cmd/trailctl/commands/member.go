package commands

import (
	"github.com/spf13/cobra"
)

// Member command group
var memberCmd = &cobra.Command{
	Use:   "member",
	Short: "Inspect registered network members",
	Long:  "Commands for inspecting members registered on chain through this node.",
}

// Member list command
var memberLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List registered members",
	Example: `  # List all members
  trailctl member ls

  # List members owned by this node, with destinations
  trailctl -v member ls --owned`,
	Args: cobra.NoArgs,
	// RunE will be set by the main package that imports this
}

// SetupMemberCommands initializes member commands
func SetupMemberCommands() {
	memberCmd.AddCommand(memberLsCmd)
}

// GetMemberCommands returns the member command structures for handler assignment
func GetMemberCommands() *cobra.Command {
	return memberLsCmd
}

// SetupMemberFlags configures flags for member commands
func SetupMemberFlags(lsCmd *cobra.Command, ownedPtr *bool, limitPtr *int) {
	lsCmd.Flags().BoolVar(ownedPtr, "owned", false, "Only members owned by this node")
	lsCmd.Flags().IntVar(limitPtr, "limit", 0, "Maximum number of members (0 for server default)")
}
