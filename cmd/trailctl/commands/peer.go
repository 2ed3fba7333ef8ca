package commands

import (
	"github.com/spf13/cobra"
)

// Peer command group
var peerCmd = &cobra.Command{
	Use:   "peer",
	Short: "Inspect trail nodes found through gossip",
	Long:  "Commands for inspecting the trail nodes this node knows through gossip peer discovery.",
}

// Peer list command
var peerLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List gossip peers",
	Example: `  # List peers
  trailctl peer ls

  # Only peers that are alive
  trailctl peer ls --status=alive`,
	Args: cobra.NoArgs,
	// RunE will be set by the main package that imports this
}

// Peer info command
var peerInfoCmd = &cobra.Command{
	Use:   "info <peer-id-or-name>",
	Short: "Show detailed information for a specific peer",
	Args:  cobra.ExactArgs(1),
	// RunE will be set by the main package that imports this
}

// SetupPeerCommands initializes peer commands
func SetupPeerCommands() {
	peerCmd.AddCommand(peerLsCmd)
	peerCmd.AddCommand(peerInfoCmd)
}

// GetPeerCommands returns the peer command structures for handler assignment
func GetPeerCommands() (*cobra.Command, *cobra.Command) {
	return peerLsCmd, peerInfoCmd
}

// SetupPeerFlags configures flags for peer commands
func SetupPeerFlags(lsCmd *cobra.Command, statusPtr *string, watchPtr *bool) {
	lsCmd.Flags().StringVar(statusPtr, "status", "", "Filter peers by status (alive, leaving, left, failed)")
	lsCmd.Flags().BoolVarP(watchPtr, "watch", "w", false,
		"Watch for changes and continuously update the display")
}
