// Package commands defines the trailctl command tree.
//
// Commands are grouped by the resource they inspect:
//   - health: node status and open batch processors
//   - batch: anchored and pending batches (ls, info)
//   - member: registered network members (ls)
//   - peer: trail nodes found through gossip (ls, info)
//
// Handlers are attached by the main package.
package commands

import (
	"github.com/spf13/cobra"
)

// Root command
var RootCmd = &cobra.Command{
	Use:   "trailctl",
	Short: "CLI tool for inspecting a trail asset and payment registry node",
	Long: `Trail CLI (trailctl) is a command-line tool for inspecting a traild node:
its batches of on-chain records, registered members and gossip peers.`,
	SilenceUsage: true,
	Example: `  # Check node health
  trailctl health

  # List pending batches
  trailctl batch ls --pending

  # Show a batch by ID or by its content hash
  trailctl batch info 7d1c0c4e-7bb0-4a53-9a38-0f1f6e9b8a44

  # List members owned by this node
  trailctl member ls --owned

  # Connect to a remote node
  trailctl --api=192.168.1.100:8010 peer ls

  # Output in JSON format
  trailctl -o json batch ls`,
}

// SetupCommands initializes all commands and their relationships
func SetupCommands() {
	RootCmd.AddCommand(healthCmd)
	RootCmd.AddCommand(batchCmd)
	RootCmd.AddCommand(memberCmd)
	RootCmd.AddCommand(peerCmd)

	SetupBatchCommands()
	SetupMemberCommands()
	SetupPeerCommands()
}

// SetupGlobalFlags configures all global persistent flags
func SetupGlobalFlags(rootCmd *cobra.Command, apiAddrPtr *string, logLevelPtr *string,
	timeoutPtr *int, verbosePtr *bool, outputPtr *string, defaultAPIAddr string) {
	rootCmd.PersistentFlags().StringVar(apiAddrPtr, "api", defaultAPIAddr,
		"traild API server address")
	rootCmd.PersistentFlags().StringVar(logLevelPtr, "log-level", "ERROR",
		"Log level: DEBUG, INFO, WARN, ERROR")
	rootCmd.PersistentFlags().IntVar(timeoutPtr, "timeout", 8,
		"Connection timeout in seconds")
	rootCmd.PersistentFlags().BoolVarP(verbosePtr, "verbose", "v", false,
		"Show verbose output")
	rootCmd.PersistentFlags().StringVarP(outputPtr, "output", "o", "table",
		"Output format: table, json")
}
