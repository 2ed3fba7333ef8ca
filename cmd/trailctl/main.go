// Package main is the entry point of trailctl, the CLI for inspecting a
// traild node over its HTTP API.
package main

import (
	"os"

	"github.com/concave-dev/trail/cmd/trailctl/commands"
	"github.com/concave-dev/trail/cmd/trailctl/config"
	"github.com/concave-dev/trail/cmd/trailctl/handlers"
)

func init() {
	rootCmd := commands.RootCmd

	rootCmd.Version = config.Version
	rootCmd.PersistentPreRunE = config.ValidateGlobalFlags

	commands.SetupCommands()

	commands.SetupGlobalFlags(rootCmd, &config.Global.APIAddr, &config.Global.LogLevel,
		&config.Global.Timeout, &config.Global.Verbose, &config.Global.Output, config.DefaultAPIAddr)

	batchLsCmd, batchInfoCmd := commands.GetBatchCommands()
	commands.SetupBatchFlags(batchLsCmd, &config.Batch.Author, &config.Batch.Type,
		&config.Batch.Pending, &config.Batch.Limit, &config.Batch.Watch)

	memberLsCmd := commands.GetMemberCommands()
	commands.SetupMemberFlags(memberLsCmd, &config.Member.Owned, &config.Member.Limit)

	peerLsCmd, peerInfoCmd := commands.GetPeerCommands()
	commands.SetupPeerFlags(peerLsCmd, &config.Peer.StatusFilter, &config.Peer.Watch)

	// Assign handlers
	commands.GetHealthCommand().RunE = handlers.HandleHealth
	batchLsCmd.RunE = handlers.HandleBatchList
	batchInfoCmd.RunE = handlers.HandleBatchInfo
	memberLsCmd.RunE = handlers.HandleMemberList
	peerLsCmd.RunE = handlers.HandlePeerList
	peerInfoCmd.RunE = handlers.HandlePeerInfo
}

// main is the main entry point
func main() {
	if err := commands.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
