package commands

import (
	"fmt"

	"github.com/concave-dev/trail/internal/logging"
	"github.com/spf13/cobra"
)

// Batch command (parent command for batch operations)
var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Inspect batches of on-chain records",
	Long: `Commands for inspecting batches. A batch groups records of one type from
one author that are pinned to IPFS and anchored on chain in a single transaction.`,
}

// Batch list command
var batchLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List batches",
	Long:  "List batches, newest first, optionally filtered by author, type or completion.",
	Example: `  # List the latest batches
  trailctl batch ls

  # List batches still waiting for a receipt
  trailctl batch ls --pending

  # List asset instance batches from one author
  trailctl batch ls --author=0x2b7f0fcb30d1f1bd3a8e3f0b7d0a3d58c1c2f6a0 --type=assetInstance

  # Watch pending batches
  trailctl batch ls --pending --watch`,
	Args: cobra.NoArgs,
	// RunE will be set by the main package that imports this
}

// Batch info command
var batchInfoCmd = &cobra.Command{
	Use:   "info <batch-id-or-hash>",
	Short: "Show a batch and its records",
	Long: `Display a batch with its records and anchoring details. The batch can be
given by ID or by the 0x-prefixed hash it was pinned under.`,
	Example: `  # Show a batch by ID
  trailctl batch info 7d1c0c4e-7bb0-4a53-9a38-0f1f6e9b8a44

  # Show a batch by hash
  trailctl batch info 0x5f1e6a8b9c0d2e3f4a5b6c7d8e9f0a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6e7f`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			cmd.Help()
			fmt.Println()
			logging.Error("Invalid arguments: expected 1 batch ID or hash, got %d", len(args))
			return fmt.Errorf("requires exactly 1 argument (batch ID or hash)")
		}
		return nil
	},
	// RunE will be set by the main package that imports this
}

// SetupBatchCommands initializes batch commands
func SetupBatchCommands() {
	batchCmd.AddCommand(batchLsCmd)
	batchCmd.AddCommand(batchInfoCmd)
}

// GetBatchCommands returns the batch command structures for handler assignment
func GetBatchCommands() (*cobra.Command, *cobra.Command) {
	return batchLsCmd, batchInfoCmd
}

// SetupBatchFlags configures flags for batch commands
func SetupBatchFlags(lsCmd *cobra.Command, authorPtr, typePtr *string,
	pendingPtr *bool, limitPtr *int, watchPtr *bool) {
	lsCmd.Flags().StringVar(authorPtr, "author", "", "Only batches by this author address")
	lsCmd.Flags().StringVar(typePtr, "type", "", "Only batches of this record type")
	lsCmd.Flags().BoolVar(pendingPtr, "pending", false, "Only batches not yet completed")
	lsCmd.Flags().IntVar(limitPtr, "limit", 100, "Maximum number of batches (1-1000)")
	lsCmd.Flags().BoolVarP(watchPtr, "watch", "w", false,
		"Watch for changes and continuously update the display")
}
