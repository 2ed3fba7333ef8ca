package handlers

import (
	"fmt"

	"github.com/concave-dev/trail/cmd/trailctl/client"
	"github.com/concave-dev/trail/cmd/trailctl/config"
	"github.com/concave-dev/trail/cmd/trailctl/display"
	"github.com/concave-dev/trail/cmd/trailctl/utils"
	"github.com/concave-dev/trail/internal/logging"
	"github.com/concave-dev/trail/internal/validate"
	"github.com/spf13/cobra"
)

const maxBatchLimit = 1000

// HandleBatchList handles batch ls, refreshing with --watch.
func HandleBatchList(cmd *cobra.Command, args []string) error {
	utils.SetupLogging()

	if config.Batch.Limit < 1 || config.Batch.Limit > maxBatchLimit {
		return fmt.Errorf("--limit must be between 1 and %d, got %d", maxBatchLimit, config.Batch.Limit)
	}
	if config.Batch.Author != "" {
		if err := validate.MemberAddress(config.Batch.Author); err != nil {
			return fmt.Errorf("--author: %w", err)
		}
	}

	filter := client.BatchFilter{
		Author:  config.Batch.Author,
		Type:    config.Batch.Type,
		Pending: config.Batch.Pending,
		Limit:   config.Batch.Limit,
	}

	fetchAndDisplayBatches := func() error {
		logging.Info("Fetching batches from API server: %s", config.Global.APIAddr)

		batches, err := client.CreateAPIClient().GetBatches(filter)
		if err != nil {
			return err
		}

		display.DisplayBatches(batches)
		if !config.Batch.Watch {
			logging.Success("Successfully retrieved %d batches", len(batches))
		}
		return nil
	}

	return utils.RunWithWatch(fetchAndDisplayBatches, config.Batch.Watch)
}

// HandleBatchInfo handles batch info. An argument that looks like a hash
// is looked up by hash, anything else by batch ID.
func HandleBatchInfo(cmd *cobra.Command, args []string) error {
	utils.SetupLogging()

	// args[0] is safe - argument validation handled by Cobra command definition
	identifier := args[0]
	apiClient := client.CreateAPIClient()

	var (
		b   *client.Batch
		err error
	)
	if validate.ContentHash(identifier) == nil {
		logging.Info("Fetching batch with hash %s from API server: %s", identifier, config.Global.APIAddr)
		b, err = apiClient.GetBatchByHash(identifier)
	} else {
		logging.Info("Fetching batch %s from API server: %s", identifier, config.Global.APIAddr)
		b, err = apiClient.GetBatch(identifier)
	}
	if err != nil {
		if client.IsNotFound(err) {
			return fmt.Errorf("batch '%s' not found", identifier)
		}
		return err
	}

	display.DisplayBatchInfo(b)
	return nil
}
