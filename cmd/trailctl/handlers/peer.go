package handlers

import (
	"fmt"
	"sort"
	"strings"

	"github.com/concave-dev/trail/cmd/trailctl/client"
	"github.com/concave-dev/trail/cmd/trailctl/config"
	"github.com/concave-dev/trail/cmd/trailctl/display"
	"github.com/concave-dev/trail/cmd/trailctl/utils"
	"github.com/concave-dev/trail/internal/logging"
	"github.com/spf13/cobra"
)

// HandlePeerList handles peer ls, refreshing with --watch.
func HandlePeerList(cmd *cobra.Command, args []string) error {
	utils.SetupLogging()

	fetchAndDisplayPeers := func() error {
		logging.Info("Fetching peers from API server: %s", config.Global.APIAddr)

		peers, err := client.CreateAPIClient().GetPeers()
		if err != nil {
			return err
		}

		filtered := sortPeers(filterPeers(peers, config.Peer.StatusFilter))

		display.DisplayPeers(filtered)
		if !config.Peer.Watch {
			logging.Success("Successfully retrieved %d peers (%d after filtering)", len(peers), len(filtered))
		}
		return nil
	}

	return utils.RunWithWatch(fetchAndDisplayPeers, config.Peer.Watch)
}

// HandlePeerInfo handles peer info. The API resolves IDs and names.
func HandlePeerInfo(cmd *cobra.Command, args []string) error {
	utils.SetupLogging()

	identifier := args[0]
	logging.Info("Fetching information for peer '%s' from API server: %s", identifier, config.Global.APIAddr)

	peer, err := client.CreateAPIClient().GetPeer(identifier)
	if err != nil {
		if client.IsNotFound(err) {
			return fmt.Errorf("peer '%s' not found", identifier)
		}
		return err
	}

	display.DisplayPeerInfo(peer)
	return nil
}

// filterPeers keeps peers whose status matches, case-insensitively. An
// empty status keeps all.
func filterPeers(peers []client.Peer, status string) []client.Peer {
	if status == "" {
		return peers
	}
	var filtered []client.Peer
	for _, p := range peers {
		if strings.EqualFold(p.Status, status) {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

// sortPeers orders peers by name.
func sortPeers(peers []client.Peer) []client.Peer {
	sort.Slice(peers, func(i, j int) bool {
		return peers[i].Name < peers[j].Name
	})
	return peers
}
