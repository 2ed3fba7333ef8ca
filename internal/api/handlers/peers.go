package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/concave-dev/trail/internal/gossip"
)

// PeerSource provides the gossip peer table. It is nil when gossip is
// disabled.
type PeerSource interface {
	Peers() []*gossip.Peer
	Peer(idOrName string) (*gossip.Peer, bool)
}

// HandlePeers lists the peers known through gossip.
func HandlePeers(peers PeerSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		if peers == nil {
			respondList(c, []*gossip.Peer{})
			return
		}
		respondList(c, peers.Peers())
	}
}

// HandlePeerByID returns one peer by node ID or name.
func HandlePeerByID(peers PeerSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if peers != nil {
			if p, ok := peers.Peer(id); ok {
				respondData(c, http.StatusOK, p)
				return
			}
		}
		respondError(c, http.StatusNotFound, "Not found", "peer "+id+" is not known")
	}
}
