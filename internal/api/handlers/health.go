package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/concave-dev/trail/internal/batch"
)

// BatchStats reports the state of the batching engine.
type BatchStats interface {
	Stats() []batch.ProcessorStats
}

// Represents the health check response
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Uptime    string                 `json:"uptime"`
	Batches   []batch.ProcessorStats `json:"batches"`
}

// HandleHealth returns the health status of the node and the batch
// processors it is running.
func HandleHealth(version string, startTime time.Time, stats BatchStats) gin.HandlerFunc {
	return func(c *gin.Context) {
		response := HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now(),
			Version:   version,
			Uptime:    time.Since(startTime).Round(time.Second).String(),
			Batches:   []batch.ProcessorStats{},
		}
		if stats != nil {
			response.Batches = append(response.Batches, stats.Stats()...)
		}

		c.JSON(http.StatusOK, response)
	}
}
