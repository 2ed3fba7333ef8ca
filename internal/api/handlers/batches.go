package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/concave-dev/trail/internal/registry"
)

// HandleListBatches lists batches, newest first. Filters: ?author=, ?type=
// and ?pending=true for batches that have not completed dispatch.
func HandleListBatches(svc *registry.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		pending, err := queryBool(c, "pending")
		if err != nil {
			respondError(c, http.StatusBadRequest, "Invalid query parameter", err.Error())
			return
		}
		skip, limit, ok := paging(c)
		if !ok {
			return
		}

		filter := registry.BatchFilter{
			Author:      c.Query("author"),
			Type:        c.Query("type"),
			PendingOnly: pending,
		}
		batches, err := svc.ListBatches(c.Request.Context(), filter, skip, limit)
		if err != nil {
			writeError(c, err)
			return
		}
		respondList(c, batches)
	}
}

// HandleGetBatch returns one batch by ID.
func HandleGetBatch(svc *registry.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		b, err := svc.GetBatch(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		respondData(c, http.StatusOK, b)
	}
}

// HandleGetBatchByHash returns the batch anchored under a batch hash.
func HandleGetBatchByHash(svc *registry.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		b, err := svc.GetBatchByHash(c.Request.Context(), c.Param("hash"))
		if err != nil {
			writeError(c, err)
			return
		}
		respondData(c, http.StatusOK, b)
	}
}
