// Package handlers provides HTTP request handlers for the trail API.
//
// Every handler is a factory returning a gin.HandlerFunc closed over the
// service it needs. Successful responses are {"status": "success", "data": ...}
// (lists add "count"); failures are {"error": ..., "details": ...} with the
// status chosen by writeError.
package handlers

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/concave-dev/trail/internal/batch"
	"github.com/concave-dev/trail/internal/database"
	"github.com/concave-dev/trail/internal/dispatch"
	"github.com/concave-dev/trail/internal/logging"
	"github.com/concave-dev/trail/internal/registry"
)

const (
	// DefaultPageLimit applies when a list request has no limit.
	DefaultPageLimit = 100

	// MaxPageLimit caps the limit query parameter.
	MaxPageLimit = 1000
)

func respondData(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{
		"status": "success",
		"data":   data,
	})
}

func respondList[T any](c *gin.Context, items []T) {
	if items == nil {
		items = []T{}
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   items,
		"count":  len(items),
	})
}

func respondError(c *gin.Context, status int, message, details string) {
	c.JSON(status, gin.H{
		"error":   message,
		"details": details,
	})
}

// writeError maps service errors onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	var timeout *batch.AdmissionTimeoutError
	var gatewayErr *dispatch.GatewayError

	switch {
	case registry.IsValidation(err):
		respondError(c, http.StatusBadRequest, "Invalid request", err.Error())

	case errors.Is(err, database.ErrNotFound):
		respondError(c, http.StatusNotFound, "Not found", err.Error())

	case registry.IsConflict(err), errors.Is(err, database.ErrDuplicateKey):
		respondError(c, http.StatusConflict, "Conflict", err.Error())

	case errors.As(err, &timeout):
		retryAfter := int(math.Ceil(timeout.Timeout.Seconds()))
		if retryAfter < 1 {
			retryAfter = 1
		}
		c.Header("Retry-After", strconv.Itoa(retryAfter))
		logging.Warn("API: %s %s rejected: %v", c.Request.Method, c.FullPath(), err)
		respondError(c, http.StatusServiceUnavailable, "Batch capacity exhausted, retry later", err.Error())

	case errors.As(err, &gatewayErr):
		logging.Error("API: %s %s upstream failure: %v", c.Request.Method, c.FullPath(), err)
		respondError(c, http.StatusBadGateway, "Upstream request failed", err.Error())

	default:
		logging.Error("API: %s %s failed: %v", c.Request.Method, c.FullPath(), err)
		respondError(c, http.StatusInternalServerError, "Internal error", err.Error())
	}
}

// bindJSON decodes the body into req and writes a 400 on failure.
func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body", err.Error())
		return false
	}
	return true
}

// paging reads the skip and limit query parameters.
func paging(c *gin.Context) (int, int, bool) {
	skip, err := queryInt(c, "skip", 0)
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid query parameter", err.Error())
		return 0, 0, false
	}
	limit, err := queryInt(c, "limit", DefaultPageLimit)
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid query parameter", err.Error())
		return 0, 0, false
	}
	if limit == 0 || limit > MaxPageLimit {
		respondError(c, http.StatusBadRequest, "Invalid query parameter",
			fmt.Sprintf("limit must be between 1 and %d", MaxPageLimit))
		return 0, 0, false
	}
	return skip, limit, true
}

func queryInt(c *gin.Context, name string, def int) (int, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer, got %q", name, raw)
	}
	return n, nil
}

func queryBool(c *gin.Context, name string) (bool, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean, got %q", name, raw)
	}
	return b, nil
}
