package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/concave-dev/trail/internal/registry"
)

// ============================================================================
// ASSET DEFINITIONS
// ============================================================================

// HandleListAssetDefinitions lists asset definitions, newest first.
func HandleListAssetDefinitions(svc *registry.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		skip, limit, ok := paging(c)
		if !ok {
			return
		}
		defs, err := svc.ListAssetDefinitions(c.Request.Context(), skip, limit)
		if err != nil {
			writeError(c, err)
			return
		}
		respondList(c, defs)
	}
}

// HandleGetAssetDefinition returns one asset definition.
func HandleGetAssetDefinition(svc *registry.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		def, err := svc.GetAssetDefinition(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		respondData(c, http.StatusOK, def)
	}
}

// HandleCreateAssetDefinition pins and submits a new asset definition.
func HandleCreateAssetDefinition(svc *registry.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registry.CreateAssetDefinitionRequest
		if !bindJSON(c, &req) {
			return
		}
		result, err := svc.CreateAssetDefinition(c.Request.Context(), &req)
		if err != nil {
			writeError(c, err)
			return
		}
		respondData(c, http.StatusAccepted, result)
	}
}

// ============================================================================
// ASSET INSTANCES (batched)
// ============================================================================

// HandleListAssetInstances lists the instances of one definition.
func HandleListAssetInstances(svc *registry.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		skip, limit, ok := paging(c)
		if !ok {
			return
		}
		instances, err := svc.ListAssetInstances(c.Request.Context(), c.Param("definitionID"), skip, limit)
		if err != nil {
			writeError(c, err)
			return
		}
		respondList(c, instances)
	}
}

// HandleGetAssetInstance returns one instance.
func HandleGetAssetInstance(svc *registry.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		inst, err := svc.GetAssetInstance(c.Request.Context(), c.Param("definitionID"), c.Param("instanceID"))
		if err != nil {
			writeError(c, err)
			return
		}
		respondData(c, http.StatusOK, inst)
	}
}

// HandleCreateAssetInstance admits a new instance into the author's batch.
// The response carries the batch ID; the request returns once the batch
// holding the record has been persisted, not once it is on-chain.
func HandleCreateAssetInstance(svc *registry.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registry.CreateAssetInstanceRequest
		if !bindJSON(c, &req) {
			return
		}
		req.AssetDefinitionID = c.Param("definitionID")

		result, err := svc.CreateAssetInstance(c.Request.Context(), &req)
		if err != nil {
			writeError(c, err)
			return
		}
		respondData(c, http.StatusAccepted, result)
	}
}

// HandleSetAssetInstanceProperty admits a property update into the
// author's property batch.
func HandleSetAssetInstanceProperty(svc *registry.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registry.SetAssetInstancePropertyRequest
		if !bindJSON(c, &req) {
			return
		}
		req.AssetDefinitionID = c.Param("definitionID")
		req.AssetInstanceID = c.Param("instanceID")

		result, err := svc.SetAssetInstanceProperty(c.Request.Context(), &req)
		if err != nil {
			writeError(c, err)
			return
		}
		respondData(c, http.StatusAccepted, result)
	}
}
