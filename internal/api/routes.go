package api

import (
	"github.com/gin-gonic/gin"

	"github.com/concave-dev/trail/internal/api/handlers"
	"github.com/concave-dev/trail/internal/metrics"
)

// Configures all API routes
func (s *Server) setupRoutes(router *gin.Engine) {
	svc := s.config.Registry

	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := router.Group("/api/v1")

	v1.GET("/health", handlers.HandleHealth(s.version(), s.startTime, s.config.Batches))

	members := v1.Group("/members")
	{
		members.GET("", handlers.HandleListMembers(svc))
		members.PUT("", handlers.HandleRegisterMember(svc))
		members.GET("/:address", handlers.HandleGetMember(svc))
	}

	// Static definition routes take precedence over the definition ID param
	assets := v1.Group("/assets")
	{
		assets.GET("/definitions", handlers.HandleListAssetDefinitions(svc))
		assets.POST("/definitions", handlers.HandleCreateAssetDefinition(svc))
		assets.GET("/definitions/:id", handlers.HandleGetAssetDefinition(svc))

		assets.GET("/:definitionID", handlers.HandleListAssetInstances(svc))
		assets.POST("/:definitionID", handlers.HandleCreateAssetInstance(svc))
		assets.GET("/:definitionID/:instanceID", handlers.HandleGetAssetInstance(svc))
		assets.PUT("/:definitionID/:instanceID/properties", handlers.HandleSetAssetInstanceProperty(svc))
	}

	payments := v1.Group("/payments")
	{
		payments.GET("/definitions", handlers.HandleListPaymentDefinitions(svc))
		payments.POST("/definitions", handlers.HandleCreatePaymentDefinition(svc))
		payments.GET("/definitions/:id", handlers.HandleGetPaymentDefinition(svc))

		payments.GET("/instances", handlers.HandleListPaymentInstances(svc))
		payments.POST("/instances", handlers.HandleCreatePaymentInstance(svc))
		payments.GET("/instances/:id", handlers.HandleGetPaymentInstance(svc))
	}

	batches := v1.Group("/batches")
	{
		batches.GET("", handlers.HandleListBatches(svc))
		batches.GET("/hash/:hash", handlers.HandleGetBatchByHash(svc))
		batches.GET("/:id", handlers.HandleGetBatch(svc))
	}

	v1.GET("/peers", handlers.HandlePeers(s.config.Peers))
	v1.GET("/peers/:id", handlers.HandlePeerByID(s.config.Peers))
}
