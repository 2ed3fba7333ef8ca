package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/concave-dev/trail/internal/registry"
)

// HandleListPaymentDefinitions lists payment definitions.
func HandleListPaymentDefinitions(svc *registry.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		skip, limit, ok := paging(c)
		if !ok {
			return
		}
		defs, err := svc.ListPaymentDefinitions(c.Request.Context(), skip, limit)
		if err != nil {
			writeError(c, err)
			return
		}
		respondList(c, defs)
	}
}

// HandleGetPaymentDefinition returns one payment definition.
func HandleGetPaymentDefinition(svc *registry.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		def, err := svc.GetPaymentDefinition(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		respondData(c, http.StatusOK, def)
	}
}

// HandleCreatePaymentDefinition submits a new payment definition.
func HandleCreatePaymentDefinition(svc *registry.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registry.CreatePaymentDefinitionRequest
		if !bindJSON(c, &req) {
			return
		}
		result, err := svc.CreatePaymentDefinition(c.Request.Context(), &req)
		if err != nil {
			writeError(c, err)
			return
		}
		respondData(c, http.StatusAccepted, result)
	}
}

// HandleListPaymentInstances lists payments.
func HandleListPaymentInstances(svc *registry.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		skip, limit, ok := paging(c)
		if !ok {
			return
		}
		payments, err := svc.ListPaymentInstances(c.Request.Context(), skip, limit)
		if err != nil {
			writeError(c, err)
			return
		}
		respondList(c, payments)
	}
}

// HandleGetPaymentInstance returns one payment.
func HandleGetPaymentInstance(svc *registry.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		payment, err := svc.GetPaymentInstance(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		respondData(c, http.StatusOK, payment)
	}
}

// HandleCreatePaymentInstance submits a payment to another member.
func HandleCreatePaymentInstance(svc *registry.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registry.CreatePaymentInstanceRequest
		if !bindJSON(c, &req) {
			return
		}
		result, err := svc.CreatePaymentInstance(c.Request.Context(), &req)
		if err != nil {
			writeError(c, err)
			return
		}
		respondData(c, http.StatusAccepted, result)
	}
}
