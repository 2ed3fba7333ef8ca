package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/concave-dev/trail/internal/registry"
)

// HandleListMembers lists members. ?owned=true restricts the list to
// members registered through this node.
func HandleListMembers(svc *registry.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		owned, err := queryBool(c, "owned")
		if err != nil {
			respondError(c, http.StatusBadRequest, "Invalid query parameter", err.Error())
			return
		}
		skip, limit, ok := paging(c)
		if !ok {
			return
		}

		members, err := svc.ListMembers(c.Request.Context(), owned, skip, limit)
		if err != nil {
			writeError(c, err)
			return
		}
		respondList(c, members)
	}
}

// HandleGetMember returns one member by address.
func HandleGetMember(svc *registry.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		member, err := svc.GetMember(c.Request.Context(), c.Param("address"))
		if err != nil {
			writeError(c, err)
			return
		}
		respondData(c, http.StatusOK, member)
	}
}

// HandleRegisterMember registers or updates a member owned by this node.
//
// PUT /api/v1/members
func HandleRegisterMember(svc *registry.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registry.RegisterMemberRequest
		if !bindJSON(c, &req) {
			return
		}

		result, err := svc.RegisterMember(c.Request.Context(), &req)
		if err != nil {
			writeError(c, err)
			return
		}
		respondData(c, http.StatusOK, result)
	}
}
