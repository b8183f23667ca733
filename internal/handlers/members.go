package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kartikbazzad/bunbase/tracker/internal/authz"
	"github.com/kartikbazzad/bunbase/tracker/internal/metrics"
	"github.com/kartikbazzad/bunbase/tracker/internal/middleware"
)

// MemberParam is the route parameter holding the member's user id.
const MemberParam = "userId"

// AddMemberRequest represents a membership grant
type AddMemberRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Role   string `json:"role"`
}

// UpdateMemberRequest represents a role change
type UpdateMemberRequest struct {
	Role string `json:"role" binding:"required"`
}

// ListMembers lists a project's members
func (h *ProjectHandler) ListMembers(c *gin.Context) {
	members, err := h.projects.ListMembers(c.Request.Context(), c.Param(middleware.ProjectParam))
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": members})
}

// AddMember grants a user a role in the project
func (h *ProjectHandler) AddMember(c *gin.Context) {
	var req AddMemberRequest
	if !bindJSON(c, &req) {
		return
	}
	member, err := h.projects.AddMember(c.Request.Context(), c.Param(middleware.ProjectParam), req.UserID, req.Role)
	metrics.ObserveOperation("member.add", err)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, member)
}

// UpdateMember changes a member's role
func (h *ProjectHandler) UpdateMember(c *gin.Context) {
	var req UpdateMemberRequest
	if !bindJSON(c, &req) {
		return
	}
	member, err := h.projects.UpdateMemberRole(c.Request.Context(), c.Param(middleware.ProjectParam), c.Param(MemberParam), req.Role)
	metrics.ObserveOperation("member.update_role", err)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, member)
}

// RemoveMember revokes a membership. Owners may remove anyone; any member
// may remove themself.
func (h *ProjectHandler) RemoveMember(c *gin.Context) {
	user, ok := middleware.RequireAuth(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	projectID, target := c.Param(middleware.ProjectParam), c.Param(MemberParam)

	if target == user.ID {
		if _, err := h.projects.RequireRole(ctx, projectID, user.ID); err != nil {
			middleware.AbortWithError(c, err)
			return
		}
	} else if err := h.enforcer.Enforce(ctx, user.ID, projectID, authz.ResourceMember, authz.ActionDelete); err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	err := h.projects.RemoveMember(ctx, projectID, target)
	metrics.ObserveOperation("member.remove", err)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
