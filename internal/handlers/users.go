package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kartikbazzad/bunbase/tracker/internal/middleware"
	"github.com/kartikbazzad/bunbase/tracker/internal/users"
)

// UserHandler serves the caller's own profile and settings
type UserHandler struct {
	users *users.Service
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(userService *users.Service) *UserHandler {
	return &UserHandler{users: userService}
}

// Me returns the authenticated user
func (h *UserHandler) Me(c *gin.Context) {
	identity, ok := middleware.RequireAuth(c)
	if !ok {
		return
	}
	user, err := h.users.Get(c.Request.Context(), identity.ID)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// UpdateMe changes email and/or username
func (h *UserHandler) UpdateMe(c *gin.Context) {
	identity, ok := middleware.RequireAuth(c)
	if !ok {
		return
	}
	var req users.ProfileUpdate
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.users.UpdateProfile(c.Request.Context(), identity.ID, req)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// Settings returns the caller's settings
func (h *UserHandler) Settings(c *gin.Context) {
	identity, ok := middleware.RequireAuth(c)
	if !ok {
		return
	}
	settings, err := h.users.Settings(c.Request.Context(), identity.ID)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

// UpdateSettings applies a partial settings change
func (h *UserHandler) UpdateSettings(c *gin.Context) {
	identity, ok := middleware.RequireAuth(c)
	if !ok {
		return
	}
	var req users.SettingsUpdate
	if !bindJSON(c, &req) {
		return
	}
	settings, err := h.users.UpdateSettings(c.Request.Context(), identity.ID, req)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}
