package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kartikbazzad/bunbase/tracker/internal/auth"
	"github.com/kartikbazzad/bunbase/tracker/internal/metrics"
	"github.com/kartikbazzad/bunbase/tracker/internal/middleware"
	apperrors "github.com/kartikbazzad/bunbase/tracker/pkg/errors"
)

// AuthHandler handles account and token endpoints
type AuthHandler struct {
	auth *auth.Service
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(authService *auth.Service) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// RegisterRequest represents a registration request
type RegisterRequest struct {
	Email    string `json:"email" binding:"required"`
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest is the optional body form of a refresh call
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Register creates an account
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.auth.Register(c.Request.Context(), auth.RegisterInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	metrics.ObserveAuth("register", err)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// Login exchanges credentials for a token pair
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	metrics.ObserveAuth("login", err)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Refresh exchanges a refresh token, sent as a bearer header or in the body,
// for a new pair.
func (h *AuthHandler) Refresh(c *gin.Context) {
	raw := middleware.BearerToken(c)
	if raw == "" {
		var req RefreshRequest
		if err := c.ShouldBindJSON(&req); err == nil {
			raw = req.RefreshToken
		}
	}
	if raw == "" {
		middleware.AbortWithError(c, apperrors.Unauthorized("missing refresh token"))
		return
	}
	result, err := h.auth.Refresh(c.Request.Context(), raw)
	metrics.ObserveAuth("refresh", err)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Logout validates the access token. Nothing is revoked.
func (h *AuthHandler) Logout(c *gin.Context) {
	raw := middleware.BearerToken(c)
	if raw == "" {
		middleware.AbortWithError(c, apperrors.Unauthorized("missing bearer token"))
		return
	}
	err := h.auth.Logout(c.Request.Context(), raw)
	metrics.ObserveAuth("logout", err)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
