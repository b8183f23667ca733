package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kartikbazzad/bunbase/tracker/internal/authz"
	"github.com/kartikbazzad/bunbase/tracker/internal/membership"
	"github.com/kartikbazzad/bunbase/tracker/internal/metrics"
	"github.com/kartikbazzad/bunbase/tracker/internal/middleware"
	apperrors "github.com/kartikbazzad/bunbase/tracker/pkg/errors"
)

// ProjectHandler handles project endpoints
type ProjectHandler struct {
	projects *membership.Authority
	enforcer *authz.Enforcer
}

// NewProjectHandler creates a new ProjectHandler
func NewProjectHandler(projects *membership.Authority, enforcer *authz.Enforcer) *ProjectHandler {
	return &ProjectHandler{projects: projects, enforcer: enforcer}
}

// UpdateProjectRequest represents a project update request
type UpdateProjectRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// BatchDeleteProjectsRequest lists the projects to remove
type BatchDeleteProjectsRequest struct {
	ProjectIDs []string `json:"project_ids" binding:"required"`
}

// BatchDeleteResponse reports how many rows a batch delete removed
type BatchDeleteResponse struct {
	DeletedCount int `json:"deleted_count"`
}

// ListProjects lists all projects for the authenticated user
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	user, ok := middleware.RequireAuth(c)
	if !ok {
		return
	}
	projects, err := h.projects.ListProjects(c.Request.Context(), user.ID)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

// CreateProject creates a project owned by the caller
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	user, ok := middleware.RequireAuth(c)
	if !ok {
		return
	}
	var req membership.CreateProjectInput
	if !bindJSON(c, &req) {
		return
	}
	project, err := h.projects.CreateProject(c.Request.Context(), req, user.ID)
	metrics.ObserveOperation("project.create", err)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, project)
}

// GetProject retrieves a project by ID
func (h *ProjectHandler) GetProject(c *gin.Context) {
	project, err := h.projects.GetProject(c.Request.Context(), c.Param(middleware.ProjectParam))
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

// UpdateProject changes name and description
func (h *ProjectHandler) UpdateProject(c *gin.Context) {
	var req UpdateProjectRequest
	if !bindJSON(c, &req) {
		return
	}
	project, err := h.projects.UpdateProject(c.Request.Context(), c.Param(middleware.ProjectParam), req.Name, req.Description)
	metrics.ObserveOperation("project.update", err)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

// DeleteProject removes a project and everything in it
func (h *ProjectHandler) DeleteProject(c *gin.Context) {
	err := h.projects.DeleteProject(c.Request.Context(), c.Param(middleware.ProjectParam))
	metrics.ObserveOperation("project.delete", err)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// BatchDeleteProjects removes several projects. The caller must own every
// listed project that exists; unknown ids are skipped.
func (h *ProjectHandler) BatchDeleteProjects(c *gin.Context) {
	user, ok := middleware.RequireAuth(c)
	if !ok {
		return
	}
	var req BatchDeleteProjectsRequest
	if !bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	existing := make([]string, 0, len(req.ProjectIDs))
	for _, id := range req.ProjectIDs {
		err := h.enforcer.Enforce(ctx, user.ID, id, authz.ResourceProject, authz.ActionDelete)
		switch {
		case err == nil:
			existing = append(existing, id)
		case apperrors.KindOf(err) == apperrors.KindNotFound:
		default:
			if appErr, ok := apperrors.As(err); ok && appErr.Kind == apperrors.KindForbidden {
				err = apperrors.Forbidden("insufficient project role").WithDetails(map[string]string{"project_id": id})
			}
			middleware.AbortWithError(c, err)
			return
		}
	}

	deleted, err := h.projects.DeleteProjects(ctx, existing)
	metrics.ObserveOperation("project.batch_delete", err)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, BatchDeleteResponse{DeletedCount: deleted})
}
