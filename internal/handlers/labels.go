package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kartikbazzad/bunbase/tracker/internal/labels"
	"github.com/kartikbazzad/bunbase/tracker/internal/metrics"
	"github.com/kartikbazzad/bunbase/tracker/internal/middleware"
)

// LabelParam is the route parameter holding a label.
const LabelParam = "label"

// LabelHandler handles project label endpoints
type LabelHandler struct {
	labels *labels.Synchronizer
}

// NewLabelHandler creates a new LabelHandler
func NewLabelHandler(sync *labels.Synchronizer) *LabelHandler {
	return &LabelHandler{labels: sync}
}

// LabelRequest carries one label
type LabelRequest struct {
	Label string `json:"label" binding:"required"`
}

// ListLabels returns the project's label set
func (h *LabelHandler) ListLabels(c *gin.Context) {
	set, err := h.labels.ProjectLabels(c.Request.Context(), c.Param(middleware.ProjectParam))
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"labels": set})
}

// AddLabel adds a label to the project set
func (h *LabelHandler) AddLabel(c *gin.Context) {
	var req LabelRequest
	if !bindJSON(c, &req) {
		return
	}
	set, err := h.labels.AddProjectLabel(c.Request.Context(), c.Param(middleware.ProjectParam), req.Label)
	metrics.ObserveOperation("label.add", err)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	label, _ := labels.Clean(req.Label)
	c.JSON(http.StatusCreated, gin.H{"label": label, "labels": set})
}

// RemoveLabel drops a label from the project and from every task carrying it
func (h *LabelHandler) RemoveLabel(c *gin.Context) {
	_, err := h.labels.RemoveProjectLabel(c.Request.Context(), c.Param(middleware.ProjectParam), c.Param(LabelParam))
	metrics.ObserveOperation("label.remove", err)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
