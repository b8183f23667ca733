package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kartikbazzad/bunbase/tracker/internal/metrics"
	"github.com/kartikbazzad/bunbase/tracker/internal/middleware"
	"github.com/kartikbazzad/bunbase/tracker/internal/tasks"
)

// TaskParam is the route parameter holding the task id.
const TaskParam = "taskId"

// TaskHandler handles task endpoints
type TaskHandler struct {
	tasks *tasks.Service
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(taskService *tasks.Service) *TaskHandler {
	return &TaskHandler{tasks: taskService}
}

// BatchCreateTasksRequest wraps several new tasks
type BatchCreateTasksRequest struct {
	Tasks []tasks.Input `json:"tasks" binding:"required"`
}

// BatchDeleteTasksRequest lists the tasks to remove
type BatchDeleteTasksRequest struct {
	TaskIDs []string `json:"task_ids" binding:"required"`
}

// StatusRequest carries a new status
type StatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// PriorityRequest carries a new priority
type PriorityRequest struct {
	Priority string `json:"priority" binding:"required"`
}

func ids(c *gin.Context) (projectID, taskID string) {
	return c.Param(middleware.ProjectParam), c.Param(TaskParam)
}

// ListTasks lists the project's tasks
func (h *TaskHandler) ListTasks(c *gin.Context) {
	list, err := h.tasks.List(c.Request.Context(), c.Param(middleware.ProjectParam))
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": list})
}

// CreateTask adds a task
func (h *TaskHandler) CreateTask(c *gin.Context) {
	var req tasks.Input
	if !bindJSON(c, &req) {
		return
	}
	task, err := h.tasks.Create(c.Request.Context(), c.Param(middleware.ProjectParam), req)
	metrics.ObserveOperation("task.create", err)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

// BatchCreateTasks adds all given tasks or none
func (h *TaskHandler) BatchCreateTasks(c *gin.Context) {
	var req BatchCreateTasksRequest
	if !bindJSON(c, &req) {
		return
	}
	created, err := h.tasks.BatchCreate(c.Request.Context(), c.Param(middleware.ProjectParam), req.Tasks)
	metrics.ObserveOperation("task.batch_create", err)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"tasks": created})
}

// GetTask returns one task
func (h *TaskHandler) GetTask(c *gin.Context) {
	projectID, taskID := ids(c)
	task, err := h.tasks.Get(c.Request.Context(), projectID, taskID)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// UpdateTask replaces a task's editable fields
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	var req tasks.Input
	if !bindJSON(c, &req) {
		return
	}
	projectID, taskID := ids(c)
	task, err := h.tasks.Update(c.Request.Context(), projectID, taskID, req)
	metrics.ObserveOperation("task.update", err)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// UpdateStatus moves a task through the workflow
func (h *TaskHandler) UpdateStatus(c *gin.Context) {
	var req StatusRequest
	if !bindJSON(c, &req) {
		return
	}
	projectID, taskID := ids(c)
	task, err := h.tasks.UpdateStatus(c.Request.Context(), projectID, taskID, req.Status)
	metrics.ObserveOperation("task.update_status", err)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// UpdatePriority changes a task's priority
func (h *TaskHandler) UpdatePriority(c *gin.Context) {
	var req PriorityRequest
	if !bindJSON(c, &req) {
		return
	}
	projectID, taskID := ids(c)
	task, err := h.tasks.UpdatePriority(c.Request.Context(), projectID, taskID, req.Priority)
	metrics.ObserveOperation("task.update_priority", err)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// AddLabel tags a task, adding the label to the project set if new
func (h *TaskHandler) AddLabel(c *gin.Context) {
	var req LabelRequest
	if !bindJSON(c, &req) {
		return
	}
	projectID, taskID := ids(c)
	task, err := h.tasks.AddLabel(c.Request.Context(), projectID, taskID, req.Label)
	metrics.ObserveOperation("task.add_label", err)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// RemoveLabel untags a task. The project set is unchanged.
func (h *TaskHandler) RemoveLabel(c *gin.Context) {
	projectID, taskID := ids(c)
	task, err := h.tasks.RemoveLabel(c.Request.Context(), projectID, taskID, c.Param(LabelParam))
	metrics.ObserveOperation("task.remove_label", err)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// DeleteTask removes a task
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	projectID, taskID := ids(c)
	err := h.tasks.Delete(c.Request.Context(), projectID, taskID)
	metrics.ObserveOperation("task.delete", err)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// BatchDeleteTasks removes several tasks of one project
func (h *TaskHandler) BatchDeleteTasks(c *gin.Context) {
	var req BatchDeleteTasksRequest
	if !bindJSON(c, &req) {
		return
	}
	deleted, err := h.tasks.BatchDelete(c.Request.Context(), c.Param(middleware.ProjectParam), req.TaskIDs)
	metrics.ObserveOperation("task.batch_delete", err)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, BatchDeleteResponse{DeletedCount: deleted})
}
