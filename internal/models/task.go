package models

import (
	"fmt"
	"time"
)

// TaskStatus is the workflow state of a task
type TaskStatus string

const (
	StatusBacklog    TaskStatus = "backlog"
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in progress"
	StatusDone       TaskStatus = "done"
	StatusCanceled   TaskStatus = "canceled"
)

// TaskPriority orders tasks within a project
type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

// ParseStatus returns the default status (todo) for "".
func ParseStatus(value string) (TaskStatus, error) {
	switch s := TaskStatus(value); s {
	case "":
		return StatusTodo, nil
	case StatusBacklog, StatusTodo, StatusInProgress, StatusDone, StatusCanceled:
		return s, nil
	default:
		return "", fmt.Errorf("unknown status value: %s", value)
	}
}

// ParsePriority returns the default priority (medium) for "".
func ParsePriority(value string) (TaskPriority, error) {
	switch p := TaskPriority(value); p {
	case "":
		return PriorityMedium, nil
	case PriorityLow, PriorityMedium, PriorityHigh:
		return p, nil
	default:
		return "", fmt.Errorf("unknown priority value: %s", value)
	}
}

// Task is a unit of work inside a project
type Task struct {
	ID          string       `json:"id"`
	ProjectID   string       `json:"project_id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Status      TaskStatus   `json:"status"`
	Priority    TaskPriority `json:"priority"`
	Labels      []string     `json:"labels"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}
