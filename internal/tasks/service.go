// Package tasks implements task CRUD within a project. Label changes are
// propagated to the project label set in the same transaction.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kartikbazzad/bunbase/tracker/internal/idgen"
	"github.com/kartikbazzad/bunbase/tracker/internal/labels"
	"github.com/kartikbazzad/bunbase/tracker/internal/models"
	"github.com/kartikbazzad/bunbase/tracker/internal/store"
	apperrors "github.com/kartikbazzad/bunbase/tracker/pkg/errors"
	"github.com/kartikbazzad/bunbase/tracker/pkg/logger"
)

const (
	MaxTitleLength       = 255
	MaxDescriptionLength = 500
)

// Input is the client-supplied part of a task. Empty status and priority
// fall back to todo and medium.
type Input struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Status      string   `json:"status"`
	Priority    string   `json:"priority"`
	Labels      []string `json:"labels"`
}

// Service handles task business logic.
type Service struct {
	store  store.Store
	labels *labels.Synchronizer
	ids    *idgen.Generator
	now    func() time.Time
	logger *slog.Logger
}

// NewService creates a task Service.
func NewService(st store.Store, sync *labels.Synchronizer, ids *idgen.Generator, log *slog.Logger) *Service {
	if ids == nil {
		ids = idgen.New()
	}
	if log == nil {
		log = logger.Get()
	}
	return &Service{store: st, labels: sync, ids: ids, now: time.Now, logger: log}
}

// validate turns in into a task skeleton. ID, ProjectID and timestamps are
// left to the caller.
func validate(in Input) (*models.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperrors.BadRequest("title is required")
	}
	if len(title) > MaxTitleLength {
		return nil, apperrors.BadRequest("title is too long")
	}
	description := strings.TrimSpace(in.Description)
	if len([]rune(description)) > MaxDescriptionLength {
		return nil, apperrors.BadRequest(fmt.Sprintf("description must be at most %d characters", MaxDescriptionLength))
	}
	status, err := models.ParseStatus(in.Status)
	if err != nil {
		return nil, apperrors.BadRequest(err.Error())
	}
	priority, err := models.ParsePriority(in.Priority)
	if err != nil {
		return nil, apperrors.BadRequest(err.Error())
	}
	set, err := labels.Normalize(in.Labels)
	if err != nil {
		return nil, err
	}
	return &models.Task{
		Title:       title,
		Description: description,
		Status:      status,
		Priority:    priority,
		Labels:      set,
	}, nil
}

func (s *Service) newTask(projectID string, in Input, now time.Time) (*models.Task, error) {
	task, err := validate(in)
	if err != nil {
		return nil, err
	}
	id, err := s.ids.NewID()
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	task.ID = id
	task.ProjectID = projectID
	task.CreatedAt = now
	task.UpdatedAt = now
	return task, nil
}

// Create adds one task to the project.
func (s *Service) Create(ctx context.Context, projectID string, in Input) (*models.Task, error) {
	created, err := s.BatchCreate(ctx, projectID, []Input{in})
	if err != nil {
		return nil, err
	}
	return created[0], nil
}

// BatchCreate adds all tasks or none.
func (s *Service) BatchCreate(ctx context.Context, projectID string, inputs []Input) ([]*models.Task, error) {
	if len(inputs) == 0 {
		return nil, apperrors.BadRequest("at least one task is required")
	}
	now := s.now().UTC()
	tasks := make([]*models.Task, 0, len(inputs))
	for i, in := range inputs {
		task, err := s.newTask(projectID, in, now)
		if err != nil {
			if appErr, ok := apperrors.As(err); ok && len(inputs) > 1 {
				return nil, appErr.WithDetails(map[string]string{"index": fmt.Sprint(i)})
			}
			return nil, err
		}
		tasks = append(tasks, task)
	}

	err := s.store.InTx(ctx, func(q store.Queries) error {
		if err := lockProject(ctx, q, projectID); err != nil {
			return err
		}
		for _, task := range tasks {
			if err := q.CreateTask(ctx, task); err != nil {
				return err
			}
			if _, err := s.labels.OnTaskLabelsChanged(ctx, q, projectID, task.Labels); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("tasks created", "project_id", projectID, "count", len(tasks))
	return tasks, nil
}

// Get returns a task of the project.
func (s *Service) Get(ctx context.Context, projectID, taskID string) (*models.Task, error) {
	task, err := s.store.GetTask(ctx, projectID, taskID)
	if err != nil {
		return nil, taskErr(err)
	}
	return task, nil
}

// List returns all tasks of the project in creation order.
func (s *Service) List(ctx context.Context, projectID string) ([]*models.Task, error) {
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, projectErr(err)
	}
	return s.store.ListTasks(ctx, projectID)
}

// Update replaces every client-editable field of a task, labels included.
func (s *Service) Update(ctx context.Context, projectID, taskID string, in Input) (*models.Task, error) {
	next, err := validate(in)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, projectID, taskID, func(task *models.Task) ([]string, error) {
		task.Title = next.Title
		task.Description = next.Description
		task.Status = next.Status
		task.Priority = next.Priority
		task.Labels = next.Labels
		return next.Labels, nil
	})
}

// UpdateStatus sets the status of a task.
func (s *Service) UpdateStatus(ctx context.Context, projectID, taskID, value string) (*models.Task, error) {
	if strings.TrimSpace(value) == "" {
		return nil, apperrors.BadRequest("status is required")
	}
	status, err := models.ParseStatus(value)
	if err != nil {
		return nil, apperrors.BadRequest(err.Error())
	}
	return s.mutate(ctx, projectID, taskID, func(task *models.Task) ([]string, error) {
		task.Status = status
		return nil, nil
	})
}

// UpdatePriority sets the priority of a task.
func (s *Service) UpdatePriority(ctx context.Context, projectID, taskID, value string) (*models.Task, error) {
	if strings.TrimSpace(value) == "" {
		return nil, apperrors.BadRequest("priority is required")
	}
	priority, err := models.ParsePriority(value)
	if err != nil {
		return nil, apperrors.BadRequest(err.Error())
	}
	return s.mutate(ctx, projectID, taskID, func(task *models.Task) ([]string, error) {
		task.Priority = priority
		return nil, nil
	})
}

// AddLabel attaches label to a task and to the project set.
func (s *Service) AddLabel(ctx context.Context, projectID, taskID, label string) (*models.Task, error) {
	label, err := labels.Clean(label)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, projectID, taskID, func(task *models.Task) ([]string, error) {
		set, err := labels.Normalize(append(task.Labels, label))
		if err != nil {
			return nil, err
		}
		task.Labels = set
		return []string{label}, nil
	})
}

// RemoveLabel detaches label from a task. The project set is unchanged.
func (s *Service) RemoveLabel(ctx context.Context, projectID, taskID, label string) (*models.Task, error) {
	label, err := labels.Clean(label)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, projectID, taskID, func(task *models.Task) ([]string, error) {
		kept := task.Labels[:0:0]
		for _, l := range task.Labels {
			if l != label {
				kept = append(kept, l)
			}
		}
		task.Labels = kept
		return nil, nil
	})
}

// mutate loads a task under the project lock, applies change and saves it.
// change returns the labels to merge into the project set.
func (s *Service) mutate(ctx context.Context, projectID, taskID string, change func(*models.Task) ([]string, error)) (*models.Task, error) {
	var result *models.Task
	err := s.store.InTx(ctx, func(q store.Queries) error {
		if err := lockProject(ctx, q, projectID); err != nil {
			return err
		}
		task, err := q.GetTask(ctx, projectID, taskID)
		if err != nil {
			return taskErr(err)
		}
		added, err := change(task)
		if err != nil {
			return err
		}
		task.UpdatedAt = s.now().UTC()
		if err := q.UpdateTask(ctx, task); err != nil {
			return taskErr(err)
		}
		if _, err := s.labels.OnTaskLabelsChanged(ctx, q, projectID, added); err != nil {
			return err
		}
		result = task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes one task.
func (s *Service) Delete(ctx context.Context, projectID, taskID string) error {
	err := s.store.InTx(ctx, func(q store.Queries) error {
		if err := lockProject(ctx, q, projectID); err != nil {
			return err
		}
		return taskErr(q.DeleteTask(ctx, projectID, taskID))
	})
	if err != nil {
		return err
	}
	s.logger.Info("task deleted", "project_id", projectID, "task_id", taskID)
	return nil
}

// BatchDelete removes the listed tasks and returns how many existed. Ids of
// tasks in other projects are rejected before anything is deleted; unknown
// ids are ignored.
func (s *Service) BatchDelete(ctx context.Context, projectID string, taskIDs []string) (int, error) {
	deleted := 0
	err := s.store.InTx(ctx, func(q store.Queries) error {
		deleted = 0
		if err := lockProject(ctx, q, projectID); err != nil {
			return err
		}
		owners, err := q.TaskProjects(ctx, taskIDs)
		if err != nil {
			return err
		}
		for _, id := range taskIDs {
			if owner, ok := owners[id]; ok && owner != projectID {
				return apperrors.BadRequest("task does not belong to the specified project").
					WithDetails(map[string]string{"task_id": id})
			}
		}
		seen := make(map[string]struct{}, len(taskIDs))
		for _, id := range taskIDs {
			if _, ok := owners[id]; !ok {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			if err := q.DeleteTask(ctx, projectID, id); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("tasks deleted", "project_id", projectID, "requested", len(taskIDs), "deleted", deleted)
	return deleted, nil
}

func lockProject(ctx context.Context, q store.Queries, projectID string) error {
	return projectErr(q.LockProject(ctx, projectID))
}

func projectErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperrors.NotFound("project not found")
	}
	return err
}

func taskErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperrors.NotFound("task not found")
	}
	return err
}
