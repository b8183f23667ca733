// Package membership owns projects and their member lists. Every mutation
// runs in one transaction holding the project's lock, so the owner count
// read before a removal or demotion cannot go stale before the write.
package membership

import (
	"context"
	"errors"
	"log/slog"
	"slices"
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
	MaxNameLength        = 50
	MaxDescriptionLength = 500
)

// CreateProjectInput is the client-supplied part of a new project.
type CreateProjectInput struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Labels      []string `json:"labels"`
}

// Authority handles project and membership business logic.
type Authority struct {
	store  store.Store
	ids    *idgen.Generator
	now    func() time.Time
	logger *slog.Logger
}

// New creates an Authority.
func New(st store.Store, ids *idgen.Generator, log *slog.Logger) *Authority {
	if ids == nil {
		ids = idgen.New()
	}
	if log == nil {
		log = logger.Get()
	}
	return &Authority{store: st, ids: ids, now: time.Now, logger: log}
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperrors.BadRequest("project name is required")
	}
	if len(name) > MaxNameLength {
		return "", apperrors.BadRequest("project name is too long")
	}
	return name, nil
}

func validateDescription(description string) (string, error) {
	description = strings.TrimSpace(description)
	if len([]rune(description)) > MaxDescriptionLength {
		return "", apperrors.BadRequest("project description is too long")
	}
	return description, nil
}

// CreateProject creates a project and makes creatorID its owner.
func (a *Authority) CreateProject(ctx context.Context, input CreateProjectInput, creatorID string) (*models.Project, error) {
	name, err := validateName(input.Name)
	if err != nil {
		return nil, err
	}
	description, err := validateDescription(input.Description)
	if err != nil {
		return nil, err
	}
	initial, err := labels.Normalize(input.Labels)
	if err != nil {
		return nil, err
	}
	id, err := a.ids.NewID()
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	now := a.now().UTC()
	project := &models.Project{
		ID:          id,
		Name:        name,
		Description: description,
		CreatedBy:   creatorID,
		Labels:      initial,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = a.store.InTx(ctx, func(q store.Queries) error {
		if _, err := q.GetUserByID(ctx, creatorID); err != nil {
			return notFound(err, "user not found")
		}
		if err := q.CreateProject(ctx, project); err != nil {
			return err
		}
		if err := q.InsertMember(ctx, &models.ProjectMember{
			ProjectID: id,
			UserID:    creatorID,
			Role:      models.RoleOwner,
			CreatedAt: now,
		}); err != nil {
			return err
		}
		_, err := q.AddProjectLabels(ctx, id, initial)
		return err
	})
	if err != nil {
		return nil, err
	}

	a.logger.Info("project created", "project_id", id, "owner_id", creatorID)
	return project, nil
}

// GetProject returns a project with its labels.
func (a *Authority) GetProject(ctx context.Context, projectID string) (*models.Project, error) {
	project, err := a.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, notFound(err, "project not found")
	}
	if project.Labels, err = a.store.ListProjectLabels(ctx, projectID); err != nil {
		return nil, err
	}
	return project, nil
}

// ListProjects returns the projects userID is a member of, newest first.
func (a *Authority) ListProjects(ctx context.Context, userID string) ([]*models.Project, error) {
	projects, err := a.store.ListProjectsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, p := range projects {
		if p.Labels, err = a.store.ListProjectLabels(ctx, p.ID); err != nil {
			return nil, err
		}
	}
	if projects == nil {
		projects = []*models.Project{}
	}
	return projects, nil
}

// UpdateProject changes name and description.
func (a *Authority) UpdateProject(ctx context.Context, projectID, name, description string) (*models.Project, error) {
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}
	description, err = validateDescription(description)
	if err != nil {
		return nil, err
	}
	var project *models.Project
	err = a.store.InTx(ctx, func(q store.Queries) error {
		if err := lockProject(ctx, q, projectID); err != nil {
			return err
		}
		p, err := q.GetProject(ctx, projectID)
		if err != nil {
			return notFound(err, "project not found")
		}
		p.Name = name
		p.Description = description
		p.UpdatedAt = a.now().UTC()
		if err := q.UpdateProject(ctx, p); err != nil {
			return err
		}
		if p.Labels, err = q.ListProjectLabels(ctx, projectID); err != nil {
			return err
		}
		project = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return project, nil
}

// DeleteProject removes a project with its tasks, memberships and labels as
// one unit.
func (a *Authority) DeleteProject(ctx context.Context, projectID string) error {
	err := a.store.InTx(ctx, func(q store.Queries) error {
		if err := lockProject(ctx, q, projectID); err != nil {
			return err
		}
		return deleteProjectTx(ctx, q, projectID)
	})
	if err != nil {
		return err
	}
	a.logger.Info("project deleted", "project_id", projectID)
	return nil
}

// DeleteProjects removes every listed project that exists and returns how
// many were deleted. Unknown ids are skipped.
func (a *Authority) DeleteProjects(ctx context.Context, projectIDs []string) (int, error) {
	// Locks are taken in ID order so concurrent batches cannot deadlock.
	ids := slices.Clone(projectIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	deleted := 0
	err := a.store.InTx(ctx, func(q store.Queries) error {
		deleted = 0
		for _, id := range ids {
			if err := q.LockProject(ctx, id); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					continue
				}
				return err
			}
			if err := deleteProjectTx(ctx, q, id); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	a.logger.Info("projects deleted", "requested", len(projectIDs), "deleted", deleted)
	return deleted, nil
}

func deleteProjectTx(ctx context.Context, q store.Queries, projectID string) error {
	steps := []func(context.Context, string) error{
		q.DeleteTaskLabelsByProject,
		q.DeleteTasksByProject,
		q.DeleteMembersByProject,
		q.DeleteProjectLabels,
		q.DeleteProject,
	}
	for _, step := range steps {
		if err := step(ctx, projectID); err != nil {
			return notFound(err, "project not found")
		}
	}
	return nil
}

func lockProject(ctx context.Context, q store.Queries, projectID string) error {
	return notFound(q.LockProject(ctx, projectID), "project not found")
}

// notFound translates store.ErrNotFound into a NOT_FOUND AppError.
func notFound(err error, message string) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperrors.NotFound(message)
	}
	return err
}
