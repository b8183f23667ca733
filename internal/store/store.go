// Package store defines the persistence ports shared by the Postgres and
// SQLite backends.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/kartikbazzad/bunbase/tracker/internal/models"
)

var (
	// ErrNotFound is returned when a row addressed by key does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict is returned when an insert or update hits a unique constraint.
	ErrConflict = errors.New("store: conflict")
)

// Queries is the set of statements available both outside and inside a
// transaction.
type Queries interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error

	CreateSettings(ctx context.Context, settings *models.UserSettings) error
	GetSettings(ctx context.Context, userID string) (*models.UserSettings, error)
	UpdateSettings(ctx context.Context, settings *models.UserSettings) error

	CreateProject(ctx context.Context, project *models.Project) error
	// GetProject returns the project row; Labels is left nil.
	GetProject(ctx context.Context, id string) (*models.Project, error)
	// LockProject takes the per-project write lock for the rest of the
	// transaction. It returns ErrNotFound when the project does not exist.
	LockProject(ctx context.Context, id string) error
	ListProjectsForUser(ctx context.Context, userID string) ([]*models.Project, error)
	UpdateProject(ctx context.Context, project *models.Project) error
	DeleteProject(ctx context.Context, id string) error

	InsertMember(ctx context.Context, member *models.ProjectMember) error
	GetMember(ctx context.Context, projectID, userID string) (*models.ProjectMember, error)
	ListMembers(ctx context.Context, projectID string) ([]*models.ProjectMember, error)
	CountOwners(ctx context.Context, projectID string) (int, error)
	UpdateMemberRole(ctx context.Context, projectID, userID string, role models.Role) error
	DeleteMember(ctx context.Context, projectID, userID string) error
	DeleteMembersByProject(ctx context.Context, projectID string) error

	// AddProjectLabels inserts the labels not yet in the project set and
	// reports how many were new.
	AddProjectLabels(ctx context.Context, projectID string, labels []string) (int, error)
	// RemoveProjectLabel reports whether the label was present.
	RemoveProjectLabel(ctx context.Context, projectID, label string) (bool, error)
	// ListProjectLabels returns the project's labels sorted ascending.
	ListProjectLabels(ctx context.Context, projectID string) ([]string, error)
	DeleteProjectLabels(ctx context.Context, projectID string) error

	// CreateTask inserts the task row and its labels.
	CreateTask(ctx context.Context, task *models.Task) error
	// GetTask returns ErrNotFound when the task is missing or belongs to
	// another project.
	GetTask(ctx context.Context, projectID, taskID string) (*models.Task, error)
	ListTasks(ctx context.Context, projectID string) ([]*models.Task, error)
	// UpdateTask replaces the task row and its label set.
	UpdateTask(ctx context.Context, task *models.Task) error
	DeleteTask(ctx context.Context, projectID, taskID string) error
	// TaskProjects maps each existing task id to its project id. Unknown ids
	// are absent from the result.
	TaskProjects(ctx context.Context, taskIDs []string) (map[string]string, error)
	DeleteTaskLabelsByProject(ctx context.Context, projectID string) error
	DeleteTasksByProject(ctx context.Context, projectID string) error
	// RemoveLabelFromTasks strips label from every task of the project that
	// carries it, sets their updated_at to at and returns their ids.
	RemoveLabelFromTasks(ctx context.Context, projectID, label string, at time.Time) ([]string, error)
}

// Store is a Queries bound to a connection pool.
type Store interface {
	Queries
	// InTx runs fn in a transaction. fn must only use the Queries it is
	// given. The transaction commits when fn returns nil.
	InTx(ctx context.Context, fn func(q Queries) error) error
	Close() error
}
