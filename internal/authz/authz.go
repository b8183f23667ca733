// Package authz decides which project roles may act on which resources.
package authz

import (
	"context"
	"embed"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/casbin/casbin/v3"
	"github.com/kartikbazzad/bunbase/tracker/internal/models"
	apperrors "github.com/kartikbazzad/bunbase/tracker/pkg/errors"
	"github.com/kartikbazzad/bunbase/tracker/pkg/logger"
)

//go:embed model_project.conf policy_project.csv
var embedFS embed.FS

// Resources and actions named in the project policy.
const (
	ResourceProject = "project"
	ResourceMember  = "member"
	ResourceLabel   = "label"
	ResourceTask    = "task"

	ActionRead   = "read"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Memberships is the part of the membership authority the enforcer needs.
type Memberships interface {
	RequireRole(ctx context.Context, projectID, userID string, allowed ...models.Role) (models.Role, error)
}

// Enforcer checks project permissions against the embedded policy.
type Enforcer struct {
	project     *casbin.Enforcer
	memberships Memberships
	logger      *slog.Logger
}

// NewEnforcer loads the embedded model and policy. Roles are resolved through
// memberships on every check.
func NewEnforcer(memberships Memberships, log *slog.Logger) (*Enforcer, error) {
	if log == nil {
		log = logger.Get()
	}
	dir, err := os.MkdirTemp("", "tracker-casbin-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	if err := writeEmbedToDir(dir, "model_project.conf", "policy_project.csv"); err != nil {
		return nil, err
	}

	projectEnforcer, err := casbin.NewEnforcer(
		filepath.Join(dir, "model_project.conf"),
		filepath.Join(dir, "policy_project.csv"),
	)
	if err != nil {
		return nil, err
	}
	return &Enforcer{project: projectEnforcer, memberships: memberships, logger: log}, nil
}

func writeEmbedToDir(dir string, names ...string) error {
	for _, name := range names {
		data, err := embedFS.ReadFile(name)
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0600); err != nil {
			return err
		}
	}
	return nil
}

// Enforce returns nil if userID may perform action on resource inside
// projectID. A missing project is NOT_FOUND. A non-member or an insufficient
// role is FORBIDDEN.
func (e *Enforcer) Enforce(ctx context.Context, userID, projectID, resource, action string) error {
	role, err := e.memberships.RequireRole(ctx, projectID, userID)
	if err != nil {
		return err
	}

	// The policy is keyed by role; the project only travels as the request domain.
	allowed, err := e.project.Enforce(string(role), projectID, resource, action)
	if err != nil {
		return apperrors.Internal(err)
	}
	log := logger.FromContext(ctx, e.logger)
	if !allowed {
		log.Debug("permission denied", "user_id", userID, "project_id", projectID, "role", role, "resource", resource, "action", action)
		return apperrors.Forbidden("insufficient project role").WithDetails(map[string]string{
			"resource": resource,
			"action":   action,
		})
	}
	log.Debug("permission granted", "user_id", userID, "project_id", projectID, "role", role, "resource", resource, "action", action)
	return nil
}
