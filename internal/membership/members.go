package membership

import (
	"context"
	"errors"

	"github.com/kartikbazzad/bunbase/tracker/internal/models"
	"github.com/kartikbazzad/bunbase/tracker/internal/store"
	apperrors "github.com/kartikbazzad/bunbase/tracker/pkg/errors"
)

func parseRole(value string) (models.Role, error) {
	role, err := models.ParseRole(value)
	if err != nil {
		return "", apperrors.BadRequest("role must be owner or member")
	}
	return role, nil
}

func notAMember() error {
	return apperrors.New(apperrors.KindNotAMember, "user is not a member of this project", nil)
}

func lastOwner() error {
	return apperrors.New(apperrors.KindLastOwnerViolation, "cannot remove the last owner of the project", nil)
}

// AddMember adds userID to the project with role ("owner" or "member",
// empty means member).
func (a *Authority) AddMember(ctx context.Context, projectID, userID, role string) (*models.ProjectMember, error) {
	r, err := parseRole(role)
	if err != nil {
		return nil, err
	}

	var member *models.ProjectMember
	err = a.store.InTx(ctx, func(q store.Queries) error {
		if err := lockProject(ctx, q, projectID); err != nil {
			return err
		}
		if _, err := q.GetUserByID(ctx, userID); err != nil {
			return notFound(err, "user not found")
		}
		if _, err := q.GetMember(ctx, projectID, userID); err == nil {
			return apperrors.New(apperrors.KindAlreadyMember, "user is already a member of the project", nil)
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if err := q.InsertMember(ctx, &models.ProjectMember{
			ProjectID: projectID,
			UserID:    userID,
			Role:      r,
			CreatedAt: a.now().UTC(),
		}); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return apperrors.New(apperrors.KindAlreadyMember, "user is already a member of the project", err)
			}
			return err
		}
		member, err = q.GetMember(ctx, projectID, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	a.logger.Info("member added", "project_id", projectID, "user_id", userID, "role", r)
	return member, nil
}

// RemoveMember deletes userID's membership. The last owner cannot be
// removed.
func (a *Authority) RemoveMember(ctx context.Context, projectID, userID string) error {
	err := a.store.InTx(ctx, func(q store.Queries) error {
		if err := lockProject(ctx, q, projectID); err != nil {
			return err
		}
		member, err := q.GetMember(ctx, projectID, userID)
		if errors.Is(err, store.ErrNotFound) {
			return notAMember()
		} else if err != nil {
			return err
		}
		if member.Role == models.RoleOwner {
			if err := requireAnotherOwner(ctx, q, projectID); err != nil {
				return err
			}
		}
		return q.DeleteMember(ctx, projectID, userID)
	})
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindLastOwnerViolation {
			a.logger.Warn("last owner removal refused", "project_id", projectID, "user_id", userID)
		}
		return err
	}

	a.logger.Info("member removed", "project_id", projectID, "user_id", userID)
	return nil
}

// UpdateMemberRole promotes or demotes a member. Demoting the last owner is
// refused.
func (a *Authority) UpdateMemberRole(ctx context.Context, projectID, userID, role string) (*models.ProjectMember, error) {
	r, err := parseRole(role)
	if err != nil {
		return nil, err
	}

	var member *models.ProjectMember
	err = a.store.InTx(ctx, func(q store.Queries) error {
		if err := lockProject(ctx, q, projectID); err != nil {
			return err
		}
		current, err := q.GetMember(ctx, projectID, userID)
		if errors.Is(err, store.ErrNotFound) {
			return notAMember()
		} else if err != nil {
			return err
		}
		if current.Role == r {
			member = current
			return nil
		}
		if current.Role == models.RoleOwner {
			if err := requireAnotherOwner(ctx, q, projectID); err != nil {
				return err
			}
		}
		if err := q.UpdateMemberRole(ctx, projectID, userID, r); err != nil {
			return err
		}
		current.Role = r
		member = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	a.logger.Info("member role updated", "project_id", projectID, "user_id", userID, "role", r)
	return member, nil
}

func requireAnotherOwner(ctx context.Context, q store.Queries, projectID string) error {
	owners, err := q.CountOwners(ctx, projectID)
	if err != nil {
		return err
	}
	if owners <= 1 {
		return lastOwner()
	}
	return nil
}

// ListMembers returns the members of a project in join order.
func (a *Authority) ListMembers(ctx context.Context, projectID string) ([]*models.ProjectMember, error) {
	if _, err := a.store.GetProject(ctx, projectID); err != nil {
		return nil, notFound(err, "project not found")
	}
	members, err := a.store.ListMembers(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if members == nil {
		members = []*models.ProjectMember{}
	}
	return members, nil
}

// Role reports userID's role in the project. found is false for
// non-members; a missing project is not an error here.
func (a *Authority) Role(ctx context.Context, projectID, userID string) (models.Role, bool, error) {
	member, err := a.store.GetMember(ctx, projectID, userID)
	if errors.Is(err, store.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return member.Role, true, nil
}

// RequireRole returns the caller's role if it is one of allowed (any role
// when allowed is empty). A missing project is NOT_FOUND; a non-member or a
// disallowed role is FORBIDDEN.
func (a *Authority) RequireRole(ctx context.Context, projectID, userID string, allowed ...models.Role) (models.Role, error) {
	if _, err := a.store.GetProject(ctx, projectID); err != nil {
		return "", notFound(err, "project not found")
	}
	role, found, err := a.Role(ctx, projectID, userID)
	if err != nil {
		return "", err
	}
	if !found {
		return "", apperrors.Forbidden("you are not a member of this project")
	}
	if len(allowed) == 0 {
		return role, nil
	}
	for _, r := range allowed {
		if r == role {
			return role, nil
		}
	}
	return "", apperrors.Forbidden("insufficient project role")
}
