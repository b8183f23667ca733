package membership

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/kartikbazzad/bunbase/tracker/internal/models"
	"github.com/kartikbazzad/bunbase/tracker/internal/store"
	"github.com/kartikbazzad/bunbase/tracker/internal/store/sqlite"
	apperrors "github.com/kartikbazzad/bunbase/tracker/pkg/errors"
	"github.com/kartikbazzad/bunbase/tracker/pkg/logger"
)

func setup(t *testing.T) (*Authority, *sqlite.Store) {
	t.Helper()
	st, err := sqlite.Open(filepath.Join(t.TempDir(), "tracker.db"))
	if err != nil {
		t.Fatalf("sqlite.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return New(st, nil, logger.Discard()), st
}

func addUser(t *testing.T, st store.Store, id string) {
	t.Helper()
	now := time.Now().UTC()
	if err := st.CreateUser(context.Background(), &models.User{
		ID: id, Email: id + "@example.com", Username: id, PasswordHash: "x", CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("CreateUser(%s): %v", id, err)
	}
}

func wantKind(t *testing.T, err error, kind apperrors.Kind) {
	t.Helper()
	if got := apperrors.KindOf(err); err == nil || got != kind {
		t.Fatalf("error = %v (kind %s), want %s", err, got, kind)
	}
}

func TestCreateProject_CreatorIsOwner(t *testing.T) {
	a, _ := setup(t)
	ctx := context.Background()
	addUser(t, a.store, "alice")

	p, err := a.CreateProject(ctx, CreateProjectInput{Name: "  Launch ", Labels: []string{"b", "a", "b"}}, "alice")
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if p.Name != "Launch" || !reflect.DeepEqual(p.Labels, []string{"a", "b"}) {
		t.Errorf("project = %+v", p)
	}

	role, found, err := a.Role(ctx, p.ID, "alice")
	if err != nil || !found || role != models.RoleOwner {
		t.Fatalf("Role = %q, %v, %v; want owner", role, found, err)
	}

	got, err := a.GetProject(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if !reflect.DeepEqual(got.Labels, []string{"a", "b"}) {
		t.Errorf("stored labels = %v", got.Labels)
	}
}

func TestCreateProject_Validation(t *testing.T) {
	a, _ := setup(t)
	ctx := context.Background()
	addUser(t, a.store, "alice")

	_, err := a.CreateProject(ctx, CreateProjectInput{Name: "   "}, "alice")
	wantKind(t, err, apperrors.KindBadRequest)

	_, err = a.CreateProject(ctx, CreateProjectInput{Name: "ok", Labels: []string{" "}}, "alice")
	wantKind(t, err, apperrors.KindBadRequest)

	_, err = a.CreateProject(ctx, CreateProjectInput{Name: "ok"}, "ghost")
	wantKind(t, err, apperrors.KindNotFound)
}

func TestAddMember(t *testing.T) {
	a, _ := setup(t)
	ctx := context.Background()
	addUser(t, a.store, "alice")
	addUser(t, a.store, "bob")
	p, _ := a.CreateProject(ctx, CreateProjectInput{Name: "P"}, "alice")

	m, err := a.AddMember(ctx, p.ID, "bob", "")
	if err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	if m.Role != models.RoleMember || m.Username != "bob" {
		t.Errorf("member = %+v", m)
	}

	_, err = a.AddMember(ctx, p.ID, "bob", "owner")
	wantKind(t, err, apperrors.KindAlreadyMember)

	_, err = a.AddMember(ctx, p.ID, "ghost", "member")
	wantKind(t, err, apperrors.KindNotFound)

	_, err = a.AddMember(ctx, "no-such-project", "bob", "member")
	wantKind(t, err, apperrors.KindNotFound)

	_, err = a.AddMember(ctx, p.ID, "bob", "admin")
	wantKind(t, err, apperrors.KindBadRequest)

	members, _ := a.ListMembers(ctx, p.ID)
	if len(members) != 2 {
		t.Errorf("members = %d, want 2", len(members))
	}
}

func TestRemoveMember_LastOwner(t *testing.T) {
	a, _ := setup(t)
	ctx := context.Background()
	addUser(t, a.store, "o1")
	addUser(t, a.store, "o2")
	addUser(t, a.store, "m1")
	p, _ := a.CreateProject(ctx, CreateProjectInput{Name: "P"}, "o1")
	if _, err := a.AddMember(ctx, p.ID, "o2", "owner"); err != nil {
		t.Fatalf("AddMember o2: %v", err)
	}
	if _, err := a.AddMember(ctx, p.ID, "m1", "member"); err != nil {
		t.Fatalf("AddMember m1: %v", err)
	}

	if err := a.RemoveMember(ctx, p.ID, "o1"); err != nil {
		t.Fatalf("RemoveMember o1: %v", err)
	}
	err := a.RemoveMember(ctx, p.ID, "o2")
	wantKind(t, err, apperrors.KindLastOwnerViolation)

	if role, found, _ := a.Role(ctx, p.ID, "o2"); !found || role != models.RoleOwner {
		t.Fatalf("o2 after refused removal = %q, %v", role, found)
	}

	if err := a.RemoveMember(ctx, p.ID, "m1"); err != nil {
		t.Fatalf("RemoveMember m1: %v", err)
	}
	err = a.RemoveMember(ctx, p.ID, "m1")
	wantKind(t, err, apperrors.KindNotAMember)
}

func TestRemoveMember_ConcurrentOwnersKeepOne(t *testing.T) {
	a, _ := setup(t)
	ctx := context.Background()
	addUser(t, a.store, "o1")
	addUser(t, a.store, "o2")
	p, _ := a.CreateProject(ctx, CreateProjectInput{Name: "P"}, "o1")
	if _, err := a.AddMember(ctx, p.ID, "o2", "owner"); err != nil {
		t.Fatalf("AddMember: %v", err)
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, user := range []string{"o1", "o2"} {
		wg.Add(1)
		go func(i int, user string) {
			defer wg.Done()
			errs[i] = a.RemoveMember(ctx, p.ID, user)
		}(i, user)
	}
	wg.Wait()

	succeeded, refused := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case apperrors.KindOf(err) == apperrors.KindLastOwnerViolation:
			refused++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 || refused != 1 {
		t.Fatalf("succeeded=%d refused=%d, want 1/1", succeeded, refused)
	}
	owners, _ := a.store.CountOwners(ctx, p.ID)
	if owners != 1 {
		t.Fatalf("owners = %d, want 1", owners)
	}
}

func TestUpdateMemberRole(t *testing.T) {
	a, _ := setup(t)
	ctx := context.Background()
	addUser(t, a.store, "alice")
	addUser(t, a.store, "bob")
	p, _ := a.CreateProject(ctx, CreateProjectInput{Name: "P"}, "alice")
	if _, err := a.AddMember(ctx, p.ID, "bob", "member"); err != nil {
		t.Fatalf("AddMember: %v", err)
	}

	_, err := a.UpdateMemberRole(ctx, p.ID, "alice", "member")
	wantKind(t, err, apperrors.KindLastOwnerViolation)

	m, err := a.UpdateMemberRole(ctx, p.ID, "bob", "OWNER")
	if err != nil || m.Role != models.RoleOwner {
		t.Fatalf("promote bob = %+v, %v", m, err)
	}
	if _, err := a.UpdateMemberRole(ctx, p.ID, "alice", "member"); err != nil {
		t.Fatalf("demote alice: %v", err)
	}

	_, err = a.UpdateMemberRole(ctx, p.ID, "carol", "member")
	wantKind(t, err, apperrors.KindNotAMember)
}

func TestDeleteProject_RemovesEverything(t *testing.T) {
	a, st := setup(t)
	ctx := context.Background()
	addUser(t, a.store, "alice")
	p, _ := a.CreateProject(ctx, CreateProjectInput{Name: "P", Labels: []string{"bug"}}, "alice")
	now := time.Now().UTC()
	if err := st.CreateTask(ctx, &models.Task{
		ID: "t1", ProjectID: p.ID, Title: "T", Status: models.StatusTodo, Priority: models.PriorityMedium,
		Labels: []string{"bug"}, CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	if err := a.DeleteProject(ctx, p.ID); err != nil {
		t.Fatalf("DeleteProject: %v", err)
	}
	if _, err := a.GetProject(ctx, p.ID); apperrors.KindOf(err) != apperrors.KindNotFound {
		t.Errorf("GetProject after delete = %v", err)
	}
	if owners, _ := st.TaskProjects(ctx, []string{"t1"}); len(owners) != 0 {
		t.Errorf("task survived project delete")
	}
	if projects, _ := a.ListProjects(ctx, "alice"); len(projects) != 0 {
		t.Errorf("alice still lists %d projects", len(projects))
	}

	err := a.DeleteProject(ctx, p.ID)
	wantKind(t, err, apperrors.KindNotFound)
}

func TestDeleteProjects_SkipsMissing(t *testing.T) {
	a, _ := setup(t)
	ctx := context.Background()
	addUser(t, a.store, "alice")
	p1, _ := a.CreateProject(ctx, CreateProjectInput{Name: "one"}, "alice")
	p2, _ := a.CreateProject(ctx, CreateProjectInput{Name: "two"}, "alice")

	n, err := a.DeleteProjects(ctx, []string{p1.ID, "missing", p2.ID})
	if err != nil {
		t.Fatalf("DeleteProjects: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted = %d, want 2", n)
	}
}

func TestDeleteProjects_DuplicateIDs(t *testing.T) {
	a, _ := setup(t)
	ctx := context.Background()
	addUser(t, a.store, "alice")
	p1, _ := a.CreateProject(ctx, CreateProjectInput{Name: "one"}, "alice")
	p2, _ := a.CreateProject(ctx, CreateProjectInput{Name: "two"}, "alice")

	ids := []string{p2.ID, p1.ID, p2.ID, p1.ID}
	n, err := a.DeleteProjects(ctx, ids)
	if err != nil {
		t.Fatalf("DeleteProjects: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted = %d, want 2", n)
	}
	if ids[0] != p2.ID || ids[2] != p2.ID {
		t.Errorf("caller slice reordered: %v", ids)
	}
}

func TestRequireRole(t *testing.T) {
	a, _ := setup(t)
	ctx := context.Background()
	addUser(t, a.store, "alice")
	addUser(t, a.store, "bob")
	addUser(t, a.store, "eve")
	p, _ := a.CreateProject(ctx, CreateProjectInput{Name: "P"}, "alice")
	_, _ = a.AddMember(ctx, p.ID, "bob", "member")

	if _, err := a.RequireRole(ctx, p.ID, "bob"); err != nil {
		t.Errorf("bob any role: %v", err)
	}
	_, err := a.RequireRole(ctx, p.ID, "bob", models.RoleOwner)
	wantKind(t, err, apperrors.KindForbidden)

	_, err = a.RequireRole(ctx, p.ID, "eve")
	wantKind(t, err, apperrors.KindForbidden)

	_, err = a.RequireRole(ctx, "missing", "alice")
	wantKind(t, err, apperrors.KindNotFound)
}

func TestUpdateProject(t *testing.T) {
	a, _ := setup(t)
	ctx := context.Background()
	addUser(t, a.store, "alice")
	p, _ := a.CreateProject(ctx, CreateProjectInput{Name: "P"}, "alice")

	updated, err := a.UpdateProject(ctx, p.ID, "Renamed", "desc")
	if err != nil {
		t.Fatalf("UpdateProject: %v", err)
	}
	if updated.Name != "Renamed" || updated.Description != "desc" {
		t.Errorf("updated = %+v", updated)
	}
	_, err = a.UpdateProject(ctx, "missing", "x", "")
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("UpdateProject(missing) = %v", err)
	}
}
