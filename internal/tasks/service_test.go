package tasks

import (
	"context"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/kartikbazzad/bunbase/tracker/internal/labels"
	"github.com/kartikbazzad/bunbase/tracker/internal/models"
	"github.com/kartikbazzad/bunbase/tracker/internal/store/sqlite"
	apperrors "github.com/kartikbazzad/bunbase/tracker/pkg/errors"
	"github.com/kartikbazzad/bunbase/tracker/pkg/logger"
)

func setup(t *testing.T) (*Service, *labels.Synchronizer) {
	t.Helper()
	st, err := sqlite.Open(filepath.Join(t.TempDir(), "tracker.db"))
	if err != nil {
		t.Fatalf("sqlite.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	now := time.Now().UTC()
	if err := st.CreateUser(ctx, &models.User{ID: "u1", Email: "u1@example.com", Username: "u1", PasswordHash: "x", CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	for _, id := range []string{"p1", "p2"} {
		if err := st.CreateProject(ctx, &models.Project{ID: id, Name: id, CreatedBy: "u1", CreatedAt: now, UpdatedAt: now}); err != nil {
			t.Fatalf("CreateProject: %v", err)
		}
	}
	sync := labels.New(st, logger.Discard())
	return NewService(st, sync, nil, logger.Discard()), sync
}

func wantKind(t *testing.T, err error, kind apperrors.Kind) {
	t.Helper()
	if got := apperrors.KindOf(err); err == nil || got != kind {
		t.Fatalf("error = %v (kind %s), want %s", err, got, kind)
	}
}

func TestCreate_DefaultsAndLabelSync(t *testing.T) {
	s, sync := setup(t)
	ctx := context.Background()

	task, err := s.Create(ctx, "p1", Input{Title: "Write docs", Labels: []string{"docs", "docs"}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if task.Status != models.StatusTodo || task.Priority != models.PriorityMedium {
		t.Errorf("defaults = %s/%s", task.Status, task.Priority)
	}
	if !reflect.DeepEqual(task.Labels, []string{"docs"}) {
		t.Errorf("labels = %v", task.Labels)
	}

	projectLabels, _ := sync.ProjectLabels(ctx, "p1")
	if !reflect.DeepEqual(projectLabels, []string{"docs"}) {
		t.Errorf("project labels = %v", projectLabels)
	}
}

func TestCreate_Validation(t *testing.T) {
	s, _ := setup(t)
	ctx := context.Background()

	_, err := s.Create(ctx, "p1", Input{Title: ""})
	wantKind(t, err, apperrors.KindBadRequest)

	_, err = s.Create(ctx, "p1", Input{Title: "x", Description: strings.Repeat("d", MaxDescriptionLength+1)})
	wantKind(t, err, apperrors.KindBadRequest)

	_, err = s.Create(ctx, "p1", Input{Title: "x", Status: "blocked"})
	wantKind(t, err, apperrors.KindBadRequest)

	_, err = s.Create(ctx, "missing", Input{Title: "x"})
	wantKind(t, err, apperrors.KindNotFound)
}

func TestBatchCreate_AllOrNothing(t *testing.T) {
	s, _ := setup(t)
	ctx := context.Background()

	_, err := s.BatchCreate(ctx, "p1", []Input{{Title: "ok"}, {Title: "bad", Priority: "urgent"}})
	wantKind(t, err, apperrors.KindBadRequest)
	if list, _ := s.List(ctx, "p1"); len(list) != 0 {
		t.Fatalf("partial batch persisted %d tasks", len(list))
	}

	created, err := s.BatchCreate(ctx, "p1", []Input{{Title: "a"}, {Title: "b", Status: "in progress"}})
	if err != nil {
		t.Fatalf("BatchCreate: %v", err)
	}
	if len(created) != 2 || created[1].Status != models.StatusInProgress {
		t.Errorf("created = %+v", created)
	}
}

func TestGet_WrongProjectIsNotFound(t *testing.T) {
	s, _ := setup(t)
	ctx := context.Background()
	task, _ := s.Create(ctx, "p1", Input{Title: "x"})

	_, err := s.Get(ctx, "p2", task.ID)
	wantKind(t, err, apperrors.KindNotFound)

	_, err = s.UpdateStatus(ctx, "p2", task.ID, "done")
	wantKind(t, err, apperrors.KindNotFound)
}

func TestUpdate_ReplacesLabels(t *testing.T) {
	s, sync := setup(t)
	ctx := context.Background()
	task, _ := s.Create(ctx, "p1", Input{Title: "x", Labels: []string{"a"}})

	updated, err := s.Update(ctx, "p1", task.ID, Input{Title: "y", Status: "done", Priority: "high", Labels: []string{"b"}})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Title != "y" || updated.Status != models.StatusDone || !reflect.DeepEqual(updated.Labels, []string{"b"}) {
		t.Errorf("updated = %+v", updated)
	}
	stored, _ := s.Get(ctx, "p1", task.ID)
	if !reflect.DeepEqual(stored.Labels, []string{"b"}) {
		t.Errorf("stored labels = %v", stored.Labels)
	}
	projectLabels, _ := sync.ProjectLabels(ctx, "p1")
	if !reflect.DeepEqual(projectLabels, []string{"a", "b"}) {
		t.Errorf("project labels = %v", projectLabels)
	}
}

func TestStatusPriorityAndLabels(t *testing.T) {
	s, sync := setup(t)
	ctx := context.Background()
	task, _ := s.Create(ctx, "p1", Input{Title: "x"})

	if got, err := s.UpdateStatus(ctx, "p1", task.ID, "canceled"); err != nil || got.Status != models.StatusCanceled {
		t.Fatalf("UpdateStatus = %+v, %v", got, err)
	}
	if got, err := s.UpdatePriority(ctx, "p1", task.ID, "low"); err != nil || got.Priority != models.PriorityLow {
		t.Fatalf("UpdatePriority = %+v, %v", got, err)
	}
	_, err := s.UpdatePriority(ctx, "p1", task.ID, "")
	wantKind(t, err, apperrors.KindBadRequest)

	got, err := s.AddLabel(ctx, "p1", task.ID, "urgent")
	if err != nil || !reflect.DeepEqual(got.Labels, []string{"urgent"}) {
		t.Fatalf("AddLabel = %+v, %v", got, err)
	}
	if projectLabels, _ := sync.ProjectLabels(ctx, "p1"); !reflect.DeepEqual(projectLabels, []string{"urgent"}) {
		t.Errorf("project labels = %v", projectLabels)
	}

	got, err = s.RemoveLabel(ctx, "p1", task.ID, "urgent")
	if err != nil || len(got.Labels) != 0 {
		t.Fatalf("RemoveLabel = %+v, %v", got, err)
	}
	if projectLabels, _ := sync.ProjectLabels(ctx, "p1"); len(projectLabels) != 1 {
		t.Errorf("task label removal changed project labels: %v", projectLabels)
	}
}

func TestBatchDelete(t *testing.T) {
	s, _ := setup(t)
	ctx := context.Background()
	a, _ := s.Create(ctx, "p1", Input{Title: "a"})
	b, _ := s.Create(ctx, "p1", Input{Title: "b"})
	other, _ := s.Create(ctx, "p2", Input{Title: "other"})

	_, err := s.BatchDelete(ctx, "p1", []string{a.ID, other.ID})
	wantKind(t, err, apperrors.KindBadRequest)
	if list, _ := s.List(ctx, "p1"); len(list) != 2 {
		t.Fatalf("rejected batch deleted tasks: %d left", len(list))
	}

	n, err := s.BatchDelete(ctx, "p1", []string{a.ID, b.ID, "missing"})
	if err != nil {
		t.Fatalf("BatchDelete: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted = %d, want 2", n)
	}

	err = s.Delete(ctx, "p1", a.ID)
	wantKind(t, err, apperrors.KindNotFound)
}
