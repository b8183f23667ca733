// Package labels keeps a project's label set consistent with the labels
// carried by its tasks: every task label is a project label, and removing a
// project label strips it from the tasks that carried it.
package labels

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/kartikbazzad/bunbase/tracker/internal/store"
	apperrors "github.com/kartikbazzad/bunbase/tracker/pkg/errors"
	"github.com/kartikbazzad/bunbase/tracker/pkg/logger"
)

// MaxLength is the longest accepted label, in bytes.
const MaxLength = 255

// Normalize trims, deduplicates and sorts labels. Labels are case-sensitive.
func Normalize(labels []string) ([]string, error) {
	seen := make(map[string]struct{}, len(labels))
	out := make([]string, 0, len(labels))
	for _, raw := range labels {
		label, err := Clean(raw)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[label]; dup {
			continue
		}
		seen[label] = struct{}{}
		out = append(out, label)
	}
	sort.Strings(out)
	return out, nil
}

// Clean validates a single label and returns it trimmed.
func Clean(raw string) (string, error) {
	label := strings.TrimSpace(raw)
	if label == "" {
		return "", apperrors.BadRequest("label must not be empty")
	}
	if len(label) > MaxLength {
		return "", apperrors.BadRequest("label is too long")
	}
	return label, nil
}

// Synchronizer applies label changes on a store.
type Synchronizer struct {
	store  store.Store
	now    func() time.Time
	logger *slog.Logger
}

// New creates a Synchronizer. A nil logger uses the global one.
func New(st store.Store, log *slog.Logger) *Synchronizer {
	if log == nil {
		log = logger.Get()
	}
	return &Synchronizer{store: st, now: time.Now, logger: log}
}

// OnTaskLabelsChanged adds every label in added that the project does not
// have yet. It runs on the caller's transaction and returns how many labels
// were new.
func (s *Synchronizer) OnTaskLabelsChanged(ctx context.Context, q store.Queries, projectID string, added []string) (int, error) {
	if len(added) == 0 {
		return 0, nil
	}
	n, err := q.AddProjectLabels(ctx, projectID, added)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Debug("project labels extended", "project_id", projectID, "added", n)
	}
	return n, nil
}

// OnProjectLabelRemoved drops label from the project set and from every task
// in the project carrying it. Only those tasks are touched; their ids are
// returned.
func (s *Synchronizer) OnProjectLabelRemoved(ctx context.Context, q store.Queries, projectID, label string) ([]string, error) {
	if _, err := q.RemoveProjectLabel(ctx, projectID, label); err != nil {
		return nil, err
	}
	return q.RemoveLabelFromTasks(ctx, projectID, label, s.now().UTC())
}

// AddProjectLabel adds label to the project. Adding an existing label is a
// no-op. The resulting label set is returned.
func (s *Synchronizer) AddProjectLabel(ctx context.Context, projectID, label string) ([]string, error) {
	label, err := Clean(label)
	if err != nil {
		return nil, err
	}
	var result []string
	err = s.store.InTx(ctx, func(q store.Queries) error {
		if err := lockProject(ctx, q, projectID); err != nil {
			return err
		}
		if _, err := s.OnTaskLabelsChanged(ctx, q, projectID, []string{label}); err != nil {
			return err
		}
		result, err = q.ListProjectLabels(ctx, projectID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RemoveProjectLabel removes label from the project and its tasks and
// returns the ids of the tasks that changed. Removing an unknown label only
// succeeds.
func (s *Synchronizer) RemoveProjectLabel(ctx context.Context, projectID, label string) ([]string, error) {
	label, err := Clean(label)
	if err != nil {
		return nil, err
	}
	var changed []string
	err = s.store.InTx(ctx, func(q store.Queries) error {
		if err := lockProject(ctx, q, projectID); err != nil {
			return err
		}
		changed, err = s.OnProjectLabelRemoved(ctx, q, projectID, label)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("project label removed", "project_id", projectID, "label", label, "tasks_changed", len(changed))
	return changed, nil
}

// ProjectLabels returns the sorted label set of a project.
func (s *Synchronizer) ProjectLabels(ctx context.Context, projectID string) ([]string, error) {
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, projectErr(err)
	}
	return s.store.ListProjectLabels(ctx, projectID)
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
