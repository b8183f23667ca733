package sqlite

import (
	"context"
	"time"

	"github.com/kartikbazzad/bunbase/tracker/internal/models"
)

const taskColumns = `id, project_id, title, description, status, priority, created_at, updated_at`

func scanTask(row scanner) (*models.Task, error) {
	var (
		t                models.Task
		status, priority string
		created, updated int64
	)
	if err := row.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &status, &priority, &created, &updated); err != nil {
		return nil, err
	}
	t.Status = models.TaskStatus(status)
	t.Priority = models.TaskPriority(priority)
	t.CreatedAt = fromMillis(created)
	t.UpdatedAt = fromMillis(updated)
	t.Labels = []string{}
	return &t, nil
}

func (q queries) insertTaskLabels(ctx context.Context, taskID string, labels []string) error {
	for _, label := range labels {
		if _, err := q.r.ExecContext(ctx,
			`INSERT INTO task_labels (task_id, label) VALUES (?, ?)
			 ON CONFLICT (task_id, label) DO NOTHING`, taskID, label); err != nil {
			return wrap("insert task label", err)
		}
	}
	return nil
}

func (q queries) CreateTask(ctx context.Context, t *models.Task) error {
	_, err := q.r.ExecContext(ctx,
		`INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.ProjectID, t.Title, t.Description, string(t.Status), string(t.Priority),
		toMillis(t.CreatedAt), toMillis(t.UpdatedAt),
	)
	if err != nil {
		return wrap("create task", err)
	}
	return q.insertTaskLabels(ctx, t.ID, t.Labels)
}

func (q queries) GetTask(ctx context.Context, projectID, taskID string) (*models.Task, error) {
	t, err := scanTask(q.r.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ? AND project_id = ?`, taskID, projectID))
	if err != nil {
		return nil, wrap("get task", err)
	}
	labels, err := q.strings(ctx, "get task labels",
		`SELECT label FROM task_labels WHERE task_id = ? ORDER BY label`, taskID)
	if err != nil {
		return nil, err
	}
	t.Labels = labels
	return t, nil
}

func (q queries) ListTasks(ctx context.Context, projectID string) ([]*models.Task, error) {
	rows, err := q.r.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE project_id = ? ORDER BY created_at, id`, projectID)
	if err != nil {
		return nil, wrap("list tasks", err)
	}
	tasks := []*models.Task{}
	byID := map[string]*models.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			rows.Close()
			return nil, wrap("scan task", err)
		}
		tasks = append(tasks, t)
		byID[t.ID] = t
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, wrap("list tasks", err)
	}

	labelRows, err := q.r.QueryContext(ctx,
		`SELECT tl.task_id, tl.label FROM task_labels tl
		 JOIN tasks t ON t.id = tl.task_id
		 WHERE t.project_id = ?
		 ORDER BY tl.task_id, tl.label`, projectID)
	if err != nil {
		return nil, wrap("list task labels", err)
	}
	defer labelRows.Close()
	for labelRows.Next() {
		var taskID, label string
		if err := labelRows.Scan(&taskID, &label); err != nil {
			return nil, wrap("scan task label", err)
		}
		if t, ok := byID[taskID]; ok {
			t.Labels = append(t.Labels, label)
		}
	}
	return tasks, wrap("list task labels", labelRows.Err())
}

func (q queries) UpdateTask(ctx context.Context, t *models.Task) error {
	res, err := q.r.ExecContext(ctx,
		`UPDATE tasks SET title = ?, description = ?, status = ?, priority = ?, updated_at = ?
		 WHERE id = ? AND project_id = ?`,
		t.Title, t.Description, string(t.Status), string(t.Priority), toMillis(t.UpdatedAt),
		t.ID, t.ProjectID,
	)
	if err := requireAffected("update task", res, err); err != nil {
		return err
	}
	if _, err := q.r.ExecContext(ctx, `DELETE FROM task_labels WHERE task_id = ?`, t.ID); err != nil {
		return wrap("clear task labels", err)
	}
	return q.insertTaskLabels(ctx, t.ID, t.Labels)
}

func (q queries) DeleteTask(ctx context.Context, projectID, taskID string) error {
	if err := q.taskExists(ctx, projectID, taskID); err != nil {
		return err
	}
	if _, err := q.r.ExecContext(ctx, `DELETE FROM task_labels WHERE task_id = ?`, taskID); err != nil {
		return wrap("delete task labels", err)
	}
	res, err := q.r.ExecContext(ctx, `DELETE FROM tasks WHERE id = ? AND project_id = ?`, taskID, projectID)
	return requireAffected("delete task", res, err)
}

// taskExists returns ErrNotFound unless the task exists in the project.
func (q queries) taskExists(ctx context.Context, projectID, taskID string) error {
	var one int
	err := q.r.QueryRowContext(ctx,
		`SELECT 1 FROM tasks WHERE id = ? AND project_id = ?`, taskID, projectID).Scan(&one)
	return wrap("find task", err)
}

func (q queries) TaskProjects(ctx context.Context, taskIDs []string) (map[string]string, error) {
	out := make(map[string]string, len(taskIDs))
	if len(taskIDs) == 0 {
		return out, nil
	}
	args := make([]any, len(taskIDs))
	for i, id := range taskIDs {
		args[i] = id
	}
	rows, err := q.r.QueryContext(ctx,
		`SELECT id, project_id FROM tasks WHERE id IN (`+placeholders(len(taskIDs))+`)`, args...)
	if err != nil {
		return nil, wrap("task projects", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, projectID string
		if err := rows.Scan(&id, &projectID); err != nil {
			return nil, wrap("scan task project", err)
		}
		out[id] = projectID
	}
	return out, wrap("task projects", rows.Err())
}

func (q queries) DeleteTaskLabelsByProject(ctx context.Context, projectID string) error {
	_, err := q.r.ExecContext(ctx,
		`DELETE FROM task_labels WHERE task_id IN (SELECT id FROM tasks WHERE project_id = ?)`, projectID)
	return wrap("delete task labels", err)
}

func (q queries) DeleteTasksByProject(ctx context.Context, projectID string) error {
	_, err := q.r.ExecContext(ctx, `DELETE FROM tasks WHERE project_id = ?`, projectID)
	return wrap("delete tasks", err)
}

func (q queries) RemoveLabelFromTasks(ctx context.Context, projectID, label string, at time.Time) ([]string, error) {
	ids, err := q.strings(ctx, "find labelled tasks",
		`SELECT t.id FROM tasks t
		 JOIN task_labels tl ON tl.task_id = t.id
		 WHERE t.project_id = ? AND tl.label = ?
		 ORDER BY t.id`, projectID, label)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if _, err := q.r.ExecContext(ctx,
			`DELETE FROM task_labels WHERE task_id = ? AND label = ?`, id, label); err != nil {
			return nil, wrap("remove task label", err)
		}
		if _, err := q.r.ExecContext(ctx,
			`UPDATE tasks SET updated_at = ? WHERE id = ?`, toMillis(at), id); err != nil {
			return nil, wrap("touch task", err)
		}
	}
	return ids, nil
}
