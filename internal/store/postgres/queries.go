package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/kartikbazzad/bunbase/tracker/internal/models"
)

const userColumns = `id, email, username, password_hash, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (q queries) CreateUser(ctx context.Context, u *models.User) error {
	_, err := q.db.Exec(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.Email, u.Username, u.PasswordHash, u.CreatedAt, u.UpdatedAt)
	return wrap("create user", err)
}

func (q queries) getUser(ctx context.Context, column, value string) (*models.User, error) {
	u, err := scanUser(q.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+column+` = $1`, value))
	if err != nil {
		return nil, wrap("get user", err)
	}
	return u, nil
}

func (q queries) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return q.getUser(ctx, "id", id)
}

func (q queries) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return q.getUser(ctx, "email", email)
}

func (q queries) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return q.getUser(ctx, "username", username)
}

func (q queries) UpdateUser(ctx context.Context, u *models.User) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE users SET email = $1, username = $2, password_hash = $3, updated_at = $4 WHERE id = $5`,
		u.Email, u.Username, u.PasswordHash, u.UpdatedAt, u.ID)
	return requireAffected("update user", tag, err)
}

func (q queries) CreateSettings(ctx context.Context, s *models.UserSettings) error {
	_, err := q.db.Exec(ctx,
		`INSERT INTO user_settings (user_id, theme, language, notifications_enabled, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		s.UserID, s.Theme, s.Language, s.NotificationsEnabled, s.UpdatedAt)
	return wrap("create settings", err)
}

func (q queries) GetSettings(ctx context.Context, userID string) (*models.UserSettings, error) {
	var s models.UserSettings
	err := q.db.QueryRow(ctx,
		`SELECT user_id, theme, language, notifications_enabled, updated_at
		 FROM user_settings WHERE user_id = $1`, userID,
	).Scan(&s.UserID, &s.Theme, &s.Language, &s.NotificationsEnabled, &s.UpdatedAt)
	if err != nil {
		return nil, wrap("get settings", err)
	}
	return &s, nil
}

func (q queries) UpdateSettings(ctx context.Context, s *models.UserSettings) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE user_settings SET theme = $1, language = $2, notifications_enabled = $3, updated_at = $4
		 WHERE user_id = $5`,
		s.Theme, s.Language, s.NotificationsEnabled, s.UpdatedAt, s.UserID)
	return requireAffected("update settings", tag, err)
}

const projectColumns = `p.id, p.name, p.description, p.created_by, p.created_at, p.updated_at`

func scanProject(row pgx.Row) (*models.Project, error) {
	var p models.Project
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (q queries) CreateProject(ctx context.Context, p *models.Project) error {
	_, err := q.db.Exec(ctx,
		`INSERT INTO projects (id, name, description, created_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.Name, p.Description, p.CreatedBy, p.CreatedAt, p.UpdatedAt)
	return wrap("create project", err)
}

func (q queries) GetProject(ctx context.Context, id string) (*models.Project, error) {
	p, err := scanProject(q.db.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects p WHERE p.id = $1`, id))
	if err != nil {
		return nil, wrap("get project", err)
	}
	return p, nil
}

// LockProject takes a row lock that is held until the transaction ends.
func (q queries) LockProject(ctx context.Context, id string) error {
	var locked string
	err := q.db.QueryRow(ctx, `SELECT id FROM projects WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	return wrap("lock project", err)
}

func (q queries) ListProjectsForUser(ctx context.Context, userID string) ([]*models.Project, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+projectColumns+`
		 FROM projects p
		 JOIN project_members pm ON pm.project_id = p.id
		 WHERE pm.user_id = $1
		 ORDER BY p.created_at DESC, p.id`, userID)
	if err != nil {
		return nil, wrap("list projects", err)
	}
	defer rows.Close()

	var projects []*models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, wrap("scan project", err)
		}
		projects = append(projects, p)
	}
	return projects, wrap("list projects", rows.Err())
}

func (q queries) UpdateProject(ctx context.Context, p *models.Project) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE projects SET name = $1, description = $2, updated_at = $3 WHERE id = $4`,
		p.Name, p.Description, p.UpdatedAt, p.ID)
	return requireAffected("update project", tag, err)
}

func (q queries) DeleteProject(ctx context.Context, id string) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	return requireAffected("delete project", tag, err)
}

func (q queries) InsertMember(ctx context.Context, m *models.ProjectMember) error {
	_, err := q.db.Exec(ctx,
		`INSERT INTO project_members (project_id, user_id, role, created_at) VALUES ($1, $2, $3, $4)`,
		m.ProjectID, m.UserID, string(m.Role), m.CreatedAt)
	return wrap("insert member", err)
}

const memberSelect = `SELECT pm.project_id, pm.user_id, u.username, u.email, pm.role, pm.created_at
	FROM project_members pm
	JOIN users u ON u.id = pm.user_id`

func scanMember(row pgx.Row) (*models.ProjectMember, error) {
	var (
		m    models.ProjectMember
		role string
	)
	if err := row.Scan(&m.ProjectID, &m.UserID, &m.Username, &m.Email, &role, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.Role = models.Role(role)
	return &m, nil
}

func (q queries) GetMember(ctx context.Context, projectID, userID string) (*models.ProjectMember, error) {
	m, err := scanMember(q.db.QueryRow(ctx,
		memberSelect+` WHERE pm.project_id = $1 AND pm.user_id = $2`, projectID, userID))
	if err != nil {
		return nil, wrap("get member", err)
	}
	return m, nil
}

func (q queries) ListMembers(ctx context.Context, projectID string) ([]*models.ProjectMember, error) {
	rows, err := q.db.Query(ctx,
		memberSelect+` WHERE pm.project_id = $1 ORDER BY pm.created_at, pm.user_id`, projectID)
	if err != nil {
		return nil, wrap("list members", err)
	}
	defer rows.Close()

	var members []*models.ProjectMember
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, wrap("scan member", err)
		}
		members = append(members, m)
	}
	return members, wrap("list members", rows.Err())
}

func (q queries) CountOwners(ctx context.Context, projectID string) (int, error) {
	var n int
	err := q.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM project_members WHERE project_id = $1 AND role = $2`,
		projectID, string(models.RoleOwner)).Scan(&n)
	return n, wrap("count owners", err)
}

func (q queries) UpdateMemberRole(ctx context.Context, projectID, userID string, role models.Role) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE project_members SET role = $1 WHERE project_id = $2 AND user_id = $3`,
		string(role), projectID, userID)
	return requireAffected("update member role", tag, err)
}

func (q queries) DeleteMember(ctx context.Context, projectID, userID string) error {
	tag, err := q.db.Exec(ctx,
		`DELETE FROM project_members WHERE project_id = $1 AND user_id = $2`, projectID, userID)
	return requireAffected("delete member", tag, err)
}

func (q queries) DeleteMembersByProject(ctx context.Context, projectID string) error {
	_, err := q.db.Exec(ctx, `DELETE FROM project_members WHERE project_id = $1`, projectID)
	return wrap("delete members", err)
}

func (q queries) AddProjectLabels(ctx context.Context, projectID string, labels []string) (int, error) {
	added := 0
	for _, label := range labels {
		tag, err := q.db.Exec(ctx,
			`INSERT INTO project_labels (project_id, label) VALUES ($1, $2)
			 ON CONFLICT (project_id, label) DO NOTHING`, projectID, label)
		if err != nil {
			return added, wrap("add project label", err)
		}
		added += int(tag.RowsAffected())
	}
	return added, nil
}

func (q queries) RemoveProjectLabel(ctx context.Context, projectID, label string) (bool, error) {
	tag, err := q.db.Exec(ctx,
		`DELETE FROM project_labels WHERE project_id = $1 AND label = $2`, projectID, label)
	if err != nil {
		return false, wrap("remove project label", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (q queries) ListProjectLabels(ctx context.Context, projectID string) ([]string, error) {
	return q.strings(ctx, "list project labels",
		`SELECT label FROM project_labels WHERE project_id = $1 ORDER BY label COLLATE "C"`, projectID)
}

func (q queries) DeleteProjectLabels(ctx context.Context, projectID string) error {
	_, err := q.db.Exec(ctx, `DELETE FROM project_labels WHERE project_id = $1`, projectID)
	return wrap("delete project labels", err)
}

const taskColumns = `id, project_id, title, description, status, priority, created_at, updated_at`

func scanTask(row pgx.Row) (*models.Task, error) {
	var (
		t                models.Task
		status, priority string
	)
	if err := row.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &status, &priority, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Status = models.TaskStatus(status)
	t.Priority = models.TaskPriority(priority)
	t.Labels = []string{}
	return &t, nil
}

func (q queries) insertTaskLabels(ctx context.Context, taskID string, labels []string) error {
	for _, label := range labels {
		if _, err := q.db.Exec(ctx,
			`INSERT INTO task_labels (task_id, label) VALUES ($1, $2)
			 ON CONFLICT (task_id, label) DO NOTHING`, taskID, label); err != nil {
			return wrap("insert task label", err)
		}
	}
	return nil
}

func (q queries) CreateTask(ctx context.Context, t *models.Task) error {
	_, err := q.db.Exec(ctx,
		`INSERT INTO tasks (`+taskColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, t.ProjectID, t.Title, t.Description, string(t.Status), string(t.Priority), t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return wrap("create task", err)
	}
	return q.insertTaskLabels(ctx, t.ID, t.Labels)
}

func (q queries) GetTask(ctx context.Context, projectID, taskID string) (*models.Task, error) {
	t, err := scanTask(q.db.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1 AND project_id = $2`, taskID, projectID))
	if err != nil {
		return nil, wrap("get task", err)
	}
	labels, err := q.strings(ctx, "get task labels",
		`SELECT label FROM task_labels WHERE task_id = $1 ORDER BY label COLLATE "C"`, taskID)
	if err != nil {
		return nil, err
	}
	t.Labels = labels
	return t, nil
}

func (q queries) ListTasks(ctx context.Context, projectID string) ([]*models.Task, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE project_id = $1 ORDER BY created_at, id`, projectID)
	if err != nil {
		return nil, wrap("list tasks", err)
	}
	tasks, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.Task, error) {
		return scanTask(row)
	})
	if err != nil {
		return nil, wrap("list tasks", err)
	}

	byID := make(map[string]*models.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}
	labelRows, err := q.db.Query(ctx,
		`SELECT tl.task_id, tl.label FROM task_labels tl
		 JOIN tasks t ON t.id = tl.task_id
		 WHERE t.project_id = $1
		 ORDER BY tl.task_id, tl.label COLLATE "C"`, projectID)
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
	if tasks == nil {
		tasks = []*models.Task{}
	}
	return tasks, wrap("list task labels", labelRows.Err())
}

func (q queries) UpdateTask(ctx context.Context, t *models.Task) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE tasks SET title = $1, description = $2, status = $3, priority = $4, updated_at = $5
		 WHERE id = $6 AND project_id = $7`,
		t.Title, t.Description, string(t.Status), string(t.Priority), t.UpdatedAt, t.ID, t.ProjectID)
	if err := requireAffected("update task", tag, err); err != nil {
		return err
	}
	if _, err := q.db.Exec(ctx, `DELETE FROM task_labels WHERE task_id = $1`, t.ID); err != nil {
		return wrap("clear task labels", err)
	}
	return q.insertTaskLabels(ctx, t.ID, t.Labels)
}

func (q queries) DeleteTask(ctx context.Context, projectID, taskID string) error {
	var found string
	if err := q.db.QueryRow(ctx,
		`SELECT id FROM tasks WHERE id = $1 AND project_id = $2`, taskID, projectID).Scan(&found); err != nil {
		return wrap("find task", err)
	}
	if _, err := q.db.Exec(ctx, `DELETE FROM task_labels WHERE task_id = $1`, taskID); err != nil {
		return wrap("delete task labels", err)
	}
	tag, err := q.db.Exec(ctx, `DELETE FROM tasks WHERE id = $1 AND project_id = $2`, taskID, projectID)
	return requireAffected("delete task", tag, err)
}

func (q queries) TaskProjects(ctx context.Context, taskIDs []string) (map[string]string, error) {
	out := make(map[string]string, len(taskIDs))
	if len(taskIDs) == 0 {
		return out, nil
	}
	rows, err := q.db.Query(ctx, `SELECT id::text, project_id::text FROM tasks WHERE id::text = ANY($1)`, taskIDs)
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
	_, err := q.db.Exec(ctx,
		`DELETE FROM task_labels WHERE task_id IN (SELECT id FROM tasks WHERE project_id = $1)`, projectID)
	return wrap("delete task labels", err)
}

func (q queries) DeleteTasksByProject(ctx context.Context, projectID string) error {
	_, err := q.db.Exec(ctx, `DELETE FROM tasks WHERE project_id = $1`, projectID)
	return wrap("delete tasks", err)
}

func (q queries) RemoveLabelFromTasks(ctx context.Context, projectID, label string, at time.Time) ([]string, error) {
	return q.strings(ctx, "remove label from tasks",
		`WITH removed AS (
		     DELETE FROM task_labels tl
		     USING tasks t
		     WHERE tl.task_id = t.id AND t.project_id = $1 AND tl.label = $2
		     RETURNING tl.task_id
		 )
		 UPDATE tasks SET updated_at = $3
		 WHERE id IN (SELECT task_id FROM removed)
		 RETURNING id::text`, projectID, label, at)
}
