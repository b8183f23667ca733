package sqlite

import (
	"context"

	"github.com/kartikbazzad/bunbase/tracker/internal/models"
)

const projectColumns = `p.id, p.name, p.description, p.created_by, p.created_at, p.updated_at`

func scanProject(row scanner) (*models.Project, error) {
	var (
		p                models.Project
		created, updated int64
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedBy, &created, &updated); err != nil {
		return nil, err
	}
	p.CreatedAt = fromMillis(created)
	p.UpdatedAt = fromMillis(updated)
	return &p, nil
}

func (q queries) CreateProject(ctx context.Context, p *models.Project) error {
	_, err := q.r.ExecContext(ctx,
		`INSERT INTO projects (id, name, description, created_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Description, p.CreatedBy, toMillis(p.CreatedAt), toMillis(p.UpdatedAt),
	)
	return wrap("create project", err)
}

func (q queries) GetProject(ctx context.Context, id string) (*models.Project, error) {
	p, err := scanProject(q.r.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects p WHERE p.id = ?`, id))
	if err != nil {
		return nil, wrap("get project", err)
	}
	return p, nil
}

// LockProject only checks existence: the single connection already makes
// the surrounding transaction exclusive.
func (q queries) LockProject(ctx context.Context, id string) error {
	var one int
	err := q.r.QueryRowContext(ctx, `SELECT 1 FROM projects WHERE id = ?`, id).Scan(&one)
	return wrap("lock project", err)
}

func (q queries) ListProjectsForUser(ctx context.Context, userID string) ([]*models.Project, error) {
	rows, err := q.r.QueryContext(ctx,
		`SELECT `+projectColumns+`
		 FROM projects p
		 JOIN project_members pm ON pm.project_id = p.id
		 WHERE pm.user_id = ?
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
	res, err := q.r.ExecContext(ctx,
		`UPDATE projects SET name = ?, description = ?, updated_at = ? WHERE id = ?`,
		p.Name, p.Description, toMillis(p.UpdatedAt), p.ID,
	)
	return requireAffected("update project", res, err)
}

func (q queries) DeleteProject(ctx context.Context, id string) error {
	res, err := q.r.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	return requireAffected("delete project", res, err)
}

func (q queries) InsertMember(ctx context.Context, m *models.ProjectMember) error {
	_, err := q.r.ExecContext(ctx,
		`INSERT INTO project_members (project_id, user_id, role, created_at) VALUES (?, ?, ?, ?)`,
		m.ProjectID, m.UserID, string(m.Role), toMillis(m.CreatedAt),
	)
	return wrap("insert member", err)
}

const memberSelect = `SELECT pm.project_id, pm.user_id, u.username, u.email, pm.role, pm.created_at
	FROM project_members pm
	JOIN users u ON u.id = pm.user_id`

func scanMember(row scanner) (*models.ProjectMember, error) {
	var (
		m       models.ProjectMember
		role    string
		created int64
	)
	if err := row.Scan(&m.ProjectID, &m.UserID, &m.Username, &m.Email, &role, &created); err != nil {
		return nil, err
	}
	m.Role = models.Role(role)
	m.CreatedAt = fromMillis(created)
	return &m, nil
}

func (q queries) GetMember(ctx context.Context, projectID, userID string) (*models.ProjectMember, error) {
	m, err := scanMember(q.r.QueryRowContext(ctx,
		memberSelect+` WHERE pm.project_id = ? AND pm.user_id = ?`, projectID, userID))
	if err != nil {
		return nil, wrap("get member", err)
	}
	return m, nil
}

func (q queries) ListMembers(ctx context.Context, projectID string) ([]*models.ProjectMember, error) {
	rows, err := q.r.QueryContext(ctx,
		memberSelect+` WHERE pm.project_id = ? ORDER BY pm.created_at, pm.user_id`, projectID)
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
	err := q.r.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM project_members WHERE project_id = ? AND role = ?`,
		projectID, string(models.RoleOwner),
	).Scan(&n)
	return n, wrap("count owners", err)
}

func (q queries) UpdateMemberRole(ctx context.Context, projectID, userID string, role models.Role) error {
	res, err := q.r.ExecContext(ctx,
		`UPDATE project_members SET role = ? WHERE project_id = ? AND user_id = ?`,
		string(role), projectID, userID,
	)
	return requireAffected("update member role", res, err)
}

func (q queries) DeleteMember(ctx context.Context, projectID, userID string) error {
	res, err := q.r.ExecContext(ctx,
		`DELETE FROM project_members WHERE project_id = ? AND user_id = ?`, projectID, userID)
	return requireAffected("delete member", res, err)
}

func (q queries) DeleteMembersByProject(ctx context.Context, projectID string) error {
	_, err := q.r.ExecContext(ctx, `DELETE FROM project_members WHERE project_id = ?`, projectID)
	return wrap("delete members", err)
}

func (q queries) AddProjectLabels(ctx context.Context, projectID string, labels []string) (int, error) {
	added := 0
	for _, label := range labels {
		res, err := q.r.ExecContext(ctx,
			`INSERT INTO project_labels (project_id, label) VALUES (?, ?)
			 ON CONFLICT (project_id, label) DO NOTHING`, projectID, label)
		if err != nil {
			return added, wrap("add project label", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			added += int(n)
		}
	}
	return added, nil
}

func (q queries) RemoveProjectLabel(ctx context.Context, projectID, label string) (bool, error) {
	res, err := q.r.ExecContext(ctx,
		`DELETE FROM project_labels WHERE project_id = ? AND label = ?`, projectID, label)
	if err != nil {
		return false, wrap("remove project label", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrap("remove project label", err)
	}
	return n > 0, nil
}

func (q queries) ListProjectLabels(ctx context.Context, projectID string) ([]string, error) {
	return q.strings(ctx, "list project labels",
		`SELECT label FROM project_labels WHERE project_id = ? ORDER BY label`, projectID)
}

func (q queries) DeleteProjectLabels(ctx context.Context, projectID string) error {
	_, err := q.r.ExecContext(ctx, `DELETE FROM project_labels WHERE project_id = ?`, projectID)
	return wrap("delete project labels", err)
}

func (q queries) strings(ctx context.Context, op, query string, args ...any) ([]string, error) {
	rows, err := q.r.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, wrap(op, err)
		}
		out = append(out, s)
	}
	return out, wrap(op, rows.Err())
}
