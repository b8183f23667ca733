package sqlite

import (
	"context"

	"github.com/kartikbazzad/bunbase/tracker/internal/models"
)

const userColumns = `id, email, username, password_hash, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*models.User, error) {
	var (
		u                models.User
		created, updated int64
	)
	if err := row.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &created, &updated); err != nil {
		return nil, err
	}
	u.CreatedAt = fromMillis(created)
	u.UpdatedAt = fromMillis(updated)
	return &u, nil
}

func (q queries) CreateUser(ctx context.Context, user *models.User) error {
	_, err := q.r.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.Username, user.PasswordHash,
		toMillis(user.CreatedAt), toMillis(user.UpdatedAt),
	)
	return wrap("create user", err)
}

func (q queries) getUser(ctx context.Context, where string, arg string) (*models.User, error) {
	u, err := scanUser(q.r.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where+` = ?`, arg))
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

func (q queries) UpdateUser(ctx context.Context, user *models.User) error {
	res, err := q.r.ExecContext(ctx,
		`UPDATE users SET email = ?, username = ?, password_hash = ?, updated_at = ? WHERE id = ?`,
		user.Email, user.Username, user.PasswordHash, toMillis(user.UpdatedAt), user.ID,
	)
	return requireAffected("update user", res, err)
}

func (q queries) CreateSettings(ctx context.Context, s *models.UserSettings) error {
	_, err := q.r.ExecContext(ctx,
		`INSERT INTO user_settings (user_id, theme, language, notifications_enabled, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		s.UserID, s.Theme, s.Language, boolToInt(s.NotificationsEnabled), toMillis(s.UpdatedAt),
	)
	return wrap("create settings", err)
}

func (q queries) GetSettings(ctx context.Context, userID string) (*models.UserSettings, error) {
	var (
		s       models.UserSettings
		enabled int
		updated int64
	)
	err := q.r.QueryRowContext(ctx,
		`SELECT user_id, theme, language, notifications_enabled, updated_at
		 FROM user_settings WHERE user_id = ?`, userID,
	).Scan(&s.UserID, &s.Theme, &s.Language, &enabled, &updated)
	if err != nil {
		return nil, wrap("get settings", err)
	}
	s.NotificationsEnabled = enabled != 0
	s.UpdatedAt = fromMillis(updated)
	return &s, nil
}

func (q queries) UpdateSettings(ctx context.Context, s *models.UserSettings) error {
	res, err := q.r.ExecContext(ctx,
		`UPDATE user_settings SET theme = ?, language = ?, notifications_enabled = ?, updated_at = ?
		 WHERE user_id = ?`,
		s.Theme, s.Language, boolToInt(s.NotificationsEnabled), toMillis(s.UpdatedAt), s.UserID,
	)
	return requireAffected("update settings", res, err)
}
