// Package users serves the authenticated user's profile and settings.
package users

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/kartikbazzad/bunbase/tracker/internal/auth"
	"github.com/kartikbazzad/bunbase/tracker/internal/models"
	"github.com/kartikbazzad/bunbase/tracker/internal/store"
	apperrors "github.com/kartikbazzad/bunbase/tracker/pkg/errors"
	"github.com/kartikbazzad/bunbase/tracker/pkg/logger"
)

var (
	themes    = map[string]bool{"light": true, "dark": true, "system": true}
	languages = map[string]bool{"en": true, "zh": true}
)

// ProfileUpdate carries optional profile changes; nil fields are kept.
type ProfileUpdate struct {
	Email    *string `json:"email"`
	Username *string `json:"username"`
}

// SettingsUpdate carries optional settings changes; nil fields are kept.
type SettingsUpdate struct {
	Theme                *string `json:"theme"`
	Language             *string `json:"language"`
	NotificationsEnabled *bool   `json:"notifications_enabled"`
}

// Service handles user profile business logic.
type Service struct {
	store  store.Store
	now    func() time.Time
	logger *slog.Logger
}

// NewService creates a users Service.
func NewService(st store.Store, log *slog.Logger) *Service {
	if log == nil {
		log = logger.Get()
	}
	return &Service{store: st, now: time.Now, logger: log}
}

// Get returns the user by id.
func (s *Service) Get(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.NotFound("user not found")
	}
	return user, err
}

// UpdateProfile changes email and/or username. Both stay unique.
func (s *Service) UpdateProfile(ctx context.Context, userID string, in ProfileUpdate) (*models.User, error) {
	var user *models.User
	err := s.store.InTx(ctx, func(q store.Queries) error {
		u, err := q.GetUserByID(ctx, userID)
		if errors.Is(err, store.ErrNotFound) {
			return apperrors.NotFound("user not found")
		} else if err != nil {
			return err
		}
		if in.Email != nil {
			if u.Email, err = auth.ValidateEmail(*in.Email); err != nil {
				return err
			}
		}
		if in.Username != nil {
			if u.Username, err = auth.ValidateUsername(*in.Username); err != nil {
				return err
			}
		}
		if err := auth.EnsureAvailable(ctx, q, u.Email, u.Username, u.ID); err != nil {
			return err
		}
		u.UpdatedAt = s.now().UTC()
		if err := q.UpdateUser(ctx, u); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return apperrors.Conflict("email or username already exists")
			}
			return err
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("user profile updated", "user_id", userID)
	return user, nil
}

// Settings returns the user's settings, creating the defaults if the row is
// missing.
func (s *Service) Settings(ctx context.Context, userID string) (*models.UserSettings, error) {
	settings, err := s.store.GetSettings(ctx, userID)
	if err == nil {
		return settings, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if _, err := s.Get(ctx, userID); err != nil {
		return nil, err
	}
	settings = models.DefaultSettings(userID, s.now().UTC())
	if err := s.store.CreateSettings(ctx, settings); err != nil && !errors.Is(err, store.ErrConflict) {
		return nil, err
	}
	return settings, nil
}

// UpdateSettings applies in to the user's settings.
func (s *Service) UpdateSettings(ctx context.Context, userID string, in SettingsUpdate) (*models.UserSettings, error) {
	settings, err := s.Settings(ctx, userID)
	if err != nil {
		return nil, err
	}
	if in.Theme != nil {
		theme := strings.ToLower(strings.TrimSpace(*in.Theme))
		if !themes[theme] {
			return nil, apperrors.BadRequest("theme must be light, dark or system")
		}
		settings.Theme = theme
	}
	if in.Language != nil {
		language := strings.ToLower(strings.TrimSpace(*in.Language))
		if !languages[language] {
			return nil, apperrors.BadRequest("unsupported language")
		}
		settings.Language = language
	}
	if in.NotificationsEnabled != nil {
		settings.NotificationsEnabled = *in.NotificationsEnabled
	}
	settings.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateSettings(ctx, settings); err != nil {
		return nil, err
	}
	return settings, nil
}
