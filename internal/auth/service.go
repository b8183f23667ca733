// Package auth registers accounts, checks credentials and hands out token
// pairs.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kartikbazzad/bunbase/tracker/internal/idgen"
	"github.com/kartikbazzad/bunbase/tracker/internal/models"
	"github.com/kartikbazzad/bunbase/tracker/internal/store"
	"github.com/kartikbazzad/bunbase/tracker/internal/token"
	apperrors "github.com/kartikbazzad/bunbase/tracker/pkg/errors"
	"github.com/kartikbazzad/bunbase/tracker/pkg/logger"
)

const (
	MinUsernameLength = 3
	MaxUsernameLength = 50
	MinPasswordLength = 6
)

// RegisterInput is a new account request.
type RegisterInput struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResult is returned by Login and Refresh.
type LoginResult struct {
	*token.Pair
	User *models.User `json:"user"`
}

// Config tunes the Service.
type Config struct {
	// RefreshRevalidate makes Refresh re-read the user instead of trusting
	// the refresh token's claims.
	RefreshRevalidate bool
}

// Service wires the credential verifier to the token service.
type Service struct {
	store    store.Store
	hasher   PasswordHasher
	verifier *Verifier
	tokens   *token.Service
	ids      *idgen.Generator
	cfg      Config
	now      func() time.Time
	logger   *slog.Logger
}

// NewService creates an auth Service.
func NewService(st store.Store, hasher PasswordHasher, tokens *token.Service, ids *idgen.Generator, cfg Config, log *slog.Logger) *Service {
	if ids == nil {
		ids = idgen.New()
	}
	if log == nil {
		log = logger.Get()
	}
	return &Service{
		store:    st,
		hasher:   hasher,
		verifier: NewVerifier(st, hasher, log),
		tokens:   tokens,
		ids:      ids,
		cfg:      cfg,
		now:      time.Now,
		logger:   log,
	}
}

var validate = validator.New()

// ValidateEmail normalizes and checks an email address.
func ValidateEmail(raw string) (string, error) {
	email := strings.TrimSpace(raw)
	if err := validate.Var(email, "required,email"); err != nil {
		return "", apperrors.BadRequest("a valid email is required")
	}
	return email, nil
}

// ValidateUsername trims and checks a username.
func ValidateUsername(raw string) (string, error) {
	username := strings.TrimSpace(raw)
	if n := len([]rune(username)); n < MinUsernameLength || n > MaxUsernameLength {
		return "", apperrors.BadRequest("username must be between 3 and 50 characters")
	}
	return username, nil
}

// Register creates an account with default settings.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	email, err := ValidateEmail(in.Email)
	if err != nil {
		return nil, err
	}
	username, err := ValidateUsername(in.Username)
	if err != nil {
		return nil, err
	}
	if len(in.Password) < MinPasswordLength {
		return nil, apperrors.BadRequest("password must be at least 6 characters")
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	id, err := s.ids.NewID()
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	now := s.now().UTC()
	user := &models.User{
		ID:           id,
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.store.InTx(ctx, func(q store.Queries) error {
		if err := EnsureAvailable(ctx, q, email, username, ""); err != nil {
			return err
		}
		if err := q.CreateUser(ctx, user); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return apperrors.Conflict("email or username already exists")
			}
			return err
		}
		return q.CreateSettings(ctx, models.DefaultSettings(id, now))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered", "user_id", id)
	return user, nil
}

// EnsureAvailable fails with CONFLICT if email or username belongs to a user
// other than self.
func EnsureAvailable(ctx context.Context, q store.Queries, email, username, self string) error {
	if u, err := q.GetUserByEmail(ctx, email); err == nil && u.ID != self {
		return apperrors.Conflict("email already exists")
	} else if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if u, err := q.GetUserByUsername(ctx, username); err == nil && u.ID != self {
		return apperrors.Conflict("username already exists")
	} else if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return nil
}

// Login checks credentials and issues a token pair.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.verifier.Verify(ctx, email, password)
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindCredentialMismatch {
			s.logger.Warn("login failed")
		}
		return nil, err
	}
	pair, err := s.tokens.Issue(identityOf(user))
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	s.logger.Info("user logged in", "user_id", user.ID)
	return &LoginResult{Pair: pair, User: user}, nil
}

// Refresh exchanges a refresh token for a new pair. By default the identity
// comes from the token claims; with RefreshRevalidate the user is re-read
// and a deleted account yields INVALID_TOKEN.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	identity, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, err
	}

	user := &models.User{ID: identity.ID, Email: identity.Email, Username: identity.Username}
	if s.cfg.RefreshRevalidate {
		current, err := s.store.GetUserByID(ctx, identity.ID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.InvalidToken("token subject no longer exists", nil)
		} else if err != nil {
			return nil, err
		}
		user = current
	}

	pair, err := s.tokens.Issue(identityOf(user))
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return &LoginResult{Pair: pair, User: user}, nil
}

// Logout only validates the access token. Tokens are stateless and stay
// valid until they expire.
func (s *Service) Logout(ctx context.Context, accessToken string) error {
	identity, err := s.tokens.Verify(accessToken)
	if err != nil {
		return err
	}
	logger.FromContext(ctx, s.logger).Info("user logged out", "user_id", identity.ID)
	return nil
}

func identityOf(u *models.User) token.Identity {
	return token.Identity{ID: u.ID, Email: u.Email, Username: u.Username}
}
