package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/kartikbazzad/bunbase/tracker/internal/models"
	"github.com/kartikbazzad/bunbase/tracker/internal/store"
	apperrors "github.com/kartikbazzad/bunbase/tracker/pkg/errors"
)

// CredentialStore is the lookup the Verifier needs.
type CredentialStore interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// Verifier checks an email/password pair. Unknown emails and wrong
// passwords fail the same way and cost one hash comparison each.
type Verifier struct {
	users  CredentialStore
	hasher PasswordHasher
	logger *slog.Logger

	dummyOnce sync.Once
	dummyHash string
}

// NewVerifier creates a Verifier.
func NewVerifier(users CredentialStore, hasher PasswordHasher, logger *slog.Logger) *Verifier {
	return &Verifier{users: users, hasher: hasher, logger: logger}
}

// Verify returns the user owning email if password matches.
func (v *Verifier) Verify(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.TrimSpace(email)
	user, err := v.users.GetUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		// Spend the same work as a real comparison.
		_ = v.hasher.Compare(v.dummy(), password)
		return nil, apperrors.CredentialMismatch()
	}

	if err := v.hasher.Compare(user.PasswordHash, password); err != nil {
		if !errors.Is(err, ErrPasswordMismatch) {
			v.logger.Error("password comparison failed", "user_id", user.ID, "error", err)
		}
		return nil, apperrors.CredentialMismatch()
	}
	return user, nil
}

func (v *Verifier) dummy() string {
	v.dummyOnce.Do(func() {
		hash, err := v.hasher.Hash("tracker-dummy-password")
		if err != nil {
			v.logger.Error("failed to prepare dummy hash", "error", err)
			return
		}
		v.dummyHash = hash
	})
	return v.dummyHash
}
