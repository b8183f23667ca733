package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	apperrors "github.com/kartikbazzad/bunbase/tracker/pkg/errors"
)

const (
	DefaultAccessTTL  = 3600 * time.Second
	DefaultRefreshTTL = 86400 * time.Second
)

// Identity is what a verified token proves about its bearer.
type Identity struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// Pair is the result of a login or refresh.
type Pair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	ExpiresIn        int64     `json:"expires_in"`
	IssuedAt         time.Time `json:"issued_at"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// Config controls token lifetimes. Zero values fall back to the defaults.
type Config struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Issuer     string
	Now        func() time.Time
}

// Service issues, verifies and refreshes stateless bearer tokens. It holds
// only read-only state and is safe for concurrent use.
type Service struct {
	codec      *Codec
	accessTTL  time.Duration
	refreshTTL time.Duration
	issuer     string
	now        func() time.Time
}

// NewService creates a token Service over codec.
func NewService(codec *Codec, cfg Config) *Service {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		codec:      codec,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		issuer:     cfg.Issuer,
		now:        cfg.Now,
	}
}

// AccessTTL is the lifetime of issued access tokens.
func (s *Service) AccessTTL() time.Duration { return s.accessTTL }

// Issue signs an access/refresh pair for identity.
func (s *Service) Issue(identity Identity) (*Pair, error) {
	if identity.ID == "" || identity.Email == "" || identity.Username == "" {
		return nil, fmt.Errorf("cannot issue token for incomplete identity")
	}

	iat := s.now().UTC().Truncate(time.Second)
	access, accessExp, err := s.sign(identity, KindAccess, iat, s.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := s.sign(identity, KindRefresh, iat, s.refreshTTL)
	if err != nil {
		return nil, err
	}

	return &Pair{
		AccessToken:      access,
		RefreshToken:     refresh,
		TokenType:        "Bearer",
		ExpiresIn:        int64(s.accessTTL / time.Second),
		IssuedAt:         iat,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (s *Service) sign(identity Identity, kind Kind, iat time.Time, ttl time.Duration) (string, time.Time, error) {
	exp := iat.Add(ttl)
	claims := &Claims{
		UserID:   identity.ID,
		Email:    identity.Email,
		Username: identity.Username,
		Kind:     kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.Email,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(iat),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := s.codec.Encode(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Verify checks an access token and returns the identity it carries.
func (s *Service) Verify(raw string) (*Identity, error) {
	claims, err := s.verify(raw, KindAccess)
	if err != nil {
		return nil, err
	}
	return claims.identity(), nil
}

// VerifyRefresh checks a refresh token and returns the identity it carries.
func (s *Service) VerifyRefresh(raw string) (*Identity, error) {
	claims, err := s.verify(raw, KindRefresh)
	if err != nil {
		return nil, err
	}
	return claims.identity(), nil
}

// Refresh exchanges a valid refresh token for a new pair. The identity is
// taken from the presented claims; no store is consulted.
func (s *Service) Refresh(raw string) (*Pair, error) {
	identity, err := s.VerifyRefresh(raw)
	if err != nil {
		return nil, err
	}
	return s.Issue(*identity)
}

// Inspect returns the claims of a correctly signed token without checking
// kind or expiry.
func (s *Service) Inspect(raw string) (*Claims, error) {
	return s.codec.Decode(raw)
}

func (s *Service) verify(raw string, want Kind) (*Claims, error) {
	claims, err := s.codec.Decode(raw)
	if err != nil {
		return nil, err
	}
	if err := claims.requireShape(); err != nil {
		return nil, err
	}
	if s.issuer != "" && claims.Issuer != s.issuer {
		return nil, apperrors.InvalidToken("token issuer mismatch", nil)
	}
	if claims.Kind != want {
		return nil, apperrors.New(apperrors.KindTokenKindMismatch,
			fmt.Sprintf("expected %s token, got %s token", want, claims.Kind), nil)
	}
	if s.now().After(claims.ExpiresAt.Time) {
		return nil, apperrors.ExpiredToken(fmt.Sprintf("%s token expired", want))
	}
	return claims, nil
}

func (c *Claims) requireShape() error {
	missing := ""
	switch {
	case c.UserID == "":
		missing = "id"
	case c.Email == "":
		missing = "email"
	case c.Username == "":
		missing = "username"
	case c.Subject == "":
		missing = "sub"
	case c.IssuedAt == nil:
		missing = "iat"
	case c.ExpiresAt == nil:
		missing = "exp"
	case c.Kind == "":
		missing = "token_type"
	}
	if missing != "" {
		return apperrors.InvalidToken(fmt.Sprintf("token claim %s is required", missing), nil)
	}
	if c.Subject != c.Email {
		return apperrors.InvalidToken("token subject does not match email", nil)
	}
	return nil
}

func (c *Claims) identity() *Identity {
	return &Identity{ID: c.UserID, Email: c.Email, Username: c.Username}
}
