package token

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	apperrors "github.com/kartikbazzad/bunbase/tracker/pkg/errors"
)

// MinKeyLength is the shortest accepted HMAC signing key, in bytes.
const MinKeyLength = 32

// Kind tells access and refresh tokens apart. It travels in the token_type claim.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Claims is the payload of every token this service signs.
type Claims struct {
	UserID   string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Kind     Kind   `json:"token_type,omitempty"`
	jwt.RegisteredClaims
}

// Codec signs and parses HS256 tokens with a single process-wide key.
type Codec struct {
	key    []byte
	parser *jwt.Parser
}

// NewCodec copies key; it must be at least MinKeyLength bytes.
func NewCodec(key []byte) (*Codec, error) {
	if len(key) < MinKeyLength {
		return nil, fmt.Errorf("signing key must be at least %d bytes (got %d bytes)", MinKeyLength, len(key))
	}
	return &Codec{
		key: append([]byte(nil), key...),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
			jwt.WithStrictDecoding(),
		),
	}, nil
}

// Encode signs claims.
func (c *Codec) Encode(claims *Claims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Decode checks structure, algorithm and signature. Time-based claims are
// left to the caller. Every failure is an InvalidToken error.
func (c *Codec) Decode(raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, apperrors.InvalidToken("token is required", nil)
	}

	var claims Claims
	parsed, err := c.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return c.key, nil
	})
	if err != nil {
		return nil, mapJWTError(err)
	}
	if !parsed.Valid {
		return nil, apperrors.InvalidToken("token is invalid", nil)
	}
	return &claims, nil
}

func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return apperrors.InvalidToken("token signature is invalid", err)
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return apperrors.InvalidToken("token alg is invalid", err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return apperrors.InvalidToken("token is malformed", err)
	default:
		return apperrors.InvalidToken("token is invalid", err)
	}
}
