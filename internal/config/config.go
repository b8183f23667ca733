// Package config defines the tracker's runtime configuration.
package config

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/kartikbazzad/bunbase/tracker/internal/database"
	pkgconfig "github.com/kartikbazzad/bunbase/tracker/pkg/config"
	"github.com/kartikbazzad/bunbase/tracker/pkg/logger"
)

// EnvPrefix is prepended to every environment override, e.g. TRACKER_DB_HOST.
const EnvPrefix = "TRACKER_"

// MinSecretLength is the shortest accepted JWT signing secret, in bytes.
const MinSecretLength = 32

// JWTConfig controls token signing and lifetimes
type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Issuer     string        `mapstructure:"issuer"`
	AccessTTL  time.Duration `mapstructure:"accessttl"`
	RefreshTTL time.Duration `mapstructure:"refreshttl"`
}

// AuthConfig controls password hashing and refresh behavior
type AuthConfig struct {
	BcryptCost        int  `mapstructure:"bcryptcost"`
	RefreshRevalidate bool `mapstructure:"refreshrevalidate"`
}

// RateLimitConfig bounds the login and register endpoints per client IP
type RateLimitConfig struct {
	PerMinute int `mapstructure:"perminute"`
	Burst     int `mapstructure:"burst"`
}

// AppConfig is the full server configuration
type AppConfig struct {
	Port        int             `mapstructure:"port"`
	Environment string          `mapstructure:"environment"`
	CORSOrigin  string          `mapstructure:"corsorigin"`
	Log         logger.Config   `mapstructure:"log"`
	DB          database.Config `mapstructure:"db"`
	JWT         JWTConfig       `mapstructure:"jwt"`
	Auth        AuthConfig      `mapstructure:"auth"`
	RateLimit   RateLimitConfig `mapstructure:"ratelimit"`
}

// Defaults are applied before the config file and environment.
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		"port":                   8080,
		"environment":            "development",
		"corsorigin":             "*",
		"log.level":              "info",
		"log.format":             "text",
		"db.driver":              database.DriverSQLite,
		"db.path":                "tracker.db",
		"db.host":                "localhost",
		"db.port":                5432,
		"db.user":                "tracker",
		"db.password":            "",
		"db.name":                "tracker",
		"db.sslmode":             "disable",
		"jwt.secret":             "",
		"jwt.issuer":             "tracker",
		"jwt.accessttl":          "1h",
		"jwt.refreshttl":         "24h",
		"auth.bcryptcost":        10,
		"auth.refreshrevalidate": false,
		"ratelimit.perminute":    30,
		"ratelimit.burst":        15,
	}
}

// Load reads defaults, then file (if non-empty), then TRACKER_* variables.
func Load(file string) (*AppConfig, error) {
	var cfg AppConfig
	if err := pkgconfig.Load(EnvPrefix, file, &cfg, Defaults()); err != nil {
		return nil, err
	}
	cfg.Environment = strings.ToLower(strings.TrimSpace(cfg.Environment))
	return &cfg, nil
}

// IsProduction reports whether the server runs in production mode.
func (c *AppConfig) IsProduction() bool {
	return c.Environment == "production"
}

// ValidateJWTSecret checks the signing secret. Outside production a missing
// secret is replaced by a random one, which invalidates tokens on restart.
func (c *AppConfig) ValidateJWTSecret() error {
	if c.JWT.Secret == "" {
		if c.IsProduction() {
			return fmt.Errorf("%sJWT_SECRET must be set in production", EnvPrefix)
		}
		secret, err := GenerateSecret(MinSecretLength)
		if err != nil {
			return err
		}
		c.JWT.Secret = secret
		logger.Warn("generated a JWT secret for development; set " + EnvPrefix + "JWT_SECRET in production")
	}
	if len(c.JWT.Secret) < MinSecretLength {
		return fmt.Errorf("JWT secret must be at least %d bytes (got %d bytes)", MinSecretLength, len(c.JWT.Secret))
	}
	return nil
}

// GenerateSecret returns a URL-safe encoding of n random bytes.
func GenerateSecret(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}
	return base64.URLEncoding.EncodeToString(buf), nil
}
