// Package database opens the configured store and runs its migrations.
package database

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/kartikbazzad/bunbase/tracker/internal/store"
	"github.com/kartikbazzad/bunbase/tracker/internal/store/postgres"
	"github.com/kartikbazzad/bunbase/tracker/internal/store/sqlite"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds database configuration
type Config struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	// Path is the SQLite database file.
	Path string `mapstructure:"path"`
}

func (cfg Config) driver() string {
	d := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if d == "" {
		return DriverSQLite
	}
	return d
}

// DSN builds the postgres:// URL for cfg.
func (cfg Config) DSN() string {
	sslmode := cfg.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	// URL-encode password to handle special characters (/, +, =, etc.)
	encodedPassword := url.QueryEscape(cfg.Password)
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(cfg.User), encodedPassword, cfg.Host, cfg.Port, cfg.Name, url.QueryEscape(sslmode))
}

// Open connects to the configured database. Postgres migrations run first;
// the SQLite store migrates itself on open.
func Open(ctx context.Context, cfg Config) (store.Store, error) {
	switch cfg.driver() {
	case DriverPostgres:
		if err := postgres.Migrate(cfg.DSN()); err != nil {
			return nil, err
		}
		return postgres.Open(ctx, cfg.DSN())
	case DriverSQLite:
		return sqlite.Open(cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Migrate applies pending migrations without keeping a connection open.
func Migrate(cfg Config) error {
	switch cfg.driver() {
	case DriverPostgres:
		return postgres.Migrate(cfg.DSN())
	case DriverSQLite:
		st, err := sqlite.Open(cfg.Path)
		if err != nil {
			return err
		}
		return st.Close()
	default:
		return fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}
