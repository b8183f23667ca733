package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 8080 || cfg.DB.Driver != "sqlite" || cfg.JWT.AccessTTL != time.Hour || cfg.JWT.RefreshTTL != 24*time.Hour {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.RateLimit.PerMinute != 30 || cfg.Auth.BcryptCost != 10 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	file := filepath.Join(t.TempDir(), "tracker.yaml")
	content := "port: 9000\ndb:\n  driver: postgres\n  host: pg\njwt:\n  accessttl: 30m\n"
	if err := os.WriteFile(file, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TRACKER_DB_HOST", "override")
	t.Setenv("TRACKER_AUTH_REFRESHREVALIDATE", "true")

	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 9000 || cfg.DB.Driver != "postgres" || cfg.DB.Host != "override" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.JWT.AccessTTL != 30*time.Minute || !cfg.Auth.RefreshRevalidate {
		t.Errorf("jwt/auth = %+v %+v", cfg.JWT, cfg.Auth)
	}
}

func TestValidateJWTSecret(t *testing.T) {
	dev := &AppConfig{Environment: "development"}
	if err := dev.ValidateJWTSecret(); err != nil {
		t.Fatalf("dev: %v", err)
	}
	if len(dev.JWT.Secret) < MinSecretLength {
		t.Errorf("generated secret too short: %d", len(dev.JWT.Secret))
	}

	prod := &AppConfig{Environment: "production"}
	if err := prod.ValidateJWTSecret(); err == nil {
		t.Error("production without secret accepted")
	}

	short := &AppConfig{JWT: JWTConfig{Secret: "short"}}
	if err := short.ValidateJWTSecret(); err == nil {
		t.Error("short secret accepted")
	}
}
