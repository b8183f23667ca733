package database

import (
	"context"
	"path/filepath"
	"testing"
)

func TestDSN(t *testing.T) {
	cfg := Config{Host: "db", Port: 5432, User: "tracker", Password: "p@ss/w+rd", Name: "tracker"}
	want := "postgres://tracker:p%40ss%2Fw%2Brd@db:5432/tracker?sslmode=disable"
	if got := cfg.DSN(); got != want {
		t.Errorf("DSN = %q, want %q", got, want)
	}
	cfg.SSLMode = "require"
	if got := cfg.DSN(); got != "postgres://tracker:p%40ss%2Fw%2Brd@db:5432/tracker?sslmode=require" {
		t.Errorf("DSN = %q", got)
	}
}

func TestOpen_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracker.db")
	if err := Migrate(Config{Driver: "SQLite", Path: path}); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	st, err := Open(context.Background(), Config{Path: path})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	projects, err := st.ListProjectsForUser(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("ListProjectsForUser: %v", err)
	}
	if len(projects) != 0 {
		t.Errorf("projects = %v", projects)
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), Config{Driver: "oracle"}); err == nil {
		t.Error("expected error for unknown driver")
	}
	if err := Migrate(Config{Driver: "oracle"}); err == nil {
		t.Error("expected error for unknown driver")
	}
}
