package postgres

import (
	"testing"

	"github.com/MfFischer/makersai-studio/internal/config"
)

func TestDSN(t *testing.T) {
	cfg := &config.PostgresConfig{
		Host:     "db.local",
		Port:     5433,
		User:     "makers",
		Password: "secret",
		Database: "makersai",
		SSLMode:  "disable",
	}
	want := "host=db.local port=5433 user=makers password=secret dbname=makersai sslmode=disable"
	if got := DSN(cfg); got != want {
		t.Errorf("DSN = %q, want %q", got, want)
	}
}
