package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadWithFileDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")

	cfg, err := LoadWithFile("")
	if err != nil {
		t.Fatalf("LoadWithFile: %v", err)
	}
	if cfg.App.Addr() != "0.0.0.0:8080" {
		t.Errorf("Addr() = %q, want %q", cfg.App.Addr(), "0.0.0.0:8080")
	}
	if !cfg.Tickets.StrictAssignment {
		t.Errorf("StrictAssignment should default to true")
	}
	if !cfg.Realtime.AuthorizeRooms {
		t.Errorf("AuthorizeRooms should default to true")
	}
	if cfg.Tickets.RecentLimit != 5 {
		t.Errorf("RecentLimit = %d, want 5", cfg.Tickets.RecentLimit)
	}
	if cfg.Auth.DevTokens {
		t.Errorf("DevTokens should default to false")
	}
}

func TestDevTokensRequireExplicitOptIn(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("APP_ENV", "staging")

	cfg, err := LoadWithFile("")
	if err != nil {
		t.Fatalf("LoadWithFile: %v", err)
	}
	if cfg.Auth.DevTokens {
		t.Fatal("non-production env enabled dev tokens")
	}

	t.Setenv("AUTH_DEV_TOKENS", "true")
	cfg, err = LoadWithFile("")
	if err != nil {
		t.Fatalf("LoadWithFile: %v", err)
	}
	if !cfg.Auth.DevTokens {
		t.Fatal("AUTH_DEV_TOKENS=true ignored")
	}
}

func TestLoadWithFileYAMLOverlayAndEnvPrecedence(t *testing.T) {
	t.Setenv("TEST_PG_HOST", "db.internal")
	t.Setenv("APP_PORT", "9090")
	path := writeFile(t, "config.yaml", `
app:
  port: "7070"
  env: staging
store:
  driver: postgres
postgres:
  dsn: postgres://svc@${TEST_PG_HOST}/tickets
tickets:
  strict_assignment: false
`)

	cfg, err := LoadWithFile(path)
	if err != nil {
		t.Fatalf("LoadWithFile: %v", err)
	}
	if cfg.App.Port != "9090" {
		t.Errorf("Port = %q, want env value %q", cfg.App.Port, "9090")
	}
	if cfg.App.Env != "staging" {
		t.Errorf("Env = %q, want %q", cfg.App.Env, "staging")
	}
	if cfg.Postgres.DSN != "postgres://svc@db.internal/tickets" {
		t.Errorf("DSN = %q", cfg.Postgres.DSN)
	}
	if cfg.Tickets.StrictAssignment {
		t.Errorf("StrictAssignment should be overridden to false")
	}
	if cfg.Postgres.MaxConns != 10 {
		t.Errorf("MaxConns = %d, want untouched default 10", cfg.Postgres.MaxConns)
	}
}

func TestLoadWithFileJSONC(t *testing.T) {
	path := writeFile(t, "config.jsonc", `{
  // local development
  "store": {"driver": "memory", "seed_file": "fixtures.yaml"},
  "realtime": {"redis_relay": true,},
}`)

	cfg, err := LoadWithFile(path)
	if err != nil {
		t.Fatalf("LoadWithFile: %v", err)
	}
	if cfg.Store.Driver != DriverMemory {
		t.Errorf("Driver = %q, want %q", cfg.Store.Driver, DriverMemory)
	}
	if cfg.Store.SeedFile != "fixtures.yaml" {
		t.Errorf("SeedFile = %q", cfg.Store.SeedFile)
	}
	if !cfg.Realtime.RedisRelay {
		t.Errorf("RedisRelay should be true")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"postgres without dsn", func(c *Config) { c.Store.Driver = DriverPostgres }, true},
		{"postgres with dsn", func(c *Config) { c.Store.Driver = DriverPostgres; c.Postgres.DSN = "postgres://x" }, false},
		{"memory", func(c *Config) { c.Store.Driver = DriverMemory }, false},
		{"unknown driver", func(c *Config) { c.Store.Driver = "mongo" }, true},
		{"empty secret", func(c *Config) { c.Store.Driver = DriverMemory; c.Auth.JWTSecret = " " }, true},
		{"zero buffer", func(c *Config) { c.Store.Driver = DriverMemory; c.Realtime.SubscriberBuffer = 0 }, true},
	}
	for _, tc := range cases {
		cfg := Defaults()
		tc.mutate(cfg)
		err := cfg.Validate()
		if (err != nil) != tc.wantErr {
			t.Errorf("%s: Validate() error = %v, wantErr %v", tc.name, err, tc.wantErr)
		}
	}
}
