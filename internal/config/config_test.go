package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"CONFIG_FILE", "PORT", "STORE_DRIVER", "DATABASE_URL", "SQLITE_PATH", "JWT_SECRET",
		"ADMIN_USERNAME", "ADMIN_PASSWORD", "TIMEZONE", "KAFKA_BROKERS", "KAFKA_TOPIC",
		"STRICT_STATUS_FLOW", "SESSION_IDLE_TIMEOUT", "ALLOWED_ORIGINS",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8081" || cfg.StoreDriver != "memory" {
		t.Errorf("got port %s driver %s", cfg.Port, cfg.StoreDriver)
	}
	if !cfg.StrictStatusFlow {
		t.Error("strict status flow should default on")
	}
	if cfg.SessionIdleTimeout != 30*time.Minute {
		t.Errorf("idle timeout: got %v", cfg.SessionIdleTimeout)
	}
	if cfg.DSN() != "" {
		t.Errorf("memory DSN: got %q", cfg.DSN())
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `port: "9000"
store_driver: sqlite
sqlite_path: /tmp/stall.db
timezone: UTC
strict_status_flow: false
session_idle_timeout: 45m
allowed_origins:
  - https://pos.example.com
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "9100")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9100" {
		t.Errorf("env should override file: port %s", cfg.Port)
	}
	if cfg.DSN() != "/tmp/stall.db" {
		t.Errorf("dsn: got %s", cfg.DSN())
	}
	if cfg.StrictStatusFlow {
		t.Error("file should turn strict status flow off")
	}
	if cfg.SessionIdleTimeout != 45*time.Minute {
		t.Errorf("idle timeout: got %v", cfg.SessionIdleTimeout)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "https://pos.example.com" {
		t.Errorf("origins: %v", cfg.AllowedOrigins)
	}
	loc, err := cfg.Location()
	if err != nil || loc.String() != "UTC" {
		t.Errorf("location: %v, %v", loc, err)
	}
}

func TestLoad_EnvParsing(t *testing.T) {
	clearEnv(t)
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, http://b.test ,")
	t.Setenv("STRICT_STATUS_FLOW", "false")
	t.Setenv("SESSION_IDLE_TIMEOUT", "5m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "http://b.test" {
		t.Errorf("origins: %v", cfg.AllowedOrigins)
	}
	if cfg.StrictStatusFlow || cfg.SessionIdleTimeout != 5*time.Minute {
		t.Errorf("got strict=%v idle=%v", cfg.StrictStatusFlow, cfg.SessionIdleTimeout)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"unknown driver", "STORE_DRIVER", "mongo"},
		{"bad bool", "STRICT_STATUS_FLOW", "maybe"},
		{"bad duration", "SESSION_IDLE_TIMEOUT", "soon"},
		{"bad timezone", "TIMEZONE", "Mars/Olympus"},
		{"missing file", "CONFIG_FILE", "/nonexistent/config.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.val)
			if _, err := Load(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoad_UnknownFileField(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("outlets: 3\n"), 0o600)
	t.Setenv("CONFIG_FILE", path)

	if _, err := Load(); err == nil {
		t.Error("expected unknown field to be rejected")
	}
}
