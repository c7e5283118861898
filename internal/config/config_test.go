// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, duration parsing, and validation

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
store:
  driver: "sqlite"
  path: "./rooms.db"

chat:
  message_limit: 250
  strategy: "round_robin"
  turn_timeout: "45s"

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Store.Driver != DriverSQLite {
		t.Errorf("expected sqlite driver, got %q", cfg.Store.Driver)
	}
	if cfg.Store.Path != "./rooms.db" {
		t.Errorf("unexpected store path %q", cfg.Store.Path)
	}
	if cfg.Chat.MessageLimit != 250 {
		t.Errorf("expected message_limit 250, got %d", cfg.Chat.MessageLimit)
	}
	if cfg.Chat.TurnTimeout != 45*time.Second {
		t.Errorf("expected turn_timeout 45s, got %s", cfg.Chat.TurnTimeout)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("unexpected logging config %+v", cfg.Logging)
	}
}

func TestLoad_DefaultsApply(t *testing.T) {
	path := writeConfig(t, `
store:
  driver: "memory"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Chat.MessageLimit != 100 {
		t.Errorf("expected default message_limit 100, got %d", cfg.Chat.MessageLimit)
	}
	if cfg.Chat.TurnTimeout != 30*time.Second {
		t.Errorf("expected default turn_timeout 30s, got %s", cfg.Chat.TurnTimeout)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_STORE_PATH", "/tmp/expanded.db")

	path := writeConfig(t, `
store:
  driver: "sqlite"
  path: "${TEST_STORE_PATH}"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Store.Path != "/tmp/expanded.db" {
		t.Errorf("expected expanded path, got %q", cfg.Store.Path)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := writeConfig(t, `
store:
  driver: "memory"
chat:
  turn_timeout: "not-a-duration"
`)

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "turn_timeout") {
		t.Fatalf("expected turn_timeout parse error, got %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid memory", func(c *Config) {}, ""},
		{"sqlite without path", func(c *Config) {
			c.Store.Driver = DriverSQLite
			c.Store.Path = ""
		}, "store.path"},
		{"badger without path", func(c *Config) {
			c.Store.Driver = DriverBadger
		}, "store.path"},
		{"unknown driver", func(c *Config) {
			c.Store.Driver = "etcd"
		}, "store.driver"},
		{"negative limit", func(c *Config) {
			c.Chat.MessageLimit = -1
		}, "message_limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
