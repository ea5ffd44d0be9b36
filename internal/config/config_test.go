// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, duration parsing and defaults

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
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
server:
  http_addr: "0.0.0.0:8080"

database:
  path: "./test.db"

auth:
  jwt_secret: "test-secret"
  cache_ttl: "2m"
  cache_size: 500
  cache_backend: "redis"

redis:
  enabled: true
  addr: "localhost:6379"
  db: 1

webhooks:
  timeout: "750ms"

email:
  host: "smtp.example.com"
  port: "587"
  from: "noreply@example.com"

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.HTTPAddr != "0.0.0.0:8080" {
		t.Errorf("http_addr = %q, want 0.0.0.0:8080", cfg.Server.HTTPAddr)
	}
	if cfg.Auth.CacheTTL != 2*time.Minute {
		t.Errorf("cache_ttl = %v, want 2m", cfg.Auth.CacheTTL)
	}
	if cfg.Auth.CacheSize != 500 {
		t.Errorf("cache_size = %d, want 500", cfg.Auth.CacheSize)
	}
	if cfg.Webhooks.Timeout != 750*time.Millisecond {
		t.Errorf("webhook timeout = %v, want 750ms", cfg.Webhooks.Timeout)
	}
	if cfg.Redis.DB != 1 {
		t.Errorf("redis db = %d, want 1", cfg.Redis.DB)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("logging format = %q, want json", cfg.Logging.Format)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("SHOUTBOX_TEST_SECRET", "expanded-secret")

	configPath := writeConfig(t, `
database:
  path: "./test.db"
auth:
  jwt_secret: "${SHOUTBOX_TEST_SECRET}"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Auth.JWTSecret != "expanded-secret" {
		t.Errorf("jwt_secret = %q, want expanded-secret", cfg.Auth.JWTSecret)
	}
}

func TestLoad_Defaults(t *testing.T) {
	configPath := writeConfig(t, `
database:
  path: "./test.db"
auth:
  jwt_secret: "s"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.HTTPAddr != ":8080" {
		t.Errorf("default http_addr = %q, want :8080", cfg.Server.HTTPAddr)
	}
	if cfg.Auth.CacheTTL != 5*time.Minute {
		t.Errorf("default cache_ttl = %v, want 5m", cfg.Auth.CacheTTL)
	}
	if cfg.Auth.CacheBackend != "memory" {
		t.Errorf("default cache_backend = %q, want memory", cfg.Auth.CacheBackend)
	}
	if cfg.Webhooks.Timeout != 500*time.Millisecond {
		t.Errorf("default webhook timeout = %v, want 500ms", cfg.Webhooks.Timeout)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	cases := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing database path",
			content: "auth:\n  jwt_secret: s\n",
			wantErr: "database.path",
		},
		{
			name:    "missing jwt secret",
			content: "database:\n  path: ./t.db\n",
			wantErr: "jwt_secret",
		},
		{
			name:    "redis cache without redis",
			content: "database:\n  path: ./t.db\nauth:\n  jwt_secret: s\n  cache_backend: redis\n",
			wantErr: "redis.enabled",
		},
		{
			name:    "bad cache backend",
			content: "database:\n  path: ./t.db\nauth:\n  jwt_secret: s\n  cache_backend: memcached\n",
			wantErr: "cache_backend",
		},
		{
			name:    "redis enabled without addr",
			content: "database:\n  path: ./t.db\nauth:\n  jwt_secret: s\nredis:\n  enabled: true\n",
			wantErr: "redis.addr",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestLoad_BadDuration(t *testing.T) {
	configPath := writeConfig(t, `
database:
  path: "./test.db"
auth:
  jwt_secret: "s"
  cache_ttl: "not-a-duration"
`)

	if _, err := Load(configPath); err == nil {
		t.Fatal("expected duration parse error, got nil")
	}
}
