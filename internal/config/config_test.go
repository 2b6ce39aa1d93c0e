package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	t.Setenv("CINEDEX_TEST_KEY", "from-env")
	path := writeConfig(t, `
tmdb:
  api_key: ${CINEDEX_TEST_KEY}
cache:
  backend: memory
  ttl_minutes: 5
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.TMDB.APIKey != "from-env" {
		t.Errorf("APIKey = %q, want from-env", cfg.TMDB.APIKey)
	}
	if cfg.Cache.TTL() != 5*time.Minute {
		t.Errorf("TTL = %v, want 5m", cfg.Cache.TTL())
	}
	// Untouched sections keep their defaults.
	if cfg.Server.Addr != ":8080" {
		t.Errorf("Server.Addr = %q, want :8080", cfg.Server.Addr)
	}
	if cfg.TMDB.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", cfg.TMDB.MaxAttempts)
	}
	if cfg.Refresh.RunOnStartup == nil || !*cfg.Refresh.RunOnStartup {
		t.Error("RunOnStartup should default to true")
	}
}

func TestLoad_MissingAPIKey(t *testing.T) {
	t.Setenv(APIKeyEnv, "")

	testCases := []struct {
		name string
		body string
	}{
		{"empty", "tmdb:\n  api_key: \"\"\n"},
		{"unset variable", "tmdb:\n  api_key: ${CINEDEX_DEFINITELY_UNSET}\n"},
		{"placeholder", "tmdb:\n  api_key: your_api_key_here\n"},
		{"whitespace", "tmdb:\n  api_key: \"   \"\n"},
		{"no tmdb section", "server:\n  addr: \":9000\"\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			if !errors.Is(err, ErrMissingAPIKey) {
				t.Errorf("Load() error = %v, want ErrMissingAPIKey", err)
			}
		})
	}
}

func TestLoad_APIKeyFallsBackToEnv(t *testing.T) {
	t.Setenv(APIKeyEnv, "env-key")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}
	if cfg.TMDB.APIKey != "env-key" {
		t.Errorf("APIKey = %q, want env-key", cfg.TMDB.APIKey)
	}

	// The file wins when it sets a key.
	cfg, err = Load(writeConfig(t, "tmdb:\n  api_key: file-key\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.TMDB.APIKey != "file-key" {
		t.Errorf("APIKey = %q, want file-key", cfg.TMDB.APIKey)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	t.Setenv(APIKeyEnv, "k")

	testCases := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"unknown backend", "cache:\n  backend: memcached\n", "cache.backend must be one of"},
		{"sqlite without path", "cache:\n  backend: sqlite\n", "cache.sqlite_path is required"},
		{"redis without addr", "cache:\n  backend: redis\n", "cache.redis_addr is required"},
		{"zero ttl", "cache:\n  ttl_minutes: 0\n", "cache.ttl_minutes must be greater than 0"},
		{"bad log level", "logging:\n  level: verbose\n", "logging.level must be one of"},
		{"bad base url", "tmdb:\n  base_url: not a url\n", "tmdb.base_url must be a valid URL"},
		{"refresh without interval", "refresh:\n  enabled: true\n  interval_minutes: 0\n", "refresh.interval_minutes is required"},
		{"empty category", "refresh:\n  categories: [top_rated, \"\"]\n", "refresh.categories[1] is required"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			if err == nil {
				t.Fatal("Load() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("Load() error = %q, want it to contain %q", err, tc.wantErr)
			}
		})
	}
}

func TestLoad_FileErrors(t *testing.T) {
	t.Setenv(APIKeyEnv, "k")

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := Load(writeConfig(t, "tmdb: [unterminated")); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestLoad_NormalizesLogging(t *testing.T) {
	t.Setenv(APIKeyEnv, "k")

	cfg, err := Load(writeConfig(t, "logging:\n  level: DEBUG\n  format: JSON\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v, want debug/json", cfg.Logging)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	got, err := ExpandHome("~/cache/cinedex.db")
	if err != nil {
		t.Fatalf("ExpandHome() error = %v", err)
	}
	if want := filepath.Join(home, "cache/cinedex.db"); got != want {
		t.Errorf("ExpandHome() = %q, want %q", got, want)
	}

	if got, _ := ExpandHome("/abs/path"); got != "/abs/path" {
		t.Errorf("ExpandHome(abs) = %q", got)
	}
}
