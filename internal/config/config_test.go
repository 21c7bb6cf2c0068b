package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "LOG_LEVEL", "ENV", "STORAGE_BACKEND", "TOAST_DWELL", "TOAST_EXIT", "ACTIVITY_MARKS_READ"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Port)
	}

	if cfg.StorageBackend != StorageSQLite {
		t.Errorf("expected sqlite storage, got %s", cfg.StorageBackend)
	}

	if cfg.ToastDwell != 8*time.Second {
		t.Errorf("expected 8s dwell, got %s", cfg.ToastDwell)
	}

	if cfg.ToastExit != 300*time.Millisecond {
		t.Errorf("expected 300ms exit, got %s", cfg.ToastExit)
	}

	if cfg.ActivityMarksRead {
		t.Error("activity panel should not mark notifications read by default")
	}

	if cfg.APIBaseURL() != "http://localhost:8000/api/v1" {
		t.Errorf("unexpected api base url %s", cfg.APIBaseURL())
	}
}

func TestLoad_CustomValues(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("ENV", "production")
	t.Setenv("STORAGE_BACKEND", "redis")
	t.Setenv("TOAST_DWELL", "5s")
	t.Setenv("ACTIVITY_MARKS_READ", "true")
	t.Setenv("API_ORIGIN", "https://api.example.com")
	t.Setenv("RATE_LIMIT_WRITE", "20")
	t.Setenv("RATE_LIMIT_AUTH", "3")
	t.Setenv("RATE_LIMIT_WINDOW", "30s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if cfg.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Port)
	}

	if cfg.Env != "production" {
		t.Errorf("expected env 'production', got %s", cfg.Env)
	}

	if cfg.StorageBackend != StorageRedis {
		t.Errorf("expected redis storage, got %s", cfg.StorageBackend)
	}

	if cfg.ToastDwell != 5*time.Second {
		t.Errorf("expected 5s dwell, got %s", cfg.ToastDwell)
	}

	if !cfg.ActivityMarksRead {
		t.Error("expected ACTIVITY_MARKS_READ to be honoured")
	}

	if cfg.APIBaseURL() != "https://api.example.com/api/v1" {
		t.Errorf("unexpected api base url %s", cfg.APIBaseURL())
	}

	if cfg.RateLimitWrite != 20 || cfg.RateLimitAuth != 3 {
		t.Errorf("expected write 20 and auth 3 budgets, got %d and %d", cfg.RateLimitWrite, cfg.RateLimitAuth)
	}

	if cfg.RateLimitWindow != 30*time.Second {
		t.Errorf("expected 30s rate limit window, got %s", cfg.RateLimitWindow)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"PORT", "eighty"},
		{"STORAGE_BACKEND", "floppy"},
		{"TOAST_DWELL", "soon"},
		{"ACTIVITY_MARKS_READ", "maybe"},
		{"RATE_LIMIT_AUTH", "lots"},
		{"RATE_LIMIT_WINDOW", "a while"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestLoadProviders_MissingFileUsesDefaults(t *testing.T) {
	providers, err := LoadProviders(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if len(providers) != len(DefaultProviders()) {
		t.Errorf("expected %d default providers, got %d", len(DefaultProviders()), len(providers))
	}
}

func TestLoadProviders_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "providers.yaml")
	content := `providers:
  - name: github
    auth_url: https://github.example.com/login/oauth/authorize
    scopes: [repo]
  - name: jenkins
    display_name: Jenkins
    auth_url: https://jenkins.example.com/oauth/authorize
    client_id: jenkins-client
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write providers file: %v", err)
	}
	t.Setenv("GITHUB_CLIENT_ID", "gh-from-env")

	providers, err := LoadProviders(path)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if len(providers) != 2 {
		t.Fatalf("expected 2 providers, got %d", len(providers))
	}
	if providers[0].ClientID != "gh-from-env" {
		t.Errorf("expected client id from env, got %q", providers[0].ClientID)
	}
	if providers[0].DisplayName != "github" {
		t.Errorf("expected display name fallback, got %q", providers[0].DisplayName)
	}
	if providers[1].ClientID != "jenkins-client" {
		t.Errorf("expected file client id, got %q", providers[1].ClientID)
	}
}

func TestLoadProviders_RejectsMissingAuthURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "providers.yaml")
	if err := os.WriteFile(path, []byte("providers:\n  - name: broken\n"), 0o600); err != nil {
		t.Fatalf("write providers file: %v", err)
	}

	if _, err := LoadProviders(path); err == nil {
		t.Error("expected error for provider without auth_url")
	}
}
