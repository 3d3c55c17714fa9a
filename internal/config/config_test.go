package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"genstudio/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantState := filepath.Join(tempHome, ".local", "share", "genstudio")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.API.BaseURL != "http://localhost:8080/api/v1" {
		t.Fatalf("unexpected base url: %q", cfg.API.BaseURL)
	}
	if cfg.API.TimeoutSeconds != 30 {
		t.Fatalf("expected 30s timeout, got %d", cfg.API.TimeoutSeconds)
	}
	if cfg.Generation.Size != "1024x1024" || cfg.Generation.Quality != "standard" {
		t.Fatalf("unexpected generation defaults: %+v", cfg.Generation)
	}
	if cfg.Generation.Strength != 0.8 {
		t.Fatalf("expected strength 0.8, got %v", cfg.Generation.Strength)
	}
	if cfg.Pagination.PageSize != 20 {
		t.Fatalf("expected page size 20, got %d", cfg.Pagination.PageSize)
	}
	if !cfg.UI.SidebarOpen || cfg.UI.Theme != "light" {
		t.Fatalf("unexpected ui defaults: %+v", cfg.UI)
	}
	if cfg.API.Token != "" {
		t.Fatalf("expected empty token, got %q", cfg.API.Token)
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "genstudio.toml")

	custom := struct {
		API struct {
			BaseURL        string `toml:"base_url"`
			TimeoutSeconds int    `toml:"timeout_seconds"`
		} `toml:"api"`
		Pagination struct {
			PageSize int `toml:"page_size"`
		} `toml:"pagination"`
		Paths struct {
			StateDir string `toml:"state_dir"`
		} `toml:"paths"`
	}{}
	custom.API.BaseURL = "https://studio.example.com/api/v1/"
	custom.API.TimeoutSeconds = 5
	custom.Pagination.PageSize = 50
	custom.Paths.StateDir = filepath.Join(tempDir, "state")

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
	if cfg.API.BaseURL != "https://studio.example.com/api/v1" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.API.BaseURL)
	}
	if cfg.RequestTimeout().Seconds() != 5 {
		t.Fatalf("unexpected timeout: %v", cfg.RequestTimeout())
	}
	if cfg.Pagination.PageSize != 50 {
		t.Fatalf("unexpected page size: %d", cfg.Pagination.PageSize)
	}
	if cfg.JournalPath() != filepath.Join(tempDir, "state", "jobs.db") {
		t.Fatalf("unexpected journal path: %q", cfg.JournalPath())
	}
	if cfg.Generation.MaxCount != 4 {
		t.Fatalf("expected default max count preserved, got %d", cfg.Generation.MaxCount)
	}
}

func TestEnvFallbacks(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("GENSTUDIO_API_URL", "http://10.0.0.5:9000/api/v1")
	t.Setenv("GENSTUDIO_API_TOKEN", " secret ")
	t.Chdir(t.TempDir())

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.API.BaseURL != "http://10.0.0.5:9000/api/v1" {
		t.Fatalf("expected env base url, got %q", cfg.API.BaseURL)
	}
	if cfg.API.Token != "secret" {
		t.Fatalf("expected env token, got %q", cfg.API.Token)
	}
}

func TestConfigTokenWinsOverEnv(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "genstudio.toml")
	t.Setenv("GENSTUDIO_API_TOKEN", "from-env")
	if err := os.WriteFile(configPath, []byte("[api]\ntoken = \"from-file\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.API.Token != "from-file" {
		t.Fatalf("expected file token, got %q", cfg.API.Token)
	}
}

func TestLoadRejectsMalformedTOML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "broken.toml")
	if err := os.WriteFile(configPath, []byte("[api\nbase_url = "), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil || !strings.Contains(err.Error(), "parse config") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "base_url") {
		t.Fatal("sample config missing api.base_url")
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("sample config is not valid TOML: %v", err)
	}
	if cfg.Generation.Strength != 0.8 {
		t.Fatalf("unexpected sample strength: %v", cfg.Generation.Strength)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"scheme", func(c *config.Config) { c.API.BaseURL = "ftp://host/api" }, "api.base_url"},
		{"host", func(c *config.Config) { c.API.BaseURL = "http:///api" }, "api.base_url"},
		{"size", func(c *config.Config) { c.Generation.Size = "99x99" }, "generation.size"},
		{"strength", func(c *config.Config) { c.Generation.Strength = 1.5 }, "generation.strength"},
		{"count", func(c *config.Config) { c.Generation.DefaultCount = 9 }, "generation.default_count"},
		{"format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"level", func(c *config.Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"theme", func(c *config.Config) { c.UI.Theme = "neon" }, "ui.theme"},
		{"page", func(c *config.Config) { c.Pagination.PageSize = 500 }, "pagination.page_size"},
		{"backoff", func(c *config.Config) { c.API.RetryMaxDelayMS = 1 }, "api.retry_max_delay_ms"},
		{"ntfy", func(c *config.Config) { c.Notifications.NtfyTopic = "my-topic" }, "notifications.ntfy_topic"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestEncodeRoundTripsSections(t *testing.T) {
	cfg := config.Default()
	out, err := cfg.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	for _, section := range []string{"[api]", "[generation]", "[batch]", "[notifications]", "[ui]"} {
		if !strings.Contains(out, section) {
			t.Fatalf("encoded config missing %s:\n%s", section, out)
		}
	}
}
