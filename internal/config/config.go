package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// API contains connection settings for the generation service.
type API struct {
	BaseURL           string `toml:"base_url"`
	Token             string `toml:"token"`
	TimeoutSeconds    int    `toml:"timeout_seconds"`
	ReadRetryAttempts int    `toml:"read_retry_attempts"`
	RetryBaseDelayMS  int    `toml:"retry_base_delay_ms"`
	RetryMaxDelayMS   int    `toml:"retry_max_delay_ms"`
	UserAgent         string `toml:"user_agent"`
}

// Generation contains default parameters applied to generation requests.
type Generation struct {
	Model        string  `toml:"model"`
	Size         string  `toml:"size"`
	Quality      string  `toml:"quality"`
	Strength     float64 `toml:"strength"`
	DefaultCount int     `toml:"default_count"`
	MaxCount     int     `toml:"max_count"`
}

// Pagination contains list paging defaults.
type Pagination struct {
	PageSize int `toml:"page_size"`
}

// Batch contains batch job polling settings.
type Batch struct {
	PollIntervalSeconds int `toml:"poll_interval_seconds"`
	WatchTimeoutSeconds int `toml:"watch_timeout_seconds"`
}

// Paths contains local directories used by the CLI.
type Paths struct {
	StateDir    string `toml:"state_dir"`
	DownloadDir string `toml:"download_dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Notifications contains ntfy settings for batch completion alerts.
type Notifications struct {
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// UI contains initial display preferences.
type UI struct {
	Theme       string `toml:"theme"`
	SidebarOpen bool   `toml:"sidebar_open"`
}

// Config encapsulates all configuration values for genstudio.
//
// Configuration sections by subsystem:
//   - API: service base URL, credentials slot, timeout and read retry policy
//   - Generation: default model/size/quality/strength and count limits
//   - Pagination: default page size for list refreshes
//   - Batch: polling cadence for batch job watchers
//   - Paths: journal/lock directory and download target
//   - Logging: log format and level
//   - Notifications: optional ntfy topic for batch completion alerts
//   - UI: initial theme and sidebar state
type Config struct {
	API           API           `toml:"api"`
	Generation    Generation    `toml:"generation"`
	Pagination    Pagination    `toml:"pagination"`
	Batch         Batch         `toml:"batch"`
	Paths         Paths         `toml:"paths"`
	Logging       Logging       `toml:"logging"`
	Notifications Notifications `toml:"notifications"`
	UI            UI            `toml:"ui"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("genstudio.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the local state directory. The download directory
// is created lazily by the download command.
func (c *Config) EnsureDirectories() error {
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		return nil
	}
	if err := os.MkdirAll(c.Paths.StateDir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", c.Paths.StateDir, err)
	}
	return nil
}

// RequestTimeout returns the per-request transport timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

// PollInterval returns the batch watcher polling interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Batch.PollIntervalSeconds) * time.Second
}

// WatchTimeout returns the maximum duration of a batch watch, or zero for no limit.
func (c *Config) WatchTimeout() time.Duration {
	return time.Duration(c.Batch.WatchTimeoutSeconds) * time.Second
}

// RetryBackoff returns the read retry base and maximum delays.
func (c *Config) RetryBackoff() (time.Duration, time.Duration) {
	return time.Duration(c.API.RetryBaseDelayMS) * time.Millisecond,
		time.Duration(c.API.RetryMaxDelayMS) * time.Millisecond
}

// NotifyTimeout returns the ntfy request timeout.
func (c *Config) NotifyTimeout() time.Duration {
	return time.Duration(c.Notifications.RequestTimeoutSeconds) * time.Second
}

// JournalPath returns the SQLite batch job journal location.
func (c *Config) JournalPath() string {
	return filepath.Join(c.Paths.StateDir, "jobs.db")
}

// WatchLockPath returns the lock file guarding batch polling ownership.
func (c *Config) WatchLockPath() string {
	return filepath.Join(c.Paths.StateDir, "watch.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the effective configuration as TOML.
func (c *Config) Encode() (string, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return string(data), nil
}
