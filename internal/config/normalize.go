package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizeAPI(); err != nil {
		return err
	}
	c.normalizeGeneration()
	if c.Pagination.PageSize <= 0 {
		c.Pagination.PageSize = defaultPageSize
	}
	if c.Batch.PollIntervalSeconds <= 0 {
		c.Batch.PollIntervalSeconds = defaultPollIntervalSeconds
	}
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLogging()
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeoutSeconds <= 0 {
		c.Notifications.RequestTimeoutSeconds = defaultNotifyTimeout
	}
	c.UI.Theme = strings.ToLower(strings.TrimSpace(c.UI.Theme))
	if c.UI.Theme == "" {
		c.UI.Theme = defaultTheme
	}
	return nil
}

func (c *Config) normalizeAPI() error {
	if value, ok := os.LookupEnv("GENSTUDIO_API_URL"); ok && strings.TrimSpace(value) != "" {
		c.API.BaseURL = value
	}
	c.API.BaseURL = strings.TrimRight(strings.TrimSpace(c.API.BaseURL), "/")
	if c.API.BaseURL == "" {
		c.API.BaseURL = defaultAPIBaseURL
	}
	c.API.Token = strings.TrimSpace(c.API.Token)
	if c.API.Token == "" {
		if value, ok := os.LookupEnv("GENSTUDIO_API_TOKEN"); ok {
			c.API.Token = strings.TrimSpace(value)
		}
	}
	if c.API.TimeoutSeconds <= 0 {
		c.API.TimeoutSeconds = defaultAPITimeoutSeconds
	}
	if c.API.ReadRetryAttempts <= 0 {
		c.API.ReadRetryAttempts = defaultReadRetryAttempts
	}
	if c.API.RetryBaseDelayMS < 0 {
		c.API.RetryBaseDelayMS = defaultRetryBaseDelayMS
	}
	if c.API.RetryMaxDelayMS <= 0 {
		c.API.RetryMaxDelayMS = defaultRetryMaxDelayMS
	}
	c.API.UserAgent = strings.TrimSpace(c.API.UserAgent)
	if c.API.UserAgent == "" {
		c.API.UserAgent = defaultUserAgent
	}
	return nil
}

func (c *Config) normalizeGeneration() {
	c.Generation.Model = strings.TrimSpace(c.Generation.Model)
	c.Generation.Size = strings.ToLower(strings.TrimSpace(c.Generation.Size))
	if c.Generation.Size == "" {
		c.Generation.Size = defaultGenerationSize
	}
	c.Generation.Quality = strings.ToLower(strings.TrimSpace(c.Generation.Quality))
	if c.Generation.Quality == "" {
		c.Generation.Quality = defaultGenerationQuality
	}
	if c.Generation.MaxCount <= 0 {
		c.Generation.MaxCount = defaultGenerationMaxCount
	}
	if c.Generation.DefaultCount <= 0 {
		c.Generation.DefaultCount = defaultGenerationCount
	}
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DownloadDir) == "" {
		c.Paths.DownloadDir = defaultDownloadDir
	}
	if c.Paths.DownloadDir, err = expandPath(c.Paths.DownloadDir); err != nil {
		return fmt.Errorf("paths.download_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
