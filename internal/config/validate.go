package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var validSizes = map[string]struct{}{
	"256x256":   {},
	"512x512":   {},
	"768x768":   {},
	"1024x1024": {},
	"1024x1792": {},
	"1792x1024": {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateGeneration(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if c.Pagination.PageSize > 100 {
		return errors.New("pagination.page_size must be at most 100")
	}
	if c.Batch.WatchTimeoutSeconds < 0 {
		return errors.New("batch.watch_timeout_seconds must be >= 0")
	}
	switch c.UI.Theme {
	case "light", "dark":
	default:
		return fmt.Errorf("ui.theme: unsupported value %q (use light or dark)", c.UI.Theme)
	}
	return nil
}

func (c *Config) validateAPI() error {
	parsed, err := url.Parse(c.API.BaseURL)
	if err != nil {
		return fmt.Errorf("api.base_url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("api.base_url must use http or https, got %q", c.API.BaseURL)
	}
	if parsed.Host == "" {
		return fmt.Errorf("api.base_url must include a host, got %q", c.API.BaseURL)
	}
	if c.API.ReadRetryAttempts > 10 {
		return errors.New("api.read_retry_attempts must be at most 10")
	}
	if c.API.RetryMaxDelayMS < c.API.RetryBaseDelayMS {
		return errors.New("api.retry_max_delay_ms must be >= api.retry_base_delay_ms")
	}
	return nil
}

func (c *Config) validateGeneration() error {
	if _, ok := validSizes[c.Generation.Size]; !ok {
		return fmt.Errorf("generation.size: unsupported value %q", c.Generation.Size)
	}
	if c.Generation.Strength < 0 || c.Generation.Strength > 1 {
		return errors.New("generation.strength must be between 0 and 1")
	}
	if c.Generation.DefaultCount > c.Generation.MaxCount {
		return errors.New("generation.default_count must not exceed generation.max_count")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	topic := c.Notifications.NtfyTopic
	if topic == "" {
		return nil
	}
	parsed, err := url.Parse(topic)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("notifications.ntfy_topic must be a full http(s) topic URL, got %q", topic)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
