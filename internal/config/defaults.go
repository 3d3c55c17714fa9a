package config

const (
	defaultConfigPath          = "~/.config/genstudio/config.toml"
	defaultAPIBaseURL          = "http://localhost:8080/api/v1"
	defaultAPITimeoutSeconds   = 30
	defaultReadRetryAttempts   = 3
	defaultRetryBaseDelayMS    = 500
	defaultRetryMaxDelayMS     = 4000
	defaultUserAgent           = "genstudio/dev"
	defaultGenerationSize      = "1024x1024"
	defaultGenerationQuality   = "standard"
	defaultGenerationStrength  = 0.8
	defaultGenerationCount     = 1
	defaultGenerationMaxCount  = 4
	defaultPageSize            = 20
	defaultPollIntervalSeconds = 3
	defaultStateDir            = "~/.local/share/genstudio"
	defaultDownloadDir         = "~/Pictures/genstudio"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultTheme               = "light"
	defaultNotifyTimeout       = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		API: API{
			BaseURL:           defaultAPIBaseURL,
			TimeoutSeconds:    defaultAPITimeoutSeconds,
			ReadRetryAttempts: defaultReadRetryAttempts,
			RetryBaseDelayMS:  defaultRetryBaseDelayMS,
			RetryMaxDelayMS:   defaultRetryMaxDelayMS,
			UserAgent:         defaultUserAgent,
		},
		Generation: Generation{
			Size:         defaultGenerationSize,
			Quality:      defaultGenerationQuality,
			Strength:     defaultGenerationStrength,
			DefaultCount: defaultGenerationCount,
			MaxCount:     defaultGenerationMaxCount,
		},
		Pagination: Pagination{
			PageSize: defaultPageSize,
		},
		Batch: Batch{
			PollIntervalSeconds: defaultPollIntervalSeconds,
		},
		Paths: Paths{
			StateDir:    defaultStateDir,
			DownloadDir: defaultDownloadDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNotifyTimeout,
		},
		UI: UI{
			Theme:       defaultTheme,
			SidebarOpen: true,
		},
	}
}
