// Package config loads, normalizes, and validates genstudio configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// GENSTUDIO_API_URL and GENSTUDIO_API_TOKEN. The Config type centralizes every
// knob the CLI and the orchestration packages need, from the service base URL
// and read retry policy to batch polling cadence and generation defaults.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
