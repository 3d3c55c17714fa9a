// Package notifications pushes batch job outcomes to ntfy.
//
// NewService returns a no-op notifier when no topic is configured, so callers
// can notify unconditionally. Messages are plain text with Title, Tags and
// Priority headers; failed jobs are sent with high priority.
package notifications
