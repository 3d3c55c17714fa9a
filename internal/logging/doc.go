// Package logging assembles structured slog loggers and formatting helpers used
// across genstudio.
//
// It owns the console/JSON handlers, centralizes level and output plumbing,
// and carries request correlation identifiers through context so transport
// calls and orchestration log lines share the same correlation_id. A no-op
// logger is provided for tests and wiring code that cannot fail.
//
// Command output goes to stdout; logs default to stderr so JSON output stays
// machine readable.
package logging
