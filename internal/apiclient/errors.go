package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// TransportError reports a network failure, a timeout, or a non-2xx response.
// Status is zero when no HTTP response was received. ServerMessage is set only
// when the failing response carried an envelope.
type TransportError struct {
	Status        int
	Message       string
	ServerMessage string
	RetryAfter    time.Duration
	Err           error
}

func (e *TransportError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Status > 0 {
		return fmt.Sprintf("http %d: %s", e.Status, e.Message)
	}
	return e.Message
}

func (e *TransportError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Timeout reports whether the request exceeded the client timeout.
func (e *TransportError) Timeout() bool {
	return e != nil && e.Status == 0 && e.Message == timeoutMessage
}

// ApplicationError is an envelope with success=false.
type ApplicationError struct {
	Message string
	Detail  string
}

func (e *ApplicationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Detail != "" && e.Detail != e.Message {
		return fmt.Sprintf("%s: %s", e.Message, e.Detail)
	}
	return e.Message
}

// SchemaError reports a response body that does not match the expected shape.
type SchemaError struct {
	Reason string
	Err    error
}

func (e *SchemaError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid response: %s: %v", e.Reason, e.Err)
	}
	return "invalid response: " + e.Reason
}

func (e *SchemaError) Unwrap() error { return e.Err }

const timeoutMessage = "timeout"

// IsRetryable reports whether a read may be retried: timeouts, network
// failures, 408, 429 and 5xx. Caller cancellation and schema errors are final.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var schemaErr *SchemaError
	if errors.As(err, &schemaErr) {
		return false
	}
	var te *TransportError
	if !errors.As(err, &te) {
		return false
	}
	switch {
	case te.Status == 0:
		return true
	case te.Status == http.StatusRequestTimeout,
		te.Status == http.StatusTooManyRequests,
		te.Status >= http.StatusInternalServerError:
		return true
	default:
		return false
	}
}

// IsUnavailable reports whether the service could not be reached at all.
func IsUnavailable(err error) bool {
	var te *TransportError
	if !errors.As(err, &te) {
		return false
	}
	return te.Status == 0 && !errors.Is(err, context.Canceled)
}

// StatusCode extracts the HTTP status from err, or zero.
func StatusCode(err error) int {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Status
	}
	return 0
}

func statusMessage(code int) string {
	text := strings.ToLower(http.StatusText(code))
	if text == "" {
		return fmt.Sprintf("status %d", code)
	}
	return text
}
