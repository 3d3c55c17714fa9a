package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"genstudio/internal/api"
	"genstudio/internal/config"
	"genstudio/internal/logging"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "genstudio"
	requestIDHeader  = "X-Request-ID"
)

// Config captures the runtime settings required to reach the service.
type Config struct {
	BaseURL   string
	Token     string
	UserAgent string
	Timeout   time.Duration
}

// ConfigFrom maps application configuration onto client settings.
func ConfigFrom(cfg *config.Config) Config {
	if cfg == nil {
		return Config{}
	}
	return Config{
		BaseURL:   cfg.API.BaseURL,
		Token:     cfg.API.Token,
		UserAgent: cfg.API.UserAgent,
		Timeout:   cfg.RequestTimeout(),
	}
}

// Client issues requests against the generation service and normalizes the
// replies into envelopes. It never retries.
type Client struct {
	base       *url.URL
	token      string
	userAgent  string
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLogger attaches a logger for per-request debug lines.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logging.NewComponentLogger(logger, "apiclient")
		}
	}
}

// WithToken overrides the bearer token.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

// New constructs a client for the supplied configuration.
func New(cfg Config, opts ...Option) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, errors.New("apiclient: base url required")
	}
	base, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("apiclient: parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("apiclient: base url %q must be absolute", raw)
	}
	base.RawQuery = ""
	base.Fragment = ""

	client := &Client{
		base:       base,
		token:      strings.TrimSpace(cfg.Token),
		userAgent:  strings.TrimSpace(cfg.UserAgent),
		timeout:    cfg.Timeout,
		httpClient: &http.Client{},
		logger:     logging.NewNop(),
	}
	if client.timeout <= 0 {
		client.timeout = defaultTimeout
	}
	if client.userAgent == "" {
		client.userAgent = defaultUserAgent
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// BaseURL returns the service root every path is resolved against.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Request performs one call and returns the decoded envelope. Non-2xx replies,
// network failures and timeouts are returned as *TransportError; bodies that
// are not envelopes produce a *TransportError wrapping *SchemaError.
// An envelope with success=false is returned without error.
func (c *Client) Request(ctx context.Context, method, path string, body any, query url.Values) (api.Envelope, error) {
	resp, cancel, err := c.roundTrip(ctx, method, path, body, query)
	if err != nil {
		return api.Envelope{}, err
	}
	defer cancel()
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return api.Envelope{}, c.transportFailure(ctx, err)
	}

	env, schemaErr := parseEnvelope(payload)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		te := &TransportError{Status: resp.StatusCode, Message: statusMessage(resp.StatusCode)}
		if schemaErr == nil {
			te.Message = firstNonEmpty(env.Message, env.Error, te.Message)
			te.ServerMessage = firstNonEmpty(env.Message, env.Error)
			if env.Error != "" && env.Error != te.Message {
				te.Err = &ApplicationError{Message: te.Message, Detail: env.Error}
			}
		}
		te.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
		return api.Envelope{}, te
	}
	if schemaErr != nil {
		return api.Envelope{}, &TransportError{Status: resp.StatusCode, Message: schemaErr.Error(), Err: schemaErr}
	}
	return env, nil
}

// Download streams a binary endpoint into w and returns the byte count and
// the response content type.
func (c *Client) Download(ctx context.Context, path string, w io.Writer) (int64, string, error) {
	resp, cancel, err := c.roundTrip(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return 0, "", err
	}
	defer cancel()
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		te := &TransportError{Status: resp.StatusCode, Message: statusMessage(resp.StatusCode)}
		if env, perr := parseEnvelope(payload); perr == nil {
			te.Message = firstNonEmpty(env.Message, env.Error, te.Message)
			te.ServerMessage = firstNonEmpty(env.Message, env.Error)
		}
		return 0, "", te
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, "", c.transportFailure(ctx, err)
	}
	return n, resp.Header.Get("Content-Type"), nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body any, query url.Values) (*http.Response, context.CancelFunc, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, requestID := logging.EnsureRequestID(ctx)
	endpoint := c.endpoint(path, query)

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, nil, fmt.Errorf("apiclient: encode body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	req, err := http.NewRequestWithContext(callCtx, method, endpoint, reader)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("apiclient: new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(requestIDHeader, requestID)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	logger := logging.WithContext(ctx, c.logger)
	if err != nil {
		cancel()
		failure := c.transportFailure(ctx, err)
		logger.Debug("request failed",
			logging.String("method", method),
			logging.String("path", path),
			logging.Duration("duration", time.Since(start)),
			logging.Error(failure),
		)
		return nil, nil, failure
	}
	logger.Debug("request completed",
		logging.String("method", method),
		logging.String("path", path),
		logging.Int(logging.FieldHTTPStatus, resp.StatusCode),
		logging.Duration("duration", time.Since(start)),
	)
	return resp, cancel, nil
}

// endpoint joins an already-escaped path onto the base URL.
func (c *Client) endpoint(path string, query url.Values) string {
	target := strings.TrimRight(c.base.String(), "/") + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	return target
}

// transportFailure maps a client-side error onto TransportError. The parent
// context decides between caller cancellation and the client's own timeout.
func (c *Client) transportFailure(parent context.Context, err error) error {
	if parent != nil && parent.Err() != nil {
		return &TransportError{Message: parent.Err().Error(), Err: parent.Err()}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TransportError{Message: timeoutMessage, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TransportError{Message: timeoutMessage, Err: err}
	}
	return &TransportError{Message: err.Error(), Err: err}
}

// parseEnvelope validates that payload is a JSON object with a boolean
// success and a string message before decoding it.
func parseEnvelope(payload []byte) (api.Envelope, *SchemaError) {
	var env api.Envelope
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return env, &SchemaError{Reason: "empty body"}
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return env, &SchemaError{Reason: "body is not a JSON object", Err: err}
	}
	rawSuccess, ok := fields["success"]
	if !ok {
		return env, &SchemaError{Reason: "missing success"}
	}
	if err := json.Unmarshal(rawSuccess, &env.Success); err != nil {
		return env, &SchemaError{Reason: "success is not a boolean", Err: err}
	}
	rawMessage, ok := fields["message"]
	if !ok {
		return env, &SchemaError{Reason: "missing message"}
	}
	if err := json.Unmarshal(rawMessage, &env.Message); err != nil {
		return env, &SchemaError{Reason: "message is not a string", Err: err}
	}
	if rawErr, ok := fields["error"]; ok && string(rawErr) != "null" {
		if err := json.Unmarshal(rawErr, &env.Error); err != nil {
			return env, &SchemaError{Reason: "error is not a string", Err: err}
		}
	}
	if data, ok := fields["data"]; ok {
		env.Data = data
	}
	return env, nil
}

// Decode unwraps an envelope into T. success=false yields *ApplicationError;
// a missing or null payload yields the zero value.
func Decode[T any](env api.Envelope) (T, error) {
	var out T
	if !env.Success {
		return out, &ApplicationError{Message: env.Message, Detail: env.Error}
	}
	if !env.HasData() {
		return out, nil
	}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return out, &SchemaError{Reason: fmt.Sprintf("decode %T", out), Err: err}
	}
	return out, nil
}

func call[T any](ctx context.Context, c *Client, method, path string, body any, query url.Values) (T, error) {
	env, err := c.Request(ctx, method, path, body, query)
	if err != nil {
		var zero T
		return zero, err
	}
	return Decode[T](env)
}

func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	if when, err := http.ParseTime(value); err == nil {
		if d := time.Until(when); d > 0 {
			return d
		}
	}
	return 0
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
