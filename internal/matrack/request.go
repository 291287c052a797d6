package matrack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var (
	ErrServiceBlocked = errors.New("matrack service blocked")
	ErrUnauthorized   = errors.New("matrack rejected credentials")
)

// fallbackBlockTime is applied after a 429 when no usable Retry-After header was sent.
var fallbackBlockTime = 5 * time.Minute

// ErrRateLimited indicates Matrack asked us to back off until BlockedUntil
type ErrRateLimited struct {
	BlockedUntil time.Time
}

func (e *ErrRateLimited) Error() string {
	return fmt.Sprintf("matrack rate limited until %v", e.BlockedUntil)
}

// ErrAPI is a non-2xx response or a response envelope with status=false.
type ErrAPI struct {
	StatusCode int
	Message    string
}

func (e *ErrAPI) Error() string {
	return fmt.Sprintf("matrack API error: %d %s", e.StatusCode, e.Message)
}

// BlockStore persists upstream blocks so that every replica honours them.
type BlockStore interface {
	// MarkServiceBlocked records a hard block signalled by the X-Blocked header.
	// It needs a human to clear it.
	MarkServiceBlocked(ctx context.Context)
	// IsServiceBlocked returns true while a hard block is recorded. Request must
	// return ErrServiceBlocked without calling Matrack when this is true.
	IsServiceBlocked(ctx context.Context) bool

	// MarkTemporarilyBlocked records a 429 back-off until the given time.
	MarkTemporarilyBlocked(ctx context.Context, blockedUntil time.Time)
	// BlockedUntil returns the end of the current back-off, or zero time.
	BlockedUntil(ctx context.Context) time.Time
}

type LatencyRecorder interface {
	// RecordLatency records the latency of a Matrack API request.
	RecordLatency(endpoint string, statusCode int, latency time.Duration)

	// RecordTokenRequest records the outcome of an OAuth token request.
	RecordTokenRequest(grantType string, err error)
}

// requestConfig holds the configuration for a single Matrack API request.
type requestConfig struct {
	path            string
	endpoint        string
	queryParameters map[string]string
	body            io.Reader
	contentType     string
	sensitive       bool
	anonymous       bool
}

// RequestOption defines a functional option for configuring a Matrack API request.
type RequestOption func(*requestConfig)

// WithPath sets the URL path, relative to the base URL.
// The token path is automatically marked as sensitive and anonymous.
func WithPath(path string) RequestOption {
	return func(c *requestConfig) {
		c.path = path
		if path == tokenPath {
			c.sensitive = true
			c.anonymous = true
		}
	}
}

// WithEndpoint sets the label used for logs and metrics. Paths carrying a
// device id would otherwise explode the metric cardinality.
func WithEndpoint(endpoint string) RequestOption {
	return func(c *requestConfig) {
		c.endpoint = endpoint
	}
}

// WithSensitive marks the request as carrying secrets so the error body is redacted in logs.
func WithSensitive() RequestOption {
	return func(c *requestConfig) {
		c.sensitive = true
	}
}

// WithQueryParameters adds or updates query parameters for the request.
func WithQueryParameters(params map[string]string) RequestOption {
	return func(c *requestConfig) {
		if c.queryParameters == nil {
			c.queryParameters = make(map[string]string)
		}
		for k, v := range params {
			c.queryParameters[k] = v
		}
	}
}

func WithUrlEncodedBody(data *url.Values) RequestOption {
	return func(c *requestConfig) {
		c.contentType = "application/x-www-form-urlencoded"
		c.body = strings.NewReader(data.Encode())
	}
}

// Response represents a response from the Matrack API.
type Response struct {
	StatusCode int
}

// Request performs an HTTP request to the Matrack API.
// Unless the request is anonymous it carries a bearer token, fetching or
// refreshing one first when needed. If the service is blocked it returns
// ErrServiceBlocked; during a 429 back-off it returns *ErrRateLimited.
// If target is non-nil and the response is 2xx, the body is decoded into target.
func (c *Client) Request(ctx context.Context, method string, target any, options ...RequestOption) (*Response, error) {
	config := &requestConfig{
		queryParameters: make(map[string]string),
	}
	for _, option := range options {
		option(config)
	}

	// Check for global service block
	if c.blocks != nil && c.blocks.IsServiceBlocked(ctx) {
		slog.Error("matrack.api.request_prevented_by_service_block",
			"component", "matrack_api",
			"event", "api.request.start",
		)
		return nil, ErrServiceBlocked
	}

	if c.blocks != nil {
		if blockedUntil := c.blocks.BlockedUntil(ctx); blockedUntil.After(c.now()) {
			slog.Warn("matrack.api.request_prevented_by_rate_limit",
				"component", "matrack_api",
				"event", "api.request.start",
				"blocked_until", blockedUntil,
			)
			return nil, &ErrRateLimited{blockedUntil}
		}
	}

	endpoint := config.endpoint
	if endpoint == "" {
		endpoint = config.path
	}

	var bearer string
	if !config.anonymous {
		token, err := c.token(ctx)
		if err != nil {
			return nil, err
		}
		bearer = token
	}

	slog.Debug("matrack.api.request",
		"component", "matrack_api",
		"event", "api.request.start",
		"endpoint", endpoint,
		"method", method,
		"path", config.path,
	)

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	u.Path = strings.TrimRight(u.Path, "/") + config.path

	if len(config.queryParameters) > 0 {
		q := u.Query()
		for k, v := range config.queryParameters {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), config.body)
	if err != nil {
		slog.Error("matrack.api.request_creation_failed",
			"component", "matrack_api",
			"event", "api.error",
			"endpoint", endpoint,
			"error", err,
		)
		return nil, err
	}

	if config.contentType != "" {
		req.Header.Set("Content-Type", config.contentType)
	}
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		slog.Error("matrack.api.request_failed",
			"component", "matrack_api",
			"event", "api.error",
			"endpoint", endpoint,
			"error", err,
			"duration_ms", duration.Milliseconds(),
		)
		if c.recorder != nil {
			c.recorder.RecordLatency(endpoint, 0, duration)
		}
		return nil, err
	}
	defer resp.Body.Close()

	if c.recorder != nil {
		c.recorder.RecordLatency(endpoint, resp.StatusCode, duration)
	}

	matrackResponse := &Response{
		StatusCode: resp.StatusCode,
	}

	// Check for X-Blocked header (complete service block by Matrack)
	if blockedHeader := resp.Header.Get("X-Blocked"); blockedHeader != "" {
		slog.Error("matrack.service.blocked",
			"component", "matrack_api",
			"event", "blocked.detected",
			"blocked_header", blockedHeader,
			"severity", "CRITICAL",
			"action_required", "manual_investigation",
			"impact", "all_matrack_api_calls_blocked",
			"endpoint", endpoint,
		)
		if c.blocks != nil {
			c.blocks.MarkServiceBlocked(ctx)
		}
		return matrackResponse, fmt.Errorf("%w: %s", ErrServiceBlocked, blockedHeader)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		blockedUntil := c.parseRetryAfterHeader(resp.Header.Get("Retry-After"))
		if c.blocks != nil {
			c.blocks.MarkTemporarilyBlocked(ctx, blockedUntil)
		}
		slog.Warn("matrack.api.rate_limited",
			"component", "matrack_api",
			"event", "rate_limit.hit",
			"endpoint", endpoint,
			"blocked_until", blockedUntil,
		)
		return matrackResponse, &ErrRateLimited{blockedUntil}
	}

	if resp.StatusCode == http.StatusUnauthorized && !config.anonymous {
		// The token was revoked or expired early; force a fresh grant next time.
		c.invalidateToken()
		slog.Warn("matrack.api.unauthorized",
			"component", "matrack_api",
			"event", "api.unauthorized",
			"endpoint", endpoint,
		)
		return matrackResponse, ErrUnauthorized
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Only read the body if it's an error and we need to log it.
		// SECURITY: Redact response body for sensitive endpoints (e.g. the token endpoint)
		var logBody string
		if config.sensitive {
			logBody = "[REDACTED]"
		} else {
			const maxErrorBody = 4096
			bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			logBody = string(bodyBytes)
		}

		slog.Error("matrack.api.error_response",
			"component", "matrack_api",
			"event", "api.error",
			"endpoint", endpoint,
			"status_code", resp.StatusCode,
			"response_body", logBody,
			"duration_ms", duration.Milliseconds(),
		)
		return matrackResponse, &ErrAPI{StatusCode: resp.StatusCode, Message: logBody}
	}

	if target != nil {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			slog.Error("matrack.api.decode_error",
				"component", "matrack_api",
				"event", "api.error",
				"endpoint", endpoint,
				"error", err,
			)
			return matrackResponse, fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return matrackResponse, nil
}

func (c *Client) parseRetryAfterHeader(str string) time.Time {
	// Only the delay-seconds form is supported.
	retryAfter, err := strconv.Atoi(str)
	if err == nil && retryAfter > 0 {
		return c.now().Add(time.Duration(retryAfter) * time.Second)
	}
	slog.Warn("matrack.api.parse_retry_after_using_default",
		"component", "matrack_api",
		"value", str,
	)
	return c.now().Add(fallbackBlockTime)
}
