// Package notion implements the Notion API client used as the grade record
// store. Each grade category lives in its own Notion database.
package notion

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
	"strconv"
	"strings"
	"time"

	"github.com/gradesbot/gradesbot/internal/domain/grade"
	"github.com/gradesbot/gradesbot/internal/domain/shared"
	"github.com/gradesbot/gradesbot/pkg/circuitbreaker"
	"github.com/gradesbot/gradesbot/pkg/retry"
)

const (
	// DefaultBaseURL is the public Notion API endpoint.
	DefaultBaseURL = "https://api.notion.com"

	// DefaultVersion is the Notion-Version header sent with every request.
	DefaultVersion = "2022-06-28"

	// maxResponseBytes bounds the body read from a single response.
	maxResponseBytes = 4 << 20
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the Notion API client.
type ClientConfig struct {
	// BaseURL is the API base URL, without the /v1 suffix.
	BaseURL string

	// Token is the integration secret.
	Token string

	// Version is the Notion-Version header value.
	Version string

	// Timeout bounds a single HTTP round trip.
	Timeout time.Duration

	// Databases maps each category to its database ID.
	Databases map[grade.Category]string

	// Throttle limits the outgoing request rate.
	Throttle ThrottleConfig

	// Retrier overrides the default retry policy. Used by tests.
	Retrier *retry.Retrier

	// Logger for structured logging
	Logger *slog.Logger
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(token string) ClientConfig {
	return ClientConfig{
		BaseURL:   DefaultBaseURL,
		Token:     token,
		Version:   DefaultVersion,
		Timeout:   10 * time.Second,
		Databases: make(map[grade.Category]string),
		Throttle:  DefaultThrottleConfig(),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client is the Notion API client. It implements grade.Source.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	logger     *slog.Logger
	throttle   *Throttle
	breaker    *circuitbreaker.CircuitBreaker
	retrier    *retry.Retrier
}

var _ grade.Source = (*Client)(nil)

// NewClient creates a new Notion API client.
func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Version == "" {
		config.Version = DefaultVersion
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	logger := config.Logger.With("component", "notion")

	c := &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logger,
		throttle:   NewThrottle(config.Throttle),
	}

	c.breaker = circuitbreaker.NotionBreaker(isUpstreamFailure, func(name string, from, to circuitbreaker.State) {
		logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
	})

	retrier := config.Retrier
	if retrier == nil {
		retrier = retry.NotionRetrier()
	}
	c.retrier = retrier.With(
		retry.WithRetryIf(isRetryable),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			logger.Debug("retrying notion request", "attempt", attempt, "delay", delay, "error", err)
		}),
	)

	return c
}

// ══════════════════════════════════════════════════════════════════════════════
// QUERIES
// ══════════════════════════════════════════════════════════════════════════════

// FindOne returns the first row of the category's database matching filter.
func (c *Client) FindOne(ctx context.Context, category grade.Category, filter grade.Filter) (*grade.Record, error) {
	const op = "FindOne"

	databaseID := c.config.Databases[category]
	if databaseID == "" {
		return nil, shared.NewDomainError("notion", op, shared.ErrInternal,
			"no database configured for category "+string(category))
	}

	start := time.Now()
	resp, err := c.QueryDatabase(ctx, databaseID, QueryRequestDTO{
		Filter:   toFilter(filter),
		PageSize: 1,
	})
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			c.logger.Warn("notion query failed",
				"category", string(category),
				"duration", time.Since(start),
				"error", err,
			)
		}
		return nil, classify(op, category, err)
	}

	c.logger.Debug("notion query",
		"category", string(category),
		"results", len(resp.Results),
		"duration", time.Since(start),
	)

	if len(resp.Results) == 0 {
		return nil, shared.NewDomainError("notion", op, shared.ErrNotFound,
			"no records found in category "+string(category))
	}
	return toRecord(resp.Results[0]), nil
}

// QueryDatabase runs a database query and returns the raw response.
func (c *Client) QueryDatabase(ctx context.Context, databaseID string, req QueryRequestDTO) (*QueryResponseDTO, error) {
	var resp QueryResponseDTO
	path := "/v1/databases/" + databaseID + "/query"
	if err := c.doRequest(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// BreakerState reports the circuit breaker state, for health checks.
func (c *Client) BreakerState() circuitbreaker.State {
	return c.breaker.State()
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// RateLimitError is returned for a 429 answer.
type RateLimitError struct {
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	return "notion rate limit exceeded, retry after " + e.RetryAfter.String()
}

// doRequest performs an HTTP request with throttling, circuit breaking and retries.
func (c *Client) doRequest(ctx context.Context, method, path string, body, result any) error {
	return c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.retrier.Do(ctx, func(ctx context.Context) error {
			if err := c.throttle.Wait(ctx); err != nil {
				return err
			}

			err := c.doSingleRequest(ctx, method, path, body, result)

			var rl *RateLimitError
			if errors.As(err, &rl) {
				c.throttle.Pause(rl.RetryAfter)
			}
			return err
		})
	})
}

// doSingleRequest performs a single HTTP request.
func (c *Client) doSingleRequest(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return retry.Permanent(fmt.Errorf("marshal body: %w", err))
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, bodyReader)
	if err != nil {
		return retry.Permanent(fmt.Errorf("create request: %w", err))
	}

	req.Header.Set("Authorization", "Bearer "+c.config.Token)
	req.Header.Set("Notion-Version", c.config.Version)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := time.Second
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if seconds, err := strconv.Atoi(ra); err == nil {
				retryAfter = time.Duration(seconds) * time.Second
			}
		}
		return &RateLimitError{RetryAfter: retryAfter}
	}

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp.StatusCode, respBody)
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return retry.Permanent(&decodeError{err: err})
		}
	}
	return nil
}

// decodeError marks a 2xx body that is not the expected JSON.
type decodeError struct {
	err error
}

func (e *decodeError) Error() string { return "unmarshal response: " + e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }

// isRetryable reports transient errors worth another attempt.
func isRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var rl *RateLimitError
	if errors.As(err, &rl) {
		return true
	}

	var apiErr *APIErrorDTO
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500 || apiErr.Code == "conflict_error"
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)
}

// isUpstreamFailure reports errors that say Notion itself is unhealthy.
// Client-side cancellations and 4xx answers do not count.
func isUpstreamFailure(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var decodeErr *decodeError
	if errors.As(err, &decodeErr) {
		return false
	}
	var apiErr *APIErrorDTO
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500
	}
	return true
}

// classify maps a transport error to a domain error kind.
func classify(op string, category grade.Category, err error) error {
	msg := "query category " + string(category)

	switch {
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, circuitbreaker.ErrCircuitOpen),
		errors.Is(err, circuitbreaker.ErrTooManyRequests):
		return shared.WrapError("notion", op, shared.ErrUpstreamUnavailable, msg, err)
	}

	var decodeErr *decodeError
	if errors.As(err, &decodeErr) {
		return shared.WrapError("notion", op, shared.ErrInvalidFormat, msg, err)
	}

	var apiErr *APIErrorDTO
	if errors.As(err, &apiErr) && apiErr.Status < 500 {
		return shared.WrapError("notion", op, shared.ErrInternal, msg, err)
	}

	return shared.WrapError("notion", op, shared.ErrUpstreamUnavailable, msg, err)
}
