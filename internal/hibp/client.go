package hibp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	seclog "github.com/nao1215/breachscan/internal/log"
	"github.com/nao1215/breachscan/internal/model"
)

const (
	// breachedAccountPath is the endpoint for a single address.
	breachedAccountPath = "/api/v3/breachedaccount/"

	// defaultRetryAfter is used when a 429 response has no usable Retry-After.
	defaultRetryAfter = 1 * time.Second

	// maxBodySize limits how much of a response is read.
	maxBodySize = 4 * 1024 * 1024

	// maxErrorBody limits the body kept in a StatusError.
	maxErrorBody = 512
)

// Sleeper waits for d or until ctx is done, whichever comes first.
// It returns ctx.Err() when interrupted.
type Sleeper func(ctx context.Context, d time.Duration) error

// Client looks up addresses against the breach API.
type Client struct {
	// baseURL is scheme and host, without a trailing slash.
	baseURL string

	// apiKey is sent as the hibp-api-key header.
	apiKey string

	// userAgent is required by the API.
	userAgent string

	// httpClient performs requests. Its Timeout bounds every attempt.
	httpClient *http.Client

	// maxAttempts bounds requests per lookup, including 429 retries.
	maxAttempts int

	// diagnostics receives a raw dump of every response. nil disables it.
	diagnostics io.Writer

	// sleep waits between 429 retries.
	sleep Sleeper

	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API host. Tests point it at an httptest server.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithHTTPClient replaces the HTTP client, e.g. one built by NewProxyHTTPClient.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout of the current HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithMaxAttempts bounds the requests per lookup. Values below 1 are ignored.
func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		if n >= 1 {
			c.maxAttempts = n
		}
	}
}

// WithDiagnostics writes a raw dump of every API response to w.
func WithDiagnostics(w io.Writer) Option {
	return func(c *Client) {
		c.diagnostics = w
	}
}

// WithSleeper replaces the wait used between 429 retries.
func WithSleeper(s Sleeper) Option {
	return func(c *Client) {
		c.sleep = s
	}
}

// WithLogger sets the logger for request events.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a Client for apiKey with the public API defaults.
// Options are applied in order, so WithTimeout should follow WithHTTPClient.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:     "https://haveibeenpwned.com",
		apiKey:      apiKey,
		userAgent:   "breachscan",
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		maxAttempts: 5,
		sleep:       SleepContext,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup returns the breaches recorded for email.
//
// 404 means the address is clean. 429 is retried after Retry-After seconds
// until maxAttempts requests have been made. Every other outcome is
// reported as a failed result; Lookup never panics on bad input and never
// returns an error.
func (c *Client) Lookup(ctx context.Context, email string) model.LookupResult {
	endpoint := c.endpoint(email)

	for attempt := 1; ; attempt++ {
		resp, body, err := c.do(ctx, endpoint)
		if err != nil {
			c.logger.Warn("breach API request failed", "email", email, "attempt", attempt, "error", err)
			return model.NewFailedResult(model.FailureUnreachable, 0, fmt.Errorf("%w: %w", ErrUnreachable, err))
		}
		c.dump(email, attempt, resp, body)
		c.logger.Debug("breach API response",
			"email", email,
			"attempt", attempt,
			"status", resp.StatusCode,
			"bytes", len(body),
		)

		switch resp.StatusCode {
		case http.StatusOK:
			var breaches []model.Breach
			if err := json.Unmarshal(body, &breaches); err != nil {
				return model.NewFailedResult(model.FailureMalformed, resp.StatusCode, fmt.Errorf("%w: %w", ErrMalformed, err))
			}
			return model.NewBreachedResult(breaches)

		case http.StatusNotFound:
			return model.NewCleanResult()

		case http.StatusUnauthorized:
			return model.NewFailedResult(model.FailureUnauthorized, resp.StatusCode, ErrUnauthorized)

		case http.StatusTooManyRequests:
			if attempt >= c.maxAttempts {
				return model.NewFailedResult(model.FailureRateLimited, resp.StatusCode,
					fmt.Errorf("%w after %d attempts", ErrRateLimited, attempt))
			}
			wait := RetryAfter(resp.Header)
			c.logger.Info("rate limited, waiting before retry", "email", email, "attempt", attempt, "wait", wait)
			if err := c.sleep(ctx, wait); err != nil {
				return model.NewFailedResult(model.FailureRateLimited, resp.StatusCode, fmt.Errorf("%w: %w", ErrRateLimited, err))
			}

		default:
			return model.NewFailedResult(model.FailureUnexpectedStatus, resp.StatusCode, &StatusError{
				StatusCode: resp.StatusCode,
				Body:       truncate(string(body), maxErrorBody),
			})
		}
	}
}

func (c *Client) endpoint(email string) string {
	return c.baseURL + breachedAccountPath + url.PathEscape(email) + "?truncateResponse=false"
}

// do sends one request and reads the whole body.
func (c *Client) do(ctx context.Context, endpoint string) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("hibp-api-key", c.apiKey)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp, body, nil
}

// dump writes the diagnostic block for one response.
func (c *Client) dump(email string, attempt int, resp *http.Response, body []byte) {
	if c.diagnostics == nil {
		return
	}

	headers, err := json.MarshalIndent(seclog.MaskHeaders(resp.Header), "", "  ")
	if err != nil {
		headers = []byte("{}")
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "=== %s (attempt %d) ===\n", email, attempt)
	fmt.Fprintf(&buf, "Status: %s\n", resp.Status)
	fmt.Fprintf(&buf, "Headers:\n%s\n", headers)
	fmt.Fprintf(&buf, "Body:\n%s\n\n", body)
	_, _ = c.diagnostics.Write(buf.Bytes()) //nolint:errcheck // diagnostics are best effort
}

// RetryAfter returns the wait requested by a 429 response.
// Missing, unparseable or negative values yield one second.
func RetryAfter(h http.Header) time.Duration {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return defaultRetryAfter
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return defaultRetryAfter
	}
	return time.Duration(secs) * time.Second
}

// SleepContext waits for d unless ctx is done first.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
