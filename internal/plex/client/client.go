package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	spoolerrors "github.com/tessro/spool/internal/errors"
	"github.com/tessro/spool/internal/logging"
)

const (
	// DefaultProduct is sent as X-Plex-Product.
	DefaultProduct = "spool"

	// Retry configuration for transient errors on idempotent reads
	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// Client talks to the media server's play-queue and timeline endpoints.
// It holds no queue state.
type Client struct {
	baseURL    string
	token      string
	clientID   string
	product    string
	httpClient *http.Client
	logger     *log.Logger
	retryWait  time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithToken sets the access token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithClientID sets the X-Plex-Client-Identifier header.
func WithClientID(id string) Option {
	return func(c *Client) { c.clientID = id }
}

// WithProduct sets the X-Plex-Product header.
func WithProduct(product string) Option {
	return func(c *Client) { c.product = product }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = logging.Component(l, "client") }
}

// WithRetryWait overrides the base backoff between retries.
func WithRetryWait(d time.Duration) Option {
	return func(c *Client) { c.retryWait = d }
}

// New creates a new media server client.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		product:    DefaultProduct,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logging.Discard(),
		retryWait:  baseRetryWait,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the server base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// get performs a GET and retries transient failures.
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	return c.request(ctx, http.MethodGet, path, params, result, maxRetries)
}

// send performs a single-attempt request. Queue mutations are never
// replayed automatically.
func (c *Client) send(ctx context.Context, method, path string, params url.Values, result interface{}) error {
	return c.request(ctx, method, path, params, result, 0)
}

func (c *Client) request(ctx context.Context, method, path string, params url.Values, result interface{}, retries int) error {
	fullURL := c.baseURL + BuildURL(path, params)
	c.logger.Debug("request", "method", method, "url", fullURL)

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			wait := c.retryWait * time.Duration(1<<(attempt-1)) // exponential backoff
			c.logger.Debug("retrying", "attempt", attempt, "of", retries, "wait", wait, "err", lastErr)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, fullURL, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		c.setHeaders(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%w: %v", spoolerrors.ErrNetworkError, err)
			c.logger.Debug("network error", "err", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}

		c.logger.Debug("response", "status", resp.StatusCode, "url", fullURL)

		if resp.StatusCode >= 500 {
			lastErr = newAPIError(resp.StatusCode, respBody)
			continue
		}

		if resp.StatusCode >= 400 {
			return newAPIError(resp.StatusCode, respBody)
		}

		if result != nil && len(respBody) > 0 {
			if err := json.Unmarshal(respBody, result); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}
		}

		return nil
	}

	if retries == 0 {
		return lastErr
	}
	return fmt.Errorf("request failed after %d retries: %w", retries, lastErr)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Plex-Product", c.product)
	if c.clientID != "" {
		req.Header.Set("X-Plex-Client-Identifier", c.clientID)
	}
	if c.token != "" {
		req.Header.Set("X-Plex-Token", c.token)
	}
}

// APIError represents a non-2xx response from the media server.
type APIError struct {
	Status  int
	Message string
}

func newAPIError(status int, body []byte) *APIError {
	msg := strings.TrimSpace(string(body))
	if msg == "" || len(msg) > 200 {
		msg = http.StatusText(status)
	}
	return &APIError{Status: status, Message: msg}
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.Status, e.Message)
}

// Unwrap maps authorization failures onto the shared sentinel.
func (e *APIError) Unwrap() error {
	if e.Status == http.StatusUnauthorized {
		return spoolerrors.ErrUnauthorized
	}
	return nil
}

// IsNotFound checks if an error is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return spoolerrors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// IsUnauthorized checks if an error is a 401 from the server.
func IsUnauthorized(err error) bool {
	return spoolerrors.Is(err, spoolerrors.ErrUnauthorized)
}

// BuildURL builds a URL with query parameters.
func BuildURL(path string, params url.Values) string {
	if len(params) == 0 {
		return path
	}
	return path + "?" + params.Encode()
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func boolParam(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
