// Package pickapi is the HTTP client for the picking batch server.
package pickapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// SessionHeader carries the client session id so the server can attribute events.
const SessionHeader = "X-Picker-Session"

// Config holds configuration for the batch server client.
type Config struct {
	// BaseURL is the server root, e.g. "http://localhost:8000".
	BaseURL string

	// BatchID is the batch this client displays.
	BatchID string

	// Username and Password enable HTTP basic auth when both are set.
	Username string
	Password string

	// Timeout bounds a single request. Zero means no timeout.
	Timeout time.Duration

	// MaxRetries is the number of extra attempts for failed GET requests.
	MaxRetries int

	// RetryBaseDelay is the base delay for exponential backoff between retries.
	RetryBaseDelay time.Duration

	// RequestsPerSecond and Burst pace outgoing requests. Zero disables pacing.
	RequestsPerSecond float64
	Burst             int

	// SessionID identifies this client. A random id is used when empty.
	SessionID string

	Logger     *slog.Logger
	HTTPClient *http.Client
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(baseURL, batchID string) *Config {
	return &Config{
		BaseURL:           baseURL,
		BatchID:           batchID,
		MaxRetries:        2,
		RetryBaseDelay:    250 * time.Millisecond,
		RequestsPerSecond: 20,
		Burst:             5,
	}
}

// Client talks to one batch on the picking server.
type Client struct {
	config      Config
	base        *url.URL
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	logger      *slog.Logger
}

// NewClient creates a new batch server client.
func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	cfg := *config
	if strings.TrimSpace(cfg.BatchID) == "" {
		return nil, fmt.Errorf("batch id is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url %q must be http or https", cfg.BaseURL)
	}
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Client{
		config:      cfg,
		base:        base,
		httpClient:  httpClient,
		rateLimiter: limiter,
		logger:      cfg.Logger,
	}, nil
}

// BatchID returns the batch this client is bound to.
func (c *Client) BatchID() string {
	return c.config.BatchID
}

// SessionID returns the id sent in SessionHeader.
func (c *Client) SessionID() string {
	return c.config.SessionID
}

// SocketURL returns the realtime endpoint for the batch.
func (c *Client) SocketURL() string {
	u := *c.base
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/batch/" + url.PathEscape(c.config.BatchID)
	u.RawQuery = ""
	return u.String()
}

// SocketHeader returns the headers used for the socket handshake.
func (c *Client) SocketHeader() http.Header {
	h := http.Header{}
	h.Set(SessionHeader, c.config.SessionID)
	if c.config.Username != "" && c.config.Password != "" {
		req := &http.Request{Header: h}
		req.SetBasicAuth(c.config.Username, c.config.Password)
	}
	return h
}

// response is a fully read HTTP response.
type response struct {
	status int
	body   []byte
}

func (r *response) text() string {
	return strings.TrimSpace(string(r.body))
}

type request struct {
	method      string
	path        string // Path plus optional query, relative to the base URL
	body        []byte
	contentType string
}

// resolve joins a server-relative path (with query) onto the base URL.
func (c *Client) resolve(path string) (string, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parse path %q: %w", path, err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(ref.Path, "/")
	u.RawQuery = ref.RawQuery
	return u.String(), nil
}

// do performs a request. GET requests are retried with exponential backoff on
// transport errors and 5xx responses; other methods are attempted once.
func (c *Client) do(ctx context.Context, r request) (*response, error) {
	target, err := c.resolve(r.path)
	if err != nil {
		return nil, err
	}

	attempts := 1
	if r.method == http.MethodGet {
		attempts += c.config.MaxRetries
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := c.config.RetryBaseDelay * time.Duration(1<<uint(attempt-1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		resp, err := c.once(ctx, r, target)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.Code < 500 {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Debug("Request failed", "method", r.method, "path", r.path, "attempt", attempt+1, "error", err)
	}
	return nil, lastErr
}

func (c *Client) once(ctx context.Context, r request, target string) (*response, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	req.Header.Set(SessionHeader, c.config.SessionID)
	if c.config.Username != "" && c.config.Password != "" {
		req.SetBasicAuth(c.config.Username, c.config.Password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		//nolint:errcheck // Ignore error on cleanup
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			Method: r.method,
			Path:   r.path,
			Code:   resp.StatusCode,
			Body:   strings.TrimSpace(string(data)),
		}
	}
	return &response{status: resp.StatusCode, body: data}, nil
}
