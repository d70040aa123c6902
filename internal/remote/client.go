// Package remote is the HTTP transport for the schedule endpoint. It does no
// caching and knows nothing about client state.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/dokzlo13/lightsched/internal/schedule"
)

// DefaultAuthHeader carries the static secret on writes.
const DefaultAuthHeader = "x-custom-auth"

// RequestIDHeader correlates a request with ledger entries and error reports.
const RequestIDHeader = "X-Request-ID"

// maxBodySize bounds how much of a response is read.
const maxBodySize = 1 << 20

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method     string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s schedule: unexpected status %d", e.Method, e.StatusCode)
	}
	return fmt.Sprintf("%s schedule: unexpected status %d: %s", e.Method, e.StatusCode, e.Body)
}

// IsStatus reports whether err is a StatusError.
func IsStatus(err error) bool {
	var se *StatusError
	return errors.As(err, &se)
}

// Options configures a Client.
type Options struct {
	URL          string
	AuthHeader   string
	Token        string
	Timeout      time.Duration
	RateLimitRPS float64
	HTTPClient   *http.Client
}

// Client talks to the schedule endpoint.
type Client struct {
	url        string
	authHeader string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a client. Zero options fall back to defaults.
func NewClient(opts Options) *Client {
	if opts.AuthHeader == "" {
		opts.AuthHeader = DefaultAuthHeader
	}
	if opts.Timeout == 0 {
		opts.Timeout = 15 * time.Second
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimitRPS > 0 {
		burst := int(opts.RateLimitRPS)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), burst)
	}

	return &Client{
		url:        opts.URL,
		authHeader: opts.AuthHeader,
		token:      opts.Token,
		httpClient: httpClient,
		limiter:    limiter,
	}
}

// URL returns the schedule endpoint.
func (c *Client) URL() string {
	return c.url
}

// Close closes idle connections
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

func (c *Client) request(ctx context.Context, method, requestID string, body io.Reader) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if requestID != "" {
		req.Header.Set(RequestIDHeader, requestID)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(c.authHeader, c.token)
	}
	return c.httpClient.Do(req)
}

// Fetch downloads the raw schedule document. The body is returned unparsed
// so the caller can validate its shape before trusting it.
func (c *Client) Fetch(ctx context.Context, requestID string) ([]byte, error) {
	resp, err := c.request(ctx, http.MethodGet, requestID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch schedule: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read schedule response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Method: http.MethodGet, StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
	}

	return body, nil
}

// Save uploads the schedule document. Only the status code of the response
// is used.
func (c *Client) Save(ctx context.Context, requestID string, data schedule.Data) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal schedule: %w", err)
	}

	resp, err := c.request(ctx, http.MethodPost, requestID, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to save schedule: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Method: http.MethodPost, StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
	}

	// drain so the connection can be reused
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
	return nil
}
