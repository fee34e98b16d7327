// Package fetch retrieves widget data from external JSON APIs.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lacquerai/dashwire/internal/jsonvalue"
	"github.com/lacquerai/dashwire/internal/widget"
)

const (
	// DefaultTimeout bounds a single attempt.
	DefaultTimeout = 30 * time.Second

	// MaxBodyBytes caps the size of a response document.
	MaxBodyBytes = 32 << 20

	userAgent = "dashwire"
)

// ErrBodyTooLarge is returned when a response exceeds MaxBodyBytes.
var ErrBodyTooLarge = errors.New("response body too large")

// StatusError is returned for responses outside the 2xx range.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: %s", e.URL, e.Status)
}

// Fetcher retrieves one JSON document.
type Fetcher interface {
	Fetch(ctx context.Context, cfg widget.APIConfig) (any, error)
}

// Client fetches JSON documents over HTTP.
type Client struct {
	http    *http.Client
	retrier *Retrier
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithRetry sets the retry policy.
func WithRetry(cfg *RetryConfig) Option {
	return func(c *Client) {
		c.retrier = NewRetrier(cfg)
	}
}

// NewClient creates a Client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		http:    &http.Client{Timeout: DefaultTimeout},
		retrier: NewRetrier(DefaultRetryConfig()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch GETs cfg.URL with cfg.Headers and decodes the JSON response.
func (c *Client) Fetch(ctx context.Context, cfg widget.APIConfig) (any, error) {
	var doc any
	err := c.retrier.Execute(ctx, func(attempt int) error {
		var err error
		doc, err = c.get(ctx, cfg, attempt)
		return err
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// FetchURL fetches url without extra headers.
func (c *Client) FetchURL(ctx context.Context, url string) (any, error) {
	return c.Fetch(ctx, widget.APIConfig{URL: url})
}

func (c *Client) get(ctx context.Context, cfg widget.APIConfig, attempt int) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	for name, value := range cfg.Headers {
		req.Header.Set(name, value)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, NewRetryableError(fmt.Errorf("GET %s: %w", cfg.URL, err), true)
	}
	defer func() { _ = resp.Body.Close() }()

	log.Debug().
		Str("url", cfg.URL).
		Int("status", resp.StatusCode).
		Int("attempt", attempt).
		Dur("duration", time.Since(start)).
		Msg("Fetched widget data")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, classifyStatus(cfg.URL, resp)
	}

	body := io.LimitReader(resp.Body, MaxBodyBytes+1)
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, NewRetryableError(fmt.Errorf("reading %s: %w", cfg.URL, err), true)
	}
	if len(data) > MaxBodyBytes {
		return nil, fmt.Errorf("GET %s: %w", cfg.URL, ErrBodyTooLarge)
	}

	doc, err := jsonvalue.DecodeBytes(data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", cfg.URL, err)
	}
	return doc, nil
}

func classifyStatus(url string, resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	statusErr := &StatusError{
		URL:        url,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       strings.TrimSpace(string(snippet)),
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return NewRetryableErrorWithDelay(statusErr, true, retryAfter(resp.Header.Get("Retry-After")))
	case resp.StatusCode >= 500:
		return NewRetryableError(statusErr, true)
	default:
		return statusErr
	}
}

// retryAfter parses a Retry-After header in seconds or HTTP-date form.
func retryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
