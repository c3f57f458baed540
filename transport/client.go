package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/campushq/corekit/errors"
	"github.com/campushq/corekit/resilience"
)

// Config configures the HTTP transport client.
type Config struct {
	// Timeout bounds every request. Default: 5s.
	Timeout time.Duration
	// Retry enables bounded retry of transient failures when set.
	Retry *resilience.RetryConfig
	// CircuitBreaker enables fail-fast behavior against a failing target when set.
	CircuitBreaker *resilience.CircuitBreakerConfig
	// Headers are applied to every request.
	Headers map[string]string
}

// ApplyDefaults fills zero-valued fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 5 * time.Second
	}
}

// Client is an HTTP Doer with timeout, retry, and circuit breaking.
type Client struct {
	httpClient *http.Client
	config     Config
	cb         *resilience.CircuitBreaker
}

// New creates a transport Client from config.
func New(cfg Config) *Client {
	cfg.ApplyDefaults()

	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		config:     cfg,
	}
	if cfg.CircuitBreaker != nil {
		c.cb = resilience.NewCircuitBreaker(*cfg.CircuitBreaker)
	}
	return c
}

// Get issues a GET request and returns the response body.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, url, nil)
}

// Post issues a POST request with a JSON-encoded body.
func (c *Client) Post(ctx context.Context, url string, body any) ([]byte, error) {
	return c.do(ctx, http.MethodPost, url, body)
}

func (c *Client) do(ctx context.Context, method, url string, body any) ([]byte, error) {
	if c.config.Retry != nil {
		return resilience.Retry(ctx, *c.config.Retry, func() ([]byte, error) {
			return c.doOnce(ctx, method, url, body)
		})
	}
	return c.doOnce(ctx, method, url, body)
}

func (c *Client) doOnce(ctx context.Context, method, url string, body any) ([]byte, error) {
	if c.cb != nil {
		var out []byte
		err := c.cb.Execute(func() error {
			var execErr error
			out, execErr = c.execute(ctx, method, url, body)
			return execErr
		})
		return out, err
	}
	return c.execute(ctx, method, url, body)
}

func (c *Client) execute(ctx context.Context, method, url string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Validation(fmt.Sprintf("encode request body: %v", err))
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, errors.Validation(fmt.Sprintf("create request: %v", err))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Timeout(method + " " + url)
		}
		return nil, errors.ConnectionFailed(url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.ConnectionFailed(url, fmt.Errorf("read response body: %w", err))
	}

	if classErr := classifyStatus(resp.StatusCode, url); classErr != nil {
		return out, classErr
	}
	return out, nil
}

// classifyStatus maps non-2xx responses to AppErrors. A 404 is a distinct
// outcome because callers use it to fall back to defaults.
func classifyStatus(status int, url string) error {
	switch {
	case status < 400:
		return nil
	case status == http.StatusNotFound:
		return errors.NotFound("resource", url)
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		return errors.Timeout(url)
	case status >= 500, status == http.StatusTooManyRequests:
		return errors.ServiceUnavailable(url)
	default:
		return errors.Validation(fmt.Sprintf("request to %s rejected with status %d", url, status))
	}
}

// Compile-time check that Client implements Doer.
var _ Doer = (*Client)(nil)
