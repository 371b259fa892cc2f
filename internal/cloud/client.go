package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the production API root
	DefaultBaseURL = "https://cloud.luke-roberts.com/api/v1"
	// DefaultTimeout bounds every request
	DefaultTimeout = 10 * time.Second

	maxErrorBody = 64 << 10
)

// Client is the HTTP client for the cloud API.
// A single Client is safe for concurrent use and is shared by every lamp of a fleet.
type Client struct {
	baseURL    string
	cred       *Credential
	httpClient *http.Client
	limiter    *rate.Limiter
	timeout    time.Duration
}

// Option configures a Client
type Option func(*Client)

// WithBaseURL overrides the API root (e.g. for a test server)
func WithBaseURL(base string) Option {
	return func(c *Client) {
		if base != "" {
			c.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// WithTimeout bounds every request, whichever HTTP client is in use
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client. The client is never modified.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRateLimit caps outgoing requests per second (0 = unlimited)
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// NewClient creates a new cloud client authenticated with cred
func NewClient(cred *Credential, opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		cred:       cred,
		httpClient: &http.Client{},
		limiter:    rate.NewLimiter(rate.Inf, 0),
		timeout:    DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close closes idle connections
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

func (c *Client) url(path string) string {
	return fmt.Sprintf("%s/%s", c.baseURL, path)
}

func lampPath(lampID, resource string) string {
	return fmt.Sprintf("lamps/%s/%s", url.PathEscape(lampID), resource)
}

// ListLamps returns all lamps registered to the account
func (c *Client) ListLamps(ctx context.Context) ([]LampRecord, error) {
	var lamps []LampRecord
	if err := c.do(ctx, ErrDiscovery, http.MethodGet, "lamps", nil, &lamps); err != nil {
		return nil, err
	}
	return lamps, nil
}

// FetchState returns the current state of a lamp
func (c *Client) FetchState(ctx context.Context, lampID string) (*StateResponse, error) {
	var state StateResponse
	if err := c.do(ctx, ErrStateFetch, http.MethodGet, lampPath(lampID, "state"), nil, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// SendCommand sends a command to a lamp
func (c *Client) SendCommand(ctx context.Context, lampID string, cmd Command) error {
	return c.do(ctx, ErrCommand, http.MethodPut, lampPath(lampID, "command"), cmd, nil)
}

// do performs one request. kind classifies every error it returns.
// The response body is always drained and closed.
func (c *Client) do(ctx context.Context, kind error, method, path string, in, out any) error {
	target := c.url(path)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%w: encode request: %v", kind, err)
		}
		body = bytes.NewReader(payload)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return &TransportError{Kind: kind, Method: method, URL: target, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", kind, err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Authorization", c.cred.Authorization())
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Debug().
			Err(err).
			Str("request_id", requestID).
			Str("method", method).
			Str("path", path).
			Msg("Cloud request failed")
		return &TransportError{Kind: kind, Method: method, URL: target, Err: err}
	}
	defer resp.Body.Close()

	log.Debug().
		Str("request_id", requestID).
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Msg("Cloud request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{
			Kind:       kind,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(raw)),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", kind, err)
	}
	return nil
}
