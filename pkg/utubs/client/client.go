// Package client is the HTTP implementation of sync.Remote, plus the
// account and UTub management calls the CLI needs.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	gosync "sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/mikepea/utubs/pkg/utubs/api"
	"github.com/mikepea/utubs/pkg/utubs/sync"
	"golang.org/x/time/rate"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 1 << 20

// Options configures a Client.
type Options struct {
	BaseURL string
	Token   string
	// Timeout bounds each HTTP exchange. The sync engine applies its own
	// per-call deadline on top.
	Timeout time.Duration
	// RequestsPerSecond throttles outgoing requests. Zero disables it.
	RequestsPerSecond float64
	HTTPClient        *http.Client
	Logger            *log.Logger
}

// Client talks to a utubs server.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	logger      *log.Logger

	mu    gosync.RWMutex
	token string
}

var _ sync.Remote = (*Client)(nil)

// New creates a Client.
func New(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		httpClient:  hc,
		rateLimiter: limiter,
		logger:      logger.With("component", "client"),
		token:       opts.Token,
	}
}

// SetToken replaces the bearer token used for subsequent requests.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the current bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// do sends one request. Non-2xx responses become *sync.StatusError; every
// other failure is returned wrapped and counts as a transport failure.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "method", method, "path", path, "request_id", requestID, "err", err)
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"request_id", requestID,
		"elapsed", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	se := &sync.StatusError{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return se
	}
	mediaType, _, _ := mime.ParseMediaType(se.ContentType)
	if mediaType != "application/json" {
		se.Message = strings.TrimSpace(string(data))
		if len(se.Message) > 200 {
			se.Message = se.Message[:200]
		}
		return se
	}
	var body api.ErrorResponse
	if err := json.Unmarshal(data, &body); err != nil {
		// A JSON content type with a broken body is treated like HTML.
		se.ContentType = "text/plain"
		return se
	}
	se.Message = body.Message
	se.FieldErrors = body.Errors
	se.Details = body.Details
	return se
}

// IsUnauthorized reports whether err is a 401 from the server.
func IsUnauthorized(err error) bool {
	var se *sync.StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusUnauthorized
}
