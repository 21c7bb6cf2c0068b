// Package apiclient is the HTTP client every service module talks to the
// platform API through. It attaches the bearer token and ends the session
// on 401.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lalithlochan/sentinel/internal/circuitbreaker"
	"github.com/lalithlochan/sentinel/internal/metrics"
)

// TokenSource hands out the current bearer token with its generation and
// is told when the platform rejects it.
type TokenSource interface {
	Token() (string, uint64)
	Expire(gen uint64) bool
}

type Config struct {
	BaseURL   string        // origin plus versioned path, e.g. http://localhost:8000/api/v1
	Timeout   time.Duration // per request, default 30s
	UserAgent string
	Breaker   *circuitbreaker.CircuitBreaker // optional
}

type Client struct {
	base      string
	http      *http.Client
	tokens    TokenSource
	breaker   *circuitbreaker.CircuitBreaker
	userAgent string
	logger    *zap.Logger
}

func New(cfg Config, tokens TokenSource, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = "SentinelConsole/1.0"
	}

	return &Client{
		base:      strings.TrimRight(cfg.BaseURL, "/"),
		http:      &http.Client{Timeout: timeout},
		tokens:    tokens,
		breaker:   cfg.Breaker,
		userAgent: ua,
		logger:    logger,
	}
}

// NewBreaker returns a breaker tuned for the platform API: only transport
// failures and 5xx answers count.
func NewBreaker(logger *zap.Logger) *circuitbreaker.CircuitBreaker {
	cfg := circuitbreaker.DefaultConfig("platform-api")
	cfg.IsFailure = countsAgainstBreaker
	return circuitbreaker.New(cfg, logger)
}

// File is a downloaded blob.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, nil, body, out)
}

func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPut, path, nil, body, out)
}

func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPatch, path, nil, body, out)
}

func (c *Client) Delete(ctx context.Context, path string) error {
	return c.Do(ctx, http.MethodDelete, path, nil, nil, nil)
}

// PostForm sends an urlencoded form, as the token endpoint expects.
func (c *Client) PostForm(ctx context.Context, path string, form url.Values, out any) error {
	return c.execute(ctx, func(ctx context.Context) error {
		resp, err := c.send(ctx, http.MethodPost, path, nil,
			strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		return decode(resp, out)
	})
}

// Do sends a JSON request and decodes a JSON answer into out (when non-nil).
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var reader io.Reader
	contentType := ""
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
		contentType = "application/json"
	}

	// the breaker never retries, so the reader is consumed at most once
	return c.execute(ctx, func(ctx context.Context) error {
		resp, err := c.send(ctx, method, path, query, reader, contentType)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		return decode(resp, out)
	})
}

// Download fetches a blob such as a CSV export or a rendered report.
func (c *Client) Download(ctx context.Context, path string, query url.Values) (*File, error) {
	var file *File
	err := c.execute(ctx, func(ctx context.Context) error {
		resp, err := c.send(ctx, http.MethodGet, path, query, nil, "")
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read download: %w", err)
		}
		file = &File{
			Name:        filename(resp.Header.Get("Content-Disposition")),
			ContentType: resp.Header.Get("Content-Type"),
			Data:        data,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return file, nil
}

func (c *Client) execute(ctx context.Context, fn func(context.Context) error) error {
	if c.breaker == nil {
		return fn(ctx)
	}
	return c.breaker.Execute(ctx, fn)
}

// send performs one round trip. Non-2xx answers are turned into errors here
// so that the body is only left open on success.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string) (*http.Response, error) {
	u := c.base + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	token, gen := c.tokens.Token()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RecordAPICall(method, 0, time.Since(start))
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	metrics.RecordAPICall(method, resp.StatusCode, time.Since(start))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode == http.StatusUnauthorized && token != "" {
		if c.tokens.Expire(gen) {
			c.logger.Warn("platform rejected session token",
				zap.String("method", method),
				zap.String("path", path),
			)
		}
		return nil, ErrUnauthorized
	}

	apiErr := parseError(resp.StatusCode, raw)
	c.logger.Debug("platform api error",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", apiErr.Status),
		zap.String("detail", apiErr.Detail),
	)
	return nil, apiErr
}

func decode(resp *http.Response, out any) error {
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func filename(disposition string) string {
	if disposition == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return ""
	}
	return params["filename"]
}
