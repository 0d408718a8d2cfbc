// Package supabase adapts the hosted backend-as-a-service (auth, REST and RPC over HTTP)
// to the client's outbound ports.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const maxResponseBytes = 4 << 20

// Options tunes a Client. Zero values select the defaults.
type Options struct {
	HTTPClient *http.Client
	Timeout    time.Duration
	// MaxRPS bounds outbound requests per second; Burst is the bucket size.
	MaxRPS float64
	Burst  int
	Logger *slog.Logger
}

// Client is a thin JSON-over-HTTP client for one project.
// It sends the anon key on every request and rate-limits outbound calls.
type Client struct {
	baseURL *url.URL
	anonKey string
	http    *http.Client
	limiter *rate.Limiter
	log     *slog.Logger
}

func NewClient(baseURL, anonKey string, opts Options) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse supabase url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("supabase url must be http(s), got %q", baseURL)
	}
	if anonKey == "" {
		return nil, errors.New("supabase anon key is required")
	}

	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	limit := rate.Inf
	if opts.MaxRPS > 0 {
		limit = rate.Limit(opts.MaxRPS)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		baseURL: u,
		anonKey: anonKey,
		http:    hc,
		limiter: rate.NewLimiter(limit, burst),
		log:     log,
	}, nil
}

// BaseURL returns the project URL without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL.String() }

type request struct {
	method string
	path   string
	query  url.Values
	// bearer is the user's access token; empty sends the anon key instead.
	bearer  string
	headers map[string]string
	body    any
}

// do sends req and decodes a 2xx JSON response into out (when non-nil).
// Non-2xx responses are returned as *APIError.
func (c *Client) do(ctx context.Context, req request, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("supabase rate limit wait: %w", err)
	}

	u := *c.baseURL
	u.Path = c.baseURL.Path + req.path
	if len(req.query) > 0 {
		u.RawQuery = req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		b, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	hr, err := http.NewRequestWithContext(ctx, req.method, u.String(), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	hr.Header.Set("apikey", c.anonKey)
	bearer := req.bearer
	if bearer == "" {
		bearer = c.anonKey
	}
	hr.Header.Set("Authorization", "Bearer "+bearer)
	hr.Header.Set("Accept", "application/json")
	if req.body != nil {
		hr.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.headers {
		hr.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.http.Do(hr)
	if err != nil {
		c.log.WarnContext(ctx, "supabase request failed",
			slog.String("method", req.method),
			slog.String("path", req.path),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%s %s: %w", req.method, req.path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	c.log.DebugContext(ctx, "supabase request",
		slog.String("method", req.method),
		slog.String("path", req.path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp.StatusCode, raw)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.path, err)
	}
	return nil
}
