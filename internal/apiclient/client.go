// Package apiclient executes typed calls against the Brain Bridge REST API and
// folds the backend's inconsistent response envelopes into one error taxonomy.
package apiclient

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

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"brainbridge/internal/metrics"
)

// Credentials authenticate a request. An empty token sends no Authorization header.
type Credentials struct {
	Token string
}

// Request describes a single API call.
type Request struct {
	Method      string
	Path        string
	Route       string // metrics label such as "slots/:id"; Path when empty
	Query       url.Values
	Body        any
	Credentials *Credentials
	RequestID   string
}

// Response is a successful (2xx, not success:false) API response.
type Response struct {
	Status int
	Body   map[string]any
	Raw    []byte
}

// Client is an HTTP client for the Brain Bridge backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
	logger     *zerolog.Logger
	metrics    *metrics.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithRateLimit throttles outgoing requests. rps <= 0 disables throttling.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger sets the logger used when the request context carries none.
func WithLogger(l *zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithMetrics enables request metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// New constructs a client for baseURL.
func New(baseURL string, opts ...Option) *Client {
	nop := zerolog.Nop()
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		userAgent:  "brainbridge-client",
		logger:     &nop,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// JoinURL joins the base URL and path with exactly one slash.
func (c *Client) JoinURL(path string) string {
	base := strings.TrimRight(c.baseURL, "/")
	p := strings.TrimLeft(path, "/")
	if p == "" {
		return base
	}
	return base + "/" + p
}

// Do executes req and classifies the outcome. Every error it returns is an *Error.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	l := c.loggerFor(ctx)
	start := time.Now()

	resp, err := c.do(ctx, req)
	outcome := "ok"
	if err != nil {
		outcome = string(KindOf(err))
		l.Debug().
			Str("method", req.Method).
			Str("path", req.Path).
			Str("kind", outcome).
			Err(err).
			Msg("api request failed")
	} else {
		l.Debug().
			Str("method", req.Method).
			Str("path", req.Path).
			Int("status", resp.Status).
			Msg("api request completed")
	}
	route := req.Route
	if route == "" {
		route = req.Path
	}
	c.metrics.ObserveRequest(route, outcome, time.Since(start).Seconds())
	return resp, err
}

func (c *Client) do(ctx context.Context, req Request) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, NewError(KindUnreachable, 0, msgUnreachable, err)
		}
	}

	httpReq, err := c.newRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, NewError(KindUnreachable, 0, msgUnreachable, err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, NewError(KindUnreachable, httpResp.StatusCode, msgUnreachable, err)
	}

	status := httpResp.StatusCode
	body, parseErr := parseBody(raw)

	if status < 200 || status >= 300 {
		// An unreadable error body still yields the status default.
		return nil, NewError(KindRejected, status, ExtractMessage(body, status), fmt.Errorf("http %d", status))
	}
	if parseErr != nil {
		return nil, NewError(KindMalformed, status, msgMalformed, parseErr)
	}
	if reportsFailure(body) {
		msg := messageFrom(body)
		if msg == "" {
			msg = msgNotSuccess
		}
		return nil, NewError(KindReportedFailure, status, msg, nil)
	}

	return &Response{Status: status, Body: body, Raw: raw}, nil
}

func (c *Client) newRequest(ctx context.Context, req Request) (*http.Request, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	endpoint := c.JoinURL(req.Path)
	if len(req.Query) > 0 {
		endpoint += "?" + req.Query.Encode()
	}

	var body io.Reader = http.NoBody
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, NewError(KindUnreachable, 0, msgNotSent, fmt.Errorf("encode request body: %w", err))
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, NewError(KindUnreachable, 0, msgNotSent, fmt.Errorf("build request: %w", err))
	}

	httpReq.Header.Set("Accept", "application/json")
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}
	if req.Credentials != nil && req.Credentials.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Credentials.Token)
	}
	if req.RequestID != "" {
		httpReq.Header.Set("X-Request-ID", req.RequestID)
	}
	return httpReq, nil
}

func (c *Client) loggerFor(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return l
	}
	return c.logger
}

// Call executes req and decodes the response into T.
func Call[T any](ctx context.Context, c *Client, req Request) (T, error) {
	var out T
	resp, err := c.Do(ctx, req)
	if err != nil {
		return out, err
	}
	raw := bytes.TrimSpace(resp.Raw)
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, NewError(KindMalformed, resp.Status, msgMalformed, err)
	}
	return out, nil
}

// Ping checks that the backend answers at path.
func (c *Client) Ping(ctx context.Context, path string) error {
	_, err := c.Do(ctx, Request{Method: http.MethodGet, Path: path})
	return err
}
