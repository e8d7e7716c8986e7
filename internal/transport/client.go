package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/net/html/charset"
)

const (
	// DefaultTimeout is the per-request timeout.
	DefaultTimeout = 20 * time.Second
	// DefaultMaxBodySize caps how much of a response body is read.
	DefaultMaxBodySize int64 = 8 * 1024 * 1024
	// DefaultJitterRatio is the share of the request delay added as random jitter.
	DefaultJitterRatio = 0.25
)

// Accept header values.
const (
	AcceptJSON = "application/json, text/plain, */*"
	AcceptHTML = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
)

// Request describes one outgoing call.
type Request struct {
	Method string
	URL    string
	// Body is sent as is. ContentType should be set along with it.
	Body        []byte
	ContentType string
	Accept      string
	Header      http.Header
}

// Response is a fully read response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// URL is the final URL after redirects.
	URL string
}

// Client is a pacing, proxy-rotating HTTP client.
type Client struct {
	pool        *proxyPool
	pacer       *pacer
	maxBodySize int64
	logger      *slog.Logger
	requests    atomic.Int64

	timeout     time.Duration
	proxies     []string
	delay       time.Duration
	jitterRatio float64
	userAgents  []string
	headers     map[string]string
	base        http.RoundTripper
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithProxies sets the proxy URLs rotated round-robin.
func WithProxies(proxies []string) Option {
	return func(c *Client) {
		c.proxies = append([]string(nil), proxies...)
	}
}

// WithRequestDelay spaces requests by d plus up to jitterRatio*d.
func WithRequestDelay(d time.Duration, jitterRatio float64) Option {
	return func(c *Client) {
		c.delay = d
		c.jitterRatio = jitterRatio
	}
}

// WithUserAgents replaces DefaultUserAgents.
func WithUserAgents(agents []string) Option {
	return func(c *Client) {
		if len(agents) > 0 {
			c.userAgents = agents
		}
	}
}

// WithHeaders adds fixed headers to every request.
func WithHeaders(h map[string]string) Option {
	return func(c *Client) {
		c.headers = h
	}
}

// WithMaxBodySize caps response bodies.
func WithMaxBodySize(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBodySize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRoundTripper replaces the network transport. Proxies are ignored
// when it is set. Tests use it to count or fake round trips.
func WithRoundTripper(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.base = rt
	}
}

// NewClient builds a Client.
func NewClient(opts ...Option) (*Client, error) {
	c := &Client{
		timeout:     DefaultTimeout,
		maxBodySize: DefaultMaxBodySize,
		jitterRatio: DefaultJitterRatio,
		userAgents:  DefaultUserAgents,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	wrap := func(rt http.RoundTripper) http.RoundTripper {
		return &browserTransport{base: rt, userAgents: c.userAgents, headers: c.headers}
	}

	if c.base != nil {
		c.pool = &proxyPool{}
		c.pool.add(newHTTPClient(c.base, c.timeout, wrap), "custom")
	} else {
		pool, err := newProxyPool(c.proxies, c.timeout, wrap)
		if err != nil {
			return nil, err
		}
		c.pool = pool
	}
	c.pacer = newPacer(c.delay, c.jitterRatio)
	return c, nil
}

// RequestCount returns the number of requests sent so far.
func (c *Client) RequestCount() int64 {
	return c.requests.Load()
}

// ProxyCount returns the number of rotated routes.
func (c *Client) ProxyCount() int {
	return c.pool.size()
}

// Do sends r and returns the response. Non-2xx answers are returned as
// *StatusError.
func (c *Client) Do(ctx context.Context, r Request) (*Response, error) {
	resp, err := c.send(ctx, r)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, URL: r.URL}
	}
	return resp, nil
}

// send performs the round trip without judging the status code.
func (c *Client) send(ctx context.Context, r Request) (*Response, error) {
	if err := c.pacer.wait(ctx); err != nil {
		return nil, err
	}

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if r.Body != nil {
		body = bytes.NewReader(r.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if r.Accept != "" {
		req.Header.Set("Accept", r.Accept)
	}
	if r.ContentType != "" {
		req.Header.Set("Content-Type", r.ContentType)
	}

	hc, route := c.pool.pick()
	c.requests.Add(1)
	started := time.Now()

	res, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, r.URL, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, c.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read body of %s: %w", r.URL, err)
	}

	c.logger.Debug("http request",
		"method", method,
		"url", r.URL,
		"status", res.StatusCode,
		"route", route,
		"latency", time.Since(started),
		"bytes", len(data),
	)

	return &Response{
		StatusCode: res.StatusCode,
		Header:     res.Header,
		Body:       data,
		URL:        res.Request.URL.String(),
	}, nil
}

// GetJSON fetches url and decodes the JSON body into v.
func (c *Client) GetJSON(ctx context.Context, url string, v any) error {
	resp, err := c.Do(ctx, Request{Method: http.MethodGet, URL: url, Accept: AcceptJSON})
	if err != nil {
		return err
	}
	return decodeJSON(resp, v)
}

// PostJSON encodes payload, posts it to url and decodes the answer into v.
func (c *Client) PostJSON(ctx context.Context, url string, payload, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}
	resp, err := c.Do(ctx, Request{
		Method:      http.MethodPost,
		URL:         url,
		Body:        body,
		ContentType: "application/json",
		Accept:      AcceptJSON,
	})
	if err != nil {
		return err
	}
	return decodeJSON(resp, v)
}

// GetHTML fetches url and returns the body converted to UTF-8.
func (c *Client) GetHTML(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.Do(ctx, Request{Method: http.MethodGet, URL: url, Accept: AcceptHTML})
	if err != nil {
		return nil, err
	}
	return toUTF8(resp.Body, resp.Header.Get("Content-Type"))
}

func decodeJSON(resp *Response, v any) error {
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return fmt.Errorf("failed to decode JSON from %s: %w", resp.URL, err)
	}
	return nil
}

func toUTF8(body []byte, contentType string) ([]byte, error) {
	if contentType == "" || strings.Contains(strings.ToLower(contentType), "utf-8") {
		return body, nil
	}
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return body, nil //nolint:nilerr // unknown charsets are passed through
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode charset: %w", err)
	}
	return decoded, nil
}
