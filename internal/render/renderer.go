// Package render fetches pages through a headless Chrome so that
// client-side rendered search results are visible to the HTML channel.
//
// A Renderer owns one browser; each Fetch opens a tab, waits for the
// page to settle and returns the serialized DOM.
package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

const (
	// DefaultWaitSelector is awaited before the DOM is captured.
	DefaultWaitSelector = "body"
	// DefaultSettle is the extra delay after the wait selector is ready.
	DefaultSettle = 1500 * time.Millisecond
	// DefaultTimeout bounds one render.
	DefaultTimeout = 45 * time.Second
)

// ErrClosed is returned by Fetch after Close.
var ErrClosed = errors.New("renderer closed")

// Renderer renders pages in a shared headless browser.
type Renderer struct {
	waitSelector string
	settle       time.Duration
	timeout      time.Duration
	userAgent    string
	headless     bool
	proxy        string
	logger       *slog.Logger

	mu            sync.Mutex
	closed        bool
	allocCtx      context.Context
	cancelAlloc   context.CancelFunc
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithWaitSelector sets the selector awaited before capture.
func WithWaitSelector(sel string) Option {
	return func(r *Renderer) {
		if sel != "" {
			r.waitSelector = sel
		}
	}
}

// WithSettle sets the post-ready delay.
func WithSettle(d time.Duration) Option {
	return func(r *Renderer) {
		if d >= 0 {
			r.settle = d
		}
	}
}

// WithTimeout bounds each render.
func WithTimeout(d time.Duration) Option {
	return func(r *Renderer) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithUserAgent sets the browser user agent.
func WithUserAgent(ua string) Option {
	return func(r *Renderer) {
		r.userAgent = ua
	}
}

// WithHeadless toggles headless mode. It is on by default.
func WithHeadless(on bool) Option {
	return func(r *Renderer) {
		r.headless = on
	}
}

// WithProxy routes the browser through one proxy server URL.
func WithProxy(proxyURL string) Option {
	return func(r *Renderer) {
		r.proxy = proxyURL
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Renderer) {
		if l != nil {
			r.logger = l
		}
	}
}

// New prepares a Renderer. The browser process starts on the first Fetch.
func New(ctx context.Context, opts ...Option) *Renderer {
	r := &Renderer{
		waitSelector: DefaultWaitSelector,
		settle:       DefaultSettle,
		timeout:      DefaultTimeout,
		headless:     true,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.allocCtx, r.cancelAlloc = chromedp.NewExecAllocator(ctx, r.allocatorOptions()...)
	r.browserCtx, r.cancelBrowser = chromedp.NewContext(r.allocCtx)
	return r
}

func (r *Renderer) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", r.headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("lang", "fr-FR"),
	)
	if r.userAgent != "" {
		opts = append(opts, chromedp.UserAgent(r.userAgent))
	}
	if r.proxy != "" {
		opts = append(opts, chromedp.ProxyServer(r.proxy))
	}
	return opts
}

// Fetch renders url and returns the outer HTML of the document.
func (r *Renderer) Fetch(ctx context.Context, url string) ([]byte, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	browserCtx := r.browserCtx
	r.mu.Unlock()

	tabCtx, cancelTab := chromedp.NewContext(browserCtx)
	defer cancelTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, r.timeout)
	defer cancelTimeout()

	// Caller cancellation closes the tab.
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	started := time.Now()
	var html string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady(r.waitSelector, chromedp.ByQuery),
		chromedp.Sleep(r.settle),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("render %s: %w", url, err)
	}

	r.logger.Debug("page rendered", "url", url, "bytes", len(html), "latency", time.Since(started))
	return []byte(html), nil
}

// Close stops the browser. It is safe to call more than once.
func (r *Renderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	r.cancelBrowser()
	r.cancelAlloc()
}
