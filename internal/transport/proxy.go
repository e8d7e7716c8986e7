package transport

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync/atomic"
	"time"

	"golang.org/x/net/proxy"
)

// maxRedirects bounds redirect chains followed by a single request.
const maxRedirects = 10

// proxyPool hands out one *http.Client per proxy, round-robin.
type proxyPool struct {
	clients []*http.Client
	labels  []string
	next    atomic.Uint64
}

// newProxyPool builds one client per proxy URL. No proxies gives a single
// direct client.
func newProxyPool(proxies []string, timeout time.Duration, wrap func(http.RoundTripper) http.RoundTripper) (*proxyPool, error) {
	p := &proxyPool{}
	if len(proxies) == 0 {
		p.add(newHTTPClient(baseTransport(), timeout, wrap), "direct")
		return p, nil
	}
	for _, raw := range proxies {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidProxy, raw)
		}
		rt, err := proxyTransport(u)
		if err != nil {
			return nil, err
		}
		p.add(newHTTPClient(rt, timeout, wrap), u.Redacted())
	}
	return p, nil
}

func (p *proxyPool) add(c *http.Client, label string) {
	p.clients = append(p.clients, c)
	p.labels = append(p.labels, label)
}

// pick returns the next client and a printable proxy label.
func (p *proxyPool) pick() (*http.Client, string) {
	i := int((p.next.Add(1) - 1) % uint64(len(p.clients)))
	return p.clients[i], p.labels[i]
}

func (p *proxyPool) size() int {
	return len(p.clients)
}

func proxyTransport(u *url.URL) (*http.Transport, error) {
	t := baseTransport()
	switch u.Scheme {
	case "http", "https":
		t.Proxy = http.ProxyURL(u)
	case "socks5", "socks5h":
		d, err := proxy.FromURL(u, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer for %s: %w", u.Redacted(), err)
		}
		if cd, ok := d.(proxy.ContextDialer); ok {
			t.DialContext = cd.DialContext
		} else {
			t.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
				return d.Dial(network, addr)
			}
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProxyScheme, u.Scheme)
	}
	return t, nil
}

func baseTransport() *http.Transport {
	return &http.Transport{
		Proxy:               nil,
		DialContext:         (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:        32,
		MaxIdleConnsPerHost: 8,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		ForceAttemptHTTP2:   true,
	}
}

func newHTTPClient(rt http.RoundTripper, timeout time.Duration, wrap func(http.RoundTripper) http.RoundTripper) *http.Client {
	jar, _ := cookiejar.New(nil) //nolint:errcheck // cookiejar.New only fails with invalid options
	if wrap != nil {
		rt = wrap(rt)
	}
	return &http.Client{
		Transport: rt,
		Timeout:   timeout,
		Jar:       jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}
