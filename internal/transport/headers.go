package transport

import (
	"net/http"
	"sync/atomic"
)

// DefaultUserAgents are recent desktop Chrome user agents.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36",
}

// DefaultAcceptLanguage matches a French desktop browser.
const DefaultAcceptLanguage = "fr-FR,fr;q=0.9,en-US;q=0.8,en;q=0.7"

// browserTransport adds headers a desktop browser would send, rotating
// the user agent per request. Headers already set on the request win.
type browserTransport struct {
	base       http.RoundTripper
	userAgents []string
	headers    map[string]string
	next       atomic.Uint64
}

func (t *browserTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())

	if clone.Header.Get("User-Agent") == "" && len(t.userAgents) > 0 {
		i := (t.next.Add(1) - 1) % uint64(len(t.userAgents))
		clone.Header.Set("User-Agent", t.userAgents[i])
	}
	if clone.Header.Get("Accept-Language") == "" {
		clone.Header.Set("Accept-Language", DefaultAcceptLanguage)
	}
	for key, value := range t.headers {
		if clone.Header.Get(key) == "" {
			clone.Header.Set(key, value)
		}
	}
	return t.base.RoundTrip(clone)
}
