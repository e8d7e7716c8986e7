package transport

import (
	"context"
	"net/http"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
)

// RobotsGate caches robots.txt per host and answers whether a URL may be
// fetched. Hosts whose robots.txt cannot be read are allowed.
type RobotsGate struct {
	client *Client
	agent  string

	mu     sync.Mutex
	groups map[string]*robotstxt.Group
}

// NewRobotsGate returns a gate that fetches robots.txt through client and
// matches rules for agent.
func NewRobotsGate(client *Client, agent string) *RobotsGate {
	if agent == "" {
		agent = "*"
	}
	return &RobotsGate{client: client, agent: agent, groups: make(map[string]*robotstxt.Group)}
}

// Allowed reports whether rawURL may be fetched.
func (g *RobotsGate) Allowed(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return true
	}
	group := g.group(ctx, u)
	if group == nil {
		return true
	}
	path := u.EscapedPath()
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return group.Test(path)
}

// Check is Allowed returning ErrDisallowed.
func (g *RobotsGate) Check(ctx context.Context, rawURL string) error {
	if g.Allowed(ctx, rawURL) {
		return nil
	}
	return ErrDisallowed
}

func (g *RobotsGate) group(ctx context.Context, u *url.URL) *robotstxt.Group {
	key := u.Scheme + "://" + u.Host

	g.mu.Lock()
	grp, ok := g.groups[key]
	g.mu.Unlock()
	if ok {
		return grp
	}

	resp, err := g.client.send(ctx, Request{Method: http.MethodGet, URL: key + "/robots.txt", Accept: "text/plain"})
	if err != nil {
		g.client.logger.Debug("robots.txt unavailable", "host", u.Host, "error", err)
		return nil
	}
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, resp.Body)
	if err != nil {
		g.client.logger.Debug("robots.txt unparsable", "host", u.Host, "error", err)
		grp = nil
	} else {
		grp = data.FindGroup(g.agent)
	}

	g.mu.Lock()
	g.groups[key] = grp
	g.mu.Unlock()
	return grp
}
