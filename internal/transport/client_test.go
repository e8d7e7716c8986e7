package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestClient_SendsBrowserHeaders(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	agents := map[string]bool{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		agents[r.Header.Get("User-Agent")] = true
		mu.Unlock()
		if !strings.HasPrefix(r.Header.Get("Accept-Language"), "fr-FR") {
			t.Errorf("Accept-Language = %q", r.Header.Get("Accept-Language"))
		}
		if r.Header.Get("X-Requested-With") != "XMLHttpRequest" {
			t.Errorf("fixed header missing")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()

	c, err := NewClient(WithHeaders(map[string]string{"X-Requested-With": "XMLHttpRequest"}))
	if err != nil {
		t.Fatal(err)
	}
	for range len(DefaultUserAgents) {
		var out struct{ OK bool }
		if err := c.GetJSON(context.Background(), srv.URL, &out); err != nil {
			t.Fatal(err)
		}
		if !out.OK {
			t.Error("body not decoded")
		}
	}
	if len(agents) != len(DefaultUserAgents) {
		t.Errorf("user agents rotated over %d values, want %d", len(agents), len(DefaultUserAgents))
	}
	if c.RequestCount() != int64(len(DefaultUserAgents)) {
		t.Errorf("RequestCount() = %d", c.RequestCount())
	}
}

func TestClient_StatusError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	c, err := NewClient()
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.GetHTML(context.Background(), srv.URL+"/detail-offre/1")
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *StatusError", err)
	}
	if se.StatusCode() != http.StatusNotFound {
		t.Errorf("StatusCode() = %d", se.StatusCode())
	}
}

func TestClient_PostJSON(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("method=%s content-type=%s", r.Method, r.Header.Get("Content-Type"))
		}
		var in map[string]any
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			t.Errorf("bad payload: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"echo": in["motsCles"]})
	}))
	defer srv.Close()

	c, err := NewClient()
	if err != nil {
		t.Fatal(err)
	}
	var out map[string]string
	if err := c.PostJSON(context.Background(), srv.URL, map[string]any{"motsCles": "golang"}, &out); err != nil {
		t.Fatal(err)
	}
	if out["echo"] != "golang" {
		t.Errorf("echo = %q", out["echo"])
	}
}

func TestClient_DecodesLatin1HTML(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		_, _ = w.Write([]byte("<p>Ing\xe9nieur</p>"))
	}))
	defer srv.Close()

	c, err := NewClient()
	if err != nil {
		t.Fatal(err)
	}
	body, err := c.GetHTML(context.Background(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != "<p>Ingénieur</p>" {
		t.Errorf("body = %q", body)
	}
}

func TestClient_MaxBodySize(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, strings.Repeat("a", 100))
	}))
	defer srv.Close()

	c, err := NewClient(WithMaxBodySize(10))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := c.Do(context.Background(), Request{URL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Body) != 10 {
		t.Errorf("body length = %d, want 10", len(resp.Body))
	}
}

func TestClient_RequestDelay(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	defer srv.Close()

	c, err := NewClient(WithRequestDelay(50*time.Millisecond, 0))
	if err != nil {
		t.Fatal(err)
	}
	start := time.Now()
	for range 3 {
		if _, err := c.Do(context.Background(), Request{URL: srv.URL}); err != nil {
			t.Fatal(err)
		}
	}
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Errorf("three paced requests took %v, want >= ~100ms", elapsed)
	}
}

func TestNewClient_Proxies(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		proxies []string
		wantErr error
		want    int
	}{
		{name: "direct", want: 1},
		{name: "http and socks", proxies: []string{"http://u:p@10.0.0.1:3128", "socks5://10.0.0.2:1080"}, want: 2},
		{name: "bad scheme", proxies: []string{"ftp://10.0.0.1:21"}, wantErr: ErrUnsupportedProxyScheme},
		{name: "no host", proxies: []string{"not a url"}, wantErr: ErrInvalidProxy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c, err := NewClient(WithProxies(tt.proxies))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if c.ProxyCount() != tt.want {
				t.Errorf("ProxyCount() = %d, want %d", c.ProxyCount(), tt.want)
			}
		})
	}
}

func TestProxyPool_RoundRobin(t *testing.T) {
	t.Parallel()

	p, err := newProxyPool([]string{"http://a:1", "http://b:2", "http://c:3"}, time.Second, nil)
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for range 4 {
		_, label := p.pick()
		got = append(got, label)
	}
	want := []string{"http://a:1", "http://b:2", "http://c:3", "http://a:1"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("rotation = %v, want %v", got, want)
		}
	}
}

func TestRobotsGate(t *testing.T) {
	t.Parallel()

	var robotsFetches int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			mu.Lock()
			robotsFetches++
			mu.Unlock()
			_, _ = io.WriteString(w, "User-agent: *\nDisallow: /private/\n")
		}
	}))
	defer srv.Close()

	c, err := NewClient()
	if err != nil {
		t.Fatal(err)
	}
	g := NewRobotsGate(c, "jobharvest")

	if !g.Allowed(context.Background(), srv.URL+"/candidat/recherche-emploi.html/emploi") {
		t.Error("public path must be allowed")
	}
	if err := g.Check(context.Background(), srv.URL+"/private/x"); !errors.Is(err, ErrDisallowed) {
		t.Errorf("Check() = %v, want ErrDisallowed", err)
	}
	if robotsFetches != 1 {
		t.Errorf("robots.txt fetched %d times, want 1", robotsFetches)
	}
}
