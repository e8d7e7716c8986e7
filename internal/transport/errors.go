package transport

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidProxy is returned when a proxy URL cannot be parsed.
	ErrInvalidProxy = errors.New("invalid proxy url")
	// ErrUnsupportedProxyScheme is returned for proxy schemes other than
	// http, https, socks5 and socks5h.
	ErrUnsupportedProxyScheme = errors.New("unsupported proxy scheme")
	// ErrDisallowed is returned when robots.txt forbids a URL.
	ErrDisallowed = errors.New("disallowed by robots.txt")
)

// StatusError reports a non-2xx response.
type StatusError struct {
	Code int
	URL  string
}

// Error implements error.
func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s for %s", e.Code, http.StatusText(e.Code), e.URL)
}

// StatusCode returns the HTTP status code.
func (e *StatusError) StatusCode() int {
	return e.Code
}
