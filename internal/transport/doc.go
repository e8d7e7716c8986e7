// Package transport is the HTTP layer shared by every channel.
//
// A Client sends browser-like requests, rotates through the configured
// proxies round-robin, paces requests with an optional delay plus jitter,
// decodes HTML bodies to UTF-8 and turns non-2xx answers into
// *StatusError values the retry package can classify. RobotsGate answers
// robots.txt questions for the HTML channel.
package transport
