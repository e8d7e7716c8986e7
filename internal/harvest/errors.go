package harvest

import "errors"

var (
	// ErrNoRecords is returned when every channel answered but no record
	// was produced.
	ErrNoRecords = errors.New("no job postings found")
	// ErrUpstreamFailed is returned when no record was produced because
	// the upstream failed on every channel that was tried.
	ErrUpstreamFailed = errors.New("upstream errored and no fallback succeeded")
	// ErrNoChannel is returned by Run when neither channel is configured.
	ErrNoChannel = errors.New("at least one channel is required")
)
