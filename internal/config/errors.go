package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrInvalidResults is returned when fewer than one result is requested.
	ErrInvalidResults = errors.New("invalid results wanted: must be at least 1")

	// ErrInvalidMaxPages is returned when the page limit is below one.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be at least 1")

	// ErrInvalidPageSize is returned when the API page size is below one.
	ErrInvalidPageSize = errors.New("invalid page size: must be at least 1")

	// ErrInvalidConcurrency is returned when the detail concurrency is below one.
	ErrInvalidConcurrency = errors.New("invalid max concurrency: must be at least 1")

	// ErrInvalidTimeout is returned when the per-request timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidRequestDelay is returned when the request delay is negative.
	ErrInvalidRequestDelay = errors.New("invalid request delay: must be non-negative")

	// ErrInvalidTimeBudget is returned when the time budget is negative.
	ErrInvalidTimeBudget = errors.New("invalid time budget: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidReportFormat is returned for an unknown --format value.
	ErrInvalidReportFormat = errors.New("invalid report format: must be text, json or markdown")

	// ErrInvalidStartURL is returned when a start URL cannot be parsed or
	// is not an absolute http(s) URL.
	ErrInvalidStartURL = errors.New("invalid start url")

	// ErrProfileNotFound is returned when --profile names an unknown profile.
	ErrProfileNotFound = errors.New("profile not found in configuration file")
)
