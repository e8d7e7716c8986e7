package model

import (
	"errors"
	"time"
)

var (
	// ErrInvalidDesiredCount is returned when fewer than one result is requested.
	ErrInvalidDesiredCount = errors.New("desired count must be at least 1")
	// ErrInvalidMaxPages is returned when the page limit is below one.
	ErrInvalidMaxPages = errors.New("max pages must be at least 1")
	// ErrInvalidPageSize is returned when the API page size is below one.
	ErrInvalidPageSize = errors.New("page size must be at least 1")
)

// SearchCriteria is the immutable input of one harvest session.
type SearchCriteria struct {
	// Keyword is the free-text search term. Empty searches everything.
	Keyword string `json:"keyword,omitempty"`

	// PlaceIDs are the resolved location identifiers, in precedence order.
	// An empty slice means no location filter.
	PlaceIDs []string `json:"place_ids,omitempty"`

	// ContractTypes are upstream contract-type codes (typesConvention).
	ContractTypes []string `json:"contract_types,omitempty"`

	// RemoteWork are upstream remote-work codes (teletravail).
	RemoteWork []string `json:"remote_work,omitempty"`

	// DesiredCount caps the number of records emitted by the session.
	DesiredCount int `json:"desired_count"`

	// PageSize is the number of items requested per API page.
	// It may exceed DesiredCount.
	PageSize int `json:"page_size"`

	// MaxPages caps the number of pages fetched per channel pass.
	MaxPages int `json:"max_pages"`

	// CollectDetails enables one detail fetch per listing.
	CollectDetails bool `json:"collect_details"`

	// TimeBudget bounds the session wall time. Zero means unbounded.
	TimeBudget time.Duration `json:"time_budget,omitempty"`

	// StartURL, when set, is used as the HTML search base instead of the
	// URL built from the other fields.
	StartURL string `json:"start_url,omitempty"`

	// ExtraStartURLs are further search URLs. Each one gets its own HTML
	// pass once the primary flow stops short of DesiredCount.
	ExtraStartURLs []string `json:"extra_start_urls,omitempty"`
}

// Validate checks the numeric invariants of the criteria.
func (c SearchCriteria) Validate() error {
	if c.DesiredCount < 1 {
		return ErrInvalidDesiredCount
	}
	if c.MaxPages < 1 {
		return ErrInvalidMaxPages
	}
	if c.PageSize < 1 {
		return ErrInvalidPageSize
	}
	return nil
}
