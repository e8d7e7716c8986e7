package model

import "time"

// ListingRecord is a partial record read from one search page.
// Fields the channel could not read are empty.
type ListingRecord struct {
	NativeID        string  `json:"native_id,omitempty"`
	Title           string  `json:"title,omitempty"`
	Company         string  `json:"company,omitempty"`
	Location        string  `json:"location,omitempty"`
	Salary          string  `json:"salary,omitempty"`
	JobType         string  `json:"job_type,omitempty"`
	DatePosted      string  `json:"date_posted,omitempty"`
	Experience      string  `json:"experience,omitempty"`
	RemoteWork      string  `json:"remote_work,omitempty"`
	DescriptionHTML string  `json:"description_html,omitempty"`
	DescriptionText string  `json:"description_text,omitempty"`
	ApplyURL        string  `json:"apply_url,omitempty"`
	DetailURL       string  `json:"detail_url,omitempty"`
	Channel         Channel `json:"channel"`
}

// DetailRecord is a partial record read from one detail fetch.
type DetailRecord struct {
	NativeID        string  `json:"native_id,omitempty"`
	Title           string  `json:"title,omitempty"`
	Company         string  `json:"company,omitempty"`
	Location        string  `json:"location,omitempty"`
	Salary          string  `json:"salary,omitempty"`
	JobType         string  `json:"job_type,omitempty"`
	Experience      string  `json:"experience,omitempty"`
	RemoteWork      string  `json:"remote_work,omitempty"`
	ApplyURL        string  `json:"apply_url,omitempty"`
	DatePosted      string  `json:"date_posted,omitempty"`
	DescriptionHTML string  `json:"description_html,omitempty"`
	DescriptionText string  `json:"description_text,omitempty"`
	Channel         Channel `json:"channel"`
}

// CanonicalRecord is the merged record written to the output sinks.
// ID is never empty and is unique within a session.
type CanonicalRecord struct {
	// ID is the record identity: native id, canonical detail URL or a
	// composite key, in that order of preference.
	ID string `json:"id"`

	// SourceID is the upstream native id when one was seen.
	SourceID string `json:"source_id,omitempty"`

	Title           string `json:"title,omitempty"`
	Company         string `json:"company,omitempty"`
	Location        string `json:"location,omitempty"`
	Salary          string `json:"salary,omitempty"`
	JobType         string `json:"job_type,omitempty"`
	Experience      string `json:"experience,omitempty"`
	RemoteWork      string `json:"remote_work,omitempty"`
	DatePosted      string `json:"date_posted,omitempty"`
	DescriptionHTML string `json:"description_html,omitempty"`

	// DescriptionText is always derived from DescriptionHTML when the
	// latter is present.
	DescriptionText string `json:"description_text,omitempty"`

	ApplyURL string `json:"apply_url,omitempty"`

	// URL is the canonical detail URL.
	URL string `json:"url,omitempty"`

	// Channel is the channel of the listing the record started from.
	Channel Channel `json:"channel"`

	FetchedAt time.Time `json:"fetched_at"`
}
