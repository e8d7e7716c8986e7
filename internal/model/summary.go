package model

import "time"

// Outcome classifies how a session ended.
type Outcome string

const (
	// OutcomeComplete means the desired count was reached.
	OutcomeComplete Outcome = "complete"
	// OutcomePartial means some records were saved, but fewer than desired.
	OutcomePartial Outcome = "partial"
	// OutcomeNoData means every channel answered but nothing was found.
	OutcomeNoData Outcome = "no_data"
	// OutcomeUpstreamFailed means no record was saved and every channel failed.
	OutcomeUpstreamFailed Outcome = "upstream_failed"
)

// ChannelStats counts the work done on one channel.
type ChannelStats struct {
	Pages   int `json:"pages"`
	Records int `json:"records"`
	Errors  int `json:"errors"`
}

// Summary describes a finished session.
type Summary struct {
	RunID          string                   `json:"run_id"`
	Criteria       SearchCriteria           `json:"criteria"`
	StartedAt      time.Time                `json:"started_at"`
	Elapsed        time.Duration            `json:"elapsed"`
	PagesProcessed int                      `json:"pages_processed"`
	RecordsSaved   int                      `json:"records_saved"`
	RemoteCalls    int64                    `json:"remote_calls"`
	Errors         int                      `json:"errors"`
	Fallback       bool                     `json:"fallback"`
	ResidualPass   bool                     `json:"residual_pass"`
	StartURLPasses int                      `json:"start_url_passes,omitempty"`
	BudgetExceeded bool                     `json:"budget_exceeded"`
	Outcome        Outcome                  `json:"outcome"`
	Channels       map[Channel]ChannelStats `json:"channels,omitempty"`
}
