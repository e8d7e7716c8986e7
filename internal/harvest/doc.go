// Package harvest drives one acquisition session.
//
// The Orchestrator walks the pages of a channel strictly in order. For each
// page it reserves result slots, fans detail fetches out through a
// limiter.Limiter, normalizes and deduplicates the records, and appends them
// to a store.Sink. When the API channel fails on its first page the session
// falls back to the HTML channel; when the API pass stops early on its page
// limit or a page failure, one residual HTML pass tops the results up.
//
// Session state lives in Session and is only changed through atomic
// operations, so detail tasks running concurrently never overshoot the
// desired count.
package harvest
