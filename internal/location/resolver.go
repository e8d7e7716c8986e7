// Package location turns user location input into upstream place ids.
package location

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/text/cases"

	"github.com/nao1215/jobharvest/internal/retry"
)

// AutocompletePath is the place lookup endpoint, queried with q.
const AutocompletePath = "/cms/webapi/referentiel/lieux/autocomplete"

// startURLParams carry place ids in a search URL.
var startURLParams = []string{"lieux", "location"}

// Candidate is one autocomplete suggestion.
type Candidate struct {
	ID    string
	Label string
}

// Lookup returns autocomplete candidates for text.
type Lookup interface {
	Autocomplete(ctx context.Context, text string) ([]Candidate, error)
}

// Query is the location input of a session.
type Query struct {
	StartURL   string
	Text       string
	Department string
}

// Resolver applies the location precedence: ids embedded in the start URL,
// then an autocomplete match for the free text, then a numeric department
// code. An empty result means no location filter.
type Resolver struct {
	lookup Lookup
	exec   *retry.Executor
	logger *slog.Logger
}

// NewResolver returns a Resolver. lookup may be nil to disable the
// autocomplete step.
func NewResolver(lookup Lookup, exec *retry.Executor, logger *slog.Logger) *Resolver {
	if exec == nil {
		exec = retry.New("autocomplete", retry.AutocompletePolicy)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{lookup: lookup, exec: exec, logger: logger}
}

// Resolve returns the ordered place ids for q. Lookup failures degrade to
// the next source and are logged.
func (r *Resolver) Resolve(ctx context.Context, q Query) []string {
	if ids := IDsFromURL(q.StartURL); len(ids) > 0 {
		return ids
	}

	text := strings.TrimSpace(q.Text)
	dept := strings.TrimSpace(q.Department)
	if text == "" && dept != "" && !isNumeric(dept) {
		text = dept
	}

	if text != "" && r.lookup != nil {
		cands, err := retry.Do(ctx, r.exec, func(ctx context.Context) ([]Candidate, error) {
			return r.lookup.Autocomplete(ctx, text)
		})
		switch {
		case err != nil:
			r.logger.Warn("location lookup failed", "location", text, "error", err)
		case len(cands) == 0:
			r.logger.Warn("location not found", "location", text)
		default:
			best := pick(text, cands)
			r.logger.Debug("location resolved", "location", text, "id", best.ID, "label", best.Label)
			return []string{best.ID}
		}
	}

	if n, err := strconv.ParseUint(dept, 10, 32); err == nil {
		return []string{strconv.FormatUint(n, 10)}
	}
	return nil
}

// pick returns the first candidate whose label contains text, ignoring
// case, or the first candidate.
func pick(text string, cands []Candidate) Candidate {
	fold := cases.Fold()
	needle := fold.String(text)
	for _, c := range cands {
		if strings.Contains(fold.String(c.Label), needle) {
			return c
		}
	}
	return cands[0]
}

// IDsFromURL returns the place ids carried by a search URL, accepting
// repeated and comma-separated values.
func IDsFromURL(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil
	}
	return SplitValues(u.Query(), startURLParams...)
}

// SplitValues collects the values of the first present key, splitting
// comma-separated entries and dropping blanks and duplicates.
func SplitValues(q url.Values, keys ...string) []string {
	for _, key := range keys {
		vals, ok := q[key]
		if !ok {
			continue
		}
		var out []string
		seen := map[string]bool{}
		for _, v := range vals {
			for _, part := range strings.Split(v, ",") {
				part = strings.TrimSpace(part)
				if part == "" || seen[part] {
					continue
				}
				seen[part] = true
				out = append(out, part)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	_, err := strconv.ParseUint(s, 10, 32)
	return err == nil
}

// JSONGetter is the transport used by APILookup.
type JSONGetter interface {
	GetJSON(ctx context.Context, url string, v any) error
}

// APILookup queries the site autocomplete endpoint.
type APILookup struct {
	client  JSONGetter
	siteURL string
}

// NewAPILookup returns a Lookup against siteURL.
func NewAPILookup(client JSONGetter, siteURL string) *APILookup {
	return &APILookup{client: client, siteURL: strings.TrimRight(siteURL, "/")}
}

// Autocomplete implements Lookup. Both a bare array and an object wrapping
// the array under a common key are accepted.
func (l *APILookup) Autocomplete(ctx context.Context, text string) ([]Candidate, error) {
	var raw any
	target := l.siteURL + AutocompletePath + "?q=" + url.QueryEscape(text)
	if err := l.client.GetJSON(ctx, target, &raw); err != nil {
		return nil, fmt.Errorf("autocomplete %q: %w", text, err)
	}

	list, _ := raw.([]any)
	if m, ok := raw.(map[string]any); ok {
		for _, key := range []string{"result", "results", "lieux", "items"} {
			if arr, ok := m[key].([]any); ok {
				list = arr
				break
			}
		}
	}

	out := make([]Candidate, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		c := Candidate{ID: firstScalar(m, "id", "code", "identifiant"), Label: firstScalar(m, "libelle", "label", "nom", "name")}
		if c.ID != "" {
			out = append(out, c)
		}
	}
	return out, nil
}

func firstScalar(m map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}
