package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/nao1215/jobharvest/internal/location"
)

// StartParams are the search values carried by a start URL.
type StartParams struct {
	URL           string
	Keyword       string
	PlaceIDs      []string
	ContractTypes []string
	RemoteWork    []string
}

// ParseStartURL reads motsCles (or keyword), lieux (or location),
// typesConvention and teletravail from a search URL. Values may be
// repeated or comma-separated.
func ParseStartURL(raw string) (StartParams, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return StartParams{}, fmt.Errorf("%w: %w", ErrInvalidStartURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return StartParams{}, fmt.Errorf("%w: %s", ErrInvalidStartURL, raw)
	}

	q := u.Query()
	p := StartParams{
		URL:           u.String(),
		PlaceIDs:      location.SplitValues(q, "lieux", "location"),
		ContractTypes: location.SplitValues(q, "typesConvention"),
		RemoteWork:    location.SplitValues(q, "teletravail"),
	}
	for _, key := range []string{"motsCles", "keyword"} {
		if v := strings.TrimSpace(q.Get(key)); v != "" {
			p.Keyword = v
			break
		}
	}
	return p, nil
}
