package channel

import (
	"context"
	"errors"

	"github.com/nao1215/jobharvest/internal/model"
)

// DefaultSiteURL is the public site the channels talk to.
const DefaultSiteURL = "https://www.apec.fr"

// detailPathPrefix is the path of a detail page, followed by the native id.
const detailPathPrefix = "/candidat/recherche-emploi.html/emploi/detail-offre/"

var (
	// ErrDetailUnavailable is returned by FetchDetail when the channel has
	// no way to fetch the detail of this listing.
	ErrDetailUnavailable = errors.New("detail not available on this channel")
	// ErrAllEndpointsFailed is returned when every API endpoint failed for a page.
	ErrAllEndpointsFailed = errors.New("all search endpoints failed")
)

// Page is one page of listings.
type Page struct {
	Items []model.ListingRecord
	// Total is the number of results the upstream declares, when TotalKnown.
	Total      int
	TotalKnown bool
}

// Strategy is one acquisition channel.
type Strategy interface {
	// Name returns the channel tag.
	Name() model.Channel
	// FetchPage returns listings of the zero-based page pageIndex.
	// Transient failures are retried inside; a returned error means the
	// page could not be fetched at all.
	FetchPage(ctx context.Context, pageIndex int, c model.SearchCriteria) (Page, error)
	// FetchDetail returns the detail of listing, or ErrDetailUnavailable.
	FetchDetail(ctx context.Context, listing model.ListingRecord) (*model.DetailRecord, error)
}

// JSONFetcher is the transport used by APIStrategy.
type JSONFetcher interface {
	GetJSON(ctx context.Context, url string, v any) error
	PostJSON(ctx context.Context, url string, payload, v any) error
}

// PageSource returns the HTML of a URL. The HTTP client and the browser
// renderer both implement it.
type PageSource interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// RobotsChecker gates HTML fetches.
type RobotsChecker interface {
	Check(ctx context.Context, url string) error
}
