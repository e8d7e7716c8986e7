package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/nao1215/jobharvest/internal/model"
	"github.com/nao1215/jobharvest/internal/retry"
)

// Endpoint is one search entry point of the JSON API.
type Endpoint struct {
	Method string
	Path   string
}

// DefaultEndpoints are tried in order until one yields offers.
var DefaultEndpoints = []Endpoint{
	{Method: http.MethodPost, Path: "/cms/webapi/content/offers/search"},
	{Method: http.MethodPost, Path: "/cms/webapi/content/offer-search"},
	{Method: http.MethodGet, Path: "/cms/webapi/content/offer-search"},
}

// DetailPath is the API detail endpoint, queried with numeroOffre.
const DetailPath = "/cms/webapi/offre"

var (
	// markupPattern matches an opening, closing or comment tag.
	markupPattern = regexp.MustCompile(`</?[a-zA-Z][^>]*>|<!--`)

	offerListPaths = FieldPaths{
		"result.offers", "result.offres", "result.items", "result.resultats",
		"offers", "offres", "items", "resultats",
	}
	totalPaths = FieldPaths{
		"result.totalCount", "result.total", "result.totalElements", "result.nombreResultats",
		"totalCount", "total", "totalElements", "nombreResultats",
	}
	detailContainerPaths = []string{"result", "offre", "offer"}
)

// offerFields maps API offer objects, listing or detail, to record fields.
var offerFields = struct {
	ID, Title, Company, Location, Salary, JobType, Date FieldPaths
	Description, DescriptionHTML, Experience, Remote     FieldPaths
	URL, ApplyURL                                        FieldPaths
}{
	ID:              FieldPaths{"numeroOffre", "id", "reference", "offreId"},
	Title:           FieldPaths{"intitule", "title", "libelle"},
	Company:         FieldPaths{"entreprise.nom", "nomCommercial", "company", "recruteur"},
	Location:        FieldPaths{"lieuTravail.libelle", "lieuTravail", "lieuTexte", "location", "lieu"},
	Salary:          FieldPaths{"salaire.libelle", "salaireTexte", "salary"},
	JobType:         FieldPaths{"typeContrat.libelle", "contrat.libelle", "typeContrat", "job_type"},
	Date:            FieldPaths{"datePublication", "dateDePublication", "datePosted"},
	Description:     FieldPaths{"description", "desc", "texteOffre"},
	DescriptionHTML: FieldPaths{"descriptionHtml", "description_html", "texteHtml"},
	Experience:      FieldPaths{"experience.libelle", "niveauExperience", "experience"},
	Remote:          FieldPaths{"teletravail.libelle", "teletravail", "remote"},
	URL:             FieldPaths{"url", "lien", "link", "urlOffre"},
	ApplyURL:        FieldPaths{"urlPostulation", "lienPostulation", "adresseUrlCandidature"},
}

// APIStrategy reads the undocumented JSON search API.
type APIStrategy struct {
	fetcher   JSONFetcher
	siteURL   string
	endpoints []Endpoint
	search    *retry.Executor
	detail    *retry.Executor
	logger    *slog.Logger

	// sticky is the index of the endpoint that last yielded offers, or -1.
	sticky atomic.Int32
}

// APIOption configures an APIStrategy.
type APIOption func(*APIStrategy)

// WithAPISiteURL overrides DefaultSiteURL.
func WithAPISiteURL(u string) APIOption {
	return func(s *APIStrategy) {
		if u != "" {
			s.siteURL = strings.TrimRight(u, "/")
		}
	}
}

// WithEndpoints overrides DefaultEndpoints.
func WithEndpoints(eps []Endpoint) APIOption {
	return func(s *APIStrategy) {
		if len(eps) > 0 {
			s.endpoints = eps
		}
	}
}

// WithAPIRetry sets the search and detail executors.
func WithAPIRetry(search, detail *retry.Executor) APIOption {
	return func(s *APIStrategy) {
		if search != nil {
			s.search = search
		}
		if detail != nil {
			s.detail = detail
		}
	}
}

// WithAPILogger sets the logger.
func WithAPILogger(l *slog.Logger) APIOption {
	return func(s *APIStrategy) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewAPIStrategy returns the API channel.
func NewAPIStrategy(fetcher JSONFetcher, opts ...APIOption) *APIStrategy {
	s := &APIStrategy{
		fetcher:   fetcher,
		siteURL:   DefaultSiteURL,
		endpoints: DefaultEndpoints,
		search:    retry.New("api-search", retry.SearchPolicy),
		detail:    retry.New("api-detail", retry.DetailPolicy),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.sticky.Store(-1)
	return s
}

// Name implements Strategy.
func (s *APIStrategy) Name() model.Channel {
	return model.ChannelAPI
}

// FetchPage implements Strategy by walking the endpoint cascade.
func (s *APIStrategy) FetchPage(ctx context.Context, pageIndex int, c model.SearchCriteria) (Page, error) {
	var lastErr error
	answered := false

	for _, idx := range s.endpointOrder() {
		ep := s.endpoints[idx]
		doc, err := retry.Do(ctx, s.search, func(ctx context.Context) (map[string]any, error) {
			return s.call(ctx, ep, pageIndex, c)
		})
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return Page{}, err
			}
			s.logger.Warn("search endpoint failed",
				"endpoint", ep.Method+" "+ep.Path,
				"page", pageIndex,
				"error", err,
			)
			lastErr = err
			continue
		}

		offers, _ := offerListPaths.Array(doc)
		if len(offers) == 0 {
			if int(s.sticky.Load()) == idx {
				// The endpoint that served earlier pages has run dry.
				return Page{}, nil
			}
			answered = true
			continue
		}

		s.sticky.Store(int32(idx)) //nolint:gosec // endpoint lists are tiny
		page := Page{Items: make([]model.ListingRecord, 0, len(offers))}
		for _, o := range offers {
			page.Items = append(page.Items, s.toListing(o))
		}
		if total, ok := totalPaths.Int(doc); ok {
			page.Total, page.TotalKnown = total, true
		}
		return page, nil
	}

	if !answered && lastErr != nil {
		return Page{}, fmt.Errorf("%w: %w", ErrAllEndpointsFailed, lastErr)
	}
	return Page{}, nil
}

// endpointOrder returns endpoint indexes with the sticky one first.
func (s *APIStrategy) endpointOrder() []int {
	order := make([]int, 0, len(s.endpoints))
	sticky := int(s.sticky.Load())
	if sticky >= 0 && sticky < len(s.endpoints) {
		order = append(order, sticky)
	}
	for i := range s.endpoints {
		if i != sticky {
			order = append(order, i)
		}
	}
	return order
}

func (s *APIStrategy) call(ctx context.Context, ep Endpoint, pageIndex int, c model.SearchCriteria) (map[string]any, error) {
	var doc map[string]any
	target := s.siteURL + ep.Path

	if ep.Method == http.MethodGet {
		q := url.Values{}
		q.Set("page", strconv.Itoa(pageIndex))
		q.Set("size", strconv.Itoa(c.PageSize))
		setIfNotEmpty(q, "motsCles", c.Keyword)
		setIfNotEmpty(q, "lieux", strings.Join(c.PlaceIDs, ","))
		setIfNotEmpty(q, "typesConvention", strings.Join(c.ContractTypes, ","))
		setIfNotEmpty(q, "teletravail", strings.Join(c.RemoteWork, ","))
		err := s.fetcher.GetJSON(ctx, target+"?"+q.Encode(), &doc)
		return doc, err
	}

	payload := map[string]any{
		"pageNumber":      pageIndex,
		"page":            pageIndex,
		"pageSize":        c.PageSize,
		"size":            c.PageSize,
		"motsCles":        c.Keyword,
		"lieux":           nonNil(c.PlaceIDs),
		"typesConvention": nonNil(c.ContractTypes),
		"teletravail":     nonNil(c.RemoteWork),
	}
	err := s.fetcher.PostJSON(ctx, target, payload, &doc)
	return doc, err
}

func (s *APIStrategy) toListing(o map[string]any) model.ListingRecord {
	id := offerFields.ID.String(o)
	desc, text := descriptionFields(o)
	return model.ListingRecord{
		NativeID:        id,
		Title:           offerFields.Title.String(o),
		Company:         offerFields.Company.String(o),
		Location:        offerFields.Location.String(o),
		Salary:          offerFields.Salary.String(o),
		JobType:         offerFields.JobType.String(o),
		DatePosted:      offerFields.Date.String(o),
		Experience:      offerFields.Experience.String(o),
		RemoteWork:      offerFields.Remote.String(o),
		DescriptionHTML: desc,
		DescriptionText: text,
		ApplyURL:        absoluteURL(s.siteURL, offerFields.ApplyURL.String(o)),
		DetailURL:       s.detailURL(offerFields.URL.String(o), id),
		Channel:         model.ChannelAPI,
	}
}

func (s *APIStrategy) detailURL(link, id string) string {
	if link != "" {
		return absoluteURL(s.siteURL, link)
	}
	if id != "" {
		return s.siteURL + detailPathPrefix + url.PathEscape(id)
	}
	return ""
}

// FetchDetail implements Strategy through the API detail endpoint. It
// needs the listing's native id.
func (s *APIStrategy) FetchDetail(ctx context.Context, listing model.ListingRecord) (*model.DetailRecord, error) {
	if listing.NativeID == "" {
		return nil, ErrDetailUnavailable
	}
	target := s.siteURL + DetailPath + "?numeroOffre=" + url.QueryEscape(listing.NativeID)

	doc, err := retry.Do(ctx, s.detail, func(ctx context.Context) (map[string]any, error) {
		var doc map[string]any
		err := s.fetcher.GetJSON(ctx, target, &doc)
		return doc, err
	})
	if err != nil {
		return nil, fmt.Errorf("api detail %s: %w", listing.NativeID, err)
	}

	o := doc
	for _, key := range detailContainerPaths {
		if inner, ok := doc[key].(map[string]any); ok {
			o = inner
			break
		}
	}

	desc, text := descriptionFields(o)
	return &model.DetailRecord{
		NativeID:        firstNonEmpty(offerFields.ID.String(o), listing.NativeID),
		Title:           offerFields.Title.String(o),
		Company:         offerFields.Company.String(o),
		Location:        offerFields.Location.String(o),
		Salary:          offerFields.Salary.String(o),
		JobType:         offerFields.JobType.String(o),
		Experience:      offerFields.Experience.String(o),
		RemoteWork:      offerFields.Remote.String(o),
		ApplyURL:        absoluteURL(s.siteURL, offerFields.ApplyURL.String(o)),
		DatePosted:      offerFields.Date.String(o),
		DescriptionHTML: desc,
		DescriptionText: text,
		Channel:         model.ChannelAPI,
	}, nil
}

// descriptionFields returns the HTML and plain-text descriptions of an
// offer. A plain-text field that carries markup is returned as the HTML
// description so the text is derived by stripping it.
func descriptionFields(o map[string]any) (desc, text string) {
	desc = offerFields.DescriptionHTML.String(o)
	text = offerFields.Description.String(o)
	if desc == "" && markupPattern.MatchString(text) {
		return text, ""
	}
	return desc, text
}

func setIfNotEmpty(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// absoluteURL resolves ref against base. Empty refs stay empty.
func absoluteURL(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if r.IsAbs() {
		return r.String()
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}
