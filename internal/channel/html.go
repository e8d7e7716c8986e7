package channel

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/nao1215/jobharvest/internal/model"
	"github.com/nao1215/jobharvest/internal/normalize"
	"github.com/nao1215/jobharvest/internal/retry"
)

// SearchPath is the HTML search page.
const SearchPath = "/candidat/recherche-emploi.html/emploi"

// detailFields are the selector cascades of a detail page. They fill the
// gaps JSON-LD leaves.
var detailFields = struct {
	Title, Company, Location, Salary, Contract, Date, Description, Apply []string
}{
	Title:       []string{"h1", ".offer-title", `[class*="title"]`},
	Company:     []string{".company-name", `[class*="company"]`, `[class*="entreprise"]`},
	Location:    []string{".offer-location", `[class*="location"]`, `[class*="lieu"]`},
	Salary:      []string{`[class*="salaire"]`, `[class*="salary"]`},
	Contract:    []string{`[class*="contrat"]`, `[class*="contract"]`},
	Date:        []string{`[class*="date-publication"]`, `[class*="date"]`, "time"},
	Description: []string{"div.job-description-content", `[class*="description"]`, ".offer-content", ".job-description"},
	Apply:       []string{`a[href*="postuler"]`, `a[class*="postuler"]`, `a[class*="apply"]`},
}

// Labels of the detail page bullet list.
var (
	experienceLabels = []string{"expérience", "experience"}
	remoteLabels     = []string{"télétravail", "teletravail"}
)

// HTTPSource adapts an HTML-fetching client to PageSource.
type HTTPSource struct {
	Client interface {
		GetHTML(ctx context.Context, url string) ([]byte, error)
	}
}

// Fetch implements PageSource.
func (s HTTPSource) Fetch(ctx context.Context, url string) ([]byte, error) {
	return s.Client.GetHTML(ctx, url)
}

// HTMLStrategy reads the server-rendered search and detail pages.
type HTMLStrategy struct {
	source  PageSource
	siteURL string
	policy  ExtractionPolicy
	robots  RobotsChecker
	search  *retry.Executor
	detail  *retry.Executor
	logger  *slog.Logger
}

// HTMLOption configures an HTMLStrategy.
type HTMLOption func(*HTMLStrategy)

// WithHTMLSiteURL overrides DefaultSiteURL.
func WithHTMLSiteURL(u string) HTMLOption {
	return func(s *HTMLStrategy) {
		if u != "" {
			s.siteURL = strings.TrimRight(u, "/")
		}
	}
}

// WithListingPolicy overrides DefaultListingPolicy.
func WithListingPolicy(p ExtractionPolicy) HTMLOption {
	return func(s *HTMLStrategy) {
		if len(p) > 0 {
			s.policy = p
		}
	}
}

// WithRobots gates every fetch through r.
func WithRobots(r RobotsChecker) HTMLOption {
	return func(s *HTMLStrategy) {
		s.robots = r
	}
}

// WithHTMLRetry sets the search and detail executors.
func WithHTMLRetry(search, detail *retry.Executor) HTMLOption {
	return func(s *HTMLStrategy) {
		if search != nil {
			s.search = search
		}
		if detail != nil {
			s.detail = detail
		}
	}
}

// WithHTMLLogger sets the logger.
func WithHTMLLogger(l *slog.Logger) HTMLOption {
	return func(s *HTMLStrategy) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewHTMLStrategy returns the HTML channel reading pages from source.
func NewHTMLStrategy(source PageSource, opts ...HTMLOption) *HTMLStrategy {
	s := &HTMLStrategy{
		source:  source,
		siteURL: DefaultSiteURL,
		policy:  DefaultListingPolicy,
		search:  retry.New("html-search", retry.SearchPolicy),
		detail:  retry.New("html-detail", retry.DetailPolicy),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements Strategy.
func (s *HTMLStrategy) Name() model.Channel {
	return model.ChannelHTML
}

// SearchURL returns the search page URL for pageIndex. A start URL in the
// criteria is used as the base; its other parameters are kept.
func (s *HTMLStrategy) SearchURL(pageIndex int, c model.SearchCriteria) (string, error) {
	if c.StartURL != "" {
		u, err := url.Parse(c.StartURL)
		if err != nil {
			return "", fmt.Errorf("invalid start url: %w", err)
		}
		q := u.Query()
		q.Set("page", strconv.Itoa(pageIndex))
		u.RawQuery = q.Encode()
		return u.String(), nil
	}

	q := url.Values{}
	setIfNotEmpty(q, "motsCles", c.Keyword)
	setIfNotEmpty(q, "lieux", strings.Join(c.PlaceIDs, ","))
	for _, t := range c.ContractTypes {
		q.Add("typesConvention", t)
	}
	for _, r := range c.RemoteWork {
		q.Add("teletravail", r)
	}
	q.Set("page", strconv.Itoa(pageIndex))
	return s.siteURL + SearchPath + "?" + q.Encode(), nil
}

// FetchPage implements Strategy. The total is never known on this channel.
func (s *HTMLStrategy) FetchPage(ctx context.Context, pageIndex int, c model.SearchCriteria) (Page, error) {
	target, err := s.SearchURL(pageIndex, c)
	if err != nil {
		return Page{}, err
	}
	doc, base, err := s.load(ctx, s.search, target)
	if err != nil {
		return Page{}, err
	}

	items, matched := s.policy.Apply(doc, base)
	s.logger.Debug("search page parsed",
		"page", pageIndex,
		"items", len(items),
		"extractor", matched,
	)
	return Page{Items: items}, nil
}

// FetchDetail implements Strategy. It needs a detail URL or a native id.
func (s *HTMLStrategy) FetchDetail(ctx context.Context, listing model.ListingRecord) (*model.DetailRecord, error) {
	target := listing.DetailURL
	if target == "" && listing.NativeID != "" {
		target = s.siteURL + detailPathPrefix + url.PathEscape(listing.NativeID)
	}
	if target == "" {
		return nil, ErrDetailUnavailable
	}

	doc, base, err := s.load(ctx, s.detail, target)
	if err != nil {
		return nil, fmt.Errorf("html detail %s: %w", target, err)
	}
	d := ParseDetail(doc, base)
	if d.NativeID == "" {
		d.NativeID = listing.NativeID
	}
	return &d, nil
}

func (s *HTMLStrategy) load(ctx context.Context, exec *retry.Executor, target string) (*goquery.Document, *url.URL, error) {
	if s.robots != nil {
		if err := s.robots.Check(ctx, target); err != nil {
			return nil, nil, fmt.Errorf("%s: %w", target, err)
		}
	}
	body, err := retry.Do(ctx, exec, func(ctx context.Context) ([]byte, error) {
		return s.source.Fetch(ctx, target)
	})
	if err != nil {
		return nil, nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse %s: %w", target, err)
	}
	base, err := url.Parse(target)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid url %s: %w", target, err)
	}
	return doc, base, nil
}

// ParseDetail extracts a detail record from a detail page: JSON-LD first,
// then selector cascades, then a readability pass for the description.
func ParseDetail(doc *goquery.Document, pageURL *url.URL) model.DetailRecord {
	var d model.DetailRecord
	if jp, ok := jobPostingFromJSONLD(doc); ok {
		d = detailFromJobPosting(jp)
	}
	d.Channel = model.ChannelHTML

	// The extraction below reads the visible page only.
	doc.Find("script, style, noscript, iframe").Remove()

	fill := func(dst *string, selectors []string) {
		if *dst == "" {
			*dst = firstText(doc.Selection, selectors...)
		}
	}
	fill(&d.Title, detailFields.Title)
	fill(&d.Company, detailFields.Company)
	fill(&d.Location, detailFields.Location)
	fill(&d.Salary, detailFields.Salary)
	fill(&d.JobType, detailFields.Contract)
	fill(&d.DatePosted, detailFields.Date)

	if d.Experience == "" {
		d.Experience = labelledItem(doc, experienceLabels)
	}
	if d.RemoteWork == "" {
		d.RemoteWork = labelledItem(doc, remoteLabels)
	}
	if d.ApplyURL == "" {
		for _, sel := range detailFields.Apply {
			if href, ok := doc.Find(sel).First().Attr("href"); ok {
				if d.ApplyURL = resolve(pageURL, href); d.ApplyURL != "" {
					break
				}
			}
		}
	}
	if d.DescriptionHTML == "" {
		d.DescriptionHTML = firstHTML(doc.Selection, detailFields.Description...)
	}
	if d.DescriptionHTML == "" {
		d.DescriptionHTML = readableContent(doc, pageURL)
	}
	if d.NativeID == "" && pageURL != nil {
		d.NativeID = nativeIDFromURL(pageURL.String())
	}
	return d
}

// labelledItem finds a list item starting with one of labels and returns
// the text after the label.
func labelledItem(doc *goquery.Document, labels []string) string {
	var out string
	doc.Find("li, dt, dd, p").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := normalize.CollapseSpace(s.Text())
		lower := strings.ToLower(text)
		for _, label := range labels {
			if !strings.HasPrefix(lower, label) {
				continue
			}
			rest := strings.TrimSpace(text[len(label):])
			rest = strings.TrimSpace(strings.TrimLeft(rest, ":-–"))
			if rest == "" {
				if next := normalize.CollapseSpace(s.Next().Text()); next != "" {
					rest = next
				}
			}
			if rest != "" {
				out = rest
				return false
			}
		}
		return true
	})
	return out
}

func readableContent(doc *goquery.Document, pageURL *url.URL) string {
	raw, err := doc.Html()
	if err != nil {
		return ""
	}
	article, err := readability.FromReader(strings.NewReader(raw), pageURL)
	if err != nil {
		return ""
	}
	if normalize.StripMarkup(article.Content) == "" {
		return ""
	}
	return strings.TrimSpace(article.Content)
}

// IsDetailUnavailable reports whether err means the channel cannot
// provide detail for a listing.
func IsDetailUnavailable(err error) bool {
	return errors.Is(err, ErrDetailUnavailable)
}
