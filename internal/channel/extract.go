package channel

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/nao1215/jobharvest/internal/model"
	"github.com/nao1215/jobharvest/internal/normalize"
)

// nativeIDPattern extracts the offer id from a detail URL.
var nativeIDPattern = regexp.MustCompile(`/detail-offre/([0-9]+[A-Za-z]*)`)

// ListingExtractor is one named way of reading listings from a search page.
type ListingExtractor struct {
	Name    string
	Extract func(doc *goquery.Document, base *url.URL) []model.ListingRecord
}

// ExtractionPolicy is an ordered list of extractors. The first one
// returning at least one listing wins.
type ExtractionPolicy []ListingExtractor

// Apply runs the policy and returns the listings with the winning
// extractor name. Both are empty when nothing matched.
func (p ExtractionPolicy) Apply(doc *goquery.Document, base *url.URL) ([]model.ListingRecord, string) {
	for _, ex := range p {
		if items := ex.Extract(doc, base); len(items) > 0 {
			return items, ex.Name
		}
	}
	return nil, ""
}

// Card and link selectors of the search result page.
const (
	cardSelector       = `article.card-offre, article[data-offer-id]`
	cardLinkSelector   = `a[href*="/detail-offre/"], h2 a`
	detailLinkSelector = `a[href*="/detail-offre/"]`
)

// cardFields are the per-field selector cascades inside one card.
var cardFields = struct {
	Title, Company, Location, Salary, Contract, Date []string
}{
	Title:    []string{"h2", "h3", ".card-title", `[class*="title"]`},
	Company:  []string{".card-company", `[class*="company"]`, `[class*="entreprise"]`},
	Location: []string{".card-location", `[class*="location"]`, `[class*="lieu"]`},
	Salary:   []string{".card-salary", `[class*="salaire"]`, `[class*="salary"]`},
	Contract: []string{`[class*="contract"]`, `[class*="contrat"]`},
	Date:     []string{`[class*="date"]`, "time"},
}

// DefaultListingPolicy reads result cards first and falls back to bare
// detail links.
var DefaultListingPolicy = ExtractionPolicy{
	{Name: "cards", Extract: extractCards},
	{Name: "detail-links", Extract: extractDetailLinks},
}

func extractCards(doc *goquery.Document, base *url.URL) []model.ListingRecord {
	var out []model.ListingRecord
	doc.Find(cardSelector).Each(func(_ int, card *goquery.Selection) {
		link := card.Find(cardLinkSelector).First()
		href, _ := link.Attr("href")
		detailURL := resolve(base, href)

		title := firstText(card, cardFields.Title...)
		if title == "" {
			title = normalize.CollapseSpace(link.Text())
		}
		if title == "" && detailURL == "" {
			return
		}

		id, _ := card.Attr("data-offer-id")
		if id = strings.TrimSpace(id); id == "" {
			id = nativeIDFromURL(detailURL)
		}

		out = append(out, model.ListingRecord{
			NativeID:   id,
			Title:      title,
			Company:    firstText(card, cardFields.Company...),
			Location:   firstText(card, cardFields.Location...),
			Salary:     firstText(card, cardFields.Salary...),
			JobType:    firstText(card, cardFields.Contract...),
			DatePosted: firstText(card, cardFields.Date...),
			DetailURL:  detailURL,
			Channel:    model.ChannelHTML,
		})
	})
	return out
}

func extractDetailLinks(doc *goquery.Document, base *url.URL) []model.ListingRecord {
	var out []model.ListingRecord
	seen := map[string]bool{}
	doc.Find(detailLinkSelector).Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		detailURL := resolve(base, href)
		key := normalize.CanonicalURL(detailURL)
		if key == "" || seen[key] {
			return
		}
		seen[key] = true

		title := normalize.CollapseSpace(a.Text())
		if title == "" {
			title, _ = a.Attr("title")
		}
		out = append(out, model.ListingRecord{
			NativeID:  nativeIDFromURL(detailURL),
			Title:     strings.TrimSpace(title),
			DetailURL: detailURL,
			Channel:   model.ChannelHTML,
		})
	})
	return out
}

// firstText returns the collapsed text of the first selector that matches
// a non-empty element under s.
func firstText(s *goquery.Selection, selectors ...string) string {
	for _, sel := range selectors {
		if t := normalize.CollapseSpace(s.Find(sel).First().Text()); t != "" {
			return t
		}
	}
	return ""
}

// firstHTML is firstText returning inner HTML.
func firstHTML(s *goquery.Selection, selectors ...string) string {
	for _, sel := range selectors {
		found := s.Find(sel).First()
		if normalize.CollapseSpace(found.Text()) == "" {
			continue
		}
		if h, err := found.Html(); err == nil && strings.TrimSpace(h) != "" {
			return strings.TrimSpace(h)
		}
	}
	return ""
}

func nativeIDFromURL(u string) string {
	if m := nativeIDPattern.FindStringSubmatch(u); m != nil {
		return m[1]
	}
	return ""
}

func resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}
