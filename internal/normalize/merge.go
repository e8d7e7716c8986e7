package normalize

import (
	"strings"
	"time"

	"github.com/nao1215/jobharvest/internal/model"
)

// Merge combines listing with an optional detail record.
//
// A non-empty detail field wins over the listing field. When the detail
// was fetched through another channel than the listing, the listing
// fields win instead and the detail only fills gaps. The plain-text
// description is derived from the winning HTML description whenever
// one exists.
func Merge(listing model.ListingRecord, detail *model.DetailRecord, fetchedAt time.Time) model.CanonicalRecord {
	var d model.DetailRecord
	if detail != nil {
		d = *detail
	}
	detailFirst := detail != nil && (d.Channel == "" || d.Channel == listing.Channel)

	pick := func(fromDetail, fromListing string) string {
		if detailFirst {
			return first(fromDetail, fromListing)
		}
		return first(fromListing, fromDetail)
	}

	rec := model.CanonicalRecord{
		Title:           pick(d.Title, listing.Title),
		Company:         pick(d.Company, listing.Company),
		Location:        pick(d.Location, listing.Location),
		Salary:          pick(d.Salary, listing.Salary),
		JobType:         pick(d.JobType, listing.JobType),
		Experience:      pick(d.Experience, listing.Experience),
		RemoteWork:      pick(d.RemoteWork, listing.RemoteWork),
		DatePosted:      pick(d.DatePosted, listing.DatePosted),
		DescriptionHTML: pick(d.DescriptionHTML, listing.DescriptionHTML),
		ApplyURL:        pick(d.ApplyURL, listing.ApplyURL),
		URL:             CanonicalURL(listing.DetailURL),
		Channel:         listing.Channel,
		FetchedAt:       fetchedAt,
	}

	if rec.DescriptionHTML != "" {
		rec.DescriptionText = StripMarkup(rec.DescriptionHTML)
	}
	if rec.DescriptionText == "" {
		rec.DescriptionText = CollapseSpace(pick(d.DescriptionText, listing.DescriptionText))
	}

	rec.SourceID = first(d.NativeID, listing.NativeID)
	rec.ID = resolveID(rec.SourceID, rec.URL, rec.Title, rec.Company, rec.DatePosted)

	return rec
}

// AsListing re-expresses rec as listing-only input for Merge.
func AsListing(rec model.CanonicalRecord) model.ListingRecord {
	return model.ListingRecord{
		NativeID:        rec.SourceID,
		Title:           rec.Title,
		Company:         rec.Company,
		Location:        rec.Location,
		Salary:          rec.Salary,
		JobType:         rec.JobType,
		DatePosted:      rec.DatePosted,
		Experience:      rec.Experience,
		RemoteWork:      rec.RemoteWork,
		DescriptionHTML: rec.DescriptionHTML,
		DescriptionText: rec.DescriptionText,
		ApplyURL:        rec.ApplyURL,
		DetailURL:       rec.URL,
		Channel:         rec.Channel,
	}
}

// IntakeIdentity is the best identity of a listing before any detail fetch.
func IntakeIdentity(l model.ListingRecord) string {
	return resolveID(strings.TrimSpace(l.NativeID), CanonicalURL(l.DetailURL),
		strings.TrimSpace(l.Title), strings.TrimSpace(l.Company), strings.TrimSpace(l.DatePosted))
}

func resolveID(nativeID, canonicalURL, title, company, date string) string {
	if nativeID != "" {
		return nativeID
	}
	if canonicalURL != "" {
		return canonicalURL
	}
	return CompositeKey(title, company, date)
}

func first(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
