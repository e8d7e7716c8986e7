package channel

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/nao1215/jobharvest/internal/model"
)

// jobPostingFields maps schema.org JobPosting properties.
var jobPostingFields = struct {
	Title, Company, Date, Description, Locality, Region, Salary, Currency, EmploymentType, ID FieldPaths
}{
	Title:          FieldPaths{"title", "name"},
	Company:        FieldPaths{"hiringOrganization.name"},
	Date:           FieldPaths{"datePosted"},
	Description:    FieldPaths{"description"},
	Locality:       FieldPaths{"jobLocation.address.addressLocality", "jobLocation.0.address.addressLocality"},
	Region:         FieldPaths{"jobLocation.address.addressRegion", "jobLocation.0.address.addressRegion"},
	Salary:         FieldPaths{"baseSalary.value.value", "baseSalary.value.minValue", "baseSalary.value"},
	Currency:       FieldPaths{"baseSalary.currency"},
	EmploymentType: FieldPaths{"employmentType"},
	ID:             FieldPaths{"identifier.value", "identifier"},
}

// jobPostingFromJSONLD returns the first JobPosting object embedded in doc.
func jobPostingFromJSONLD(doc *goquery.Document) (map[string]any, bool) {
	var found map[string]any
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var v any
		if err := json.Unmarshal([]byte(strings.TrimSpace(s.Text())), &v); err != nil {
			return true
		}
		found = findJobPosting(v)
		return found == nil
	})
	return found, found != nil
}

func findJobPosting(v any) map[string]any {
	switch t := v.(type) {
	case []any:
		for _, e := range t {
			if m := findJobPosting(e); m != nil {
				return m
			}
		}
	case map[string]any:
		if isJobPosting(t["@type"]) {
			return t
		}
		if g, ok := t["@graph"]; ok {
			return findJobPosting(g)
		}
	}
	return nil
}

func isJobPosting(typ any) bool {
	switch t := typ.(type) {
	case string:
		return t == "JobPosting"
	case []any:
		for _, e := range t {
			if s, ok := e.(string); ok && s == "JobPosting" {
				return true
			}
		}
	}
	return false
}

// detailFromJobPosting maps a JobPosting object to a DetailRecord.
func detailFromJobPosting(jp map[string]any) model.DetailRecord {
	location := jobPostingFields.Locality.String(jp)
	if region := jobPostingFields.Region.String(jp); region != "" && region != location {
		if location != "" {
			location += ", " + region
		} else {
			location = region
		}
	}
	salary := jobPostingFields.Salary.String(jp)
	if cur := jobPostingFields.Currency.String(jp); salary != "" && cur != "" {
		salary += " " + cur
	}
	return model.DetailRecord{
		NativeID:        jobPostingFields.ID.String(jp),
		Title:           jobPostingFields.Title.String(jp),
		Company:         jobPostingFields.Company.String(jp),
		Location:        location,
		Salary:          salary,
		JobType:         jobPostingFields.EmploymentType.String(jp),
		DatePosted:      jobPostingFields.Date.String(jp),
		DescriptionHTML: jobPostingFields.Description.String(jp),
		Channel:         model.ChannelHTML,
	}
}
