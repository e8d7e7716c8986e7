package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/jobharvest/internal/model"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "jobharvest"

	// DefaultSiteURL is the site harvested by default.
	DefaultSiteURL = "https://www.apec.fr"

	// DefaultResultsWanted is the number of postings a run collects.
	DefaultResultsWanted = 100

	// DefaultMaxPages caps the pages fetched per channel pass.
	DefaultMaxPages = 5

	// DefaultPageSize is the number of offers requested per API page.
	DefaultPageSize = 20

	// DefaultMaxConcurrency bounds simultaneous detail fetches.
	DefaultMaxConcurrency = 8

	// DefaultTimeout applies to every single request.
	DefaultTimeout = 20 * time.Second

	// DefaultJitterRatio is the random extra added to the request delay.
	DefaultJitterRatio = 0.25

	// DefaultMaxBodySize limits the response body size read per request.
	DefaultMaxBodySize = 8 * 1024 * 1024

	// DefaultReportFormat is the summary rendering.
	DefaultReportFormat = "text"

	// DefaultRenderWaitSelector is awaited before a rendered page is read.
	DefaultRenderWaitSelector = "body"
)

// Config holds all options of a harvest run. It is filled from flags and
// the configuration file and validated once before the run starts.
type Config struct {
	// Keyword is the free-text search.
	Keyword string

	// Location is a free-text place resolved through autocomplete.
	Location string

	// Department is a department code. A non-numeric value is looked up
	// like Location.
	Department string

	// ContractTypes are upstream contract-type codes.
	ContractTypes []string

	// RemoteWork are upstream remote-work codes.
	RemoteWork []string

	// ResultsWanted is the number of postings to collect.
	ResultsWanted int

	// MaxPages caps the pages fetched per channel pass.
	MaxPages int

	// PageSize is the number of offers requested per API page.
	PageSize int

	// CollectDetails fetches the detail of every posting.
	CollectDetails bool

	// UseAPI tries the JSON API before the HTML pages.
	UseAPI bool

	// ResidualPass tops up with one HTML pass when the API pass stops early.
	ResidualPass bool

	// MaxConcurrency bounds simultaneous detail fetches.
	MaxConcurrency int

	// RequestDelay is waited before every request, plus up to 25% jitter.
	RequestDelay time.Duration

	// StartURLs are search URLs. The first one's query parameters override
	// Keyword, Location and the filters; each further one is harvested by
	// its own HTML pass.
	StartURLs []string

	// Proxies are http, https or socks5 proxy URLs used round-robin.
	Proxies []string

	// TimeBudget bounds the run. Zero means no limit.
	TimeBudget time.Duration

	// Timeout applies to every single request.
	Timeout time.Duration

	// SiteURL is the site root.
	SiteURL string

	// Headers are extra request headers.
	Headers map[string]string

	// MaxBodySize limits the response body size read per request.
	MaxBodySize int64

	// RespectRobots checks robots.txt before fetching HTML pages.
	RespectRobots bool

	// Render loads HTML pages in a headless browser.
	Render bool

	// RenderWaitSelector is awaited before a rendered page is read.
	RenderWaitSelector string

	// Output is a JSON-lines file; "-" writes to stdout. Empty disables it.
	Output string

	// PostgresDSN, when set, also writes records to PostgreSQL.
	PostgresDSN string

	// PostgresTable is the PostgreSQL table name.
	PostgresTable string

	// SaveToDB stores the session and its records in the SQLite store.
	SaveToDB bool

	// DBDir is the SQLite store directory.
	DBDir string

	// ReportFormat is text, json or markdown.
	ReportFormat string

	// ReportFile receives the summary instead of stdout.
	ReportFile string

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is an explicit configuration file.
	ConfigFilePath string

	// Profile names the configuration file profile to apply.
	Profile string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		ResultsWanted:      DefaultResultsWanted,
		MaxPages:           DefaultMaxPages,
		PageSize:           DefaultPageSize,
		CollectDetails:     true,
		UseAPI:             true,
		ResidualPass:       true,
		MaxConcurrency:     DefaultMaxConcurrency,
		Timeout:            DefaultTimeout,
		SiteURL:            DefaultSiteURL,
		MaxBodySize:        DefaultMaxBodySize,
		RenderWaitSelector: DefaultRenderWaitSelector,
		SaveToDB:           true,
		DBDir:              XDGDataDir(),
		ReportFormat:       DefaultReportFormat,
	}
}

// XDGDataDir returns the XDG data directory for jobharvest.
// On Linux: ~/.local/share/jobharvest
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for jobharvest.
// On Linux: ~/.config/jobharvest
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first problem found.
func (c *Config) Validate() error {
	if c.ResultsWanted < 1 {
		return ErrInvalidResults
	}
	if c.MaxPages < 1 {
		return ErrInvalidMaxPages
	}
	if c.PageSize < 1 {
		return ErrInvalidPageSize
	}
	if c.MaxConcurrency < 1 {
		return ErrInvalidConcurrency
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.RequestDelay < 0 {
		return ErrInvalidRequestDelay
	}
	if c.TimeBudget < 0 {
		return ErrInvalidTimeBudget
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	switch strings.ToLower(c.ReportFormat) {
	case "text", "json", "markdown", "md":
	default:
		return ErrInvalidReportFormat
	}
	for _, u := range c.StartURLs {
		if _, err := ParseStartURL(u); err != nil {
			return err
		}
	}
	return nil
}

// Criteria builds the session input. Values carried by the first start
// URL override the keyword and filters; placeIDs are the resolved
// location ids.
func (c *Config) Criteria(placeIDs []string) model.SearchCriteria {
	crit := model.SearchCriteria{
		Keyword:        strings.TrimSpace(c.Keyword),
		PlaceIDs:       placeIDs,
		ContractTypes:  c.ContractTypes,
		RemoteWork:     c.RemoteWork,
		DesiredCount:   c.ResultsWanted,
		PageSize:       c.PageSize,
		MaxPages:       c.MaxPages,
		CollectDetails: c.CollectDetails,
		TimeBudget:     c.TimeBudget,
	}
	if len(c.StartURLs) == 0 {
		return crit
	}
	p, err := ParseStartURL(c.StartURLs[0])
	if err != nil {
		return crit
	}
	crit.StartURL = p.URL
	for _, raw := range c.StartURLs[1:] {
		if extra, err := ParseStartURL(raw); err == nil {
			crit.ExtraStartURLs = append(crit.ExtraStartURLs, extra.URL)
		}
	}
	if p.Keyword != "" {
		crit.Keyword = p.Keyword
	}
	if len(p.ContractTypes) > 0 {
		crit.ContractTypes = p.ContractTypes
	}
	if len(p.RemoteWork) > 0 {
		crit.RemoteWork = p.RemoteWork
	}
	return crit
}
