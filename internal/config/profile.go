package config

import (
	"fmt"
	"maps"
	"time"
)

// Profile is a set of search and run options stored in the configuration
// file. Zero values mean "not set".
type Profile struct {
	Keyword        string            `yaml:"keyword,omitempty"`
	Location       string            `yaml:"location,omitempty"`
	Department     string            `yaml:"department,omitempty"`
	ContractTypes  []string          `yaml:"contractTypes,omitempty"`
	RemoteWork     []string          `yaml:"remoteWork,omitempty"`
	ResultsWanted  int               `yaml:"resultsWanted,omitempty"`
	MaxPages       int               `yaml:"maxPages,omitempty"`
	CollectDetails *bool             `yaml:"collectDetails,omitempty"`
	UseAPI         *bool             `yaml:"useApi,omitempty"`
	MaxConcurrency int               `yaml:"maxConcurrency,omitempty"`
	RequestDelay   time.Duration     `yaml:"requestDelay,omitempty"`
	StartURLs      []string          `yaml:"startUrls,omitempty"`
	Proxies        []string          `yaml:"proxies,omitempty"`
	TimeBudget     time.Duration     `yaml:"timeBudget,omitempty"`
	Timeout        time.Duration     `yaml:"timeout,omitempty"`
	Headers        map[string]string `yaml:"headers,omitempty"`
	Output         string            `yaml:"output,omitempty"`
	PostgresDSN    string            `yaml:"postgresDsn,omitempty"`
	RespectRobots  *bool             `yaml:"respectRobots,omitempty"`
	Render         *bool             `yaml:"render,omitempty"`
}

// File represents the structure of the .jobharvest configuration file.
type File struct {
	// Defaults apply to every run.
	Defaults Profile `yaml:"defaults,omitempty"`

	// Profiles are named presets selected with --profile.
	Profiles map[string]Profile `yaml:"profiles,omitempty"`
}

// Resolve returns the defaults merged with the named profile. An empty
// name returns the defaults.
func (f *File) Resolve(name string) (Profile, error) {
	result := f.Defaults
	if name == "" {
		return result, nil
	}
	p, ok := f.Profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	return result.merge(p), nil
}

// merge returns p overridden by the values set in o.
func (p Profile) merge(o Profile) Profile {
	setString(&p.Keyword, o.Keyword)
	setString(&p.Location, o.Location)
	setString(&p.Department, o.Department)
	setString(&p.Output, o.Output)
	setString(&p.PostgresDSN, o.PostgresDSN)
	setSlice(&p.ContractTypes, o.ContractTypes)
	setSlice(&p.RemoteWork, o.RemoteWork)
	setSlice(&p.StartURLs, o.StartURLs)
	setSlice(&p.Proxies, o.Proxies)
	setNonZero(&p.ResultsWanted, o.ResultsWanted)
	setNonZero(&p.MaxPages, o.MaxPages)
	setNonZero(&p.MaxConcurrency, o.MaxConcurrency)
	setNonZero(&p.RequestDelay, o.RequestDelay)
	setNonZero(&p.TimeBudget, o.TimeBudget)
	setNonZero(&p.Timeout, o.Timeout)
	setBool(&p.CollectDetails, o.CollectDetails)
	setBool(&p.UseAPI, o.UseAPI)
	setBool(&p.RespectRobots, o.RespectRobots)
	setBool(&p.Render, o.Render)
	if len(o.Headers) > 0 {
		merged := maps.Clone(p.Headers)
		if merged == nil {
			merged = make(map[string]string, len(o.Headers))
		}
		maps.Copy(merged, o.Headers)
		p.Headers = merged
	}
	return p
}

// Apply copies the profile into cfg. Options for which changed reports
// true were given explicitly on the command line and are left alone.
// Flag names match the harvest command flags.
func (p Profile) Apply(cfg *Config, changed func(flag string) bool) {
	if changed == nil {
		changed = func(string) bool { return false }
	}
	apply := func(flag string, set bool, fn func()) {
		if set && !changed(flag) {
			fn()
		}
	}

	apply("keyword", p.Keyword != "", func() { cfg.Keyword = p.Keyword })
	apply("location", p.Location != "", func() { cfg.Location = p.Location })
	apply("department", p.Department != "", func() { cfg.Department = p.Department })
	apply("contract-type", len(p.ContractTypes) > 0, func() { cfg.ContractTypes = p.ContractTypes })
	apply("remote-work", len(p.RemoteWork) > 0, func() { cfg.RemoteWork = p.RemoteWork })
	apply("results", p.ResultsWanted != 0, func() { cfg.ResultsWanted = p.ResultsWanted })
	apply("max-pages", p.MaxPages != 0, func() { cfg.MaxPages = p.MaxPages })
	apply("details", p.CollectDetails != nil, func() { cfg.CollectDetails = *p.CollectDetails })
	apply("api", p.UseAPI != nil, func() { cfg.UseAPI = *p.UseAPI })
	apply("concurrency", p.MaxConcurrency != 0, func() { cfg.MaxConcurrency = p.MaxConcurrency })
	apply("delay", p.RequestDelay != 0, func() { cfg.RequestDelay = p.RequestDelay })
	apply("start-url", len(p.StartURLs) > 0, func() { cfg.StartURLs = p.StartURLs })
	apply("proxy", len(p.Proxies) > 0, func() { cfg.Proxies = p.Proxies })
	apply("time-budget", p.TimeBudget != 0, func() { cfg.TimeBudget = p.TimeBudget })
	apply("timeout", p.Timeout != 0, func() { cfg.Timeout = p.Timeout })
	apply("output", p.Output != "", func() { cfg.Output = p.Output })
	apply("postgres-dsn", p.PostgresDSN != "", func() { cfg.PostgresDSN = p.PostgresDSN })
	apply("robots", p.RespectRobots != nil, func() { cfg.RespectRobots = *p.RespectRobots })
	apply("render", p.Render != nil, func() { cfg.Render = *p.Render })

	if len(p.Headers) > 0 {
		if cfg.Headers == nil {
			cfg.Headers = make(map[string]string, len(p.Headers))
		}
		for k, v := range p.Headers {
			if _, ok := cfg.Headers[k]; !ok {
				cfg.Headers[k] = v
			}
		}
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setSlice(dst *[]string, v []string) {
	if len(v) > 0 {
		*dst = v
	}
}

func setNonZero[T int | time.Duration](dst *T, v T) {
	if v != 0 {
		*dst = v
	}
}

func setBool(dst **bool, v *bool) {
	if v != nil {
		*dst = v
	}
}
