package model

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// CrawlResult maps a normalized URL to the page fetched for it.
type CrawlResult map[string]*PageInfo

// CrawlReport is the complete outcome of crawling one seed URL.
// It is what the pipeline steps fill in and what report writers and the
// history database consume.
type CrawlReport struct {
	// ID uniquely identifies this crawl run.
	ID string `json:"id"`

	// StartURL is the seed URL as given by the user.
	StartURL string `json:"start_url"`

	// Pages holds every fetched page keyed by normalized URL.
	Pages CrawlResult `json:"pages"`

	// Summary aggregates the page set. It is recomputed by Finalize.
	Summary Summary `json:"summary"`

	// Timestamp is when the crawl started.
	Timestamp time.Time `json:"timestamp"`

	// Duration is the wall-clock time spent in the pipeline.
	Duration time.Duration `json:"duration"`

	// Steps lists the pipeline steps that ran, in order.
	Steps []string `json:"steps,omitempty"`

	// Aborted is set when the crawl was cancelled before the frontier drained.
	Aborted bool `json:"aborted,omitempty"`

	// Error is the message of the last failed pipeline step, if any.
	Error string `json:"error,omitempty"`
}

// Summary contains aggregate counts over a report's pages.
type Summary struct {
	TotalPages  int `json:"total_pages"`
	TotalLinks  int `json:"total_links"`
	BrokenLinks int `json:"broken_links"`
	Errors      int `json:"errors"`
	Warnings    int `json:"warnings"`
	Infos       int `json:"infos"`
}

// TotalIssues returns the number of issues of all severities.
func (s Summary) TotalIssues() int {
	return s.Errors + s.Warnings + s.Infos
}

// NewCrawlReport creates an empty report for a seed URL.
func NewCrawlReport(startURL string) *CrawlReport {
	return &CrawlReport{
		ID:        uuid.NewString(),
		StartURL:  startURL,
		Pages:     make(CrawlResult),
		Timestamp: time.Now(),
	}
}

// Finalize recomputes the summary from the current page set.
func (r *CrawlReport) Finalize() {
	r.Summary = Summarize(r.Pages)
}

// Summarize counts pages, links, broken links and issues by severity.
func Summarize(pages CrawlResult) Summary {
	var s Summary
	s.TotalPages = len(pages)
	for _, page := range pages {
		s.TotalLinks += len(page.Links)
		for _, link := range page.Links {
			if link.IsBroken() {
				s.BrokenLinks++
			}
		}
		for _, issue := range page.Issues {
			switch issue.Severity {
			case SeverityError:
				s.Errors++
			case SeverityWarning:
				s.Warnings++
			case SeverityInfo:
				s.Infos++
			}
		}
	}
	return s
}

// SortedPages returns the pages ordered by depth, then by URL.
func (r *CrawlReport) SortedPages() []*PageInfo {
	pages := make([]*PageInfo, 0, len(r.Pages))
	for _, page := range r.Pages {
		pages = append(pages, page)
	}
	sort.Slice(pages, func(i, j int) bool {
		if pages[i].Depth != pages[j].Depth {
			return pages[i].Depth < pages[j].Depth
		}
		return pages[i].URL < pages[j].URL
	})
	return pages
}

// PagesWithIssues returns SortedPages filtered to pages that have issues.
func (r *CrawlReport) PagesWithIssues() []*PageInfo {
	var out []*PageInfo
	for _, page := range r.SortedPages() {
		if len(page.Issues) > 0 {
			out = append(out, page)
		}
	}
	return out
}

// UniqueLinkCount returns the number of distinct link URLs across all pages.
func (r *CrawlReport) UniqueLinkCount() int {
	seen := make(map[string]struct{})
	for _, page := range r.Pages {
		for _, link := range page.Links {
			seen[link.URL] = struct{}{}
		}
	}
	return len(seen)
}
