package database

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/nao1215/scoutly/internal/model"
)

// Trend directions of a comparison.
const (
	TrendImproved  = "improved"
	TrendWorsened  = "worsened"
	TrendUnchanged = "unchanged"
)

// ErrNotEnoughHistory is returned when a site has fewer than two stored crawls.
var ErrNotEnoughHistory = errors.New("at least 2 crawls are required for comparison")

// IssueRef is an issue together with the page it was found on.
type IssueRef struct {
	PageURL  string          `json:"page_url"`
	Severity model.Severity  `json:"severity"`
	Type     model.IssueType `json:"issue_type"`
	Message  string          `json:"message"`
}

// SummaryDelta holds current minus previous for each summary count.
type SummaryDelta struct {
	Pages       int `json:"pages"`
	Links       int `json:"links"`
	BrokenLinks int `json:"broken_links"`
	Errors      int `json:"errors"`
	Warnings    int `json:"warnings"`
	Infos       int `json:"infos"`
}

// Comparison is the difference between two crawls of the same site.
type Comparison struct {
	StartURL string `json:"start_url"`

	Previous ReportMetadata `json:"previous"`
	Current  ReportMetadata `json:"current"`

	// NewIssues are in the current crawl only; ResolvedIssues only in the previous one.
	NewIssues       []IssueRef `json:"new_issues,omitempty"`
	ResolvedIssues  []IssueRef `json:"resolved_issues,omitempty"`
	UnchangedIssues int        `json:"unchanged_issues"`

	AddedPages   []string `json:"added_pages,omitempty"`
	RemovedPages []string `json:"removed_pages,omitempty"`

	// ChangedPages are pages present in both crawls whose content hash differs.
	ChangedPages []string `json:"changed_pages,omitempty"`

	Delta SummaryDelta `json:"delta"`

	// Trend is improved, worsened or unchanged.
	Trend string `json:"trend"`
}

// CompareLatest compares the two most recent crawls of startURL.
func (cdb *CrawlDB) CompareLatest(ctx context.Context, startURL string) (*Comparison, error) {
	reports, err := cdb.GetLatestReports(ctx, startURL, 2)
	if err != nil {
		return nil, err
	}
	if len(reports) < 2 {
		return nil, fmt.Errorf("%w for %s (found %d)", ErrNotEnoughHistory, startURL, len(reports))
	}
	current, previous := reports[0], reports[1]

	currentPages, err := cdb.GetPageSnapshots(ctx, current.ID)
	if err != nil {
		return nil, err
	}
	previousPages, err := cdb.GetPageSnapshots(ctx, previous.ID)
	if err != nil {
		return nil, err
	}

	return Compare(previous, current, previousPages, currentPages), nil
}

// Compare computes the difference between two crawls. The snapshot maps
// supply content hashes; reports supply issues and summaries.
func Compare(previous, current *model.CrawlReport, previousPages, currentPages map[string]PageSnapshot) *Comparison {
	c := &Comparison{
		StartURL: current.StartURL,
		Previous: metadataOf(previous),
		Current:  metadataOf(current),
	}

	prevIssues := issueSet(previous)
	curIssues := issueSet(current)

	for key, ref := range curIssues {
		if _, ok := prevIssues[key]; !ok {
			c.NewIssues = append(c.NewIssues, ref)
		}
	}
	for key, ref := range prevIssues {
		if _, ok := curIssues[key]; ok {
			c.UnchangedIssues++
			continue
		}
		c.ResolvedIssues = append(c.ResolvedIssues, ref)
	}
	sortIssues(c.NewIssues)
	sortIssues(c.ResolvedIssues)

	for url, cur := range currentPages {
		prev, ok := previousPages[url]
		switch {
		case !ok:
			c.AddedPages = append(c.AddedPages, url)
		case prev.ContentHash != "" && cur.ContentHash != "" && prev.ContentHash != cur.ContentHash:
			c.ChangedPages = append(c.ChangedPages, url)
		}
	}
	for url := range previousPages {
		if _, ok := currentPages[url]; !ok {
			c.RemovedPages = append(c.RemovedPages, url)
		}
	}
	sort.Strings(c.AddedPages)
	sort.Strings(c.RemovedPages)
	sort.Strings(c.ChangedPages)

	p, n := previous.Summary, current.Summary
	c.Delta = SummaryDelta{
		Pages:       n.TotalPages - p.TotalPages,
		Links:       n.TotalLinks - p.TotalLinks,
		BrokenLinks: n.BrokenLinks - p.BrokenLinks,
		Errors:      n.Errors - p.Errors,
		Warnings:    n.Warnings - p.Warnings,
		Infos:       n.Infos - p.Infos,
	}
	c.Trend = trend(p, n)

	return c
}

func metadataOf(r *model.CrawlReport) ReportMetadata {
	return ReportMetadata{
		ID:        r.ID,
		StartURL:  r.StartURL,
		Timestamp: r.Timestamp,
		Duration:  r.Duration,
		Aborted:   r.Aborted,
		Summary:   r.Summary,
	}
}

// issueSet keys every issue by page, type and message. Identical issues on
// one page collapse into one entry.
func issueSet(r *model.CrawlReport) map[string]IssueRef {
	set := make(map[string]IssueRef)
	for url, page := range r.Pages {
		for _, issue := range page.Issues {
			ref := IssueRef{
				PageURL:  url,
				Severity: issue.Severity,
				Type:     issue.Type,
				Message:  issue.Message,
			}
			set[url+"|"+string(issue.Type)+"|"+issue.Message] = ref
		}
	}
	return set
}

// sortIssues orders by severity (errors first), then page, then message.
func sortIssues(refs []IssueRef) {
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Severity != refs[j].Severity {
			return refs[i].Severity > refs[j].Severity
		}
		if refs[i].PageURL != refs[j].PageURL {
			return refs[i].PageURL < refs[j].PageURL
		}
		return refs[i].Message < refs[j].Message
	})
}

// trend weighs broken links and errors above warnings and infos.
func trend(previous, current model.Summary) string {
	score := func(s model.Summary) int {
		return s.BrokenLinks*20 + s.Errors*10 + s.Warnings*3 + s.Infos
	}
	switch p, c := score(previous), score(current); {
	case c < p:
		return TrendImproved
	case c > p:
		return TrendWorsened
	default:
		return TrendUnchanged
	}
}
