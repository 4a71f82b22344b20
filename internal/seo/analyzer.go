package seo

import (
	"strings"
	"unicode/utf8"

	"github.com/nao1215/scoutly/internal/model"
)

// Recommended length ranges, counted in characters.
const (
	MinTitleLength           = 50
	MaxTitleLength           = 60
	MinMetaDescriptionLength = 150
	MaxMetaDescriptionLength = 160

	// MinContentElements is the H1 + link + image count below which a page
	// is reported as thin.
	MinContentElements = 5
)

// Analyzer applies the on-page checks.
type Analyzer struct {
	checkOpenGraph bool
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithOpenGraph enables or disables the Open Graph checks. Enabled by default.
func WithOpenGraph(enabled bool) Option {
	return func(a *Analyzer) {
		a.checkOpenGraph = enabled
	}
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(opts ...Option) *Analyzer {
	a := &Analyzer{checkOpenGraph: true}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze checks every HTML page in pages and returns how many were analysed.
func (a *Analyzer) Analyze(pages model.CrawlResult) int {
	n := 0
	for _, page := range pages {
		if !IsHTML(page) {
			continue
		}
		a.AnalyzePage(page)
		n++
	}
	return n
}

// IsHTML reports whether the page was served as text/html.
func IsHTML(page *model.PageInfo) bool {
	return strings.Contains(strings.ToLower(page.ContentType), "text/html")
}

// AnalyzePage appends the issues found on a single page.
func (a *Analyzer) AnalyzePage(page *model.PageInfo) {
	checkTitle(page)
	checkMetaDescription(page)
	checkHeadings(page)
	checkImages(page)
	checkContent(page)
	if a.checkOpenGraph {
		checkOpenGraph(page)
	}
}

func checkTitle(page *model.PageInfo) {
	if page.Title == "" {
		page.AddIssue(model.NewIssue(model.SeverityError, model.IssueMissingTitle,
			"Page is missing a title tag"))
		return
	}

	n := utf8.RuneCountInString(page.Title)
	switch {
	case n < MinTitleLength:
		page.AddIssue(model.NewIssue(model.SeverityWarning, model.IssueTitleTooShort,
			"Title is too short (%d chars, recommended: %d-%d)", n, MinTitleLength, MaxTitleLength))
	case n > MaxTitleLength:
		page.AddIssue(model.NewIssue(model.SeverityWarning, model.IssueTitleTooLong,
			"Title is too long (%d chars, recommended: %d-%d)", n, MinTitleLength, MaxTitleLength))
	}
}

func checkMetaDescription(page *model.PageInfo) {
	if page.MetaDescription == "" {
		page.AddIssue(model.NewIssue(model.SeverityError, model.IssueMissingMetaDescription,
			"Page is missing a meta description"))
		return
	}

	n := utf8.RuneCountInString(page.MetaDescription)
	switch {
	case n < MinMetaDescriptionLength:
		page.AddIssue(model.NewIssue(model.SeverityWarning, model.IssueMetaDescriptionTooShort,
			"Meta description is too short (%d chars, recommended: %d-%d)",
			n, MinMetaDescriptionLength, MaxMetaDescriptionLength))
	case n > MaxMetaDescriptionLength:
		page.AddIssue(model.NewIssue(model.SeverityWarning, model.IssueMetaDescriptionTooLong,
			"Meta description is too long (%d chars, recommended: %d-%d)",
			n, MinMetaDescriptionLength, MaxMetaDescriptionLength))
	}
}

func checkHeadings(page *model.PageInfo) {
	switch n := len(page.H1); {
	case n == 0:
		page.AddIssue(model.NewIssue(model.SeverityWarning, model.IssueMissingH1,
			"Page is missing an H1 tag"))
	case n > 1:
		page.AddIssue(model.NewIssue(model.SeverityWarning, model.IssueMultipleH1,
			"Page has multiple H1 tags (%d)", n))
	}
}

// checkImages counts images without an alt attribute. alt="" marks a
// decorative image and is accepted.
func checkImages(page *model.PageInfo) {
	missing := 0
	for _, img := range page.Images {
		if img.Alt == nil {
			missing++
		}
	}
	if missing > 0 {
		page.AddIssue(model.NewIssue(model.SeverityWarning, model.IssueMissingImageAlt,
			"%d image(s) missing alt text", missing))
	}
}

func checkContent(page *model.PageInfo) {
	if len(page.H1)+len(page.Links)+len(page.Images) < MinContentElements {
		page.AddIssue(model.NewIssue(model.SeverityWarning, model.IssueThinContent,
			"Page may have thin content (few elements found)"))
	}
}

func checkOpenGraph(page *model.PageInfo) {
	og := page.OpenGraph
	tags := []struct {
		value string
		name  string
		typ   model.IssueType
	}{
		{og.Title, "og:title", model.IssueMissingOgTitle},
		{og.Description, "og:description", model.IssueMissingOgDescription},
		{og.Image, "og:image", model.IssueMissingOgImage},
		{og.URL, "og:url", model.IssueMissingOgURL},
		{og.Type, "og:type", model.IssueMissingOgType},
	}
	for _, tag := range tags {
		if tag.value == "" {
			page.AddIssue(model.NewIssue(model.SeverityInfo, tag.typ,
				"Page is missing the %s Open Graph tag", tag.name))
		}
	}
}
