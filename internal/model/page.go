package model

// LinkKind records which element a link was extracted from.
type LinkKind string

// Link sources recognised by the HTML extractor.
const (
	LinkKindAnchor LinkKind = "a"
	LinkKindIframe LinkKind = "iframe"
	LinkKindVideo  LinkKind = "video"
	LinkKindSource LinkKind = "source"
	LinkKindAudio  LinkKind = "audio"
	LinkKindEmbed  LinkKind = "embed"
	LinkKindObject LinkKind = "object"
)

// Link is an outbound reference found on a page.
//
// StatusCode and RedirectedTo are filled by the link validator. A zero
// StatusCode means the link was never checked or the check failed at the
// transport level; an empty RedirectedTo means no redirect was observed.
type Link struct {
	// URL is the absolute target URL as extracted, fragments included.
	URL string `json:"url"`

	// Text is the anchor text or a bracketed label for media elements.
	Text string `json:"text"`

	// Kind is the element the link came from.
	Kind LinkKind `json:"kind,omitempty"`

	// IsExternal is true when the target's host or port differs from the seed.
	IsExternal bool `json:"is_external"`

	// StatusCode is the final HTTP status observed by the link validator.
	StatusCode int `json:"status_code,omitempty"`

	// RedirectedTo is the final URL when it differs from URL (fragments ignored).
	RedirectedTo string `json:"redirected_url,omitempty"`
}

// IsBroken reports whether the link was checked and answered with 4xx or 5xx.
func (l Link) IsBroken() bool {
	return l.StatusCode >= 400
}

// Image is an <img> element with a resolved source.
type Image struct {
	Src string `json:"src"`

	// Alt is nil when the attribute is absent. An empty alt="" is a
	// deliberate decorative marker and is kept as an empty string.
	Alt *string `json:"alt,omitempty"`
}

// OpenGraph holds the og:* meta properties of a page.
type OpenGraph struct {
	Title       string `json:"og_title,omitempty"`
	Description string `json:"og_description,omitempty"`
	Image       string `json:"og_image,omitempty"`
	URL         string `json:"og_url,omitempty"`
	Type        string `json:"og_type,omitempty"`
	SiteName    string `json:"og_site_name,omitempty"`
	Locale      string `json:"og_locale,omitempty"`
}

// PageInfo is the record kept for every fetched page.
//
// The crawler creates exactly one PageInfo per normalized URL. A page whose
// fetch failed has StatusCode 0 and empty content fields; it is still part
// of the result so reports can tell "not fetched" from "fetched, fine".
type PageInfo struct {
	// URL is the URL as it was requested.
	URL string `json:"url"`

	// StatusCode is the HTTP status, or 0 when the fetch failed.
	StatusCode int `json:"status_code,omitempty"`

	// ContentType is the Content-Type response header.
	ContentType string `json:"content_type,omitempty"`

	// Depth is the BFS depth at which the page was fetched (seed = 0).
	Depth int `json:"crawl_depth"`

	Title           string    `json:"title,omitempty"`
	MetaDescription string    `json:"meta_description,omitempty"`
	H1              []string  `json:"h1_tags"`
	Links           []Link    `json:"links"`
	Images          []Image   `json:"images"`
	OpenGraph       OpenGraph `json:"open_graph"`

	// ContentHash is the SHA3-256 of the response body, hex encoded.
	// It lets the history command detect pages whose content changed.
	ContentHash string `json:"content_hash,omitempty"`

	// Issues are appended by the link validator and the SEO analyzer.
	Issues []Issue `json:"issues"`
}

// NewFailedPage returns the minimal record stored for a page whose fetch failed.
func NewFailedPage(url string, depth int) *PageInfo {
	return &PageInfo{
		URL:    url,
		Depth:  depth,
		H1:     []string{},
		Links:  []Link{},
		Images: []Image{},
		Issues: []Issue{},
	}
}

// Fetched reports whether the page produced an HTTP response.
func (p *PageInfo) Fetched() bool {
	return p.StatusCode != 0
}

// AddIssue appends an issue to the page.
func (p *PageInfo) AddIssue(issue Issue) {
	p.Issues = append(p.Issues, issue)
}

// CountIssues returns the number of issues with the given severity.
func (p *PageInfo) CountIssues(severity Severity) int {
	n := 0
	for _, issue := range p.Issues {
		if issue.Severity == severity {
			n++
		}
	}
	return n
}
