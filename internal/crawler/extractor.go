package crawler

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/nao1215/scoutly/internal/model"
)

// Extractor turns a fetched document into structured page content.
// Implementations must be safe for concurrent use.
type Extractor interface {
	Extract(body []byte, base *url.URL) (*Extraction, error)
}

// Extraction is the content pulled out of one document.
// Link.IsExternal is left unset; classification belongs to the Scheduler,
// which knows the crawl origin.
type Extraction struct {
	Title           string
	MetaDescription string
	H1              []string
	Links           []model.Link
	Images          []model.Image
	OpenGraph       model.OpenGraph
}

// linkSource describes one element type that contributes links.
type linkSource struct {
	kind     model.LinkKind
	selector cascadia.Selector
	attr     string
	label    func(s *goquery.Selection) string
}

// HTMLExtractor implements Extractor with goquery.
// Its selectors are compiled once in NewHTMLExtractor and never modified,
// so one extractor can serve every fetch goroutine.
type HTMLExtractor struct {
	title    cascadia.Selector
	metaDesc cascadia.Selector
	metaOG   cascadia.Selector
	h1       cascadia.Selector
	img      cascadia.Selector
	sources  []linkSource
}

// NewHTMLExtractor compiles the extractor's selectors.
func NewHTMLExtractor() *HTMLExtractor {
	fixed := func(text string) func(*goquery.Selection) string {
		return func(*goquery.Selection) string { return text }
	}

	return &HTMLExtractor{
		title:    cascadia.MustCompile("title"),
		metaDesc: cascadia.MustCompile(`meta[name="description"]`),
		metaOG:   cascadia.MustCompile(`meta[property^="og:"]`),
		h1:       cascadia.MustCompile("h1"),
		img:      cascadia.MustCompile("img[src]"),
		sources: []linkSource{
			{
				kind:     model.LinkKindAnchor,
				selector: cascadia.MustCompile("a[href]"),
				attr:     "href",
				label: func(s *goquery.Selection) string {
					return strings.TrimSpace(s.Text())
				},
			},
			{
				kind:     model.LinkKindIframe,
				selector: cascadia.MustCompile("iframe[src]"),
				attr:     "src",
				label: func(s *goquery.Selection) string {
					return "[iframe] " + s.AttrOr("title", "")
				},
			},
			{
				kind:     model.LinkKindVideo,
				selector: cascadia.MustCompile("video[src]"),
				attr:     "src",
				label:    fixed("[video]"),
			},
			{
				kind:     model.LinkKindSource,
				selector: cascadia.MustCompile("source[src]"),
				attr:     "src",
				label: func(s *goquery.Selection) string {
					return fmt.Sprintf("[source type=%s]", s.AttrOr("type", ""))
				},
			},
			{
				kind:     model.LinkKindAudio,
				selector: cascadia.MustCompile("audio[src]"),
				attr:     "src",
				label:    fixed("[audio]"),
			},
			{
				kind:     model.LinkKindEmbed,
				selector: cascadia.MustCompile("embed[src]"),
				attr:     "src",
				label:    fixed("[embed]"),
			},
			{
				kind:     model.LinkKindObject,
				selector: cascadia.MustCompile("object[data]"),
				attr:     "data",
				label:    fixed("[object]"),
			},
		},
	}
}

// Extract parses body and resolves every reference against base.
// Links keep their fragments; deduplication is the Scheduler's job.
func (e *HTMLExtractor) Extract(body []byte, base *url.URL) (*Extraction, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	out := &Extraction{
		H1:     []string{},
		Links:  []model.Link{},
		Images: []model.Image{},
	}

	out.Title = strings.TrimSpace(doc.FindMatcher(e.title).First().Text())
	out.MetaDescription = strings.TrimSpace(doc.FindMatcher(e.metaDesc).First().AttrOr("content", ""))

	doc.FindMatcher(e.h1).Each(func(_ int, s *goquery.Selection) {
		out.H1 = append(out.H1, strings.TrimSpace(s.Text()))
	})

	doc.FindMatcher(e.metaOG).Each(func(_ int, s *goquery.Selection) {
		content := strings.TrimSpace(s.AttrOr("content", ""))
		switch strings.ToLower(s.AttrOr("property", "")) {
		case "og:title":
			out.OpenGraph.Title = content
		case "og:description":
			out.OpenGraph.Description = content
		case "og:image":
			out.OpenGraph.Image = content
		case "og:url":
			out.OpenGraph.URL = content
		case "og:type":
			out.OpenGraph.Type = content
		case "og:site_name":
			out.OpenGraph.SiteName = content
		case "og:locale":
			out.OpenGraph.Locale = content
		}
	})

	for _, src := range e.sources {
		doc.FindMatcher(src.selector).Each(func(_ int, s *goquery.Selection) {
			target, ok := resolveReference(base, s.AttrOr(src.attr, ""))
			if !ok {
				return
			}
			out.Links = append(out.Links, model.Link{
				URL:  target,
				Text: src.label(s),
				Kind: src.kind,
			})
		})
	}

	doc.FindMatcher(e.img).Each(func(_ int, s *goquery.Selection) {
		target, ok := resolveReference(base, s.AttrOr("src", ""))
		if !ok {
			return
		}
		img := model.Image{Src: target}
		if alt, exists := s.Attr("alt"); exists {
			img.Alt = &alt
		}
		out.Images = append(out.Images, img)
	})

	return out, nil
}

// ignoredSchemes are reference schemes that never point at a fetchable resource.
var ignoredSchemes = []string{"javascript:", "mailto:", "tel:", "data:"}

// resolveReference makes ref absolute against base.
// Empty, unparsable and non-navigational references are rejected.
func resolveReference(base *url.URL, ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", false
	}

	lower := strings.ToLower(ref)
	for _, scheme := range ignoredSchemes {
		if strings.HasPrefix(lower, scheme) {
			return "", false
		}
	}

	u, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if !u.IsAbs() {
		return "", false
	}
	return u.String(), true
}
