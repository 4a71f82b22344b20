package linkcheck

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/scoutly/internal/model"
)

const (
	// DefaultTimeout bounds a single check including redirects.
	DefaultTimeout = 10 * time.Second

	// DefaultMaxRedirects is how many redirects a check follows.
	DefaultMaxRedirects = 10

	// DefaultFanOut is how many checks run at once.
	DefaultFanOut = 20

	// drainLimit is how much of a checked response's body is read so the connection
	// can be reused.
	drainLimit = 64 * 1024
)

// Result is the outcome of probing one URL.
type Result struct {
	// StatusCode is the final HTTP status, or 0 when the request failed.
	StatusCode int

	// RedirectedTo is the final URL when it differs from the checked URL,
	// ignoring fragments.
	RedirectedTo string
}

// location identifies one link inside a crawl result.
type location struct {
	pageKey string
	index   int
}

// Validator checks links and annotates pages with the results.
// A Validator is safe for concurrent use.
type Validator struct {
	client          *http.Client
	userAgent       string
	fanOut          int
	ignoreRedirects bool
	logger          *slog.Logger
}

// Option configures a Validator.
type Option func(*Validator)

// WithHTTPClient replaces the link check client.
func WithHTTPClient(client *http.Client) Option {
	return func(v *Validator) {
		v.client = client
	}
}

// WithUserAgent sets the User-Agent header sent with link checks.
func WithUserAgent(ua string) Option {
	return func(v *Validator) {
		v.userAgent = ua
	}
}

// WithFanOut sets the maximum number of concurrent checks.
func WithFanOut(n int) Option {
	return func(v *Validator) {
		if n > 0 {
			v.fanOut = n
		}
	}
}

// WithIgnoreRedirects suppresses redirect issues. Redirect targets are
// still recorded on the links.
func WithIgnoreRedirects(ignore bool) Option {
	return func(v *Validator) {
		v.ignoreRedirects = ignore
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(v *Validator) {
		v.logger = logger
	}
}

// NewValidator creates a Validator with a 10 second check timeout.
func NewValidator(opts ...Option) *Validator {
	v := &Validator{
		fanOut: DefaultFanOut,
	}

	for _, opt := range opts {
		opt(v)
	}

	if v.client == nil {
		v.client = &http.Client{
			Timeout: DefaultTimeout,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= DefaultMaxRedirects {
					return http.ErrUseLastResponse
				}
				return nil
			},
		}
	}
	if v.logger == nil {
		v.logger = slog.Default()
	}

	return v
}

// Validate checks every distinct link in pages and updates them in place.
// It returns the number of distinct URLs checked. Check failures never
// abort validation; only a cancelled ctx stops it early, in which case
// the links checked so far are still written back.
func (v *Validator) Validate(ctx context.Context, pages model.CrawlResult) (int, error) {
	urls, locations := collect(pages)
	if len(urls) == 0 {
		return 0, nil
	}

	results := make([]Result, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.fanOut)
	for i, target := range urls {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			results[i] = v.Check(gctx, target)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // checks never fail

	for i, target := range urls {
		v.apply(pages, target, locations[target], results[i])
	}

	v.logger.Debug("link validation finished", "links", len(urls))
	return len(urls), ctx.Err()
}

// collect returns every distinct link URL and where each one appears.
// Pages are visited in key order so issue order is deterministic.
func collect(pages model.CrawlResult) ([]string, map[string][]location) {
	keys := make([]string, 0, len(pages))
	for key := range pages {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var urls []string
	locations := make(map[string][]location)
	for _, key := range keys {
		for i, link := range pages[key].Links {
			if _, seen := locations[link.URL]; !seen {
				urls = append(urls, link.URL)
			}
			locations[link.URL] = append(locations[link.URL], location{pageKey: key, index: i})
		}
	}
	return urls, locations
}

// apply writes result into every link at locs and records issues.
func (v *Validator) apply(pages model.CrawlResult, target string, locs []location, result Result) {
	for _, loc := range locs {
		page := pages[loc.pageKey]
		link := &page.Links[loc.index]
		link.StatusCode = result.StatusCode
		link.RedirectedTo = result.RedirectedTo

		if result.RedirectedTo != "" && !v.ignoreRedirects {
			page.AddIssue(model.NewIssue(model.SeverityInfo, model.IssueRedirect,
				"Link redirected: %s -> %s", target, result.RedirectedTo))
		}
		if result.StatusCode >= 400 {
			page.AddIssue(model.NewIssue(model.SeverityError, model.IssueBrokenLink,
				"Broken link: %s (HTTP %d)", target, result.StatusCode))
		}
	}
}

// Check requests target with GET and reports the final status and any
// redirect. Many servers answer HEAD incorrectly, so GET is used and the
// body is discarded.
func (v *Validator) Check(ctx context.Context, target string) Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		v.logger.Debug("invalid link", "url", target, "error", err)
		return Result{}
	}
	if v.userAgent != "" {
		req.Header.Set("User-Agent", v.userAgent)
	}
	req.Header.Set("Accept", "*/*")

	resp, err := v.client.Do(req)
	if err != nil {
		v.logger.Debug("link check failed", "url", target, "error", err)
		return Result{}
	}
	defer resp.Body.Close()
	_, _ = io.CopyN(io.Discard, resp.Body, drainLimit) //nolint:errcheck // best effort drain

	result := Result{StatusCode: resp.StatusCode}

	final := req.URL
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL
	}
	if stripFragment(final) != stripFragment(req.URL) {
		result.RedirectedTo = final.String()
	}

	return result
}

func stripFragment(u *url.URL) string {
	before, _, _ := strings.Cut(u.String(), "#")
	return before
}
