package crawler

import (
	"fmt"
	"net/url"
	"strings"
)

// Normalize returns the deduplication key for a URL.
// Unless keepFragments is set, everything from the first "#" is removed.
// The URL is otherwise left untouched.
func Normalize(rawURL string, keepFragments bool) string {
	if keepFragments {
		return rawURL
	}
	before, _, _ := strings.Cut(rawURL, "#")
	return before
}

// IsExternal reports whether candidate lives outside origin: its host or
// its port differs. Ports equal to the scheme's default are treated as
// absent, so "http://h:80/" and "http://h/" are the same origin.
func IsExternal(candidate, origin *url.URL) bool {
	if !strings.EqualFold(candidate.Hostname(), origin.Hostname()) {
		return true
	}
	return explicitPort(candidate) != explicitPort(origin)
}

// explicitPort returns the URL's port, or "" when it is absent or the
// scheme default.
func explicitPort(u *url.URL) string {
	port := u.Port()
	switch {
	case port == "":
		return ""
	case port == "80" && strings.EqualFold(u.Scheme, "http"):
		return ""
	case port == "443" && strings.EqualFold(u.Scheme, "https"):
		return ""
	}
	return port
}

// IsCrawlable reports whether u uses a scheme the crawler can fetch.
func IsCrawlable(u *url.URL) bool {
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}

func isHTTPURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	return err == nil && IsCrawlable(u) && u.Host != ""
}

// ValidateSeed parses a seed URL and checks that it can start a crawl.
func ValidateSeed(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSeed, err)
	}
	if !IsCrawlable(u) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidScheme, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: %q has no host", ErrInvalidSeed, rawURL)
	}
	return u, nil
}
