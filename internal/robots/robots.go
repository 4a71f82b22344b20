package robots

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	// defaultTimeout bounds a single robots.txt request.
	defaultTimeout = 10 * time.Second

	// maxRedirects matches the page fetcher's redirect limit.
	maxRedirects = 10

	// maxBodySize caps how much of a robots.txt file is read.
	maxBodySize = 1 << 20
)

// Engine answers allow/deny queries, fetching each domain's robots.txt on
// first use and caching it for the rest of its lifetime.
//
// Engine is safe for concurrent use. Concurrent first queries for the same
// uncached domain share a single fetch.
type Engine struct {
	client    *http.Client
	userAgent string
	logger    *slog.Logger

	mu    sync.RWMutex
	cache map[string]RuleSet

	inflight singleflight.Group
}

// Option configures an Engine.
type Option func(*Engine)

// WithHTTPClient sets the client used to download robots.txt files.
func WithHTTPClient(client *http.Client) Option {
	return func(e *Engine) {
		if client != nil {
			e.client = client
		}
	}
}

// WithUserAgent sets the User-Agent header sent with robots.txt requests.
func WithUserAgent(ua string) Option {
	return func(e *Engine) {
		e.userAgent = ua
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates an Engine with an empty cache.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		client: &http.Client{
			Timeout: defaultTimeout,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		cache: make(map[string]RuleSet),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = slog.Default()
	}

	return e
}

// DomainKey returns the cache key for a URL: scheme://host[:port].
// The port is only present when the URL states it explicitly.
func DomainKey(u *url.URL) string {
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host)
}

// Allowed reports whether agent may fetch target.
// Only the path takes part in matching; the query string is ignored.
func (e *Engine) Allowed(ctx context.Context, target *url.URL, agent string) bool {
	path := target.EscapedPath()
	if path == "" {
		path = "/"
	}
	return e.RuleSet(ctx, target).Allowed(path, agent)
}

// RuleSet returns the cached rules for target's domain, fetching them first
// if needed. It never fails: unreachable or unusable robots.txt files
// yield an empty RuleSet.
func (e *Engine) RuleSet(ctx context.Context, target *url.URL) RuleSet {
	key := DomainKey(target)

	if rs, ok := e.cached(key); ok {
		return rs
	}

	v, _, _ := e.inflight.Do(key, func() (any, error) { //nolint:errcheck // the function never fails
		if rs, ok := e.cached(key); ok {
			return rs, nil
		}

		rs := e.fetch(ctx, key)

		// A fetch cut short by cancellation says nothing about the
		// site, so it is not remembered.
		if ctx.Err() != nil {
			return rs, nil
		}

		e.mu.Lock()
		defer e.mu.Unlock()
		if existing, ok := e.cache[key]; ok {
			return existing, nil
		}
		e.cache[key] = rs
		return rs, nil
	})

	return v.(RuleSet) //nolint:forcetypeassert // inflight only stores RuleSet
}

// Cached reports whether rules for target's domain are already cached.
func (e *Engine) Cached(target *url.URL) bool {
	_, ok := e.cached(DomainKey(target))
	return ok
}

func (e *Engine) cached(key string) (RuleSet, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	rs, ok := e.cache[key]
	return rs, ok
}

// fetch downloads and parses key + "/robots.txt".
func (e *Engine) fetch(ctx context.Context, key string) RuleSet {
	robotsURL := key + "/robots.txt"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		e.logger.Info("invalid robots.txt URL, allowing all paths", "url", robotsURL, "error", err)
		return RuleSet{}
	}
	if e.userAgent != "" {
		req.Header.Set("User-Agent", e.userAgent)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		e.logger.Info("robots.txt not reachable, allowing all paths", "url", robotsURL, "error", err)
		return RuleSet{}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		e.logger.Info("robots.txt not found, allowing all paths", "url", robotsURL, "status", resp.StatusCode)
		return RuleSet{}
	}

	rs, err := Parse(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		e.logger.Info("robots.txt partially read", "url", robotsURL, "error", err)
	}

	e.logger.Debug("robots.txt loaded", "url", robotsURL, "agents", len(rs))
	return rs
}
