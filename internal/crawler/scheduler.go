package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/scoutly/internal/model"
	"github.com/nao1215/scoutly/internal/ratelimit"
)

// State is the lifecycle state of a Scheduler.
type State int32

const (
	// StateIdle means Run has not been called yet.
	StateIdle State = iota
	// StateRunning means the frontier loop is active.
	StateRunning
	// StateCompleted means the frontier drained or the page budget was reached.
	StateCompleted
	// StateAborted means the context was cancelled before completion.
	StateAborted
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Default crawl bounds.
const (
	DefaultMaxDepth    = 5
	DefaultMaxPages    = 200
	DefaultConcurrency = 5
	DefaultUserAgent   = "Scoutly"
)

// RobotsPolicy answers whether an agent may fetch a URL.
// robots.Engine satisfies it.
type RobotsPolicy interface {
	Allowed(ctx context.Context, target *url.URL, agent string) bool
}

// Stats counts what a Scheduler did.
type Stats struct {
	// Visited is the size of the visited set.
	Visited int
	// Fetched is the number of pages that produced an HTTP response.
	Fetched int
	// Failed is the number of pages whose fetch failed.
	Failed int
	// Denied is the number of URLs excluded by robots.txt.
	Denied int
	// Batches is the number of batches fetched.
	Batches int
}

// Scheduler drives a breadth-first crawl from one seed URL.
//
// The frontier queue, the visited set and the result map are owned by the
// goroutine running Run. Fetch goroutines only read immutable configuration
// and return fresh PageInfo values, which Run merges after each batch.
type Scheduler struct {
	seed    *url.URL
	seedRaw string

	maxDepth       int
	maxPages       int
	concurrency    int
	followExternal bool
	keepFragments  bool
	userAgent      string

	fetcher   Fetcher
	extractor Extractor
	robots    RobotsPolicy
	limiter   *ratelimit.Limiter
	logger    *slog.Logger

	state atomic.Int32
	stats Stats
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithMaxDepth sets the maximum crawl depth.
// 0 = only the seed, 1 = the seed plus the pages it links to, etc.
func WithMaxDepth(depth int) Option {
	return func(s *Scheduler) {
		s.maxDepth = depth
	}
}

// WithMaxPages sets the visited-set budget.
func WithMaxPages(n int) Option {
	return func(s *Scheduler) {
		s.maxPages = n
	}
}

// WithConcurrency sets the maximum batch size.
func WithConcurrency(n int) Option {
	return func(s *Scheduler) {
		s.concurrency = n
	}
}

// WithFollowExternal makes the crawler fetch pages outside the seed's origin.
func WithFollowExternal(follow bool) Option {
	return func(s *Scheduler) {
		s.followExternal = follow
	}
}

// WithKeepFragments makes URLs that differ only by fragment distinct pages.
func WithKeepFragments(keep bool) Option {
	return func(s *Scheduler) {
		s.keepFragments = keep
	}
}

// WithUserAgent sets the agent name used for robots.txt lookups.
// The fetcher carries its own User-Agent header.
func WithUserAgent(ua string) Option {
	return func(s *Scheduler) {
		s.userAgent = ua
	}
}

// WithFetcher replaces the default HTTPFetcher.
func WithFetcher(f Fetcher) Option {
	return func(s *Scheduler) {
		s.fetcher = f
	}
}

// WithExtractor replaces the default HTMLExtractor.
func WithExtractor(e Extractor) Option {
	return func(s *Scheduler) {
		s.extractor = e
	}
}

// WithRobots enables robots.txt compliance through p.
// A nil policy disables it.
func WithRobots(p RobotsPolicy) Option {
	return func(s *Scheduler) {
		s.robots = p
	}
}

// WithRateLimiter paces fetches. A nil limiter does not throttle.
func WithRateLimiter(l *ratelimit.Limiter) Option {
	return func(s *Scheduler) {
		s.limiter = l
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// NewScheduler validates the seed and applies options.
// It performs no network access.
func NewScheduler(seed string, opts ...Option) (*Scheduler, error) {
	u, err := ValidateSeed(seed)
	if err != nil {
		return nil, err
	}

	s := &Scheduler{
		seed:        u,
		seedRaw:     u.String(),
		maxDepth:    DefaultMaxDepth,
		maxPages:    DefaultMaxPages,
		concurrency: DefaultConcurrency,
		userAgent:   DefaultUserAgent,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.maxDepth < 0 {
		return nil, fmt.Errorf("max depth must not be negative: %d", s.maxDepth)
	}
	if s.maxPages < 1 {
		return nil, fmt.Errorf("max pages must be positive: %d", s.maxPages)
	}
	if s.concurrency < 1 {
		return nil, fmt.Errorf("concurrency must be positive: %d", s.concurrency)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.fetcher == nil {
		s.fetcher = NewHTTPFetcher(WithFetcherUserAgent(s.userAgent))
	}
	if s.extractor == nil {
		s.extractor = NewHTMLExtractor()
	}

	return s, nil
}

// Seed returns the validated seed URL.
func (s *Scheduler) Seed() *url.URL {
	return s.seed
}

// State returns the current lifecycle state. It is safe to call from any
// goroutine.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Stats returns the counters of the last run. Call it after Run returns.
func (s *Scheduler) Stats() Stats {
	return s.stats
}

// frontierEntry is a queued URL and the depth it was discovered at.
type frontierEntry struct {
	url   string
	depth int
}

// Run crawls until the frontier drains or the page budget is used up.
//
// The returned map holds one page per normalized URL. When ctx is cancelled
// the pages fetched so far are returned together with ctx.Err().
// Run may be called only once.
func (s *Scheduler) Run(ctx context.Context) (model.CrawlResult, error) {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return nil, ErrAlreadyStarted
	}

	result := make(model.CrawlResult)
	visited := make(map[string]struct{})
	queue := []frontierEntry{{url: s.seedRaw, depth: 0}}

	s.logger.Debug("crawl started",
		"seed", s.seedRaw,
		"max_depth", s.maxDepth,
		"max_pages", s.maxPages,
		"concurrency", s.concurrency,
	)

	for len(queue) > 0 && len(visited) < s.maxPages {
		if err := ctx.Err(); err != nil {
			return s.abort(result, err)
		}

		var batch []frontierEntry
		batch, queue = s.nextBatch(ctx, queue, visited)
		s.stats.Visited = len(visited)
		if len(batch) == 0 {
			break
		}

		pages := s.fetchBatch(ctx, batch)
		s.stats.Batches++

		for i, entry := range batch {
			page := pages[i]
			if entry.depth < s.maxDepth {
				queue = s.enqueueLinks(queue, page, entry.depth+1, visited)
			}
			result[Normalize(entry.url, s.keepFragments)] = page
		}
	}

	if err := ctx.Err(); err != nil {
		return s.abort(result, err)
	}

	s.state.Store(int32(StateCompleted))
	s.logger.Debug("crawl completed",
		"seed", s.seedRaw,
		"pages", len(result),
		"visited", len(visited),
		"batches", s.stats.Batches,
	)
	return result, nil
}

func (s *Scheduler) abort(result model.CrawlResult, err error) (model.CrawlResult, error) {
	s.state.Store(int32(StateAborted))
	s.logger.Warn("crawl aborted", "seed", s.seedRaw, "pages", len(result), "error", err)
	return result, err
}

// nextBatch admits up to concurrency entries from the head of queue.
//
// Entries are inspected at the head before they are removed: an entry is
// only popped when it is either discarded (already visited, too deep,
// unparsable, denied by robots.txt) or admitted. When the visited set is
// full the loop stops and leaves the head entry in place.
func (s *Scheduler) nextBatch(ctx context.Context, queue []frontierEntry, visited map[string]struct{}) ([]frontierEntry, []frontierEntry) {
	batch := make([]frontierEntry, 0, s.concurrency)

	for len(queue) > 0 && len(batch) < s.concurrency {
		entry := queue[0]
		key := Normalize(entry.url, s.keepFragments)

		if _, seen := visited[key]; seen || entry.depth > s.maxDepth {
			queue = queue[1:]
			continue
		}
		if len(visited) >= s.maxPages {
			break
		}
		queue = queue[1:]

		target, err := url.Parse(entry.url)
		if err != nil || !IsCrawlable(target) {
			s.logger.Debug("skipping uncrawlable URL", "url", entry.url)
			continue
		}

		if s.robots != nil && !s.robots.Allowed(ctx, target, s.userAgent) {
			visited[key] = struct{}{}
			s.stats.Denied++
			s.logger.Debug("disallowed by robots.txt", "url", entry.url)
			continue
		}

		visited[key] = struct{}{}
		batch = append(batch, entry)
	}

	return batch, queue
}

// fetchBatch fetches every entry concurrently. pages[i] belongs to batch[i].
func (s *Scheduler) fetchBatch(ctx context.Context, batch []frontierEntry) []*model.PageInfo {
	pages := make([]*model.PageInfo, len(batch))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, entry := range batch {
		g.Go(func() error {
			pages[i] = s.fetchPage(ctx, entry)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // fetchPage never fails

	for _, page := range pages {
		if page.Fetched() {
			s.stats.Fetched++
		} else {
			s.stats.Failed++
		}
	}
	return pages
}

// fetchPage fetches and extracts one page. It never fails: errors degrade
// to a page without status code or content.
func (s *Scheduler) fetchPage(ctx context.Context, entry frontierEntry) *model.PageInfo {
	if err := s.limiter.Acquire(ctx); err != nil {
		return model.NewFailedPage(entry.url, entry.depth)
	}

	resp, err := s.fetcher.Fetch(ctx, entry.url)
	if err != nil {
		s.logger.Warn("failed to fetch page", "url", entry.url, "error", err)
		return model.NewFailedPage(entry.url, entry.depth)
	}

	page := model.NewFailedPage(entry.url, entry.depth)
	page.StatusCode = resp.StatusCode
	page.ContentType = resp.ContentType
	page.ContentHash = resp.ContentHash

	base := resp.FinalURL
	if base == nil {
		base, _ = url.Parse(entry.url) //nolint:errcheck // entry URLs are parsed before admission
	}

	ext, err := s.extractor.Extract(resp.Body, base)
	if err != nil {
		s.logger.Debug("failed to extract page content", "url", entry.url, "error", err)
		return page
	}

	page.Title = ext.Title
	page.MetaDescription = ext.MetaDescription
	page.OpenGraph = ext.OpenGraph
	if ext.H1 != nil {
		page.H1 = ext.H1
	}
	if ext.Images != nil {
		page.Images = ext.Images
	}
	for _, link := range ext.Links {
		if target, err := url.Parse(link.URL); err == nil {
			link.IsExternal = IsExternal(target, s.seed)
		}
		page.Links = append(page.Links, link)
	}

	return page
}

// enqueueLinks appends the page's followable links at depth.
func (s *Scheduler) enqueueLinks(queue []frontierEntry, page *model.PageInfo, depth int, visited map[string]struct{}) []frontierEntry {
	for _, link := range page.Links {
		if !isHTTPURL(link.URL) {
			continue
		}
		if link.IsExternal && !s.followExternal {
			continue
		}
		if _, seen := visited[Normalize(link.URL, s.keepFragments)]; seen {
			continue
		}
		queue = append(queue, frontierEntry{url: link.URL, depth: depth})
	}
	return queue
}
