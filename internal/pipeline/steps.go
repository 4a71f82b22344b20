package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nao1215/scoutly/internal/config"
	"github.com/nao1215/scoutly/internal/crawler"
	"github.com/nao1215/scoutly/internal/linkcheck"
	"github.com/nao1215/scoutly/internal/model"
	"github.com/nao1215/scoutly/internal/ratelimit"
	"github.com/nao1215/scoutly/internal/robots"
	"github.com/nao1215/scoutly/internal/seo"
)

// CrawlStep performs the breadth-first crawl of the report's seed URL.
// It builds a fresh Scheduler on every Do call, so a step value can be
// reused across reports.
type CrawlStep struct {
	opts   []crawler.Option
	logger *slog.Logger
}

// NewCrawlStep creates a new crawl step with the given scheduler options.
func NewCrawlStep(logger *slog.Logger, opts ...crawler.Option) *CrawlStep {
	return &CrawlStep{
		opts:   opts,
		logger: logger,
	}
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Do crawls the seed URL and stores every fetched page in the report.
//
// A cancelled context still stores the partial page set and marks the report
// aborted, so the caller can print what was crawled before Ctrl+C.
func (s *CrawlStep) Do(ctx context.Context, report *model.CrawlReport) error {
	scheduler, err := crawler.NewScheduler(report.StartURL, s.opts...)
	if err != nil {
		return fmt.Errorf("crawl %s: %w", report.StartURL, err)
	}

	pages, err := scheduler.Run(ctx)
	if pages != nil {
		report.Pages = pages
	}

	stats := scheduler.Stats()
	s.logger.Debug("crawl finished",
		"target", report.StartURL,
		"pages", len(report.Pages),
		"fetched", stats.Fetched,
		"failed", stats.Failed,
		"denied", stats.Denied,
		"batches", stats.Batches,
	)

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			report.Aborted = true
		}
		return fmt.Errorf("crawl %s: %w", report.StartURL, err)
	}
	return nil
}

// LinkCheckStep checks every link found during the crawl.
type LinkCheckStep struct {
	validator *linkcheck.Validator
	logger    *slog.Logger
}

// NewLinkCheckStep creates a new link check step.
func NewLinkCheckStep(validator *linkcheck.Validator, logger *slog.Logger) *LinkCheckStep {
	return &LinkCheckStep{
		validator: validator,
		logger:    logger,
	}
}

// Name returns the step name.
func (s *LinkCheckStep) Name() string {
	return "linkcheck"
}

// Do validates the links of all pages in the report.
func (s *LinkCheckStep) Do(ctx context.Context, report *model.CrawlReport) error {
	checked, err := s.validator.Validate(ctx, report.Pages)
	s.logger.Debug("links checked",
		"target", report.StartURL,
		"unique_links", checked,
	)
	if err != nil {
		return fmt.Errorf("link check %s: %w", report.StartURL, err)
	}
	return nil
}

// SEOStep runs the on-page SEO heuristics.
type SEOStep struct {
	analyzer *seo.Analyzer
	logger   *slog.Logger
}

// NewSEOStep creates a new SEO analysis step.
func NewSEOStep(analyzer *seo.Analyzer, logger *slog.Logger) *SEOStep {
	return &SEOStep{
		analyzer: analyzer,
		logger:   logger,
	}
}

// Name returns the step name.
func (s *SEOStep) Name() string {
	return "seo"
}

// Do analyzes every HTML page in the report. It never fails.
func (s *SEOStep) Do(_ context.Context, report *model.CrawlReport) error {
	analyzed := s.analyzer.Analyze(report.Pages)
	s.logger.Debug("seo analysis finished",
		"target", report.StartURL,
		"html_pages", analyzed,
	)
	return nil
}

// DefaultPipeline creates a pipeline with the standard steps for one seed
// URL, configured from cfg and the per-site settings of the config file.
//
// The step order is:
// 1. CrawlStep - Breadth-first crawl bounded by depth and page budget
// 2. LinkCheckStep - Check each unique link for redirects and broken targets
// 3. SEOStep - Heuristic on-page checks of every HTML page
//
// Design decision: Every call builds its own rate limiter and robots.txt
// engine. Seeds crawled concurrently by a BatchProcessor then never share a
// token bucket or a robots cache, so one slow site cannot throttle another.
func DefaultPipeline(cfg *config.Config, target string, pipelineOpts ...Option) *Pipeline {
	opts := append([]Option{WithContinueOnError(true)}, pipelineOpts...)
	p := New(opts...)
	logger := p.logger

	site := cfg.SiteConfig(target)
	maxDepth := cfg.MaxDepth
	if site.Depth != nil {
		maxDepth = *site.Depth
	}
	maxPages := cfg.MaxPages
	if site.MaxPages > 0 {
		maxPages = site.MaxPages
	}

	fetcherOpts := []crawler.FetcherOption{
		crawler.WithFetcherTimeout(cfg.PageTimeout),
		crawler.WithFetcherMaxRedirects(cfg.MaxRedirects),
		crawler.WithFetcherMaxBodySize(cfg.MaxBodySize),
		crawler.WithFetcherUserAgent(cfg.UserAgent),
	}
	// Site cookies and headers are credentials for the seed's origin only;
	// external pages crawled with FollowExternal must never see them.
	if origin, err := crawler.ValidateSeed(target); err == nil {
		fetcherOpts = append(fetcherOpts,
			crawler.WithFetcherOrigin(origin),
			crawler.WithFetcherHeaders(site.RequestHeaders()),
		)
	}
	fetcher := crawler.NewHTTPFetcher(fetcherOpts...)

	crawlOpts := []crawler.Option{
		crawler.WithMaxDepth(maxDepth),
		crawler.WithMaxPages(maxPages),
		crawler.WithConcurrency(cfg.Concurrency),
		crawler.WithFollowExternal(cfg.FollowExternal),
		crawler.WithKeepFragments(cfg.KeepFragments),
		crawler.WithUserAgent(cfg.UserAgent),
		crawler.WithFetcher(fetcher),
		crawler.WithRateLimiter(ratelimit.New(cfg.RateLimit)),
		crawler.WithLogger(logger),
	}
	if cfg.RespectRobotsTxt {
		crawlOpts = append(crawlOpts, crawler.WithRobots(robots.NewEngine(
			robots.WithUserAgent(cfg.UserAgent),
			robots.WithLogger(logger),
		)))
	}

	validator := linkcheck.NewValidator(
		linkcheck.WithHTTPClient(crawler.NewHTTPClient(cfg.LinkTimeout, cfg.MaxRedirects)),
		linkcheck.WithUserAgent(cfg.UserAgent),
		linkcheck.WithFanOut(cfg.LinkCheckConcurrency),
		linkcheck.WithIgnoreRedirects(cfg.IgnoreRedirects),
		linkcheck.WithLogger(logger),
	)

	p.AddSteps(
		NewCrawlStep(logger, crawlOpts...),
		NewLinkCheckStep(validator, logger),
		NewSEOStep(seo.NewAnalyzer(), logger),
	)

	return p
}
