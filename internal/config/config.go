package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// DefaultMaxDepth of 5 reaches most content of a typical site while
	// keeping crawls of deep archives bounded.
	DefaultMaxDepth = 5

	// DefaultMaxPages is the visited-set budget per seed URL.
	// This prevents runaway crawling on large or infinitely-generating sites.
	DefaultMaxPages = 200

	// DefaultConcurrency is the number of pages fetched in parallel per batch.
	// Higher values crawl faster but put more load on the target server.
	DefaultConcurrency = 5

	// DefaultBatchSize is the number of seed URLs crawled at the same time.
	// 1 means seeds are crawled one after another.
	DefaultBatchSize = 1

	// DefaultPageTimeout bounds each page request including redirects.
	DefaultPageTimeout = 30 * time.Second

	// DefaultLinkTimeout bounds each link check including redirects.
	DefaultLinkTimeout = 10 * time.Second

	// DefaultMaxRedirects is the redirect limit for pages and link checks.
	DefaultMaxRedirects = 10

	// DefaultMaxBodySize limits how much of a page body is read.
	// 10MB is sufficient for HTML pages while preventing memory exhaustion.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// DefaultLinkCheckConcurrency is the number of link checks in flight.
	DefaultLinkCheckConcurrency = 20

	// AppName is the application name used for XDG directory paths and
	// as the robots.txt product token.
	AppName = "scoutly"

	// UserAgentProduct is the product name in the default User-Agent.
	UserAgentProduct = "Scoutly"
)

// Report output formats.
const (
	OutputText     = "text"
	OutputJSON     = "json"
	OutputMarkdown = "markdown"
)

// OutputFormats lists the accepted values of Config.OutputFormat.
var OutputFormats = []string{OutputText, OutputJSON, OutputMarkdown}

// Config holds all configuration options for Scoutly.
// This struct is populated from defaults, the optional configuration file
// and CLI flags, in that order of increasing precedence, and passed through
// the application via dependency injection rather than global state.
//
// Design decision: We use a single flat struct instead of nested structs
// (e.g., CrawlConfig, ReportConfig) for simplicity. The number of options
// is manageable, and nesting would add complexity without significant benefit.
type Config struct {
	// Targets is the list of seed URLs to crawl.
	// Each must be an absolute http or https URL.
	Targets []string

	// MaxDepth is the maximum link distance from the seed.
	// Depth 0 means only fetch the seed page.
	MaxDepth int

	// MaxPages is the maximum number of URLs visited per seed, including
	// URLs excluded by robots.txt.
	MaxPages int

	// Concurrency is the maximum number of pages fetched in one batch.
	Concurrency int

	// RateLimit is the maximum number of page requests per second per seed.
	// 0 disables rate limiting.
	RateLimit float64

	// FollowExternal makes the crawler fetch pages on other hosts or ports.
	// External links are always extracted and validated; this only decides
	// whether they are crawled.
	FollowExternal bool

	// KeepFragments makes URLs that differ only by fragment distinct pages.
	KeepFragments bool

	// IgnoreRedirects suppresses redirect issues in the report.
	// Redirect targets are still recorded on each link.
	IgnoreRedirects bool

	// RespectRobotsTxt enables robots.txt compliance.
	RespectRobotsTxt bool

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// BatchSize is the number of seeds crawled concurrently.
	BatchSize int

	// OutputFormat is the stdout report format: text, json or markdown.
	OutputFormat string

	// SaveFile is an optional path where a JSON copy of the report is written.
	// Directories are created automatically if they don't exist.
	SaveFile string

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches the current directory and then the XDG
	// config directory.
	ConfigFilePath string

	// SiteConfigs holds the loaded configuration file, if any.
	// It is used to look up per-site headers and bounds during crawling.
	SiteConfigs *File

	// UserAgent is sent with every request and used as the robots.txt agent.
	UserAgent string

	// PageTimeout bounds each page request.
	PageTimeout time.Duration

	// LinkTimeout bounds each link check.
	LinkTimeout time.Duration

	// MaxRedirects is how many redirects page requests and link checks follow.
	MaxRedirects int

	// MaxBodySize is the maximum page body size in bytes to read.
	// Larger bodies are truncated.
	MaxBodySize int64

	// LinkCheckConcurrency is the number of link checks run at once.
	LinkCheckConcurrency int

	// DBDir is the directory path for storing the SQLite history database.
	// Defaults to XDG data directory (~/.local/share/scoutly on Linux).
	DBDir string

	// SaveToDB indicates whether finished reports are saved to the history
	// database. Disabled with --no-history.
	SaveToDB bool
}

// NewConfig creates a new Config with default values.
// All fields are set to safe, sensible defaults that work for most use cases.
//
// Design decision: We use a constructor function instead of relying on
// zero values because many defaults are non-zero (e.g., timeouts, robots
// compliance). This also serves as documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		MaxDepth:             DefaultMaxDepth,
		MaxPages:             DefaultMaxPages,
		Concurrency:          DefaultConcurrency,
		RespectRobotsTxt:     true,
		BatchSize:            DefaultBatchSize,
		OutputFormat:         OutputText,
		UserAgent:            DefaultUserAgent("dev"),
		PageTimeout:          DefaultPageTimeout,
		LinkTimeout:          DefaultLinkTimeout,
		MaxRedirects:         DefaultMaxRedirects,
		MaxBodySize:          DefaultMaxBodySize,
		LinkCheckConcurrency: DefaultLinkCheckConcurrency,
		DBDir:                XDGDataDir(),
		SaveToDB:             true,
	}
}

// DefaultUserAgent returns the User-Agent for a build version.
// Its product token "Scoutly" is what robots.txt groups are matched against.
func DefaultUserAgent(version string) string {
	return fmt.Sprintf("%s/%s (+https://github.com/nao1215/scoutly)", UserAgentProduct, version)
}

// XDGDataDir returns the XDG data directory for Scoutly.
// On Linux: ~/.local/share/scoutly
// On macOS: ~/Library/Application Support/scoutly
// On Windows: %LOCALAPPDATA%\scoutly
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for Scoutly.
// On Linux: ~/.config/scoutly
// On macOS: ~/Library/Application Support/scoutly
// On Windows: %APPDATA%\scoutly
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns a specific error describing what is invalid.
//
// Design decision: We validate at the config level rather than at each
// point of use to fail fast and provide clear error messages upfront.
// This is called once after flags and the config file are merged, before
// any network access.
//
// We chose to return the first error found rather than collecting all errors
// because fixing one error often makes others irrelevant.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}

	for _, target := range c.Targets {
		if err := validateTarget(target); err != nil {
			return err
		}
	}

	if c.MaxDepth < 0 {
		return ErrInvalidDepth
	}

	if c.MaxPages <= 0 {
		return ErrInvalidMaxPages
	}

	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	if c.PageTimeout <= 0 || c.LinkTimeout <= 0 {
		return ErrInvalidTimeout
	}

	// RateLimit 0 means unlimited; negative values are a typo worth reporting
	if c.RateLimit < 0 {
		return ErrInvalidRateLimit
	}

	if !isOutputFormat(c.OutputFormat) {
		return fmt.Errorf("%w: %q", ErrInvalidOutputFormat, c.OutputFormat)
	}

	if c.MaxBodySize <= 0 {
		return ErrInvalidMaxBodySize
	}

	if c.MaxRedirects < 0 {
		return ErrInvalidMaxRedirects
	}

	if c.LinkCheckConcurrency <= 0 {
		return ErrInvalidLinkConcurrency
	}

	return nil
}

// SiteConfig returns the file-provided settings for a seed URL.
// It returns the zero value when no configuration file was loaded.
func (c *Config) SiteConfig(target string) SiteConfig {
	if c.SiteConfigs == nil {
		return SiteConfig{}
	}
	host := target
	if u, err := url.Parse(target); err == nil && u.Host != "" {
		host = u.Host
	}
	return c.SiteConfigs.GetSiteConfig(strings.ToLower(host))
}

func validateTarget(target string) error {
	u, err := url.Parse(strings.TrimSpace(target))
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidTarget, target, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if (scheme != "http" && scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %s", ErrInvalidTarget, target)
	}
	return nil
}

func isOutputFormat(format string) bool {
	for _, f := range OutputFormats {
		if f == format {
			return true
		}
	}
	return false
}
