package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/nao1215/scoutly/internal/config"
	"github.com/nao1215/scoutly/internal/crawler"
	"github.com/nao1215/scoutly/internal/database"
	"github.com/nao1215/scoutly/internal/log"
	"github.com/nao1215/scoutly/internal/model"
	"github.com/nao1215/scoutly/internal/pipeline"
	"github.com/nao1215/scoutly/internal/report"
	"github.com/spf13/cobra"
)

// flagNoHistory disables saving reports to the history database.
const flagNoHistory = "no-history"

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	return newCrawlCmd(config.XDGDataDir())
}

// newCrawlCmd creates the crawl command with the history database stored
// in dbDir.
func newCrawlCmd(dbDir string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl <url>...",
		Short: "Crawl a website and report broken links and SEO issues",
		Long: `Crawl visits a website breadth-first starting from each seed URL.

For every page it records the status code, title and outgoing links, then
checks each link and analyses the page for common SEO problems:
- Broken links (4xx and 5xx responses)
- Redirects
- Missing or badly sized titles and meta descriptions
- Missing H1 headings, image alt text and Open Graph tags

Examples:
  # Crawl a site with default settings
  scoutly crawl https://example.com

  # Crawl two levels deep at most 2 requests per second
  scoutly crawl -d 2 -r 2 https://example.com

  # Crawl several sites, two at a time, and print JSON
  scoutly crawl -b 2 -o json https://example.com https://example.org

  # Print Markdown and keep a JSON copy of the report
  scoutly crawl -o markdown -s reports/example.json https://example.com

Configuration file (scoutly.yaml) example:
  depth: 3
  rate_limit: 5
  sites:
    example.com:
      cookie: "session_id=abc123"
      headers:
        Authorization: "Bearer token"
      max_pages: 500`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCrawlCmd(cmd, args, dbDir)
		},
	}

	// Crawl bounds
	cmd.Flags().IntP(config.FlagDepth, "d", config.DefaultMaxDepth,
		"Maximum link depth from the seed URL (0 fetches only the seed)")
	cmd.Flags().IntP(config.FlagMaxPages, "m", config.DefaultMaxPages,
		"Maximum number of URLs visited per seed")

	// Crawl behavior
	cmd.Flags().IntP(config.FlagConcurrency, "c", config.DefaultConcurrency,
		"Number of pages fetched in parallel")
	cmd.Flags().Float64P(config.FlagRateLimit, "r", 0,
		"Maximum requests per second (0 disables rate limiting)")
	cmd.Flags().BoolP(config.FlagExternal, "e", false,
		"Crawl pages on other hosts (external links are always checked)")
	cmd.Flags().Bool(config.FlagKeepFragments, false,
		"Treat URLs that differ only by #fragment as distinct pages")
	cmd.Flags().Bool(config.FlagIgnoreRedirects, false,
		"Do not report redirects as issues")
	cmd.Flags().Bool(config.FlagRespectRobotsTxt, true,
		"Honour robots.txt allow and disallow rules")
	cmd.Flags().String(config.FlagUserAgent, "",
		"User-Agent header (default \"Scoutly/<version>\")")

	// Batch crawling
	cmd.Flags().IntP(config.FlagBatch, "b", config.DefaultBatchSize,
		"Number of seed URLs crawled concurrently")

	// Configuration file
	cmd.Flags().String("config", "",
		"Configuration file path (default: ./scoutly.{json,toml,yaml,yml})")

	// Report flags
	cmd.Flags().StringP(config.FlagOutput, "o", config.OutputText,
		"Report format: text, json or markdown")
	cmd.Flags().StringP(config.FlagSave, "s", "",
		"Also write a JSON report to this file (creates directories if needed)")
	cmd.Flags().Bool(flagNoHistory, false,
		"Do not save the report to the crawl history database")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string, dbDir string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	cfg.DBDir = dbDir

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	for i, target := range cfg.Targets {
		cfg.Targets[i] = crawler.Normalize(strings.TrimSpace(target), cfg.KeepFragments)
	}

	cfg.Verbose = getVerboseFlag(cmd)
	logger := log.NewSecureLogger(cmd.ErrOrStderr(), cfg.Verbose)
	slog.SetDefault(logger)

	// Ctrl+C stops the crawl; the pages fetched so far are still reported
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runCrawl(ctx, cfg, cmd.OutOrStdout(), logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from defaults, the configuration file and
// the command line flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.UserAgent = config.DefaultUserAgent(getVersion())
	cfg.Targets = args

	flags := cmd.Flags()
	var err error

	if cfg.MaxDepth, err = flags.GetInt(config.FlagDepth); err != nil {
		return nil, err
	}
	if cfg.MaxPages, err = flags.GetInt(config.FlagMaxPages); err != nil {
		return nil, err
	}
	if cfg.Concurrency, err = flags.GetInt(config.FlagConcurrency); err != nil {
		return nil, err
	}
	if cfg.RateLimit, err = flags.GetFloat64(config.FlagRateLimit); err != nil {
		return nil, err
	}
	if cfg.FollowExternal, err = flags.GetBool(config.FlagExternal); err != nil {
		return nil, err
	}
	if cfg.KeepFragments, err = flags.GetBool(config.FlagKeepFragments); err != nil {
		return nil, err
	}
	if cfg.IgnoreRedirects, err = flags.GetBool(config.FlagIgnoreRedirects); err != nil {
		return nil, err
	}
	if cfg.RespectRobotsTxt, err = flags.GetBool(config.FlagRespectRobotsTxt); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = flags.GetInt(config.FlagBatch); err != nil {
		return nil, err
	}
	if cfg.OutputFormat, err = flags.GetString(config.FlagOutput); err != nil {
		return nil, err
	}
	if cfg.SaveFile, err = flags.GetString(config.FlagSave); err != nil {
		return nil, err
	}
	if flags.Changed(config.FlagUserAgent) {
		if cfg.UserAgent, err = flags.GetString(config.FlagUserAgent); err != nil {
			return nil, err
		}
	}

	noHistory, err := flags.GetBool(flagNoHistory)
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noHistory

	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}

	// If the user explicitly specified a config file path, error if not found.
	// If no path was specified, silently run without a config file.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	if configPath == "" {
		if cfg.ConfigFilePath != "" {
			return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
		}
		return cfg, nil
	}

	file, err := config.LoadConfigFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
	}
	cfg.ApplyFile(file, flags)

	return cfg, nil
}

// runCrawl crawls every target, saves the reports to the history database
// and writes them to out.
func runCrawl(ctx context.Context, cfg *config.Config, out io.Writer, logger *slog.Logger) error {
	logger.Info("starting crawl",
		"targets", cfg.Targets,
		"maxDepth", cfg.MaxDepth,
		"maxPages", cfg.MaxPages,
		"batchSize", cfg.BatchSize,
		"saveToDB", cfg.SaveToDB,
	)
	for _, target := range cfg.Targets {
		if headers := cfg.SiteConfig(target).RequestHeaders(); len(headers) > 0 {
			logger.Debug("using site configuration", "target", target, "headers", headers)
		}
	}

	bp := pipeline.NewBatchProcessor(
		func(target string) *pipeline.Pipeline {
			return pipeline.DefaultPipeline(cfg, target, pipeline.WithLogger(logger))
		},
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	reports, crawlErr := bp.ProcessBatch(ctx, cfg.Targets)

	// Saving uses a fresh context so an interrupted crawl still reaches
	// the history database
	if cfg.SaveToDB {
		saveReports(context.WithoutCancel(ctx), cfg.DBDir, reports, logger)
	}

	if err := outputReports(cfg, out, reports); err != nil {
		return err
	}

	if crawlErr != nil {
		return fmt.Errorf("crawl interrupted: %w", crawlErr)
	}
	return nil
}

// saveReports stores every finished report in the history database.
// Failures are logged and never fail the crawl.
func saveReports(ctx context.Context, dbDir string, reports []*model.CrawlReport, logger *slog.Logger) {
	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		logger.Error("failed to open history database", "dir", dbDir, "error", err)
		return
	}
	defer db.Close()

	for _, r := range reports {
		if r == nil {
			continue
		}
		if err := db.SaveReport(ctx, r); err != nil {
			logger.Error("failed to save crawl report", "target", r.StartURL, "error", err)
			continue
		}
		logger.Info("crawl report saved to history", "target", r.StartURL, "id", r.ID)
	}
}

// outputReports writes the reports to out in the configured format and,
// with --save, a JSON copy to the save file.
func outputReports(cfg *config.Config, out io.Writer, reports []*model.CrawlReport) error {
	writer, err := report.NewWriter(cfg.OutputFormat, out, !color.NoColor)
	if err != nil {
		return err
	}

	if cfg.SaveFile != "" {
		f, err := report.CreateFile(cfg.SaveFile)
		if err != nil {
			return err
		}
		defer f.Close()
		writer = report.NewMultiWriter(writer, report.NewJSONWriter(f, report.WithPrettyPrint()))
	}

	if _, err := writer.WriteBatch(reports); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
