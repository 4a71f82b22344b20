package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/scoutly/internal/config"
	"github.com/nao1215/scoutly/internal/crawler"
	"github.com/nao1215/scoutly/internal/database"
	"github.com/nao1215/scoutly/internal/model"
	"github.com/spf13/cobra"
)

// noIssuesMessage is shown for crawls without any issue.
const noIssuesMessage = "No issues"

// NewHistoryCmd creates the history command.
// This command reads crawl results stored in the history database.
func NewHistoryCmd() *cobra.Command {
	return newHistoryCmd(config.XDGDataDir())
}

// newHistoryCmd creates the history command reading the database in dbDir.
func newHistoryCmd(dbDir string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [url]",
		Short: "Show crawl history and compare the latest crawls",
		Long: `History reads the crawl results saved by 'scoutly crawl'.

By default it compares the two most recent crawls of a site and shows:
- Issues that appeared or were resolved since the previous crawl
- Pages that were added, removed, or whose content changed
- Changes in page, link, and issue counts

Examples:
  # Compare the latest two crawls of a site
  scoutly history https://example.com

  # List every crawl of a site
  scoutly history --list https://example.com

  # List all crawled sites
  scoutly history --list-sites

  # Output the comparison in JSON format
  scoutly history --json https://example.com`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryCmd(cmd, args, dbDir)
		},
	}

	cmd.Flags().BoolP("list", "l", false,
		"List crawl history for the specified URL")
	cmd.Flags().BoolP("list-sites", "L", false,
		"List all crawled sites in the database")
	cmd.Flags().BoolP("json", "j", false,
		"Output in JSON format")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string, dbDir string) error {
	listSites, err := cmd.Flags().GetBool("list-sites")
	if err != nil {
		return err
	}
	listHistory, err := cmd.Flags().GetBool("list")
	if err != nil {
		return err
	}
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	// Validate arguments before opening the database
	var startURL string
	if !listSites {
		if len(args) == 0 {
			return errors.New("a URL is required (use --list-sites to see crawled sites)")
		}
		startURL = crawler.Normalize(strings.TrimSpace(args[0]), false)
	}

	out := cmd.OutOrStdout()

	opts := database.DefaultOptions()
	opts.CreateIfNotExists = false
	db, err := database.Open(dbDir, opts)
	if errors.Is(err, database.ErrDatabaseNotFound) {
		fmt.Fprintln(out, "No crawl history found.")
		fmt.Fprintln(out, "\nUse 'scoutly crawl <url>' to crawl a site.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	switch {
	case listSites:
		return listCrawledSites(ctx, out, db, jsonOutput)
	case listHistory:
		return listCrawlHistory(ctx, out, db, startURL, jsonOutput)
	default:
		return compareLatest(ctx, out, db, startURL, jsonOutput)
	}
}

// listCrawledSites lists every start URL that has at least one stored crawl.
func listCrawledSites(ctx context.Context, out io.Writer, db *database.CrawlDB, jsonOutput bool) error {
	sites, err := db.ListSites(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sites: %w", err)
	}

	if jsonOutput {
		if sites == nil {
			sites = []string{}
		}
		return writeJSON(out, sites)
	}

	if len(sites) == 0 {
		fmt.Fprintln(out, "No crawled sites found in the database.")
		fmt.Fprintln(out, "\nUse 'scoutly crawl <url>' to crawl a site.")
		return nil
	}

	fmt.Fprintf(out, "Crawled sites (%d):\n\n", len(sites))
	for _, site := range sites {
		fmt.Fprintf(out, "  • %s\n", site)
	}
	fmt.Fprintln(out, "\nUse 'scoutly history --list <url>' to see the crawl history of a site.")

	return nil
}

// listCrawlHistory lists every stored crawl of startURL, newest first.
func listCrawlHistory(ctx context.Context, out io.Writer, db *database.CrawlDB, startURL string, jsonOutput bool) error {
	history, err := db.GetHistory(ctx, startURL)
	if err != nil {
		return fmt.Errorf("failed to get crawl history: %w", err)
	}

	if jsonOutput {
		if history == nil {
			history = []database.ReportMetadata{}
		}
		return writeJSON(out, history)
	}

	if len(history) == 0 {
		fmt.Fprintf(out, "No crawl history found for %s\n", startURL)
		fmt.Fprintln(out, "\nUse 'scoutly crawl' to crawl this site.")
		return nil
	}

	fmt.Fprintf(out, "Crawl history for %s (%d crawls):\n\n", startURL, len(history))
	fmt.Fprintf(out, "  %-36s  %-19s  %-6s  %s\n", "ID", "Date", "Pages", "Issues")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 80))

	for _, meta := range history {
		date := meta.Timestamp.Local().Format("2006-01-02 15:04:05")
		issues := formatIssueSummary(meta.Summary)
		if meta.Aborted {
			issues += " (aborted)"
		}
		fmt.Fprintf(out, "  %-36s  %-19s  %-6d  %s\n", meta.ID, date, meta.Summary.TotalPages, issues)
	}

	fmt.Fprintln(out, "\nUse 'scoutly history <url>' to compare the latest two crawls.")

	return nil
}

// formatIssueSummary formats summary counts into a compact string.
func formatIssueSummary(s model.Summary) string {
	var parts []string
	if s.BrokenLinks > 0 {
		parts = append(parts, fmt.Sprintf("B:%d", s.BrokenLinks))
	}
	if s.Errors > 0 {
		parts = append(parts, fmt.Sprintf("E:%d", s.Errors))
	}
	if s.Warnings > 0 {
		parts = append(parts, fmt.Sprintf("W:%d", s.Warnings))
	}
	if s.Infos > 0 {
		parts = append(parts, fmt.Sprintf("I:%d", s.Infos))
	}

	if len(parts) == 0 {
		return noIssuesMessage
	}
	return strings.Join(parts, " ")
}

// compareLatest compares the two most recent crawls of startURL.
func compareLatest(ctx context.Context, out io.Writer, db *database.CrawlDB, startURL string, jsonOutput bool) error {
	comparison, err := db.CompareLatest(ctx, startURL)
	if err != nil {
		return err
	}

	if jsonOutput {
		return writeJSON(out, comparison)
	}
	writeComparisonText(out, comparison)
	return nil
}

// writeComparisonText outputs a comparison in human-readable text format.
func writeComparisonText(out io.Writer, c *database.Comparison) {
	fmt.Fprintf(out, "Crawl Comparison: %s\n", c.StartURL)
	fmt.Fprintln(out, strings.Repeat("=", 60))

	fmt.Fprintf(out, "\nTrend: %s\n", formatTrend(c.Trend))

	fmt.Fprintf(out, "\nPrevious crawl: %s\n", c.Previous.Timestamp.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Current crawl:  %s\n", c.Current.Timestamp.Local().Format("2006-01-02 15:04:05"))

	prev, cur := c.Previous.Summary, c.Current.Summary
	fmt.Fprintln(out, "\nSummary:")
	fmt.Fprintf(out, "  %-14s  %-10s  %-10s  %-10s\n", "Metric", "Previous", "Current", "Change")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 50))
	rows := []struct {
		name      string
		prev, cur int
		delta     int
	}{
		{"Pages", prev.TotalPages, cur.TotalPages, c.Delta.Pages},
		{"Links", prev.TotalLinks, cur.TotalLinks, c.Delta.Links},
		{"Broken Links", prev.BrokenLinks, cur.BrokenLinks, c.Delta.BrokenLinks},
		{"Errors", prev.Errors, cur.Errors, c.Delta.Errors},
		{"Warnings", prev.Warnings, cur.Warnings, c.Delta.Warnings},
		{"Infos", prev.Infos, cur.Infos, c.Delta.Infos},
	}
	for _, row := range rows {
		fmt.Fprintf(out, "  %-14s  %-10d  %-10d  %-10s\n", row.name, row.prev, row.cur, formatDelta(row.delta))
	}

	if len(c.NewIssues) > 0 {
		fmt.Fprintf(out, "\nNew Issues (%d):\n", len(c.NewIssues))
		for _, issue := range c.NewIssues {
			fmt.Fprintf(out, "  [+] [%s] %s: %s\n", issue.Severity, issue.PageURL, issue.Message)
		}
	}

	if len(c.ResolvedIssues) > 0 {
		fmt.Fprintf(out, "\nResolved Issues (%d):\n", len(c.ResolvedIssues))
		for _, issue := range c.ResolvedIssues {
			fmt.Fprintf(out, "  [-] [%s] %s: %s\n", issue.Severity, issue.PageURL, issue.Message)
		}
	}

	writeURLList(out, "Added Pages", "+", c.AddedPages)
	writeURLList(out, "Removed Pages", "-", c.RemovedPages)
	writeURLList(out, "Changed Pages", "~", c.ChangedPages)

	if c.UnchangedIssues > 0 {
		fmt.Fprintf(out, "\nUnchanged: %d issues\n", c.UnchangedIssues)
	}
}

func writeURLList(out io.Writer, title, marker string, urls []string) {
	if len(urls) == 0 {
		return
	}
	fmt.Fprintf(out, "\n%s (%d):\n", title, len(urls))
	for _, u := range urls {
		fmt.Fprintf(out, "  [%s] %s\n", marker, u)
	}
}

// formatTrend formats the trend direction for display.
func formatTrend(trend string) string {
	switch trend {
	case database.TrendImproved:
		return "IMPROVED (fewer issues)"
	case database.TrendWorsened:
		return "WORSENED (more issues)"
	default:
		return "UNCHANGED"
	}
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	}
	return strconv.Itoa(delta)
}

func writeJSON(out io.Writer, v any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
