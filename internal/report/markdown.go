package report

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/scoutly/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing, e.g. as a CI
// job summary.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.CrawlReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSummary(md, report)
	w.writePages(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteBatch outputs each report in turn.
func (w *MarkdownWriter) WriteBatch(reports []*model.CrawlReport) (int, error) {
	return writeEach(reports, w.Write)
}

// writeHeader writes the report header with crawl information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.CrawlReport) {
	md.H1("Scoutly Crawl Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Start URL", report.StartURL},
			{"Crawl Date", report.Timestamp.Format("2006-01-02 15:04:05 MST")},
			{"Duration", report.Duration.Round(time.Millisecond).String()},
			{"Status", statusText(report)},
		},
	})
	md.PlainText("")
}

// writeSummary writes the counts table, the severity chart and an alert.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.CrawlReport) {
	s := report.Summary

	md.H2("Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Count"},
		Rows: [][]string{
			{"Pages Crawled", strconv.Itoa(s.TotalPages)},
			{"Links Found", strconv.Itoa(s.TotalLinks)},
			{"Broken Links", strconv.Itoa(s.BrokenLinks)},
			{"🔴 Errors", strconv.Itoa(s.Errors)},
			{"🟡 Warnings", strconv.Itoa(s.Warnings)},
			{"🔵 Info", strconv.Itoa(s.Infos)},
			{"**Total Issues**", "**" + strconv.Itoa(s.TotalIssues()) + "**"},
		},
	})
	md.PlainText("")

	if s.TotalIssues() > 0 {
		w.writePieChart(md, s)
	}

	w.writeAlert(md, s)
}

// writePieChart writes a mermaid pie chart for the severity distribution.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, s model.Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Issue Severity Distribution"),
		piechart.WithShowData(true),
	)

	if s.Errors > 0 {
		chart.LabelAndIntValue("Error", uint64(s.Errors))
	}
	if s.Warnings > 0 {
		chart.LabelAndIntValue("Warning", uint64(s.Warnings))
	}
	if s.Infos > 0 {
		chart.LabelAndIntValue("Info", uint64(s.Infos))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an alert matching the most serious issue class.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, s model.Summary) {
	switch {
	case s.BrokenLinks > 0:
		md.Cautionf("%d broken link(s) found. Visitors following them will hit an error page.", s.BrokenLinks)
	case s.Errors > 0:
		md.Warningf("%d error(s) found. Missing titles and descriptions hurt search ranking.", s.Errors)
	case s.Warnings > 0:
		md.Importantf("%d warning(s) found that should be reviewed.", s.Warnings)
	case s.Infos > 0:
		md.Note("Only informational issues detected.")
	default:
		md.Tip("No issues detected.")
	}
	md.PlainText("")
}

// writePages writes one section with an issue table per page with issues.
func (w *MarkdownWriter) writePages(md *markdown.Markdown, report *model.CrawlReport) {
	md.H2("Pages with Issues")
	md.PlainText("")

	pages := report.PagesWithIssues()
	if len(pages) == 0 {
		md.PlainText("No page has issues.")
		md.PlainText("")
		return
	}

	for _, page := range pages {
		md.H3(page.URL)
		md.PlainText("")

		status := "N/A"
		if page.StatusCode != 0 {
			status = strconv.Itoa(page.StatusCode)
		}
		title := page.Title
		if title == "" {
			title = "-"
		}
		md.BulletList(
			"Status: "+status,
			"Depth: "+strconv.Itoa(page.Depth),
			"Title: "+title,
		)
		md.PlainText("")

		rows := make([][]string, len(page.Issues))
		for i, issue := range page.Issues {
			rows[i] = []string{
				issue.Severity.String(),
				IssueLabel(issue.Type),
				truncateString(issue.Message, 120),
			}
		}
		md.Table(markdown.TableSet{
			Header: []string{"Severity", "Type", "Message"},
			Rows:   rows,
		})
		md.PlainText("")
	}
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [Scoutly](https://github.com/nao1215/scoutly)*")
}

// truncateString truncates a string to maxLen runes with an ellipsis.
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
