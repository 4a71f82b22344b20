package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/nao1215/scoutly/internal/model"
)

// ruleWidth is the width of the horizontal rules framing a text report.
const ruleWidth = 80

// TextWriter outputs human-readable text reports: a summary followed by
// every page that has issues, ordered by depth and then URL.
//
// Design decision: Colours come from fatih/color but are decided per
// writer, not through the package-level color.NoColor switch. The CLI
// enables them only when stdout is a terminal, and tests can force either
// mode without touching global state.
type TextWriter struct {
	baseWriter

	heading *color.Color
	label   *color.Color
	good    *color.Color
	warn    *color.Color
	bad     *color.Color
	info    *color.Color
	rule    *color.Color
	dim     *color.Color
}

// TextWriterOption configures a TextWriter.
type TextWriterOption func(*TextWriter)

// WithColor enables or disables ANSI colours.
func WithColor(enabled bool) TextWriterOption {
	return func(w *TextWriter) {
		for _, c := range w.palette() {
			if enabled {
				c.EnableColor()
			} else {
				c.DisableColor()
			}
		}
	}
}

// NewTextWriter creates a TextWriter that outputs to the given writer.
// Colours are disabled unless WithColor(true) is given.
func NewTextWriter(output io.Writer, opts ...TextWriterOption) *TextWriter {
	w := &TextWriter{
		baseWriter: newBaseWriter(output),
		heading:    color.New(color.FgHiCyan, color.Bold),
		label:      color.New(color.FgHiWhite, color.Bold),
		good:       color.New(color.FgHiGreen),
		warn:       color.New(color.FgYellow),
		bad:        color.New(color.FgHiRed),
		info:       color.New(color.FgHiCyan),
		rule:       color.New(color.FgHiBlue),
		dim:        color.New(color.Faint),
	}
	for _, c := range w.palette() {
		c.DisableColor()
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

func (w *TextWriter) palette() []*color.Color {
	return []*color.Color{w.heading, w.label, w.good, w.warn, w.bad, w.info, w.rule, w.dim}
}

// Write outputs the report in human-readable format.
func (w *TextWriter) Write(report *model.CrawlReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeSummary(&sb, report)
	w.writePages(&sb, report)
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

// WriteBatch outputs each report in turn.
func (w *TextWriter) WriteBatch(reports []*model.CrawlReport) (int, error) {
	return writeEach(reports, w.Write)
}

// writeHeader writes the report title and crawl information.
func (w *TextWriter) writeHeader(sb *strings.Builder, report *model.CrawlReport) {
	sb.WriteString("\n")
	sb.WriteString(w.rule.Sprint(strings.Repeat("=", ruleWidth)))
	sb.WriteString("\n")
	sb.WriteString(w.heading.Sprint("Scoutly - Crawl Report"))
	sb.WriteString("\n")
	sb.WriteString(w.rule.Sprint(strings.Repeat("=", ruleWidth)))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "%s: %s\n", w.label.Sprint("Start URL"), report.StartURL)
	fmt.Fprintf(sb, "%s: %s\n", w.label.Sprint("Timestamp"), report.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(sb, "%s:  %s\n", w.label.Sprint("Duration"), report.Duration.Round(time.Millisecond))
	fmt.Fprintf(sb, "%s:    %s\n", w.label.Sprint("Status"), statusText(report))
	sb.WriteString("\n")
}

// writeSummary writes the aggregate counts.
func (w *TextWriter) writeSummary(sb *strings.Builder, report *model.CrawlReport) {
	s := report.Summary

	sb.WriteString(w.heading.Sprint("Summary"))
	sb.WriteString("\n")
	fmt.Fprintf(sb, "  Total Pages Crawled: %s\n", w.good.Sprint(s.TotalPages))
	fmt.Fprintf(sb, "  Total Links Found:   %s\n", w.good.Sprint(s.TotalLinks))
	fmt.Fprintf(sb, "  Broken Links:        %s\n", w.countColor(s.BrokenLinks, w.bad).Sprint(s.BrokenLinks))
	fmt.Fprintf(sb, "  Errors:              %s\n", w.countColor(s.Errors, w.bad).Sprint(s.Errors))
	fmt.Fprintf(sb, "  Warnings:            %s\n", w.countColor(s.Warnings, w.warn).Sprint(s.Warnings))
	fmt.Fprintf(sb, "  Info:                %s\n", w.info.Sprint(s.Infos))
	sb.WriteString("\n")
}

// countColor returns nonZero for positive counts and the "good" colour otherwise.
func (w *TextWriter) countColor(n int, nonZero *color.Color) *color.Color {
	if n > 0 {
		return nonZero
	}
	return w.good
}

// writePages writes every page that has issues.
func (w *TextWriter) writePages(sb *strings.Builder, report *model.CrawlReport) {
	pages := report.PagesWithIssues()
	if len(pages) == 0 {
		return
	}

	sb.WriteString(w.heading.Sprint("Pages with Issues"))
	sb.WriteString("\n")

	for _, page := range pages {
		sb.WriteString("\n")
		fmt.Fprintf(sb, "  %s %s\n", w.label.Sprint("URL:"), page.URL)
		fmt.Fprintf(sb, "    Status: %s\n", w.statusCode(page.StatusCode))
		fmt.Fprintf(sb, "    Depth:  %d\n", page.Depth)
		if page.Title != "" {
			fmt.Fprintf(sb, "    Title:  %s\n", page.Title)
		}
		sb.WriteString("    Issues:\n")
		for _, issue := range page.Issues {
			fmt.Fprintf(sb, "      [%s] %s\n", w.severityTag(issue.Severity), issue.Message)
		}
	}
	sb.WriteString("\n")
}

// statusCode colours an HTTP status by class. 0 means the fetch failed.
func (w *TextWriter) statusCode(code int) string {
	switch {
	case code == 0:
		return w.dim.Sprint("N/A")
	case code < 300:
		return w.good.Sprint(strconv.Itoa(code))
	case code < 400:
		return w.warn.Sprint(strconv.Itoa(code))
	default:
		return w.bad.Sprint(strconv.Itoa(code))
	}
}

// severityTag returns a fixed-width, coloured severity marker.
func (w *TextWriter) severityTag(severity model.Severity) string {
	switch severity {
	case model.SeverityError:
		return w.bad.Sprint("ERROR")
	case model.SeverityWarning:
		return w.warn.Sprint("WARN ")
	default:
		return w.info.Sprint("INFO ")
	}
}

// writeFooter writes the closing rule.
func (w *TextWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(w.rule.Sprint(strings.Repeat("=", ruleWidth)))
	sb.WriteString("\n")
}
