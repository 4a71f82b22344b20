package report

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nao1215/scoutly/internal/model"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Output formats understood by NewWriter.
const (
	FormatText     = "text"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
)

// ErrUnknownFormat is returned by NewWriter for an unsupported format name.
var ErrUnknownFormat = errors.New("unknown report format")

// Writer defines the interface for report output.
// Implementations write crawl reports in various formats.
//
// Design decision: We use an interface to allow different output formats
// and destinations. This enables writing to files, stdout, or network
// connections with the same API.
type Writer interface {
	// Write outputs one report to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.CrawlReport) (int, error)

	// WriteBatch outputs the reports of several seed URLs.
	// Nil entries (seeds that never started) are skipped.
	WriteBatch(reports []*model.CrawlReport) (int, error)
}

// NewWriter returns the writer for a format name.
// color only affects the text format.
func NewWriter(format string, output io.Writer, color bool) (Writer, error) {
	switch format {
	case FormatText:
		return NewTextWriter(output, WithColor(color)), nil
	case FormatJSON:
		return NewJSONWriter(output, WithPrettyPrint()), nil
	case FormatMarkdown:
		return NewMarkdownWriter(output), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// MultiWriter writes to multiple Writers simultaneously.
// This is used to print a report and save a JSON copy in one pass.
//
// Design decision: We implement this as a separate type rather than
// using io.MultiWriter because each destination may use a different
// format - we write reports, not raw bytes.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(report *model.CrawlReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteBatch outputs the reports to all configured Writers.
func (m *MultiWriter) WriteBatch(reports []*model.CrawlReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteBatch(reports)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// CreateFile creates (or truncates) a report file, creating parent
// directories as needed. Reports can contain URLs with session parameters,
// so the file is only readable by its owner.
func CreateFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	f, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to create report file: %w", err)
	}
	return f, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// writeEach writes every non-nil report with write.
func writeEach(reports []*model.CrawlReport, write func(*model.CrawlReport) (int, error)) (int, error) {
	var total int
	for _, r := range reports {
		if r == nil {
			continue
		}
		n, err := write(r)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// IssueLabel turns an issue type such as "missing_og_title" into
// "Missing Og Title" for human-readable output.
// A Caser is stateful, so one is created per call.
func IssueLabel(t model.IssueType) string {
	return cases.Title(language.English).String(strings.ReplaceAll(string(t), "_", " "))
}

// statusText describes how a crawl ended.
func statusText(report *model.CrawlReport) string {
	switch {
	case report.Aborted:
		return "Aborted (partial results)"
	case report.Error != "":
		return "Error - " + report.Error
	default:
		return "Complete"
	}
}
