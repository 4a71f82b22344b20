package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/scoutly/internal/model"
)

// FileName is the database file name inside the data directory.
const FileName = "scoutly.db"

// timestampLayout is used to store timestamps. It has a fixed width and is
// always UTC, so ORDER BY on the text column is chronological.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

// ErrDatabaseNotFound is returned by Open when CreateIfNotExists is false
// and no database file exists yet.
var ErrDatabaseNotFound = errors.New("database not found")

// CrawlDB provides SQLite-based storage for crawl reports and page snapshots.
//
// Design decision: We use a single database file for all sites rather
// than separate files per site. This keeps listing and backup simple.
type CrawlDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	// This is recommended for most use cases.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a CrawlDB in the given directory.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist,
// ErrDatabaseNotFound is returned.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w at %s", ErrDatabaseNotFound, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// modernc.org/sqlite: mode=rw refuses to create a new file, mode=rwc
	// allows it. Foreign keys are off by default in SQLite.
	mode := "rw"
	if opts.CreateIfNotExists {
		mode = "rwc"
	}
	dsn := dbPath + "?mode=" + mode + "&_pragma=foreign_keys(1)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Path returns the database file path.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (cdb *CrawlDB) createTables() error {
	schema := `
	-- One row per finished crawl of a seed URL
	CREATE TABLE IF NOT EXISTS crawl_reports (
		id TEXT PRIMARY KEY,
		start_url TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		aborted INTEGER NOT NULL DEFAULT 0,
		report_json TEXT NOT NULL,
		summary_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reports_start_url ON crawl_reports(start_url);
	CREATE INDEX IF NOT EXISTS idx_reports_timestamp ON crawl_reports(timestamp);

	-- Page snapshots allow change detection without decoding whole reports
	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		report_id TEXT NOT NULL REFERENCES crawl_reports(id) ON DELETE CASCADE,
		url TEXT NOT NULL,
		status_code INTEGER NOT NULL DEFAULT 0,
		depth INTEGER NOT NULL DEFAULT 0,
		title TEXT NOT NULL DEFAULT '',
		content_hash TEXT NOT NULL DEFAULT '',
		issue_count INTEGER NOT NULL DEFAULT 0,
		UNIQUE(report_id, url)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_report ON pages(report_id);
	CREATE INDEX IF NOT EXISTS idx_pages_url ON pages(url);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveReport stores a report and one snapshot row per page in a single
// transaction. Saving the same report ID twice replaces the earlier copy.
func (cdb *CrawlDB) SaveReport(ctx context.Context, report *model.CrawlReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}
	summaryJSON, err := json.Marshal(report.Summary)
	if err != nil {
		return fmt.Errorf("failed to serialize summary: %w", err)
	}

	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }() //nolint:errcheck // no-op after commit

	for _, query := range []string{
		`DELETE FROM pages WHERE report_id = ?`,
		`DELETE FROM crawl_reports WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, query, report.ID); err != nil {
			return fmt.Errorf("failed to replace report: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
	INSERT INTO crawl_reports (id, start_url, timestamp, duration_ms, aborted, report_json, summary_json)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		report.ID,
		report.StartURL,
		formatTimestamp(report.Timestamp),
		report.Duration.Milliseconds(),
		report.Aborted,
		string(reportJSON),
		string(summaryJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save crawl report: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO pages (report_id, url, status_code, depth, title, content_hash, issue_count)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare page insert: %w", err)
	}
	defer stmt.Close()

	for key, page := range report.Pages {
		_, err := stmt.ExecContext(ctx,
			report.ID,
			key,
			page.StatusCode,
			page.Depth,
			page.Title,
			page.ContentHash,
			len(page.Issues),
		)
		if err != nil {
			return fmt.Errorf("failed to save page %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit report: %w", err)
	}
	return nil
}

// ListSites returns every start URL that has at least one stored crawl.
func (cdb *CrawlDB) ListSites(ctx context.Context) ([]string, error) {
	rows, err := cdb.db.QueryContext(ctx, `
	SELECT DISTINCT start_url FROM crawl_reports
	ORDER BY start_url
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	defer rows.Close()

	var sites []string
	for rows.Next() {
		var site string
		if err := rows.Scan(&site); err != nil {
			return nil, fmt.Errorf("failed to scan site: %w", err)
		}
		sites = append(sites, site)
	}

	return sites, rows.Err()
}

// ReportMetadata contains summary information about a stored crawl.
// This is used for displaying history without loading the full report.
type ReportMetadata struct {
	// ID is the crawl report ID.
	ID string `json:"id"`

	// StartURL is the crawled seed URL.
	StartURL string `json:"start_url"`

	// Timestamp is when the crawl started.
	Timestamp time.Time `json:"timestamp"`

	// Duration is how long the crawl took.
	Duration time.Duration `json:"duration"`

	// Aborted is true for crawls cancelled before completion.
	Aborted bool `json:"aborted,omitempty"`

	// Summary holds the page, link and issue counts.
	Summary model.Summary `json:"summary"`
}

// GetHistory returns metadata of every crawl of startURL, newest first.
func (cdb *CrawlDB) GetHistory(ctx context.Context, startURL string) ([]ReportMetadata, error) {
	rows, err := cdb.db.QueryContext(ctx, `
	SELECT id, start_url, timestamp, duration_ms, aborted, summary_json
	FROM crawl_reports
	WHERE start_url = ?
	ORDER BY timestamp DESC
	`, startURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl history: %w", err)
	}
	defer rows.Close()

	var results []ReportMetadata
	for rows.Next() {
		var meta ReportMetadata
		var timestamp, summaryJSON string
		var durationMS int64

		if err := rows.Scan(&meta.ID, &meta.StartURL, &timestamp, &durationMS, &meta.Aborted, &summaryJSON); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}

		meta.Timestamp = parseTimestamp(timestamp)
		meta.Duration = time.Duration(durationMS) * time.Millisecond
		if err := json.Unmarshal([]byte(summaryJSON), &meta.Summary); err != nil {
			return nil, fmt.Errorf("failed to parse summary of %s: %w", meta.ID, err)
		}

		results = append(results, meta)
	}

	return results, rows.Err()
}

// GetLatestReports returns up to limit full reports of startURL, newest first.
func (cdb *CrawlDB) GetLatestReports(ctx context.Context, startURL string, limit int) ([]*model.CrawlReport, error) {
	rows, err := cdb.db.QueryContext(ctx, `
	SELECT report_json FROM crawl_reports
	WHERE start_url = ?
	ORDER BY timestamp DESC
	LIMIT ?
	`, startURL, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl reports: %w", err)
	}
	defer rows.Close()

	var reports []*model.CrawlReport
	for rows.Next() {
		var reportJSON string
		if err := rows.Scan(&reportJSON); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}

		var report model.CrawlReport
		if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
			continue // Skip malformed reports
		}
		reports = append(reports, &report)
	}

	return reports, rows.Err()
}

// GetReportByID retrieves a crawl report by its ID.
// It returns nil and no error when the ID is unknown.
func (cdb *CrawlDB) GetReportByID(ctx context.Context, id string) (*model.CrawlReport, error) {
	var reportJSON string
	err := cdb.db.QueryRowContext(ctx, `SELECT report_json FROM crawl_reports WHERE id = ?`, id).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl report: %w", err)
	}

	var report model.CrawlReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}

	return &report, nil
}

// PageSnapshot is the stored summary of one page of one crawl.
type PageSnapshot struct {
	URL         string `json:"url"`
	StatusCode  int    `json:"status_code"`
	Depth       int    `json:"depth"`
	Title       string `json:"title"`
	ContentHash string `json:"content_hash"`
	IssueCount  int    `json:"issue_count"`
}

// GetPageSnapshots returns the page rows of a crawl keyed by URL.
func (cdb *CrawlDB) GetPageSnapshots(ctx context.Context, reportID string) (map[string]PageSnapshot, error) {
	rows, err := cdb.db.QueryContext(ctx, `
	SELECT url, status_code, depth, title, content_hash, issue_count
	FROM pages
	WHERE report_id = ?
	`, reportID)
	if err != nil {
		return nil, fmt.Errorf("failed to get pages: %w", err)
	}
	defer rows.Close()

	snapshots := make(map[string]PageSnapshot)
	for rows.Next() {
		var s PageSnapshot
		if err := rows.Scan(&s.URL, &s.StatusCode, &s.Depth, &s.Title, &s.ContentHash, &s.IssueCount); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		snapshots[s.URL] = s
	}

	return snapshots, rows.Err()
}

// formatTimestamp renders t in the storage layout.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// timestampFormats contains the timestamp formats that may be stored.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	timestampLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05", // SQLite default datetime format
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
