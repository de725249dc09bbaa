package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/sitemapdiff/sitemapdiff/internal/model"
)

// RunDB indexes scan run summaries in SQLite. It manages connection
// pooling and provides the queries the compare and report commands
// need.
//
// Design decision: We use a single database file for all domains rather
// than one per domain. This keeps cross-domain queries (the dashboard
// index) a single SELECT and simplifies backup/restore.
type RunDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures RunDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent
	// performance. This is recommended for most use cases.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a RunDB at the specified directory.
// If CreateIfNotExists is true, the directory and database file are
// created; otherwise a missing database is an error.
func Open(dbDir string, opts Options) (*RunDB, error) {
	dbPath := filepath.Join(dbDir, "sitemapdiff.db")

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// modernc.org/sqlite connection string: mode=rw prevents creating
	// new files, mode=rwc allows creation.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer; a single pooled connection
	// avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	rdb := &RunDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := rdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return rdb, nil
}

// Close closes the database connection.
func (rdb *RunDB) Close() error {
	return rdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (rdb *RunDB) createTables() error {
	schema := `
	-- One row per completed scan run. run_timestamp uses the sortable
	-- directory layout, so string comparison is chronological.
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		domain TEXT NOT NULL,
		run_timestamp TEXT NOT NULL,
		run_dir TEXT NOT NULL,
		start_url TEXT NOT NULL,
		sitemap_url TEXT,
		sitemap_count INTEGER NOT NULL DEFAULT 0,
		crawled_count INTEGER NOT NULL DEFAULT 0,
		missing_from_sitemap INTEGER NOT NULL DEFAULT 0,
		missing_from_site INTEGER NOT NULL DEFAULT 0,
		filtered_out INTEGER NOT NULL DEFAULT 0,
		diagnostics TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(domain, run_timestamp)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_domain ON runs(domain);
	CREATE INDEX IF NOT EXISTS idx_runs_timestamp ON runs(run_timestamp);
	`

	_, err := rdb.db.ExecContext(context.Background(), schema)
	return err
}

// RunSummary is one indexed run: the counts and metadata needed for
// history listings without reading the run directory.
type RunSummary struct {
	ID                 int64
	Domain             string
	Timestamp          string
	RunDir             string
	StartURL           string
	SitemapURL         string
	SitemapCount       int
	CrawledCount       int
	MissingFromSitemap int
	MissingFromSite    int
	FilteredOut        int
	Diagnostics        model.Diagnostics
	CreatedAt          time.Time
}

// InsertRun inserts or updates a run summary. Re-running persistence
// for the same (domain, timestamp) overwrites the previous row.
func (rdb *RunDB) InsertRun(ctx context.Context, run *RunSummary) (int64, error) {
	diagJSON, err := json.Marshal(run.Diagnostics)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize diagnostics: %w", err)
	}

	query := `
	INSERT INTO runs (domain, run_timestamp, run_dir, start_url, sitemap_url,
		sitemap_count, crawled_count, missing_from_sitemap, missing_from_site,
		filtered_out, diagnostics)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(domain, run_timestamp) DO UPDATE SET
		run_dir = excluded.run_dir,
		start_url = excluded.start_url,
		sitemap_url = excluded.sitemap_url,
		sitemap_count = excluded.sitemap_count,
		crawled_count = excluded.crawled_count,
		missing_from_sitemap = excluded.missing_from_sitemap,
		missing_from_site = excluded.missing_from_site,
		filtered_out = excluded.filtered_out,
		diagnostics = excluded.diagnostics,
		created_at = CURRENT_TIMESTAMP
	`

	result, err := rdb.db.ExecContext(ctx, query,
		run.Domain,
		run.Timestamp,
		run.RunDir,
		run.StartURL,
		run.SitemapURL,
		run.SitemapCount,
		run.CrawledCount,
		run.MissingFromSitemap,
		run.MissingFromSite,
		run.FilteredOut,
		string(diagJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}

	return result.LastInsertId()
}

const runColumns = `id, domain, run_timestamp, run_dir, start_url, sitemap_url,
	sitemap_count, crawled_count, missing_from_sitemap, missing_from_site,
	filtered_out, diagnostics, created_at`

// scanRun reads one run row.
func scanRun(row interface{ Scan(...any) error }) (*RunSummary, error) {
	var run RunSummary
	var sitemapURL sql.NullString
	var diagJSON sql.NullString
	var createdAt string

	err := row.Scan(
		&run.ID,
		&run.Domain,
		&run.Timestamp,
		&run.RunDir,
		&run.StartURL,
		&sitemapURL,
		&run.SitemapCount,
		&run.CrawledCount,
		&run.MissingFromSitemap,
		&run.MissingFromSite,
		&run.FilteredOut,
		&diagJSON,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	run.SitemapURL = sitemapURL.String
	run.CreatedAt = parseTimestamp(createdAt)
	if diagJSON.Valid && diagJSON.String != "" {
		if err := json.Unmarshal([]byte(diagJSON.String), &run.Diagnostics); err != nil {
			return nil, fmt.Errorf("failed to parse diagnostics: %w", err)
		}
	}
	return &run, nil
}

// GetRun retrieves one run by domain and timestamp. Returns nil when no
// such run is indexed.
func (rdb *RunDB) GetRun(ctx context.Context, domain, timestamp string) (*RunSummary, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE domain = ? AND run_timestamp = ?`

	run, err := scanRun(rdb.db.QueryRowContext(ctx, query, domain, timestamp))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// LatestRun retrieves the most recent run for a domain. Returns nil
// when the domain has never been scanned.
func (rdb *RunDB) LatestRun(ctx context.Context, domain string) (*RunSummary, error) {
	query := `SELECT ` + runColumns + ` FROM runs
	WHERE domain = ?
	ORDER BY run_timestamp DESC
	LIMIT 1`

	run, err := scanRun(rdb.db.QueryRowContext(ctx, query, domain))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	return run, nil
}

// History retrieves all runs for a domain, newest first.
func (rdb *RunDB) History(ctx context.Context, domain string) ([]RunSummary, error) {
	query := `SELECT ` + runColumns + ` FROM runs
	WHERE domain = ?
	ORDER BY run_timestamp DESC`

	rows, err := rdb.db.QueryContext(ctx, query, domain)
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	var results []RunSummary
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		results = append(results, *run)
	}

	return results, rows.Err()
}

// ListDomains returns every indexed domain, sorted.
func (rdb *RunDB) ListDomains(ctx context.Context) ([]string, error) {
	query := `SELECT DISTINCT domain FROM runs ORDER BY domain`

	rows, err := rdb.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list domains: %w", err)
	}
	defer rows.Close()

	var domains []string
	for rows.Next() {
		var domain string
		if err := rows.Scan(&domain); err != nil {
			return nil, fmt.Errorf("failed to scan domain: %w", err)
		}
		domains = append(domains, domain)
	}

	return domains, rows.Err()
}

// SummarizeRun builds a RunSummary from a completed run result.
func SummarizeRun(run *model.RunResult, runDir string) *RunSummary {
	s := &RunSummary{
		Domain:      run.Domain,
		Timestamp:   run.TimestampDir(),
		RunDir:      runDir,
		StartURL:    run.StartURL,
		SitemapURL:  run.SitemapURL,
		Diagnostics: run.Diagnostics,
	}
	if run.SitemapURLs != nil {
		s.SitemapCount = run.SitemapURLs.Len()
	}
	if run.CrawledURLs != nil {
		s.CrawledCount = run.CrawledURLs.Len()
	}
	if run.Report != nil {
		s.MissingFromSitemap = len(run.Report.MissingFromSitemap)
		s.MissingFromSite = len(run.Report.MissingFromSite)
		s.FilteredOut = run.Report.FilteredOut
	}
	return s
}

// timestampFormats contains the timestamp formats that SQLite may
// return. The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple
// formats. SQLite may return timestamps in different formats depending
// on configuration. If parsing fails with all formats, returns zero
// time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
