package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/sitemapdiff/sitemapdiff/internal/model"
)

// Persisted file names inside a run directory.
const (
	// MissingFromSitemapFile lists crawl-found URLs absent from the
	// sitemap (Source,URL rows).
	MissingFromSitemapFile = "missing_from_sitemap.csv"

	// MissingFromSiteFile lists sitemap-declared URLs the crawl could
	// not reach (Source,URL rows).
	MissingFromSiteFile = "missing_from_site.csv"

	// ComparisonMissingFromSitemapFile lists New/Fixed changes for the
	// missing-from-sitemap direction (Status,URL rows).
	ComparisonMissingFromSitemapFile = "comparison_missing_from_sitemap.csv"

	// ComparisonMissingFromSiteFile lists New/Fixed changes for the
	// missing-from-site direction (Status,URL rows).
	ComparisonMissingFromSiteFile = "comparison_missing_from_site.csv"

	// SitemapURLsFile is the full sitemap-declared set (Source,URL).
	SitemapURLsFile = "sitemap_urls.csv"

	// CrawledURLsFile is the full crawl-reached set (Source,URL).
	CrawledURLsFile = "crawled_urls.csv"

	// RunFile is the run metadata and diagnostics JSON.
	RunFile = "run.json"

	// sitesDir is the per-domain container under the store root.
	sitesDir = "sites"

	// contentCacheDir holds fetched page bodies.
	contentCacheDir = "cache"

	// xmlCacheDir holds raw sitemap documents.
	xmlCacheDir = "cache-xml"
)

// ErrNoPreviousRun is returned when a domain has no run older than the
// one being compared.
var ErrNoPreviousRun = errors.New("store: no previous run for domain")

// Store manages the on-disk run tree under a single root directory.
type Store struct {
	root     string
	compress bool
	logger   *slog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithCompression gzips content cache files. The raw sitemap cache is
// never compressed so it stays directly inspectable.
func WithCompression(on bool) StoreOption {
	return func(s *Store) {
		s.compress = on
	}
}

// WithStoreLogger sets a custom logger.
func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a Store rooted at the given directory. The directory is
// created on first write, not here.
func New(root string, opts ...StoreOption) *Store {
	s := &Store{root: root}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Root returns the store's root directory.
func (s *Store) Root() string {
	return s.root
}

// DomainDir returns the directory holding a domain's runs.
func (s *Store) DomainDir(domain string) string {
	return filepath.Join(s.root, sitesDir, domain)
}

// RunDir returns the directory of one run.
func (s *Store) RunDir(domain, timestamp string) string {
	return filepath.Join(s.DomainDir(domain), timestamp)
}

// CreateRun creates the directory tree for a new run and returns a
// RunStore bound to it.
func (s *Store) CreateRun(domain, timestamp string) (*RunStore, error) {
	dir := s.RunDir(domain, timestamp)
	for _, sub := range []string{contentCacheDir, xmlCacheDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create run directory: %w", err)
		}
	}
	s.logger.Info("created run directory", "dir", dir)
	return &RunStore{dir: dir, compress: s.compress, logger: s.logger}, nil
}

// OpenRun returns a RunStore for an existing run directory.
func (s *Store) OpenRun(domain, timestamp string) (*RunStore, error) {
	dir := s.RunDir(domain, timestamp)
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open run %s/%s: %w", domain, timestamp, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("run path %s is not a directory", dir)
	}
	return &RunStore{dir: dir, compress: s.compress, logger: s.logger}, nil
}

// ListDomains returns every domain with at least one run, sorted.
func (s *Store) ListDomains() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, sitesDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list domains: %w", err)
	}
	domains := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			domains = append(domains, e.Name())
		}
	}
	sort.Strings(domains)
	return domains, nil
}

// ListRuns returns a domain's run timestamps in chronological order.
func (s *Store) ListRuns(domain string) ([]string, error) {
	entries, err := os.ReadDir(s.DomainDir(domain))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list runs for %s: %w", domain, err)
	}
	runs := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			runs = append(runs, e.Name())
		}
	}
	sort.Strings(runs)
	return runs, nil
}

// PreviousRun returns the most recent run timestamp strictly older than
// the given one. Returns ErrNoPreviousRun when none exists.
func (s *Store) PreviousRun(domain, timestamp string) (string, error) {
	runs, err := s.ListRuns(domain)
	if err != nil {
		return "", err
	}
	prev := ""
	for _, r := range runs {
		if r < timestamp {
			prev = r
		}
	}
	if prev == "" {
		return "", fmt.Errorf("%w: %s", ErrNoPreviousRun, domain)
	}
	return prev, nil
}

// RunStore reads and writes the files of a single run directory.
type RunStore struct {
	dir      string
	compress bool
	logger   *slog.Logger
}

// Dir returns the run directory path.
func (r *RunStore) Dir() string {
	return r.dir
}

// ContentCache returns the run's page body cache.
func (r *RunStore) ContentCache() *ContentCache {
	return &ContentCache{
		dir:      filepath.Join(r.dir, contentCacheDir),
		compress: r.compress,
	}
}

// XMLCache returns the run's raw sitemap cache.
func (r *RunStore) XMLCache() *XMLCache {
	return &XMLCache{dir: filepath.Join(r.dir, xmlCacheDir)}
}

// WriteRun persists the run metadata JSON.
func (r *RunStore) WriteRun(run *model.RunResult) error {
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode run metadata: %w", err)
	}
	path := filepath.Join(r.dir, RunFile)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", RunFile, err)
	}
	return nil
}

// ReadRun loads the run metadata JSON.
func (r *RunStore) ReadRun() (*model.RunResult, error) {
	data, err := os.ReadFile(filepath.Join(r.dir, RunFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", RunFile, err)
	}
	var run model.RunResult
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", RunFile, err)
	}
	return &run, nil
}
