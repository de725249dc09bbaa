package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "sitemapdiff"

	// DefaultWorkers is the number of concurrent crawl workers per
	// target. Four workers keep a typical site busy without tripping
	// rate limits.
	DefaultWorkers = 4

	// DefaultMaxPages bounds the crawl per target. Sites with
	// generated URL spaces (calendars, faceted search) produce
	// unbounded link graphs; this is the hard stop.
	DefaultMaxPages = 10000

	// DefaultTaskTimeout is the per-page budget covering fetch,
	// retries, and parse. Pages slower than this are recorded as
	// timed out and the crawl moves on.
	DefaultTaskTimeout = 30 * time.Second

	// DefaultFetchTimeout is the HTTP client timeout for a single
	// request attempt.
	DefaultFetchTimeout = 30 * time.Second

	// DefaultBatchSize is the number of targets scanned concurrently
	// when multiple sites are given.
	DefaultBatchSize = 4

	// DefaultMaxBodySize limits the response body size to read.
	// 10MB covers any realistic page while preventing memory
	// exhaustion from unexpectedly large responses.
	DefaultMaxBodySize = 10 * 1024 * 1024
)

// Config holds all configuration options for a scan.
// This struct is populated from CLI flags and passed through the
// application via dependency injection rather than global state.
//
// Design decision: We use a single flat struct instead of nested
// structs (e.g., CrawlConfig, StoreConfig) for simplicity. The number
// of options is manageable, and nesting would add complexity without
// significant benefit.
type Config struct {
	// Targets is the list of site URLs to scan. Each target is
	// scanned independently; failures on one never abort the others.
	Targets []string

	// SitemapURL is an explicit sitemap location. When set, discovery
	// via robots.txt and conventional paths is skipped. Only valid
	// with a single target.
	SitemapURL string

	// OutputDir is the root directory for run artifacts (CSVs, caches,
	// run metadata). Defaults to the XDG data directory.
	OutputDir string

	// Workers is the number of concurrent crawl workers per target.
	Workers int

	// MaxPages is the crawl page budget per target. Zero means
	// unlimited, which is only safe for sites known to be finite.
	MaxPages int

	// MaxDepth bounds link distance from the seed. Zero means
	// unlimited; MaxPages remains the termination guarantee.
	MaxDepth int

	// TaskTimeout is the per-page budget.
	TaskTimeout time.Duration

	// FetchTimeout is the HTTP client timeout per request attempt.
	FetchTimeout time.Duration

	// ComparePrevious enables the historical delta against the most
	// recent prior run of the same domain.
	ComparePrevious bool

	// IgnorePagination drops paginated archive URLs from the
	// missing-from-sitemap list.
	IgnorePagination bool

	// IgnoreTaxonomy drops category and tag archive URLs from the
	// missing-from-sitemap list.
	IgnoreTaxonomy bool

	// CompressCache gzips cached page bodies.
	CompressCache bool

	// Verbose enables detailed log output using slog.LevelDebug.
	Verbose bool

	// BatchSize is the number of targets scanned concurrently.
	BatchSize int

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches for .sitemapdiff in the current
	// directory and then in the user's home directory.
	ConfigFilePath string

	// SiteConfigs holds per-site overrides loaded from the config
	// file. Populated by LoadConfigFile.
	SiteConfigs *File

	// DBDir is the directory for the SQLite run index. When empty,
	// the XDG data directory is used.
	DBDir string

	// UserAgent overrides the default browser-like User-Agent header.
	// Empty means use the built-in default.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes to read.
	// Zero means use the default.
	MaxBodySize int64
}

// NewConfig creates a Config with default values.
//
// Design decision: We use a constructor function instead of relying on
// zero values because many defaults are non-zero (worker counts,
// timeouts, budgets). This also serves as documentation of what the
// defaults are.
func NewConfig() *Config {
	return &Config{
		OutputDir:       XDGDataDir(),
		Workers:         DefaultWorkers,
		MaxPages:        DefaultMaxPages,
		TaskTimeout:     DefaultTaskTimeout,
		FetchTimeout:    DefaultFetchTimeout,
		ComparePrevious: true,
		CompressCache:   true,
		BatchSize:       DefaultBatchSize,
		MaxBodySize:     DefaultMaxBodySize,
	}
}

// XDGDataDir returns the XDG data directory for run artifacts.
// On Linux: ~/.local/share/sitemapdiff
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory.
// On Linux: ~/.config/sitemapdiff
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory.
// On Linux: ~/.cache/sitemapdiff
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// Validate checks if the configuration is valid and returns a specific
// error describing the first problem found.
//
// Design decision: We validate at the config level rather than at each
// point of use to fail fast and provide clear error messages upfront.
// This is called once after CLI parsing, before any scanning begins.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	if c.SitemapURL != "" && len(c.Targets) > 1 {
		return ErrSitemapURLWithMultipleTargets
	}
	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}
	if c.TaskTimeout <= 0 || c.FetchTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.MaxPages < 0 {
		return ErrInvalidMaxPages
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	return nil
}
