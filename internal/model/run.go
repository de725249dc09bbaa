package model

import "time"

// RunTimestampLayout is the layout for run directory names.
//
// Design decision: lexicographic order of these strings equals
// chronological order, so the "most recent previous run" lookup and the
// dashboard's scan history can sort directory names directly without
// parsing them.
const RunTimestampLayout = "2006-01-02_15-04-05"

// Diagnostics counts per-run error kinds. Individual URL failures are
// recorded here and in the run data; they never abort the run.
type Diagnostics struct {
	// Transient counts fetches that failed after retry exhaustion.
	Transient int `json:"transient"`

	// Fatal counts fetches that failed without retry (4xx, DNS).
	Fatal int `json:"fatal"`

	// Timeouts counts tasks abandoned at the per-task budget.
	Timeouts int `json:"timeouts"`

	// ParseFallbacks counts sitemap documents that needed the lenient
	// extraction path after an XML parse failure.
	ParseFallbacks int `json:"parse_fallbacks"`

	// ScopeRejected counts URLs dropped by the normalizer's scope
	// rules. These are expected and not errors.
	ScopeRejected int `json:"scope_rejected"`
}

// RunResult is the complete outcome of one scan: the two frozen result
// sets, the comparison report, and run metadata. This is the value the
// store serializes and the run database indexes.
type RunResult struct {
	// Domain is the target host, used as the directory key.
	Domain string `json:"domain"`

	// Timestamp is when the run started.
	Timestamp time.Time `json:"timestamp"`

	// StartURL is the crawl seed.
	StartURL string `json:"start_url"`

	// SitemapURL is the resolved sitemap location, empty when
	// discovery failed and the run degraded to crawl-only.
	SitemapURL string `json:"sitemap_url,omitempty"`

	// SitemapURLs is the frozen set of canonical URLs declared by the
	// sitemap tree.
	SitemapURLs *ResultSet `json:"-"`

	// CrawledURLs is the frozen set of canonical URLs the crawl
	// reached with HTML content.
	CrawledURLs *ResultSet `json:"-"`

	// Records holds the per-URL crawl records for diagnostics output.
	Records []URLRecord `json:"records,omitempty"`

	// Report is the reconciliation outcome, nil until the reconcile
	// step runs.
	Report *ComparisonReport `json:"report,omitempty"`

	// Diagnostics summarizes error kinds across the run.
	Diagnostics Diagnostics `json:"diagnostics"`
}

// NewRunResult creates a RunResult for the given domain and seed with
// empty, unfrozen result sets.
func NewRunResult(domain, startURL string) *RunResult {
	return &RunResult{
		Domain:      domain,
		Timestamp:   time.Now(),
		StartURL:    startURL,
		SitemapURLs: NewResultSet(),
		CrawledURLs: NewResultSet(),
	}
}

// TimestampDir returns the run's directory name component.
func (r *RunResult) TimestampDir() string {
	return r.Timestamp.Format(RunTimestampLayout)
}
