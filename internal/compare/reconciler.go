package compare

import (
	"log/slog"
	"regexp"

	"github.com/sitemapdiff/sitemapdiff/internal/model"
)

// paginationPattern matches the URL shapes paginated archives generate:
// path-style /page/2 and query-style ?page=2.
var paginationPattern = regexp.MustCompile(`(?i)(/page/\d+/?$|[?&]page=\d+)`)

// taxonomyPattern matches category and tag archive paths in the common
// singular and plural spellings.
var taxonomyPattern = regexp.MustCompile(`(?i)/(category|categories|tag|tags)/`)

// Reconciler computes the comparison report for one run.
type Reconciler struct {
	// ignorePagination drops paginated archive URLs from the
	// missing-from-sitemap list.
	ignorePagination bool

	// ignoreTaxonomy drops category and tag archive URLs from the
	// missing-from-sitemap list.
	ignoreTaxonomy bool

	logger *slog.Logger
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithIgnorePagination enables the pagination filter.
func WithIgnorePagination(on bool) ReconcilerOption {
	return func(r *Reconciler) {
		r.ignorePagination = on
	}
}

// WithIgnoreTaxonomy enables the category/tag filter.
func WithIgnoreTaxonomy(on bool) ReconcilerOption {
	return func(r *Reconciler) {
		r.ignoreTaxonomy = on
	}
}

// WithReconcilerLogger sets a custom logger.
func WithReconcilerLogger(logger *slog.Logger) ReconcilerOption {
	return func(r *Reconciler) {
		r.logger = logger
	}
}

// NewReconciler creates a Reconciler. Both filters default to off.
func NewReconciler(opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Reconcile computes the two discrepancy lists from the frozen result
// sets. Neither input set is modified.
//
// Design decision: the filters apply only to missing-from-sitemap. A
// pagination URL the crawl found but the sitemap omits is expected noise;
// a URL the sitemap explicitly declares but the crawl cannot reach is a
// real finding regardless of its shape, so that direction is never
// filtered.
func (r *Reconciler) Reconcile(sitemapURLs, crawledURLs *model.ResultSet) *model.ComparisonReport {
	report := &model.ComparisonReport{
		MissingFromSitemap: make([]model.Entry, 0),
		MissingFromSite:    make([]model.Entry, 0),
	}

	for _, u := range crawledURLs.Difference(sitemapURLs) {
		if r.filtered(u) {
			report.FilteredOut++
			continue
		}
		report.MissingFromSitemap = append(report.MissingFromSitemap, model.Entry{
			Source: crawledURLs.SourceOf(u),
			URL:    u,
		})
	}

	for _, u := range sitemapURLs.Difference(crawledURLs) {
		report.MissingFromSite = append(report.MissingFromSite, model.Entry{
			Source: sitemapURLs.SourceOf(u),
			URL:    u,
		})
	}

	r.logger.Info("reconciliation complete",
		"sitemap_urls", sitemapURLs.Len(),
		"crawled_urls", crawledURLs.Len(),
		"missing_from_sitemap", len(report.MissingFromSitemap),
		"missing_from_site", len(report.MissingFromSite),
		"filtered_out", report.FilteredOut,
	)
	return report
}

// filtered reports whether the URL is suppressed by an enabled filter.
func (r *Reconciler) filtered(u string) bool {
	if r.ignorePagination && paginationPattern.MatchString(u) {
		return true
	}
	if r.ignoreTaxonomy && taxonomyPattern.MatchString(u) {
		return true
	}
	return false
}
