package model

// Entry is a single row in a comparison list: a canonical URL together
// with the document that discovered it. The field order matches the
// persisted CSV schema (Source,URL), which downstream report tooling
// depends on.
type Entry struct {
	// Source is the page or sitemap document that referenced the URL.
	Source string `json:"source"`

	// URL is the canonical URL.
	URL string `json:"url"`
}

// DeltaStatus marks an entry in a historical comparison.
type DeltaStatus string

// DeltaStatus values. The strings appear verbatim in the persisted
// comparison CSVs and the HTML dashboard.
const (
	// DeltaNew marks a discrepancy that was not present in the
	// previous run.
	DeltaNew DeltaStatus = "New"

	// DeltaFixed marks a discrepancy from the previous run that is
	// no longer present.
	DeltaFixed DeltaStatus = "Fixed"
)

// DeltaEntry is a row in a historical comparison list.
type DeltaEntry struct {
	// Status is New or Fixed.
	Status DeltaStatus `json:"status"`

	// URL is the canonical URL.
	URL string `json:"url"`
}

// HistoricalDelta holds the changes between the current run's
// discrepancy lists and the previous run's. Nil when no prior run
// exists for the domain.
type HistoricalDelta struct {
	// PreviousTimestamp identifies the run compared against.
	PreviousTimestamp string `json:"previous_timestamp"`

	// MissingFromSitemap lists new/fixed entries for the
	// missing-from-sitemap discrepancy list.
	MissingFromSitemap []DeltaEntry `json:"missing_from_sitemap"`

	// MissingFromSite lists new/fixed entries for the
	// missing-from-site discrepancy list.
	MissingFromSite []DeltaEntry `json:"missing_from_site"`
}

// ComparisonReport is the read-only outcome of reconciling the two
// result sets. It is computed once per run, after both sets are frozen.
type ComparisonReport struct {
	// MissingFromSitemap contains URLs the crawl reached that the
	// sitemap does not declare, after filters.
	MissingFromSitemap []Entry `json:"missing_from_sitemap"`

	// MissingFromSite contains URLs the sitemap declares that the
	// crawl could not reach.
	MissingFromSite []Entry `json:"missing_from_site"`

	// FilteredOut is the number of MissingFromSitemap entries removed
	// by the pagination/taxonomy filters. Kept for diagnostics; the
	// underlying sets are never mutated by filtering.
	FilteredOut int `json:"filtered_out,omitempty"`

	// Delta is the historical comparison against the previous run,
	// nil when no prior run exists.
	Delta *HistoricalDelta `json:"delta,omitempty"`
}
