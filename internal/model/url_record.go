package model

// Source identifies which discovery pipeline produced a URL.
type Source string

// Source values. A URL found by both pipelines is tagged SourceBoth
// by the reconciler; the discovery phases themselves only produce
// SourceSitemap or SourceCrawl.
const (
	SourceSitemap Source = "sitemap"
	SourceCrawl   Source = "crawl"
	SourceBoth    Source = "both"
)

// PageState is the lifecycle state of a URL inside the crawler.
//
// State transitions are strictly forward:
//
//	StateQueued -> StateInFlight -> {StateVisitedOK, StateVisitedError, StateTimedOut}
//
// Terminal states are final; a URL never re-enters the queue once it
// reaches one of them.
type PageState int

// PageState values.
const (
	// StateQueued means the URL is in the frontier waiting for a worker.
	StateQueued PageState = iota

	// StateInFlight means a worker is currently fetching the URL.
	StateInFlight

	// StateVisitedOK means the fetch completed with a usable response.
	StateVisitedOK

	// StateVisitedError means the fetch failed after retry exhaustion
	// or returned a non-success status.
	StateVisitedError

	// StateTimedOut means the per-task budget expired before the
	// fetch-plus-parse completed.
	StateTimedOut
)

// String returns the state name for logging and diagnostics.
func (s PageState) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateInFlight:
		return "in_flight"
	case StateVisitedOK:
		return "visited_ok"
	case StateVisitedError:
		return "visited_error"
	case StateTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state is one of the three final states.
func (s PageState) Terminal() bool {
	return s == StateVisitedOK || s == StateVisitedError || s == StateTimedOut
}

// URLRecord tracks a single canonical URL through discovery and fetch.
//
// A record is created when a URL is first normalized and accepted into a
// frontier or result set. The identity fields (CanonicalURL, Source,
// Depth, FoundOn) are immutable after creation; StatusCode, ContentHash,
// CacheRef, and State are set exactly once when the fetch completes.
type URLRecord struct {
	// CanonicalURL is the normalized string identity of the resource.
	// All set membership and comparison uses this value.
	CanonicalURL string `json:"canonical_url"`

	// Source tags which pipeline discovered the URL.
	Source Source `json:"source"`

	// Depth is the breadth-first distance from the seed URL.
	// Zero for the seed itself and for sitemap entries.
	Depth int `json:"depth"`

	// FoundOn is the page or sitemap document that referenced this URL.
	// The seed URL references itself.
	FoundOn string `json:"found_on"`

	// StatusCode is the final HTTP status, zero until fetched.
	StatusCode int `json:"status_code,omitempty"`

	// ContentHash is the SHA-256 hex digest of the response body,
	// empty until fetched.
	ContentHash string `json:"content_hash,omitempty"`

	// CacheRef is the content-cache filename holding the body,
	// empty if the body was not cached.
	CacheRef string `json:"cache_ref,omitempty"`

	// State is the crawl lifecycle state.
	State PageState `json:"state"`
}
