package model

import "sort"

// ResultSet is an append-only set of canonical URLs with source
// attribution: for each URL it remembers the page or sitemap document
// that first referenced it.
//
// Design decision: we keep attribution inside the set rather than in a
// parallel map because the two structures must stay consistent and every
// consumer (CSV output, comparison report, HTML dashboard) wants them
// together. The zero value is not usable; construct with NewResultSet.
type ResultSet struct {
	// sources maps canonical URL -> the URL of the document that
	// first referenced it.
	sources map[string]string

	// frozen blocks further insertion once the discovery phase ends.
	frozen bool
}

// NewResultSet creates an empty ResultSet.
func NewResultSet() *ResultSet {
	return &ResultSet{sources: make(map[string]string)}
}

// Add inserts a canonical URL with its referencing source. The first
// attribution wins; later duplicates are ignored so that the recorded
// source is always the document that discovered the URL. Adding to a
// frozen set is a no-op.
func (rs *ResultSet) Add(canonicalURL, foundOn string) {
	if rs.frozen {
		return
	}
	if _, ok := rs.sources[canonicalURL]; ok {
		return
	}
	rs.sources[canonicalURL] = foundOn
}

// Contains reports whether the canonical URL is a member.
func (rs *ResultSet) Contains(canonicalURL string) bool {
	_, ok := rs.sources[canonicalURL]
	return ok
}

// SourceOf returns the document that first referenced the URL, or the
// empty string if the URL is not a member.
func (rs *ResultSet) SourceOf(canonicalURL string) string {
	return rs.sources[canonicalURL]
}

// Len returns the number of member URLs.
func (rs *ResultSet) Len() int {
	return len(rs.sources)
}

// Freeze marks the set read-only. The discovery phases freeze their
// sets before handing them to the reconciler so that comparison always
// runs over stable data.
func (rs *ResultSet) Freeze() {
	rs.frozen = true
}

// Frozen reports whether the set has been frozen.
func (rs *ResultSet) Frozen() bool {
	return rs.frozen
}

// Sorted returns the member URLs in lexicographic order.
// Output files and reports use this for deterministic ordering.
func (rs *ResultSet) Sorted() []string {
	urls := make([]string, 0, len(rs.sources))
	for u := range rs.sources {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls
}

// Difference returns the members of rs that are not members of other,
// in lexicographic order. Neither set is modified.
func (rs *ResultSet) Difference(other *ResultSet) []string {
	diff := make([]string, 0)
	for u := range rs.sources {
		if !other.Contains(u) {
			diff = append(diff, u)
		}
	}
	sort.Strings(diff)
	return diff
}
