package compare

import (
	"sort"

	"github.com/sitemapdiff/sitemapdiff/internal/model"
)

// Delta compares the current discrepancy lists against the lists
// persisted by a previous run.
//
// For each list direction, a URL present now but absent before is New,
// and a URL present before but absent now is Fixed. The delta is
// computed over the filtered lists: a discrepancy that filters suppress
// in both runs never shows up as churn.
func Delta(current *model.ComparisonReport, prevMissingFromSitemap, prevMissingFromSite []model.Entry, previousTimestamp string) *model.HistoricalDelta {
	return &model.HistoricalDelta{
		PreviousTimestamp:  previousTimestamp,
		MissingFromSitemap: deltaList(current.MissingFromSitemap, prevMissingFromSitemap),
		MissingFromSite:    deltaList(current.MissingFromSite, prevMissingFromSite),
	}
}

// deltaList computes the New and Fixed entries between one current list
// and its previous counterpart. New entries come first, then Fixed,
// each sorted by URL.
func deltaList(current, previous []model.Entry) []model.DeltaEntry {
	curSet := make(map[string]bool, len(current))
	for _, e := range current {
		curSet[e.URL] = true
	}
	prevSet := make(map[string]bool, len(previous))
	for _, e := range previous {
		prevSet[e.URL] = true
	}

	out := make([]model.DeltaEntry, 0)
	for u := range curSet {
		if !prevSet[u] {
			out = append(out, model.DeltaEntry{Status: model.DeltaNew, URL: u})
		}
	}
	for u := range prevSet {
		if !curSet[u] {
			out = append(out, model.DeltaEntry{Status: model.DeltaFixed, URL: u})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Status != out[j].Status {
			return out[i].Status == model.DeltaNew
		}
		return out[i].URL < out[j].URL
	})
	return out
}
