package model

import (
	"reflect"
	"testing"
)

// TestResultSet tests set membership, attribution, and freezing.
func TestResultSet(t *testing.T) {
	t.Parallel()

	t.Run("first attribution wins", func(t *testing.T) {
		t.Parallel()

		rs := NewResultSet()
		rs.Add("https://example.com/a", "https://example.com/")
		rs.Add("https://example.com/a", "https://example.com/b")

		if got := rs.SourceOf("https://example.com/a"); got != "https://example.com/" {
			t.Errorf("expected first attribution to win, got %q", got)
		}
		if rs.Len() != 1 {
			t.Errorf("expected 1 member, got %d", rs.Len())
		}
	})

	t.Run("frozen set rejects inserts", func(t *testing.T) {
		t.Parallel()

		rs := NewResultSet()
		rs.Add("https://example.com/a", "seed")
		rs.Freeze()
		rs.Add("https://example.com/b", "seed")

		if rs.Contains("https://example.com/b") {
			t.Error("insert after Freeze should be ignored")
		}
		if !rs.Frozen() {
			t.Error("Frozen() should report true after Freeze")
		}
	})

	t.Run("sorted output is deterministic", func(t *testing.T) {
		t.Parallel()

		rs := NewResultSet()
		rs.Add("https://example.com/c", "seed")
		rs.Add("https://example.com/a", "seed")
		rs.Add("https://example.com/b", "seed")

		want := []string{
			"https://example.com/a",
			"https://example.com/b",
			"https://example.com/c",
		}
		if got := rs.Sorted(); !reflect.DeepEqual(got, want) {
			t.Errorf("Sorted() = %v, want %v", got, want)
		}
	})
}

// TestResultSetDifference tests the set-difference building block used
// by the reconciler.
func TestResultSetDifference(t *testing.T) {
	t.Parallel()

	sitemap := NewResultSet()
	for _, u := range []string{"A", "B", "C"} {
		sitemap.Add(u, "sitemap.xml")
	}
	crawled := NewResultSet()
	for _, u := range []string{"B", "C", "D"} {
		crawled.Add(u, "seed")
	}

	if got := crawled.Difference(sitemap); !reflect.DeepEqual(got, []string{"D"}) {
		t.Errorf("crawled - sitemap = %v, want [D]", got)
	}
	if got := sitemap.Difference(crawled); !reflect.DeepEqual(got, []string{"A"}) {
		t.Errorf("sitemap - crawled = %v, want [A]", got)
	}

	// Difference must not mutate either set.
	if sitemap.Len() != 3 || crawled.Len() != 3 {
		t.Error("Difference must not mutate the operand sets")
	}
}

// TestPageStateString tests state naming and terminality.
func TestPageStateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state    PageState
		name     string
		terminal bool
	}{
		{StateQueued, "queued", false},
		{StateInFlight, "in_flight", false},
		{StateVisitedOK, "visited_ok", true},
		{StateVisitedError, "visited_error", true},
		{StateTimedOut, "timed_out", true},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.name {
			t.Errorf("state %d String() = %q, want %q", tt.state, got, tt.name)
		}
		if got := tt.state.Terminal(); got != tt.terminal {
			t.Errorf("state %s Terminal() = %v, want %v", tt.name, got, tt.terminal)
		}
	}
}
