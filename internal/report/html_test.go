package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sitemapdiff/sitemapdiff/internal/model"
	"github.com/sitemapdiff/sitemapdiff/internal/store"
)

// writeRunFixture persists one complete run directory.
func writeRunFixture(t *testing.T, st *store.Store, domain, timestamp string, withDelta bool) {
	t.Helper()

	rs, err := st.CreateRun(domain, timestamp)
	if err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}

	run := model.NewRunResult(domain, "https://"+domain)
	run.Timestamp = time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	run.SitemapURL = "https://" + domain + "/sitemap.xml"
	if err := rs.WriteRun(run); err != nil {
		t.Fatalf("WriteRun() error = %v", err)
	}

	files := map[string][]model.Entry{
		store.SitemapURLsFile: {
			{Source: run.SitemapURL, URL: "https://" + domain + "/"},
			{Source: run.SitemapURL, URL: "https://" + domain + "/gone"},
		},
		store.CrawledURLsFile: {
			{Source: "https://" + domain, URL: "https://" + domain + "/"},
			{Source: "https://" + domain, URL: "https://" + domain + "/hidden"},
		},
		store.MissingFromSitemapFile: {
			{Source: "https://" + domain, URL: "https://" + domain + "/hidden"},
		},
		store.MissingFromSiteFile: {
			{Source: run.SitemapURL, URL: "https://" + domain + "/gone"},
		},
	}
	for name, entries := range files {
		if err := rs.WriteEntries(name, entries); err != nil {
			t.Fatalf("WriteEntries(%s) error = %v", name, err)
		}
	}

	if withDelta {
		err := rs.WriteDelta(store.ComparisonMissingFromSitemapFile, []model.DeltaEntry{
			{Status: model.DeltaNew, URL: "https://" + domain + "/hidden"},
		})
		if err != nil {
			t.Fatalf("WriteDelta() error = %v", err)
		}
		err = rs.WriteDelta(store.ComparisonMissingFromSiteFile, []model.DeltaEntry{
			{Status: model.DeltaFixed, URL: "https://" + domain + "/old"},
		})
		if err != nil {
			t.Fatalf("WriteDelta() error = %v", err)
		}
	}
}

// readPage loads a generated page as a string.
func readPage(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return string(data)
}

// TestDashboardGenerate tests the full three-level page tree.
func TestDashboardGenerate(t *testing.T) {
	t.Parallel()

	st := store.New(t.TempDir())
	writeRunFixture(t, st, "example.com", "2026-08-24_09-00-00", false)
	writeRunFixture(t, st, "example.com", "2026-08-25_10-00-00", true)
	writeRunFixture(t, st, "other.org", "2026-08-25_11-00-00", false)

	out := t.TempDir()
	pages, err := NewDashboard(st, out).Generate()
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	// 3 scan pages + 2 domain pages + 1 index.
	if pages != 6 {
		t.Errorf("Generate() = %d pages, want 6", pages)
	}

	index := readPage(t, filepath.Join(out, "index.html"))
	for _, want := range []string{"example.com", "other.org", "2026-08-25_10-00-00"} {
		if !strings.Contains(index, want) {
			t.Errorf("index missing %q", want)
		}
	}

	domain := readPage(t, filepath.Join(out, "example.com", "index.html"))
	if !strings.Contains(domain, "2026-08-24_09-00-00") || !strings.Contains(domain, "2026-08-25_10-00-00") {
		t.Error("domain page missing scan history entries")
	}
	// Newest scan listed before the older one.
	if strings.Index(domain, "2026-08-25_10-00-00") > strings.Index(domain, "2026-08-24_09-00-00") {
		t.Error("domain page history is not newest-first")
	}

	scan := readPage(t, filepath.Join(out, "example.com", "2026-08-25_10-00-00.html"))
	for _, want := range []string{
		"https://example.com/hidden",
		"https://example.com/gone",
		">New<",
		"https://example.com/old",
	} {
		if !strings.Contains(scan, want) {
			t.Errorf("scan page missing %q", want)
		}
	}

	// The older run has no predecessor, so no New/Fixed markers.
	first := readPage(t, filepath.Join(out, "example.com", "2026-08-24_09-00-00.html"))
	if strings.Contains(first, ">New<") {
		t.Error("first scan page should have no New markers")
	}
}

// TestDashboardEmptyStore tests generation over a store with no runs.
func TestDashboardEmptyStore(t *testing.T) {
	t.Parallel()

	out := t.TempDir()
	pages, err := NewDashboard(store.New(t.TempDir()), out).Generate()
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if pages != 1 {
		t.Errorf("Generate() = %d pages, want just the index", pages)
	}
	if !strings.Contains(readPage(t, filepath.Join(out, "index.html")), "No scans recorded") {
		t.Error("index missing empty-store notice")
	}
}

// TestDashboardSkipsBrokenRun tests that an unreadable run directory
// does not abort generation.
func TestDashboardSkipsBrokenRun(t *testing.T) {
	t.Parallel()

	st := store.New(t.TempDir())
	writeRunFixture(t, st, "example.com", "2026-08-25_10-00-00", false)

	// An empty run directory: no run.json, no CSVs.
	if _, err := st.CreateRun("example.com", "2026-08-26_10-00-00"); err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}

	out := t.TempDir()
	if _, err := NewDashboard(st, out).Generate(); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	domain := readPage(t, filepath.Join(out, "example.com", "index.html"))
	if !strings.Contains(domain, "2026-08-25_10-00-00") {
		t.Error("domain page missing the readable run")
	}
	if strings.Contains(domain, "2026-08-26_10-00-00") {
		t.Error("domain page lists the broken run")
	}
}
