package database

import (
	"context"
	"testing"
	"time"

	"github.com/sitemapdiff/sitemapdiff/internal/model"
)

func openTestDB(t *testing.T) *RunDB {
	t.Helper()
	rdb, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		if err := rdb.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return rdb
}

func sampleRun(domain, timestamp string) *RunSummary {
	return &RunSummary{
		Domain:             domain,
		Timestamp:          timestamp,
		RunDir:             "/data/sites/" + domain + "/" + timestamp,
		StartURL:           "https://" + domain + "/",
		SitemapURL:         "https://" + domain + "/sitemap.xml",
		SitemapCount:       120,
		CrawledCount:       118,
		MissingFromSitemap: 3,
		MissingFromSite:    5,
		FilteredOut:        7,
		Diagnostics:        model.Diagnostics{Transient: 1, Timeouts: 2},
	}
}

// TestOpenWithoutCreate tests that a missing database is an error when
// creation is disabled.
func TestOpenWithoutCreate(t *testing.T) {
	t.Parallel()

	opts := Options{CreateIfNotExists: false, EnableWAL: true}
	if _, err := Open(t.TempDir(), opts); err == nil {
		t.Error("Open() error = nil, want missing-database error")
	}
}

// TestInsertAndGetRun tests the round trip of one run summary.
func TestInsertAndGetRun(t *testing.T) {
	t.Parallel()

	rdb := openTestDB(t)
	ctx := context.Background()

	in := sampleRun("example.com", "2026-08-25_12-00-00")
	if _, err := rdb.InsertRun(ctx, in); err != nil {
		t.Fatalf("InsertRun() error = %v", err)
	}

	out, err := rdb.GetRun(ctx, "example.com", "2026-08-25_12-00-00")
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if out == nil {
		t.Fatal("GetRun() = nil, want the inserted run")
	}
	if out.SitemapCount != 120 || out.CrawledCount != 118 {
		t.Errorf("counts = %d/%d, want 120/118", out.SitemapCount, out.CrawledCount)
	}
	if out.Diagnostics.Timeouts != 2 {
		t.Errorf("Diagnostics.Timeouts = %d, want 2", out.Diagnostics.Timeouts)
	}
	if out.CreatedAt.IsZero() {
		t.Error("CreatedAt is zero, want parsed timestamp")
	}
}

// TestGetRunMissing tests that an unknown run returns nil without
// error.
func TestGetRunMissing(t *testing.T) {
	t.Parallel()

	rdb := openTestDB(t)
	out, err := rdb.GetRun(context.Background(), "example.com", "2026-01-01_00-00-00")
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if out != nil {
		t.Errorf("GetRun() = %+v, want nil", out)
	}
}

// TestInsertRunUpsert tests that re-inserting the same run replaces it.
func TestInsertRunUpsert(t *testing.T) {
	t.Parallel()

	rdb := openTestDB(t)
	ctx := context.Background()

	run := sampleRun("example.com", "2026-08-25_12-00-00")
	if _, err := rdb.InsertRun(ctx, run); err != nil {
		t.Fatalf("InsertRun() error = %v", err)
	}
	run.MissingFromSitemap = 99
	if _, err := rdb.InsertRun(ctx, run); err != nil {
		t.Fatalf("InsertRun() second error = %v", err)
	}

	history, err := rdb.History(ctx, "example.com")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("History() has %d rows, want 1 after upsert", len(history))
	}
	if history[0].MissingFromSitemap != 99 {
		t.Errorf("MissingFromSitemap = %d, want updated value 99", history[0].MissingFromSitemap)
	}
}

// TestLatestRunAndHistory tests ordering across multiple runs.
func TestLatestRunAndHistory(t *testing.T) {
	t.Parallel()

	rdb := openTestDB(t)
	ctx := context.Background()

	for _, ts := range []string{"2026-02-01_00-00-00", "2026-03-01_00-00-00", "2026-01-01_00-00-00"} {
		if _, err := rdb.InsertRun(ctx, sampleRun("example.com", ts)); err != nil {
			t.Fatalf("InsertRun(%s) error = %v", ts, err)
		}
	}

	latest, err := rdb.LatestRun(ctx, "example.com")
	if err != nil {
		t.Fatalf("LatestRun() error = %v", err)
	}
	if latest == nil || latest.Timestamp != "2026-03-01_00-00-00" {
		t.Errorf("LatestRun() = %+v, want the March run", latest)
	}

	history, err := rdb.History(ctx, "example.com")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	want := []string{"2026-03-01_00-00-00", "2026-02-01_00-00-00", "2026-01-01_00-00-00"}
	if len(history) != len(want) {
		t.Fatalf("History() has %d rows, want %d", len(history), len(want))
	}
	for i, ts := range want {
		if history[i].Timestamp != ts {
			t.Errorf("History()[%d].Timestamp = %q, want %q", i, history[i].Timestamp, ts)
		}
	}
}

// TestListDomains tests domain enumeration.
func TestListDomains(t *testing.T) {
	t.Parallel()

	rdb := openTestDB(t)
	ctx := context.Background()

	for _, d := range []string{"beta.com", "alpha.com", "beta.com"} {
		ts := time.Now().Format(model.RunTimestampLayout)
		run := sampleRun(d, ts)
		if _, err := rdb.InsertRun(ctx, run); err != nil {
			t.Fatalf("InsertRun(%s) error = %v", d, err)
		}
	}

	domains, err := rdb.ListDomains(ctx)
	if err != nil {
		t.Fatalf("ListDomains() error = %v", err)
	}
	if len(domains) != 2 || domains[0] != "alpha.com" || domains[1] != "beta.com" {
		t.Errorf("ListDomains() = %v, want sorted unique pair", domains)
	}
}

// TestSummarizeRun tests derivation of a summary from a run result.
func TestSummarizeRun(t *testing.T) {
	t.Parallel()

	run := model.NewRunResult("example.com", "https://example.com/")
	run.SitemapURL = "https://example.com/sitemap.xml"
	run.SitemapURLs.Add("https://example.com/a", "map")
	run.SitemapURLs.Add("https://example.com/b", "map")
	run.CrawledURLs.Add("https://example.com/a", "page")
	run.Report = &model.ComparisonReport{
		MissingFromSite: []model.Entry{{Source: "map", URL: "https://example.com/b"}},
		FilteredOut:     4,
	}

	s := SummarizeRun(run, "/data/run")
	if s.SitemapCount != 2 || s.CrawledCount != 1 {
		t.Errorf("counts = %d/%d, want 2/1", s.SitemapCount, s.CrawledCount)
	}
	if s.MissingFromSite != 1 || s.FilteredOut != 4 {
		t.Errorf("report counts = %d/%d, want 1/4", s.MissingFromSite, s.FilteredOut)
	}
	if s.Timestamp != run.TimestampDir() {
		t.Errorf("Timestamp = %q, want %q", s.Timestamp, run.TimestampDir())
	}
}
