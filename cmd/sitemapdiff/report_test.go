package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sitemapdiff/sitemapdiff/internal/model"
	"github.com/sitemapdiff/sitemapdiff/internal/store"
)

// TestReportCmd tests dashboard generation through the CLI.
func TestReportCmd(t *testing.T) {
	t.Parallel()

	dataDir := t.TempDir()
	st := store.New(dataDir)
	rs, err := st.CreateRun("example.com", "2026-08-25_09-00-00")
	if err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}

	run := model.NewRunResult("example.com", "https://example.com")
	run.Timestamp = time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)
	if err := rs.WriteRun(run); err != nil {
		t.Fatalf("WriteRun() error = %v", err)
	}
	for _, name := range []string{
		store.MissingFromSitemapFile,
		store.MissingFromSiteFile,
		store.SitemapURLsFile,
		store.CrawledURLsFile,
	} {
		if err := rs.WriteEntries(name, nil); err != nil {
			t.Fatalf("WriteEntries(%s) error = %v", name, err)
		}
	}

	outputDir := filepath.Join(t.TempDir(), "reports")
	cmd := NewReportCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs([]string{"--sites-dir", dataDir, "--output-dir", outputDir})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(buf.String(), "Generated") {
		t.Errorf("output missing page count: %s", buf.String())
	}

	for _, page := range []string{
		filepath.Join(outputDir, "index.html"),
		filepath.Join(outputDir, "example.com", "index.html"),
		filepath.Join(outputDir, "example.com", "2026-08-25_09-00-00.html"),
	} {
		if _, err := os.Stat(page); err != nil {
			t.Errorf("expected page %s: %v", page, err)
		}
	}
}

// TestReportCmdEmptyStore tests generation with no stored runs.
func TestReportCmdEmptyStore(t *testing.T) {
	t.Parallel()

	outputDir := filepath.Join(t.TempDir(), "reports")
	cmd := NewReportCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs([]string{"--sites-dir", t.TempDir(), "--output-dir", outputDir})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(outputDir, "index.html")); err != nil {
		t.Errorf("index not generated: %v", err)
	}
}
