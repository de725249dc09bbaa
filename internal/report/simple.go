package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/sitemapdiff/sitemapdiff/internal/model"
)

// SimpleWriter outputs human-readable text reports.
// This format is designed for terminal display with clear section
// formatting.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors by default because:
// 1. It works in all terminals without compatibility issues
// 2. It's easier to pipe to files or other tools
// 3. Color can be added as an option later if needed
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with no entries are shown.
	showEmpty bool

	// maxRows caps how many URLs each discrepancy section prints.
	// Zero means no cap. The full lists are always in the CSVs.
	maxRows int
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithMaxRows caps the number of URLs printed per section.
func WithMaxRows(n int) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.maxRows = n
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the run in human-readable format.
func (w *SimpleWriter) Write(run *model.RunResult) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, run)
	w.writeSummary(&sb, run)

	if run.Report != nil {
		w.writeEntries(&sb, "MISSING FROM SITEMAP (crawl found, sitemap silent)", run.Report.MissingFromSitemap)
		w.writeEntries(&sb, "MISSING FROM SITE (sitemap declares, crawl could not reach)", run.Report.MissingFromSite)
		w.writeDelta(&sb, run.Report.Delta)
	}

	w.writeDiagnostics(&sb, run.Diagnostics)

	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the run header with scan information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, run *model.RunResult) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                      SITEMAPDIFF SCAN REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("Domain:     %s\n", run.Domain))
	sb.WriteString(fmt.Sprintf("Scan Date:  %s\n", run.Timestamp.Format("2006-01-02 15:04:05 MST")))
	sb.WriteString(fmt.Sprintf("Start URL:  %s\n", run.StartURL))
	if run.SitemapURL != "" {
		sb.WriteString(fmt.Sprintf("Sitemap:    %s\n", run.SitemapURL))
	} else {
		sb.WriteString("Sitemap:    NOT FOUND (crawl-only results)\n")
	}
	sb.WriteString("\n")
}

// writeSummary writes the result-set counts.
func (w *SimpleWriter) writeSummary(sb *strings.Builder, run *model.RunResult) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("SUMMARY\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	sitemapCount := 0
	if run.SitemapURLs != nil {
		sitemapCount = run.SitemapURLs.Len()
	}
	crawledCount := 0
	if run.CrawledURLs != nil {
		crawledCount = run.CrawledURLs.Len()
	}

	sb.WriteString(fmt.Sprintf("  Sitemap URLs:         %d\n", sitemapCount))
	sb.WriteString(fmt.Sprintf("  Crawled URLs:         %d\n", crawledCount))
	if run.Report != nil {
		sb.WriteString(fmt.Sprintf("  Missing from sitemap: %d\n", len(run.Report.MissingFromSitemap)))
		sb.WriteString(fmt.Sprintf("  Missing from site:    %d\n", len(run.Report.MissingFromSite)))
		if run.Report.FilteredOut > 0 {
			sb.WriteString(fmt.Sprintf("  Filtered out:         %d\n", run.Report.FilteredOut))
		}
	}
	sb.WriteString("\n")
}

// writeEntries writes one discrepancy section.
func (w *SimpleWriter) writeEntries(sb *strings.Builder, title string, entries []model.Entry) {
	if len(entries) == 0 && !w.showEmpty {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	if len(entries) == 0 {
		sb.WriteString("  None\n\n")
		return
	}

	shown := entries
	if w.maxRows > 0 && len(shown) > w.maxRows {
		shown = shown[:w.maxRows]
	}
	for _, e := range shown {
		sb.WriteString(fmt.Sprintf("  %s\n", e.URL))
		if e.Source != "" {
			sb.WriteString(fmt.Sprintf("    found on: %s\n", e.Source))
		}
	}
	if len(shown) < len(entries) {
		sb.WriteString(fmt.Sprintf("  ... and %d more (see the run CSVs)\n", len(entries)-len(shown)))
	}
	sb.WriteString("\n")
}

// writeDelta writes the historical comparison section.
func (w *SimpleWriter) writeDelta(sb *strings.Builder, delta *model.HistoricalDelta) {
	if delta == nil {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("CHANGES SINCE %s\n", delta.PreviousTimestamp))
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	w.writeDeltaList(sb, "Missing from sitemap", delta.MissingFromSitemap)
	w.writeDeltaList(sb, "Missing from site", delta.MissingFromSite)
}

// writeDeltaList writes one direction of the historical comparison.
func (w *SimpleWriter) writeDeltaList(sb *strings.Builder, title string, entries []model.DeltaEntry) {
	if len(entries) == 0 {
		sb.WriteString(fmt.Sprintf("  %s: no changes\n\n", title))
		return
	}

	sb.WriteString(fmt.Sprintf("  %s:\n", title))
	for _, e := range entries {
		sb.WriteString(fmt.Sprintf("    [%s] %s\n", e.Status, e.URL))
	}
	sb.WriteString("\n")
}

// writeDiagnostics writes the per-run error counters.
func (w *SimpleWriter) writeDiagnostics(sb *strings.Builder, d model.Diagnostics) {
	total := d.Transient + d.Fatal + d.Timeouts + d.ParseFallbacks
	if total == 0 && !w.showEmpty {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("DIAGNOSTICS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("  Transient failures:     %d\n", d.Transient))
	sb.WriteString(fmt.Sprintf("  Fatal failures:         %d\n", d.Fatal))
	sb.WriteString(fmt.Sprintf("  Timeouts:               %d\n", d.Timeouts))
	sb.WriteString(fmt.Sprintf("  Sitemap parse fallbacks: %d\n", d.ParseFallbacks))
	sb.WriteString("\n")
}
