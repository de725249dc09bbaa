package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/sitemapdiff/sitemapdiff/internal/model"
)

// MarkdownWriter outputs runs in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the run in Markdown format.
func (w *MarkdownWriter) Write(run *model.RunResult) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, run)
	w.writeSummary(md, run)

	if run.Report != nil {
		w.writeEntryTable(md, "Missing From Sitemap", "Pages the crawl reached that the sitemap does not declare.", run.Report.MissingFromSitemap)
		w.writeEntryTable(md, "Missing From Site", "URLs the sitemap declares that the crawl could not reach.", run.Report.MissingFromSite)
		w.writeDelta(md, run.Report.Delta)
	}

	w.writeDiagnostics(md, run.Diagnostics)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with scan information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, run *model.RunResult) {
	md.H1("Sitemap Comparison Report")
	md.PlainText("")

	sitemap := run.SitemapURL
	if sitemap == "" {
		sitemap = "not found (crawl-only results)"
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Domain", "`" + run.Domain + "`"},
			{"Scan Date", run.Timestamp.Format("2006-01-02 15:04:05 MST")},
			{"Start URL", run.StartURL},
			{"Sitemap", sitemap},
		},
	})
	md.PlainText("")
}

// writeSummary writes the counts section with a distribution chart.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, run *model.RunResult) {
	md.H2("Summary")
	md.PlainText("")

	sitemapCount := 0
	if run.SitemapURLs != nil {
		sitemapCount = run.SitemapURLs.Len()
	}
	crawledCount := 0
	if run.CrawledURLs != nil {
		crawledCount = run.CrawledURLs.Len()
	}

	rows := [][]string{
		{"Sitemap URLs", strconv.Itoa(sitemapCount)},
		{"Crawled URLs", strconv.Itoa(crawledCount)},
	}
	missingFromSitemap, missingFromSite := 0, 0
	if run.Report != nil {
		missingFromSitemap = len(run.Report.MissingFromSitemap)
		missingFromSite = len(run.Report.MissingFromSite)
		rows = append(rows,
			[]string{"Missing from sitemap", strconv.Itoa(missingFromSitemap)},
			[]string{"Missing from site", strconv.Itoa(missingFromSite)},
		)
		if run.Report.FilteredOut > 0 {
			rows = append(rows, []string{"Filtered out", strconv.Itoa(run.Report.FilteredOut)})
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Count"},
		Rows:   rows,
	})
	md.PlainText("")

	if missingFromSitemap+missingFromSite > 0 {
		w.writePieChart(md, crawledCount, missingFromSitemap, missingFromSite)
	}
	w.writeAlert(md, missingFromSitemap, missingFromSite)
}

// writePieChart writes a mermaid pie chart of the URL distribution.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, crawled, missingFromSitemap, missingFromSite int) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("URL Distribution"),
		piechart.WithShowData(true),
	)

	agreed := crawled - missingFromSitemap
	if agreed > 0 {
		chart.LabelAndIntValue("In both", uint64(agreed))
	}
	if missingFromSitemap > 0 {
		chart.LabelAndIntValue("Missing from sitemap", uint64(missingFromSitemap))
	}
	if missingFromSite > 0 {
		chart.LabelAndIntValue("Missing from site", uint64(missingFromSite))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an alert reflecting the comparison outcome.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, missingFromSitemap, missingFromSite int) {
	switch {
	case missingFromSite > 0:
		md.Warningf(
			"The sitemap declares %d URL(s) the crawl could not reach. These may be dead links or pages hidden from navigation.",
			missingFromSite,
		)
	case missingFromSitemap > 0:
		md.Importantf(
			"%d crawled page(s) are absent from the sitemap. Search engines may not discover them.",
			missingFromSitemap,
		)
	default:
		md.Tip("The sitemap and the crawl agree. No discrepancies detected.")
	}
	md.PlainText("")
}

// writeEntryTable writes one discrepancy list as a table.
func (w *MarkdownWriter) writeEntryTable(md *markdown.Markdown, title, caption string, entries []model.Entry) {
	md.H2(title)
	md.PlainText("")

	if len(entries) == 0 {
		md.PlainText("None.")
		md.PlainText("")
		return
	}

	md.PlainText(caption)
	md.PlainText("")

	rows := make([][]string, len(entries))
	for i, e := range entries {
		source := e.Source
		if source == "" {
			source = "-"
		}
		rows[i] = []string{e.URL, source}
	}

	md.Table(markdown.TableSet{
		Header: []string{"URL", "Found On"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeDelta writes the historical comparison section.
func (w *MarkdownWriter) writeDelta(md *markdown.Markdown, delta *model.HistoricalDelta) {
	if delta == nil {
		return
	}

	md.H2("Changes Since " + delta.PreviousTimestamp)
	md.PlainText("")

	w.writeDeltaTable(md, "Missing from sitemap", delta.MissingFromSitemap)
	w.writeDeltaTable(md, "Missing from site", delta.MissingFromSite)
}

// writeDeltaTable writes one direction of the historical comparison.
func (w *MarkdownWriter) writeDeltaTable(md *markdown.Markdown, title string, entries []model.DeltaEntry) {
	md.PlainText("### " + title)
	md.PlainText("")

	if len(entries) == 0 {
		md.PlainText("No changes.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(entries))
	for i, e := range entries {
		rows[i] = []string{string(e.Status), e.URL}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Status", "URL"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeDiagnostics writes the per-run error counters when any fired.
func (w *MarkdownWriter) writeDiagnostics(md *markdown.Markdown, d model.Diagnostics) {
	if d.Transient+d.Fatal+d.Timeouts+d.ParseFallbacks == 0 {
		return
	}

	md.H2("Diagnostics")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Kind", "Count"},
		Rows: [][]string{
			{"Transient failures", strconv.Itoa(d.Transient)},
			{"Fatal failures", strconv.Itoa(d.Fatal)},
			{"Timeouts", strconv.Itoa(d.Timeouts)},
			{"Sitemap parse fallbacks", strconv.Itoa(d.ParseFallbacks)},
		},
	})
	md.PlainText("")
}
