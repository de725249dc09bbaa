package report

import (
	"fmt"
	"html/template"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sitemapdiff/sitemapdiff/internal/model"
	"github.com/sitemapdiff/sitemapdiff/internal/store"
)

// Dashboard generates static HTML pages from the persisted run tree.
// It reads only what the store wrote, so pages can be regenerated at any
// time without re-scanning.
//
// Design decision: We use html/template from the standard library rather
// than a web framework because the output is a static site: three page
// types, no server, no JavaScript. Contextual auto-escaping is the
// property we need, and html/template provides it.
type Dashboard struct {
	store     *store.Store
	outputDir string
	logger    *slog.Logger
}

// DashboardOption configures a Dashboard.
type DashboardOption func(*Dashboard)

// WithDashboardLogger sets a custom logger.
func WithDashboardLogger(logger *slog.Logger) DashboardOption {
	return func(d *Dashboard) {
		d.logger = logger
	}
}

// NewDashboard creates a Dashboard reading from st and writing pages
// under outputDir.
func NewDashboard(st *store.Store, outputDir string, opts ...DashboardOption) *Dashboard {
	d := &Dashboard{store: st, outputDir: outputDir}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d
}

// domainSummary is one row on the root index page.
type domainSummary struct {
	Domain     string
	ScanCount  int
	LatestScan string
}

// scanSummary is one row on a domain's history page.
type scanSummary struct {
	Timestamp          string
	SitemapCount       int
	CrawledCount       int
	MissingFromSitemap int
	MissingFromSite    int
	NewCount           int
	FixedCount         int
}

// scanRow is one table row on a per-scan page. Status is "New" for
// entries that appeared since the previous run, empty otherwise.
type scanRow struct {
	Status string
	URL    string
	Source string
}

// scanPage is the template payload for a per-scan page.
type scanPage struct {
	Domain             string
	Timestamp          string
	StartURL           string
	SitemapURL         string
	MissingFromSitemap []scanRow
	MissingFromSite    []scanRow
	FixedFromSitemap   []string
	FixedFromSite      []string
	Diagnostics        model.Diagnostics
}

// Generate renders the full dashboard: a root index, one history page
// per domain, and one page per scan. Returns the number of pages
// written.
func (d *Dashboard) Generate() (int, error) {
	domains, err := d.store.ListDomains()
	if err != nil {
		return 0, err
	}

	pages := 0
	summaries := make([]domainSummary, 0, len(domains))
	for _, domain := range domains {
		runs, err := d.store.ListRuns(domain)
		if err != nil {
			return pages, err
		}
		if len(runs) == 0 {
			continue
		}

		n, err := d.generateDomain(domain, runs)
		pages += n
		if err != nil {
			return pages, err
		}

		summaries = append(summaries, domainSummary{
			Domain:     domain,
			ScanCount:  len(runs),
			LatestScan: runs[len(runs)-1],
		})
	}

	if err := d.render(filepath.Join(d.outputDir, "index.html"), indexTemplate, summaries); err != nil {
		return pages, err
	}
	pages++

	d.logger.Info("dashboard generated", "dir", d.outputDir, "pages", pages)
	return pages, nil
}

// generateDomain renders one domain's history page and its scan pages.
// Runs are newest-first on the history page; ListRuns returns them
// oldest-first.
func (d *Dashboard) generateDomain(domain string, runs []string) (int, error) {
	pages := 0
	history := make([]scanSummary, 0, len(runs))
	for i := len(runs) - 1; i >= 0; i-- {
		summary, err := d.generateScan(domain, runs[i])
		if err != nil {
			// A partial run directory should not sink the whole
			// dashboard.
			d.logger.Warn("skipping unreadable run", "domain", domain, "run", runs[i], "error", err)
			continue
		}
		pages++
		history = append(history, *summary)
	}

	payload := struct {
		Domain string
		Scans  []scanSummary
	}{Domain: domain, Scans: history}

	if err := d.render(filepath.Join(d.outputDir, domain, "index.html"), domainTemplate, payload); err != nil {
		return pages, err
	}
	return pages + 1, nil
}

// generateScan renders one scan's page and returns its history row.
func (d *Dashboard) generateScan(domain, timestamp string) (*scanSummary, error) {
	rs, err := d.store.OpenRun(domain, timestamp)
	if err != nil {
		return nil, err
	}
	run, err := rs.ReadRun()
	if err != nil {
		return nil, err
	}

	missingFromSitemap, err := rs.ReadEntries(store.MissingFromSitemapFile)
	if err != nil {
		return nil, err
	}
	missingFromSite, err := rs.ReadEntries(store.MissingFromSiteFile)
	if err != nil {
		return nil, err
	}

	// Comparison files only exist when the run had a predecessor.
	deltaSitemap, _ := rs.ReadDelta(store.ComparisonMissingFromSitemapFile)
	deltaSite, _ := rs.ReadDelta(store.ComparisonMissingFromSiteFile)

	page := &scanPage{
		Domain:             domain,
		Timestamp:          timestamp,
		StartURL:           run.StartURL,
		SitemapURL:         run.SitemapURL,
		MissingFromSitemap: markNew(missingFromSitemap, deltaSitemap),
		MissingFromSite:    markNew(missingFromSite, deltaSite),
		FixedFromSitemap:   fixedURLs(deltaSitemap),
		FixedFromSite:      fixedURLs(deltaSite),
		Diagnostics:        run.Diagnostics,
	}

	if err := d.render(filepath.Join(d.outputDir, domain, timestamp+".html"), scanTemplate, page); err != nil {
		return nil, err
	}

	summary := &scanSummary{
		Timestamp:          timestamp,
		MissingFromSitemap: len(missingFromSitemap),
		MissingFromSite:    len(missingFromSite),
	}
	for _, e := range append(append([]model.DeltaEntry(nil), deltaSitemap...), deltaSite...) {
		switch e.Status {
		case model.DeltaNew:
			summary.NewCount++
		case model.DeltaFixed:
			summary.FixedCount++
		}
	}
	sitemapSet, err := rs.ReadEntries(store.SitemapURLsFile)
	if err == nil {
		summary.SitemapCount = len(sitemapSet)
	}
	crawledSet, err := rs.ReadEntries(store.CrawledURLsFile)
	if err == nil {
		summary.CrawledCount = len(crawledSet)
	}
	return summary, nil
}

// markNew converts entries to table rows, tagging those the delta lists
// as New.
func markNew(entries []model.Entry, delta []model.DeltaEntry) []scanRow {
	newSet := make(map[string]bool, len(delta))
	for _, e := range delta {
		if e.Status == model.DeltaNew {
			newSet[e.URL] = true
		}
	}

	rows := make([]scanRow, len(entries))
	for i, e := range entries {
		status := ""
		if newSet[e.URL] {
			status = string(model.DeltaNew)
		}
		rows[i] = scanRow{Status: status, URL: e.URL, Source: e.Source}
	}
	return rows
}

// fixedURLs extracts the Fixed entries from a delta list.
func fixedURLs(delta []model.DeltaEntry) []string {
	var urls []string
	for _, e := range delta {
		if e.Status == model.DeltaFixed {
			urls = append(urls, e.URL)
		}
	}
	return urls
}

// render executes a template into a file, creating parent directories.
func (d *Dashboard) render(path string, tmpl *template.Template, data any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := tmpl.Execute(f, data); err != nil {
		return fmt.Errorf("failed to render %s: %w", path, err)
	}
	return f.Close()
}

// pageStyle is shared by every generated page.
const pageStyle = `<style>
body { font-family: sans-serif; margin: 2em auto; max-width: 72em; color: #222; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
th, td { border: 1px solid #ccc; padding: 0.4em 0.7em; text-align: left; }
th { background: #f2f2f2; }
.new { color: #b00; font-weight: bold; }
.fixed { color: #070; }
.muted { color: #777; }
</style>`

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>sitemapdiff</title>` + pageStyle + `</head>
<body>
<h1>Scanned Sites</h1>
{{if .}}
<table>
<tr><th>Domain</th><th>Scans</th><th>Latest Scan</th></tr>
{{range .}}<tr><td><a href="{{.Domain}}/index.html">{{.Domain}}</a></td><td>{{.ScanCount}}</td><td><a href="{{.Domain}}/{{.LatestScan}}.html">{{.LatestScan}}</a></td></tr>
{{end}}</table>
{{else}}<p class="muted">No scans recorded yet.</p>{{end}}
</body></html>
`))

var domainTemplate = template.Must(template.New("domain").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>{{.Domain}} - sitemapdiff</title>` + pageStyle + `</head>
<body>
<p><a href="../index.html">&laquo; all sites</a></p>
<h1>{{.Domain}}</h1>
<table>
<tr><th>Scan</th><th>Sitemap URLs</th><th>Crawled URLs</th><th>Missing From Sitemap</th><th>Missing From Site</th><th>New</th><th>Fixed</th></tr>
{{range .Scans}}<tr><td><a href="{{.Timestamp}}.html">{{.Timestamp}}</a></td><td>{{.SitemapCount}}</td><td>{{.CrawledCount}}</td><td>{{.MissingFromSitemap}}</td><td>{{.MissingFromSite}}</td><td class="new">{{.NewCount}}</td><td class="fixed">{{.FixedCount}}</td></tr>
{{end}}</table>
</body></html>
`))

var scanTemplate = template.Must(template.New("scan").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>{{.Domain}} {{.Timestamp}} - sitemapdiff</title>` + pageStyle + `</head>
<body>
<p><a href="index.html">&laquo; {{.Domain}} history</a></p>
<h1>{{.Domain}} &mdash; {{.Timestamp}}</h1>
<p class="muted">Start URL: {{.StartURL}}{{if .SitemapURL}} &middot; Sitemap: {{.SitemapURL}}{{else}} &middot; sitemap not found (crawl-only){{end}}</p>

<h2>Missing From Sitemap ({{len .MissingFromSitemap}})</h2>
{{if .MissingFromSitemap}}
<table>
<tr><th>Status</th><th>URL</th><th>Found On</th></tr>
{{range .MissingFromSitemap}}<tr><td class="new">{{.Status}}</td><td><a href="{{.URL}}">{{.URL}}</a></td><td>{{.Source}}</td></tr>
{{end}}</table>
{{else}}<p class="muted">None.</p>{{end}}
{{if .FixedFromSitemap}}<p class="fixed">Fixed since previous scan:</p><ul>{{range .FixedFromSitemap}}<li class="fixed">{{.}}</li>{{end}}</ul>{{end}}

<h2>Missing From Site ({{len .MissingFromSite}})</h2>
{{if .MissingFromSite}}
<table>
<tr><th>Status</th><th>URL</th><th>Declared In</th></tr>
{{range .MissingFromSite}}<tr><td class="new">{{.Status}}</td><td><a href="{{.URL}}">{{.URL}}</a></td><td>{{.Source}}</td></tr>
{{end}}</table>
{{else}}<p class="muted">None.</p>{{end}}
{{if .FixedFromSite}}<p class="fixed">Fixed since previous scan:</p><ul>{{range .FixedFromSite}}<li class="fixed">{{.}}</li>{{end}}</ul>{{end}}

<h2>Diagnostics</h2>
<table>
<tr><th>Transient</th><th>Fatal</th><th>Timeouts</th><th>Parse Fallbacks</th></tr>
<tr><td>{{.Diagnostics.Transient}}</td><td>{{.Diagnostics.Fatal}}</td><td>{{.Diagnostics.Timeouts}}</td><td>{{.Diagnostics.ParseFallbacks}}</td></tr>
</table>
</body></html>
`))
