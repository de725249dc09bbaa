package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sitemapdiff/sitemapdiff/internal/fetcher"
	"github.com/sitemapdiff/sitemapdiff/internal/model"
	"github.com/sitemapdiff/sitemapdiff/internal/urlnorm"
)

// fakePage is one canned response in a fakeSite.
type fakePage struct {
	body     string
	ctype    string
	finalURL string
	err      *fetcher.Error
}

// fakeSite serves canned pages and counts requests per URL.
type fakeSite struct {
	mu    sync.Mutex
	pages map[string]fakePage
	hits  map[string]int
}

func newFakeSite(pages map[string]fakePage) *fakeSite {
	return &fakeSite{pages: pages, hits: make(map[string]int)}
}

func (f *fakeSite) Fetch(_ context.Context, rawURL string) (*fetcher.Response, error) {
	f.mu.Lock()
	f.hits[rawURL]++
	page, ok := f.pages[rawURL]
	f.mu.Unlock()

	if !ok {
		return nil, &fetcher.Error{Kind: fetcher.KindFatal, URL: rawURL, StatusCode: 404}
	}
	if page.err != nil {
		return nil, page.err
	}
	final := page.finalURL
	if final == "" {
		final = rawURL
	}
	ctype := page.ctype
	if ctype == "" {
		ctype = "text/html; charset=utf-8"
	}
	return &fetcher.Response{
		StatusCode:  200,
		Body:        []byte(page.body),
		FinalURL:    final,
		ContentType: ctype,
	}, nil
}

func (f *fakeSite) hitCount(rawURL string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[rawURL]
}

func newTestSpider(t *testing.T, site *fakeSite, opts ...SpiderOption) *Spider {
	t.Helper()
	norm, err := urlnorm.New("https://example.com")
	if err != nil {
		t.Fatalf("failed to create normalizer: %v", err)
	}
	return NewSpider(site, norm, opts...)
}

func anchors(hrefs ...string) string {
	body := "<html><body>"
	for _, h := range hrefs {
		body += fmt.Sprintf(`<a href=%q>link</a>`, h)
	}
	return body + "</body></html>"
}

// TestCrawlDiscoversGraph tests breadth-first discovery with duplicate
// links: every reachable page appears once and is fetched once.
func TestCrawlDiscoversGraph(t *testing.T) {
	t.Parallel()

	site := newFakeSite(map[string]fakePage{
		"https://example.com/":  {body: anchors("/a", "/b")},
		"https://example.com/a": {body: anchors("/b", "/c")},
		"https://example.com/b": {body: anchors("/a")},
		"https://example.com/c": {body: anchors("/")},
	})

	s := newTestSpider(t, site)
	res, err := s.Crawl(context.Background(), "https://example.com/")
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}

	for _, u := range []string{"https://example.com/", "https://example.com/a", "https://example.com/b", "https://example.com/c"} {
		if !res.URLs.Contains(u) {
			t.Errorf("result missing %q", u)
		}
	}
	if res.URLs.Len() != 4 {
		t.Errorf("URLs.Len() = %d, want 4", res.URLs.Len())
	}
	for url := range site.pages {
		if got := site.hitCount(url); got != 1 {
			t.Errorf("%q fetched %d times, want 1", url, got)
		}
	}
}

// TestCrawlAttribution tests that each URL is attributed to the page
// whose link discovered it.
func TestCrawlAttribution(t *testing.T) {
	t.Parallel()

	site := newFakeSite(map[string]fakePage{
		"https://example.com/":     {body: anchors("/blog")},
		"https://example.com/blog": {body: anchors("/blog/post-1")},
		"https://example.com/blog/post-1": {body: anchors()},
	})

	s := newTestSpider(t, site, WithWorkers(1))
	res, err := s.Crawl(context.Background(), "https://example.com/")
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}

	if src := res.URLs.SourceOf("https://example.com/blog/post-1"); src != "https://example.com/blog" {
		t.Errorf("SourceOf(post-1) = %q, want the linking page", src)
	}
	if src := res.URLs.SourceOf("https://example.com/"); src != "https://example.com/" {
		t.Errorf("SourceOf(seed) = %q, want the seed itself", src)
	}
}

// TestCrawlMaxPages tests that the page budget bounds total fetches.
func TestCrawlMaxPages(t *testing.T) {
	t.Parallel()

	// A hub page linking to many leaves.
	var leaves []string
	pages := map[string]fakePage{}
	for i := 0; i < 20; i++ {
		u := fmt.Sprintf("/leaf-%d", i)
		leaves = append(leaves, u)
		pages["https://example.com"+u] = fakePage{body: anchors()}
	}
	pages["https://example.com/"] = fakePage{body: anchors(leaves...)}
	site := newFakeSite(pages)

	s := newTestSpider(t, site, WithMaxPages(5))
	res, err := s.Crawl(context.Background(), "https://example.com/")
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}

	var total int
	site.mu.Lock()
	for _, n := range site.hits {
		total += n
	}
	site.mu.Unlock()
	if total > 5 {
		t.Errorf("site saw %d fetches, want at most the budget of 5", total)
	}
	if res.URLs.Len() > 5 {
		t.Errorf("URLs.Len() = %d, want at most 5", res.URLs.Len())
	}
}

// TestCrawlErrorIsolation tests that a failing page is recorded and
// does not stop traversal through its siblings.
func TestCrawlErrorIsolation(t *testing.T) {
	t.Parallel()

	site := newFakeSite(map[string]fakePage{
		"https://example.com/": {body: anchors("/broken", "/fine")},
		"https://example.com/broken": {err: &fetcher.Error{
			Kind: fetcher.KindTransient, URL: "https://example.com/broken", StatusCode: 503,
		}},
		"https://example.com/fine": {body: anchors("/deeper")},
		"https://example.com/deeper": {body: anchors()},
	})

	s := newTestSpider(t, site)
	res, err := s.Crawl(context.Background(), "https://example.com/")
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}

	if !res.URLs.Contains("https://example.com/deeper") {
		t.Error("crawl stopped instead of continuing past a failed page")
	}
	if res.URLs.Contains("https://example.com/broken") {
		t.Error("failed page must not join the crawled set")
	}
	if res.Diagnostics.Transient != 1 {
		t.Errorf("Diagnostics.Transient = %d, want 1", res.Diagnostics.Transient)
	}

	var found bool
	for _, rec := range res.Records {
		if rec.CanonicalURL == "https://example.com/broken" {
			found = true
			if rec.State != model.StateVisitedError {
				t.Errorf("broken page state = %v, want visited_error", rec.State)
			}
			if rec.StatusCode != 503 {
				t.Errorf("broken page status = %d, want 503", rec.StatusCode)
			}
		}
	}
	if !found {
		t.Error("no record for the failed page")
	}
}

// TestCrawlTimeoutRecorded tests that a per-task timeout is recorded as
// timed_out without aborting the crawl.
func TestCrawlTimeoutRecorded(t *testing.T) {
	t.Parallel()

	site := newFakeSite(map[string]fakePage{
		"https://example.com/": {body: anchors("/slow", "/fast")},
		"https://example.com/slow": {err: &fetcher.Error{
			Kind: fetcher.KindTimeout, URL: "https://example.com/slow", Err: context.DeadlineExceeded,
		}},
		"https://example.com/fast": {body: anchors()},
	})

	s := newTestSpider(t, site)
	res, err := s.Crawl(context.Background(), "https://example.com/")
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}

	if res.Diagnostics.Timeouts != 1 {
		t.Errorf("Diagnostics.Timeouts = %d, want 1", res.Diagnostics.Timeouts)
	}
	if !res.URLs.Contains("https://example.com/fast") {
		t.Error("crawl stopped after a timed-out sibling")
	}
	for _, rec := range res.Records {
		if rec.CanonicalURL == "https://example.com/slow" && rec.State != model.StateTimedOut {
			t.Errorf("slow page state = %v, want timed_out", rec.State)
		}
	}
}

// TestCrawlRedirectIdentity tests that a redirected page is recorded
// under its final URL and that the final URL is not fetched twice.
func TestCrawlRedirectIdentity(t *testing.T) {
	t.Parallel()

	site := newFakeSite(map[string]fakePage{
		"https://example.com/": {body: anchors("/old")},
		"https://example.com/old": {
			body:     anchors(),
			finalURL: "https://example.com/new",
		},
		"https://example.com/new": {body: anchors()},
	})

	s := newTestSpider(t, site, WithWorkers(1))
	res, err := s.Crawl(context.Background(), "https://example.com/")
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}

	if !res.URLs.Contains("https://example.com/new") {
		t.Error("post-redirect identity missing from crawled set")
	}
	if res.URLs.Contains("https://example.com/old") {
		t.Error("pre-redirect URL must not join the crawled set")
	}
	if got := site.hitCount("https://example.com/new"); got != 0 {
		t.Errorf("redirect target fetched %d times directly, want 0 after MarkSeen", got)
	}
}

// TestCrawlOffDomainIgnored tests that links leaving the target domain
// are never fetched.
func TestCrawlOffDomainIgnored(t *testing.T) {
	t.Parallel()

	site := newFakeSite(map[string]fakePage{
		"https://example.com/": {body: anchors("https://other.com/page", "/local")},
		"https://example.com/local": {body: anchors()},
	})

	s := newTestSpider(t, site)
	res, err := s.Crawl(context.Background(), "https://example.com/")
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}

	if got := site.hitCount("https://other.com/page"); got != 0 {
		t.Errorf("off-domain URL fetched %d times, want 0", got)
	}
	if res.URLs.Len() != 2 {
		t.Errorf("URLs.Len() = %d, want 2", res.URLs.Len())
	}
}

// TestCrawlNonHTMLExcluded tests that a reachable non-HTML resource
// stays out of the crawled set and is not mined for links, while its
// record survives for diagnostics.
func TestCrawlNonHTMLExcluded(t *testing.T) {
	t.Parallel()

	site := newFakeSite(map[string]fakePage{
		"https://example.com/": {body: anchors("/feed", "/page")},
		"https://example.com/feed": {
			body:  anchors("/should-not-follow"),
			ctype: "application/json",
		},
		"https://example.com/page":              {body: anchors()},
		"https://example.com/should-not-follow": {body: anchors()},
	})

	s := newTestSpider(t, site)
	res, err := s.Crawl(context.Background(), "https://example.com/")
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}

	if res.URLs.Contains("https://example.com/feed") {
		t.Error("non-HTML resource must not join the crawled set")
	}
	if !res.URLs.Contains("https://example.com/page") {
		t.Error("HTML sibling missing from crawled set")
	}
	if got := site.hitCount("https://example.com/should-not-follow"); got != 0 {
		t.Errorf("link inside non-HTML body fetched %d times, want 0", got)
	}

	var found bool
	for _, rec := range res.Records {
		if rec.CanonicalURL == "https://example.com/feed" {
			found = true
			if rec.State != model.StateVisitedOK {
				t.Errorf("feed record state = %v, want visited_ok", rec.State)
			}
		}
	}
	if !found {
		t.Error("no record for the non-HTML resource")
	}
}

// trackingSite wraps a fakeSite and records the peak number of
// concurrent fetches.
type trackingSite struct {
	site     *fakeSite
	inflight atomic.Int32
	peak     atomic.Int32
}

func (ts *trackingSite) Fetch(ctx context.Context, rawURL string) (*fetcher.Response, error) {
	n := ts.inflight.Add(1)
	defer ts.inflight.Add(-1)
	for {
		p := ts.peak.Load()
		if n <= p || ts.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(2 * time.Millisecond)
	return ts.site.Fetch(ctx, rawURL)
}

// TestCrawlUnlimitedBudgetBoundedWorkers tests that an unlimited page
// budget is crawled to completion with no more concurrency than the
// configured worker count.
func TestCrawlUnlimitedBudgetBoundedWorkers(t *testing.T) {
	t.Parallel()

	pages := map[string]fakePage{}
	var leaves []string
	for i := 0; i < 40; i++ {
		u := fmt.Sprintf("/leaf-%d", i)
		leaves = append(leaves, u)
		pages["https://example.com"+u] = fakePage{body: anchors()}
	}
	pages["https://example.com/"] = fakePage{body: anchors(leaves...)}
	site := &trackingSite{site: newFakeSite(pages)}

	norm, err := urlnorm.New("https://example.com")
	if err != nil {
		t.Fatalf("failed to create normalizer: %v", err)
	}
	s := NewSpider(site, norm, WithWorkers(3), WithMaxPages(0))
	res, err := s.Crawl(context.Background(), "https://example.com/")
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}

	if res.URLs.Len() != 41 {
		t.Errorf("URLs.Len() = %d, want 41", res.URLs.Len())
	}
	if peak := site.peak.Load(); peak > 3 {
		t.Errorf("peak concurrent fetches = %d, want at most 3", peak)
	}
}

// TestCrawlSeedRejected tests the out-of-scope seed error.
func TestCrawlSeedRejected(t *testing.T) {
	t.Parallel()

	site := newFakeSite(map[string]fakePage{})
	s := newTestSpider(t, site)
	if _, err := s.Crawl(context.Background(), "https://unrelated.com/"); !errors.Is(err, ErrSeedRejected) {
		t.Errorf("Crawl() error = %v, want ErrSeedRejected", err)
	}
}

// TestCrawlResultFrozen tests that the returned set rejects insertion.
func TestCrawlResultFrozen(t *testing.T) {
	t.Parallel()

	site := newFakeSite(map[string]fakePage{
		"https://example.com/": {body: anchors()},
	})
	s := newTestSpider(t, site)
	res, err := s.Crawl(context.Background(), "https://example.com/")
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}
	if !res.URLs.Frozen() {
		t.Error("result set not frozen")
	}
}
