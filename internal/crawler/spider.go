package crawler

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sitemapdiff/sitemapdiff/internal/fetcher"
	"github.com/sitemapdiff/sitemapdiff/internal/model"
	"github.com/sitemapdiff/sitemapdiff/internal/urlnorm"
)

// Crawl defaults.
const (
	// DefaultWorkers is the concurrent fetch bound.
	DefaultWorkers = 4

	// DefaultMaxPages is the crawl page budget.
	DefaultMaxPages = 10000

	// DefaultTaskTimeout is the per-page budget covering fetch,
	// retries, and parse.
	DefaultTaskTimeout = 30 * time.Second
)

// ErrSeedRejected is returned when the start URL does not survive
// normalization, which means the whole crawl scope is empty.
var ErrSeedRejected = errors.New("crawler: seed URL rejected by scope rules")

// Getter is the fetch dependency. *fetcher.Fetcher satisfies it; tests
// substitute canned responses.
type Getter interface {
	Fetch(ctx context.Context, rawURL string) (*fetcher.Response, error)
}

// Result is the outcome of a crawl.
type Result struct {
	// URLs is the frozen set of canonical URLs the crawl reached,
	// each attributed to the page whose link discovered it.
	URLs *model.ResultSet

	// Records holds one entry per crawled URL in completion order.
	Records []model.URLRecord

	// Diagnostics counts failure kinds across the crawl.
	Diagnostics model.Diagnostics
}

// Spider crawls a site breadth-first from a seed URL with a bounded
// worker pool.
//
// Design decision: we call it "Spider" rather than "Crawler" to keep
// the component name distinct from the package name at call sites:
// crawler.NewSpider() reads better than crawler.NewCrawler().
type Spider struct {
	getter      Getter
	norm        *urlnorm.Normalizer
	workers     int
	maxPages    int
	maxDepth    int
	taskTimeout time.Duration
	logger      *slog.Logger
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithWorkers sets the concurrent fetch bound.
func WithWorkers(n int) SpiderOption {
	return func(s *Spider) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithMaxPages sets the crawl page budget. Non-positive means
// unlimited.
func WithMaxPages(n int) SpiderOption {
	return func(s *Spider) {
		s.maxPages = n
	}
}

// WithMaxDepth bounds the link distance from the seed. Non-positive
// means unlimited; the page budget is the primary termination
// guarantee.
func WithMaxDepth(depth int) SpiderOption {
	return func(s *Spider) {
		s.maxDepth = depth
	}
}

// WithTaskTimeout sets the per-page budget.
func WithTaskTimeout(d time.Duration) SpiderOption {
	return func(s *Spider) {
		s.taskTimeout = d
	}
}

// WithSpiderLogger sets a custom logger.
func WithSpiderLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		s.logger = logger
	}
}

// NewSpider creates a Spider that fetches through getter and scopes
// URLs through norm.
//
// Design decision: the fetch dependency is an interface rather than a
// concrete *fetcher.Fetcher so crawl behavior (ordering, dedup, budget,
// timeout handling) is testable without a network.
func NewSpider(getter Getter, norm *urlnorm.Normalizer, opts ...SpiderOption) *Spider {
	s := &Spider{
		getter:      getter,
		norm:        norm,
		workers:     DefaultWorkers,
		maxPages:    DefaultMaxPages,
		taskTimeout: DefaultTaskTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// collector accumulates crawl output across workers.
type collector struct {
	mu      sync.Mutex
	urls    *model.ResultSet
	records []model.URLRecord
	diag    model.Diagnostics
}

func (c *collector) add(canonicalURL, foundOn string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.urls.Add(canonicalURL, foundOn)
}

func (c *collector) record(rec model.URLRecord, update func(*model.Diagnostics)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, rec)
	if update != nil {
		update(&c.diag)
	}
}

// Crawl walks the site from startURL until the frontier drains or the
// page budget is spent. Page failures are recorded, never fatal; the
// returned error is non-nil only for an out-of-scope seed or context
// cancellation, and the partial result is valid either way.
func (s *Spider) Crawl(ctx context.Context, startURL string) (*Result, error) {
	seed, ok := s.norm.NormalizeAbsolute(startURL)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSeedRejected, startURL)
	}

	frontier := NewFrontier(s.maxPages)
	c := &collector{urls: model.NewResultSet()}

	// A fixed pool of workers drains a shared queue, so the goroutine
	// count is s.workers regardless of site size or page budget. The
	// queue's completion tracking shuts the pool down once the last
	// outstanding task finishes without producing new work.
	queue := newTaskQueue()
	stop := context.AfterFunc(ctx, queue.shutdown)
	defer stop()

	if frontier.Admit(seed) {
		queue.push(Task{URL: seed, FoundOn: seed})
	} else {
		queue.shutdown()
	}

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				t, ok := queue.pop()
				if !ok {
					return
				}
				if ctx.Err() == nil {
					for _, next := range s.process(ctx, t, frontier, c) {
						queue.push(next)
					}
				}
				queue.done()
			}
		}()
	}
	wg.Wait()

	c.urls.Freeze()
	res := &Result{
		URLs:        c.urls,
		Records:     c.records,
		Diagnostics: c.diag,
	}

	s.logger.Info("crawl complete",
		"seed", seed,
		"pages", frontier.Admitted(),
		"urls", res.URLs.Len(),
		"transient", res.Diagnostics.Transient,
		"fatal", res.Diagnostics.Fatal,
		"timeouts", res.Diagnostics.Timeouts,
	)

	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}

// process fetches one task and returns the newly admitted follow-up
// tasks.
func (s *Spider) process(ctx context.Context, t Task, frontier *Frontier, c *collector) []Task {
	rec := model.URLRecord{
		CanonicalURL: t.URL,
		Source:       model.SourceCrawl,
		Depth:        t.Depth,
		FoundOn:      t.FoundOn,
		State:        model.StateInFlight,
	}

	tctx, cancel := context.WithTimeout(ctx, s.taskTimeout)
	defer cancel()

	resp, err := s.getter.Fetch(tctx, t.URL)
	if err != nil {
		s.recordFailure(&rec, err, c)
		return nil
	}

	rec.StatusCode = resp.StatusCode
	sum := sha256.Sum256(resp.Body)
	rec.ContentHash = hex.EncodeToString(sum[:])
	rec.CacheRef = resp.CacheRef
	rec.State = model.StateVisitedOK

	// The page's identity is where the server actually answered, not
	// where we asked. A redirect to an already-crawled page must not
	// produce a second fetch or a phantom set member.
	pageURL, ok := s.norm.NormalizeAbsolute(resp.FinalURL)
	if !ok {
		s.logger.Debug("redirected out of scope", "url", t.URL, "final", resp.FinalURL)
		c.record(rec, func(d *model.Diagnostics) { d.ScopeRejected++ })
		return nil
	}
	if pageURL != t.URL {
		frontier.MarkSeen(pageURL)
		rec.CanonicalURL = pageURL
	}

	// The comparison set holds pages only. A reachable feed or API
	// endpoint is not something the sitemap should have declared, so a
	// non-HTML response keeps its record for diagnostics output but
	// never joins the set.
	if !strings.Contains(resp.ContentType, "text/html") {
		s.logger.Debug("non-html resource excluded",
			"url", pageURL, "content_type", resp.ContentType)
		c.record(rec, nil)
		return nil
	}

	c.add(pageURL, t.FoundOn)
	c.record(rec, nil)

	if s.maxDepth > 0 && t.Depth >= s.maxDepth {
		return nil
	}

	base, err := url.Parse(resp.FinalURL)
	if err != nil {
		return nil
	}
	links, err := ExtractLinks(bytes.NewReader(resp.Body))
	if err != nil {
		s.logger.Debug("html parse failed", "url", pageURL, "error", err)
		return nil
	}

	var next []Task
	for _, href := range links.Hrefs {
		canonical, ok := s.norm.Normalize(href, base)
		if !ok {
			continue
		}
		if frontier.Admit(canonical) {
			next = append(next, Task{URL: canonical, Depth: t.Depth + 1, FoundOn: pageURL})
		}
	}
	return next
}

// recordFailure classifies a fetch error into the record state and the
// matching diagnostics counter.
func (s *Spider) recordFailure(rec *model.URLRecord, err error, c *collector) {
	var fe *fetcher.Error
	if !errors.As(err, &fe) {
		rec.State = model.StateVisitedError
		c.record(*rec, func(d *model.Diagnostics) { d.Fatal++ })
		s.logger.Warn("page fetch failed", "url", rec.CanonicalURL, "error", err)
		return
	}

	rec.StatusCode = fe.StatusCode
	switch fe.Kind {
	case fetcher.KindTimeout:
		rec.State = model.StateTimedOut
		c.record(*rec, func(d *model.Diagnostics) { d.Timeouts++ })
	case fetcher.KindTransient:
		rec.State = model.StateVisitedError
		c.record(*rec, func(d *model.Diagnostics) { d.Transient++ })
	default:
		rec.State = model.StateVisitedError
		c.record(*rec, func(d *model.Diagnostics) { d.Fatal++ })
	}
	s.logger.Warn("page fetch failed",
		"url", rec.CanonicalURL,
		"kind", fe.Kind,
		"status", fe.StatusCode,
	)
}
