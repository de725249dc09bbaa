package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sitemapdiff/sitemapdiff/internal/compare"
	"github.com/sitemapdiff/sitemapdiff/internal/crawler"
	"github.com/sitemapdiff/sitemapdiff/internal/database"
	"github.com/sitemapdiff/sitemapdiff/internal/model"
	"github.com/sitemapdiff/sitemapdiff/internal/sitemap"
	"github.com/sitemapdiff/sitemapdiff/internal/store"
	"github.com/sitemapdiff/sitemapdiff/internal/urlnorm"
)

// ResolveSitemapStep discovers the target's sitemap tree and flattens it
// into the run's sitemap result set.
//
// Design decision: sitemap failure is not fatal. A site without a
// reachable sitemap still gets a crawl-only run; the empty sitemap set
// makes every crawled page show up as missing-from-sitemap, which is
// exactly what the operator needs to see.
type ResolveSitemapStep struct {
	// getter performs the HTTP fetches.
	getter sitemap.Getter

	// norm scopes and canonicalizes declared URLs.
	norm *urlnorm.Normalizer

	// explicitURL pins the sitemap location, skipping discovery.
	explicitURL string

	// rawCache receives every fetched sitemap document, may be nil.
	rawCache sitemap.RawCache

	// logger for structured logging.
	logger *slog.Logger
}

// ResolveSitemapStepOption configures a ResolveSitemapStep.
type ResolveSitemapStepOption func(*ResolveSitemapStep)

// WithExplicitSitemapURL pins the sitemap location.
func WithExplicitSitemapURL(u string) ResolveSitemapStepOption {
	return func(s *ResolveSitemapStep) {
		s.explicitURL = u
	}
}

// WithSitemapRawCache stores raw sitemap documents as they are fetched.
func WithSitemapRawCache(c sitemap.RawCache) ResolveSitemapStepOption {
	return func(s *ResolveSitemapStep) {
		s.rawCache = c
	}
}

// WithResolveLogger sets a custom logger for the step.
func WithResolveLogger(logger *slog.Logger) ResolveSitemapStepOption {
	return func(s *ResolveSitemapStep) {
		s.logger = logger
	}
}

// NewResolveSitemapStep creates the sitemap resolution step.
func NewResolveSitemapStep(getter sitemap.Getter, norm *urlnorm.Normalizer, opts ...ResolveSitemapStepOption) *ResolveSitemapStep {
	s := &ResolveSitemapStep{
		getter: getter,
		norm:   norm,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *ResolveSitemapStep) Name() string {
	return "resolve_sitemap"
}

// Do resolves the sitemap and stores the declared URL set on the run.
func (s *ResolveSitemapStep) Do(ctx context.Context, run *model.RunResult) error {
	resolverOpts := []sitemap.ResolverOption{
		sitemap.WithResolverLogger(s.logger),
	}
	if s.rawCache != nil {
		resolverOpts = append(resolverOpts, sitemap.WithRawCache(s.rawCache))
	}

	resolver, err := sitemap.NewResolver(s.getter, s.norm, run.StartURL, resolverOpts...)
	if err != nil {
		return fmt.Errorf("failed to create sitemap resolver: %w", err)
	}

	result, err := resolver.Resolve(ctx, s.explicitURL)
	if err != nil {
		if errors.Is(err, sitemap.ErrNoSitemap) {
			s.logger.Warn("no sitemap found, continuing crawl-only", "domain", run.Domain)
			run.SitemapURLs.Freeze()
			return nil
		}
		return fmt.Errorf("sitemap resolution failed: %w", err)
	}

	run.SitemapURL = result.RootSitemap
	run.SitemapURLs = result.URLs
	run.Diagnostics.ParseFallbacks += result.ParseFallbacks

	s.logger.Info("sitemap resolved",
		"domain", run.Domain,
		"root", result.RootSitemap,
		"documents", result.DocumentsFetched,
		"urls", result.URLs.Len(),
	)
	return nil
}

// CrawlStep walks the site from the seed URL and stores the reached URL
// set on the run.
type CrawlStep struct {
	// getter performs the HTTP fetches, typically a fetcher bound to
	// the run's content cache.
	getter crawler.Getter

	// norm scopes and canonicalizes discovered links.
	norm *urlnorm.Normalizer

	// workers bounds concurrent page fetches.
	workers int

	// maxPages caps the crawl.
	maxPages int

	// maxDepth caps link depth, zero for unlimited.
	maxDepth int

	// taskTimeout is the per-page budget.
	taskTimeout time.Duration

	// logger for structured logging.
	logger *slog.Logger
}

// CrawlStepOption configures a CrawlStep.
type CrawlStepOption func(*CrawlStep)

// WithCrawlWorkers bounds concurrent page fetches.
func WithCrawlWorkers(n int) CrawlStepOption {
	return func(s *CrawlStep) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithCrawlMaxPages caps the crawl page budget.
func WithCrawlMaxPages(n int) CrawlStepOption {
	return func(s *CrawlStep) {
		s.maxPages = n
	}
}

// WithCrawlMaxDepth caps the link depth.
func WithCrawlMaxDepth(depth int) CrawlStepOption {
	return func(s *CrawlStep) {
		s.maxDepth = depth
	}
}

// WithCrawlTaskTimeout sets the per-page budget.
func WithCrawlTaskTimeout(d time.Duration) CrawlStepOption {
	return func(s *CrawlStep) {
		if d > 0 {
			s.taskTimeout = d
		}
	}
}

// WithCrawlLogger sets a custom logger for the step.
func WithCrawlLogger(logger *slog.Logger) CrawlStepOption {
	return func(s *CrawlStep) {
		s.logger = logger
	}
}

// NewCrawlStep creates the crawl step.
func NewCrawlStep(getter crawler.Getter, norm *urlnorm.Normalizer, opts ...CrawlStepOption) *CrawlStep {
	s := &CrawlStep{
		getter:      getter,
		norm:        norm,
		workers:     crawler.DefaultWorkers,
		maxPages:    crawler.DefaultMaxPages,
		taskTimeout: crawler.DefaultTaskTimeout,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Do crawls the site and stores the reached URL set on the run.
// A rejected seed is critical: nothing downstream can produce a
// meaningful comparison without a crawl.
func (s *CrawlStep) Do(ctx context.Context, run *model.RunResult) error {
	spider := crawler.NewSpider(s.getter, s.norm,
		crawler.WithWorkers(s.workers),
		crawler.WithMaxPages(s.maxPages),
		crawler.WithMaxDepth(s.maxDepth),
		crawler.WithTaskTimeout(s.taskTimeout),
		crawler.WithSpiderLogger(s.logger),
	)

	result, err := spider.Crawl(ctx, run.StartURL)
	if result != nil {
		run.CrawledURLs = result.URLs
		run.Records = result.Records
		run.Diagnostics.Transient += result.Diagnostics.Transient
		run.Diagnostics.Fatal += result.Diagnostics.Fatal
		run.Diagnostics.Timeouts += result.Diagnostics.Timeouts
		run.Diagnostics.ScopeRejected += result.Diagnostics.ScopeRejected
	}
	if err != nil {
		return fmt.Errorf("crawl failed: %w", err)
	}

	s.logger.Info("crawl complete",
		"domain", run.Domain,
		"urls", result.URLs.Len(),
		"records", len(result.Records),
	)
	return nil
}

// ReconcileStep computes the comparison report from the two frozen sets
// and, when a previous run exists, the historical delta against it.
type ReconcileStep struct {
	// reconciler applies the set differences and view filters.
	reconciler *compare.Reconciler

	// st locates the previous run's persisted lists, may be nil to
	// skip historical comparison.
	st *store.Store

	// logger for structured logging.
	logger *slog.Logger
}

// ReconcileStepOption configures a ReconcileStep.
type ReconcileStepOption func(*ReconcileStep)

// WithPreviousRunStore enables historical comparison against the most
// recent prior run found in st.
func WithPreviousRunStore(st *store.Store) ReconcileStepOption {
	return func(s *ReconcileStep) {
		s.st = st
	}
}

// WithReconcileLogger sets a custom logger for the step.
func WithReconcileLogger(logger *slog.Logger) ReconcileStepOption {
	return func(s *ReconcileStep) {
		s.logger = logger
	}
}

// NewReconcileStep creates the reconcile step.
func NewReconcileStep(reconciler *compare.Reconciler, opts ...ReconcileStepOption) *ReconcileStep {
	s := &ReconcileStep{
		reconciler: reconciler,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *ReconcileStep) Name() string {
	return "reconcile"
}

// Do reconciles the two result sets and attaches the historical delta.
func (s *ReconcileStep) Do(_ context.Context, run *model.RunResult) error {
	run.Report = s.reconciler.Reconcile(run.SitemapURLs, run.CrawledURLs)

	if s.st == nil {
		return nil
	}

	prev, err := s.st.PreviousRun(run.Domain, run.TimestampDir())
	if err != nil {
		if errors.Is(err, store.ErrNoPreviousRun) {
			s.logger.Debug("no previous run to compare against", "domain", run.Domain)
			return nil
		}
		return fmt.Errorf("failed to locate previous run: %w", err)
	}

	prevStore, err := s.st.OpenRun(run.Domain, prev)
	if err != nil {
		return fmt.Errorf("failed to open previous run: %w", err)
	}

	prevMissingFromSitemap, err := prevStore.ReadEntries(store.MissingFromSitemapFile)
	if err != nil {
		// An older run that predates the current file layout is not
		// worth failing the scan over.
		s.logger.Warn("previous run unreadable, skipping comparison", "run", prev, "error", err)
		return nil
	}
	prevMissingFromSite, err := prevStore.ReadEntries(store.MissingFromSiteFile)
	if err != nil {
		s.logger.Warn("previous run unreadable, skipping comparison", "run", prev, "error", err)
		return nil
	}

	run.Report.Delta = compare.Delta(run.Report, prevMissingFromSitemap, prevMissingFromSite, prev)
	s.logger.Info("historical comparison computed",
		"domain", run.Domain,
		"previous", prev,
	)
	return nil
}

// PersistStep writes the run's result sets, comparison lists, and
// metadata to the run directory, and indexes the run in the database.
type PersistStep struct {
	// rs is the run directory, created before the pipeline starts so
	// earlier steps can stream into its caches.
	rs *store.RunStore

	// db indexes the run for fast lookup, may be nil.
	db *database.RunDB

	// logger for structured logging.
	logger *slog.Logger
}

// PersistStepOption configures a PersistStep.
type PersistStepOption func(*PersistStep)

// WithRunDB indexes each persisted run in the database.
func WithRunDB(db *database.RunDB) PersistStepOption {
	return func(s *PersistStep) {
		s.db = db
	}
}

// WithPersistLogger sets a custom logger for the step.
func WithPersistLogger(logger *slog.Logger) PersistStepOption {
	return func(s *PersistStep) {
		s.logger = logger
	}
}

// NewPersistStep creates the persistence step.
func NewPersistStep(rs *store.RunStore, opts ...PersistStepOption) *PersistStep {
	s := &PersistStep{
		rs:     rs,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *PersistStep) Name() string {
	return "persist"
}

// Do writes every run artifact. The CSVs are written even when empty so
// a missing file always means the run never got that far.
func (s *PersistStep) Do(ctx context.Context, run *model.RunResult) error {
	if err := s.rs.WriteResultSet(store.SitemapURLsFile, run.SitemapURLs); err != nil {
		return err
	}
	if err := s.rs.WriteResultSet(store.CrawledURLsFile, run.CrawledURLs); err != nil {
		return err
	}

	if run.Report != nil {
		if err := s.rs.WriteEntries(store.MissingFromSitemapFile, run.Report.MissingFromSitemap); err != nil {
			return err
		}
		if err := s.rs.WriteEntries(store.MissingFromSiteFile, run.Report.MissingFromSite); err != nil {
			return err
		}
		if run.Report.Delta != nil {
			if err := s.rs.WriteDelta(store.ComparisonMissingFromSitemapFile, run.Report.Delta.MissingFromSitemap); err != nil {
				return err
			}
			if err := s.rs.WriteDelta(store.ComparisonMissingFromSiteFile, run.Report.Delta.MissingFromSite); err != nil {
				return err
			}
		}
	}

	if err := s.rs.WriteRun(run); err != nil {
		return err
	}

	if s.db != nil {
		if _, err := s.db.InsertRun(ctx, database.SummarizeRun(run, s.rs.Dir())); err != nil {
			return fmt.Errorf("failed to index run: %w", err)
		}
	}

	s.logger.Info("run persisted", "dir", s.rs.Dir())
	return nil
}
