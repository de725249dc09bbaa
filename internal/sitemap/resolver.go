package sitemap

import (
	"context"
	"errors"
	"log/slog"
	"net/url"

	"github.com/temoto/robotstxt"

	"github.com/sitemapdiff/sitemapdiff/internal/fetcher"
	"github.com/sitemapdiff/sitemapdiff/internal/model"
	"github.com/sitemapdiff/sitemapdiff/internal/urlnorm"
)

// DefaultMaxDepth bounds sitemap index recursion. Legitimate sites
// rarely nest past two levels; anything deeper is a generator bug or a
// cycle the visited set did not catch because URLs vary.
const DefaultMaxDepth = 5

// ErrNoSitemap is returned when no sitemap could be located through any
// discovery channel. Callers treat this as a degraded condition, not a
// failure: the scan continues crawl-only.
var ErrNoSitemap = errors.New("sitemap: no sitemap found")

// conventionalPaths are probed in order when neither an explicit URL
// nor a robots.txt directive names a sitemap.
var conventionalPaths = []string{
	"/sitemap.xml",
	"/sitemap_index.xml",
	"/sitemap-index.xml",
	"/sitemap/sitemap.xml",
	"/wp-sitemap.xml",
	"/sitemap1.xml",
}

// Getter is the fetch dependency. *fetcher.Fetcher satisfies it; tests
// substitute canned responses.
type Getter interface {
	Fetch(ctx context.Context, rawURL string) (*fetcher.Response, error)
}

// RawCache receives the raw bytes of every sitemap document fetched
// during resolution, for offline re-parsing and debugging.
type RawCache interface {
	StoreXML(sitemapURL string, data []byte) error
}

// Result is the outcome of sitemap resolution.
type Result struct {
	// URLs is the frozen set of canonical page URLs declared by the
	// sitemap tree, each attributed to the sitemap file that declared
	// it.
	URLs *model.ResultSet

	// RootSitemap is the first sitemap URL that yielded content.
	RootSitemap string

	// DocumentsFetched counts sitemap files retrieved, including
	// nested ones.
	DocumentsFetched int

	// ParseFallbacks counts documents that needed lenient extraction.
	ParseFallbacks int
}

// Resolver locates a site's sitemap tree and flattens it into a set of
// canonical page URLs.
type Resolver struct {
	getter   Getter
	norm     *urlnorm.Normalizer
	base     *url.URL
	maxDepth int
	rawCache RawCache
	logger   *slog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithMaxDepth overrides the index recursion bound.
func WithMaxDepth(depth int) ResolverOption {
	return func(r *Resolver) {
		r.maxDepth = depth
	}
}

// WithRawCache attaches a cache for raw sitemap bytes.
func WithRawCache(c RawCache) ResolverOption {
	return func(r *Resolver) {
		r.rawCache = c
	}
}

// WithResolverLogger sets a custom logger.
func WithResolverLogger(logger *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// NewResolver creates a Resolver rooted at baseURL (scheme and host of
// the target site).
func NewResolver(getter Getter, norm *urlnorm.Normalizer, baseURL string, opts ...ResolverOption) (*Resolver, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	r := &Resolver{
		getter:   getter,
		norm:     norm,
		base:     base,
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r, nil
}

// Resolve locates the sitemap tree and returns the flattened page set.
//
// When explicitURL is non-empty it is the only root considered.
// Otherwise discovery consults robots.txt first, then the conventional
// paths. Returns ErrNoSitemap when nothing was located.
func (r *Resolver) Resolve(ctx context.Context, explicitURL string) (*Result, error) {
	roots := r.discoverRoots(ctx, explicitURL)
	if len(roots) == 0 {
		return nil, ErrNoSitemap
	}

	res := &Result{URLs: model.NewResultSet()}

	// Worklist traversal over the sitemap tree. The visited set is
	// keyed on the literal sitemap URL: a cycle between index files
	// terminates as soon as a URL repeats.
	type item struct {
		url   string
		depth int
	}
	queue := make([]item, 0, len(roots))
	visited := make(map[string]bool, len(roots))
	for _, root := range roots {
		if !visited[root] {
			visited[root] = true
			queue = append(queue, item{url: root})
		}
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		resp, err := r.getter.Fetch(ctx, cur.url)
		if err != nil {
			r.logger.Warn("sitemap fetch failed", "url", cur.url, "error", err)
			continue
		}
		res.DocumentsFetched++
		if res.RootSitemap == "" {
			res.RootSitemap = cur.url
		}

		if r.rawCache != nil {
			if err := r.rawCache.StoreXML(cur.url, resp.Body); err != nil {
				r.logger.Warn("sitemap cache write failed", "url", cur.url, "error", err)
			}
		}

		doc, err := Parse(resp.Body)
		if err != nil {
			r.logger.Warn("sitemap parse failed", "url", cur.url, "error", err)
			continue
		}
		if doc.UsedFallback {
			res.ParseFallbacks++
			r.logger.Warn("sitemap is not well-formed XML, used lenient extraction",
				"url", cur.url,
				"pages", len(doc.PageURLs),
				"children", len(doc.ChildSitemaps),
			)
		}

		for _, page := range doc.PageURLs {
			canonical, ok := r.norm.NormalizeAbsolute(page)
			if !ok {
				continue
			}
			res.URLs.Add(canonical, cur.url)
		}

		if cur.depth >= r.maxDepth {
			if len(doc.ChildSitemaps) > 0 {
				r.logger.Warn("sitemap index nesting exceeds depth bound, pruning",
					"url", cur.url,
					"depth", cur.depth,
				)
			}
			continue
		}
		for _, child := range doc.ChildSitemaps {
			if visited[child] {
				continue
			}
			visited[child] = true
			queue = append(queue, item{url: child, depth: cur.depth + 1})
		}
	}

	if res.DocumentsFetched == 0 {
		return nil, ErrNoSitemap
	}

	res.URLs.Freeze()
	r.logger.Info("sitemap resolution complete",
		"root", res.RootSitemap,
		"documents", res.DocumentsFetched,
		"urls", res.URLs.Len(),
		"fallbacks", res.ParseFallbacks,
	)
	return res, nil
}

// discoverRoots determines the root sitemap URLs to traverse.
func (r *Resolver) discoverRoots(ctx context.Context, explicitURL string) []string {
	if explicitURL != "" {
		return []string{explicitURL}
	}

	if roots := r.robotsSitemaps(ctx); len(roots) > 0 {
		return roots
	}

	// No robots.txt directive: probe the conventional locations and
	// take the first one that answers.
	for _, path := range conventionalPaths {
		candidate := r.base.ResolveReference(&url.URL{Path: path}).String()
		resp, err := r.getter.Fetch(ctx, candidate)
		if err != nil {
			continue
		}
		if _, err := Parse(resp.Body); err != nil {
			continue
		}
		r.logger.Info("found sitemap at conventional path", "url", candidate)
		return []string{candidate}
	}
	return nil
}

// robotsSitemaps returns the Sitemap directives from robots.txt, or nil
// when the file is missing or declares none.
func (r *Resolver) robotsSitemaps(ctx context.Context) []string {
	robotsURL := r.base.ResolveReference(&url.URL{Path: "/robots.txt"}).String()
	resp, err := r.getter.Fetch(ctx, robotsURL)
	if err != nil {
		r.logger.Debug("robots.txt not available", "url", robotsURL, "error", err)
		return nil
	}

	robots, err := robotstxt.FromBytes(resp.Body)
	if err != nil {
		r.logger.Debug("robots.txt unparsable", "url", robotsURL, "error", err)
		return nil
	}
	if len(robots.Sitemaps) > 0 {
		r.logger.Info("found sitemap directives in robots.txt", "count", len(robots.Sitemaps))
	}
	return robots.Sitemaps
}
