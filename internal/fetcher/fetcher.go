package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Default limits for the HTTP client.
const (
	// DefaultMaxBodySize caps how much of a response body is read.
	// 10MB covers any realistic content page while bounding memory.
	DefaultMaxBodySize = 10 * 1024 * 1024

	// DefaultMaxRedirects bounds redirect chains. Sites that need
	// more than ten hops to answer a GET are broken.
	DefaultMaxRedirects = 10

	// DefaultUserAgent is a realistic browser identity. Plenty of
	// sites serve crawlers a 403 on anything that looks like a bot,
	// which would make the comparison report pure noise.
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"
)

// Response is the outcome of a successful fetch.
type Response struct {
	// StatusCode is the final HTTP status after redirects.
	StatusCode int

	// Body is the response body, truncated at the configured limit.
	Body []byte

	// FinalURL is the URL that actually answered, after redirects.
	// Callers normalize this, not the requested URL, so the frontier
	// records the post-redirect identity.
	FinalURL string

	// ContentType is the Content-Type header value.
	ContentType string

	// CacheRef is the content-cache reference when a cache is
	// configured, empty otherwise.
	CacheRef string
}

// Cache receives successful response bodies. The store package
// implements it with one file per canonical URL.
type Cache interface {
	// Store persists the body under the given URL's identity and
	// returns a reference usable to retrieve it later.
	Store(finalURL string, body []byte) (string, error)
}

// Fetcher performs HTTP GETs with retry, backoff, and redirect bounds.
// It is safe for concurrent use by crawl workers.
type Fetcher struct {
	// client is the underlying HTTP client. Its CheckRedirect hook
	// enforces the redirect bound.
	client *http.Client

	// policy is the retry schedule for transient failures.
	policy RetryPolicy

	// userAgent is sent with every request.
	userAgent string

	// maxBodySize limits response body reads.
	maxBodySize int64

	// cache, when non-nil, receives successful bodies.
	cache Cache

	// logger records retries and failures.
	logger *slog.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithRetryPolicy overrides the default retry schedule.
func WithRetryPolicy(p RetryPolicy) FetcherOption {
	return func(f *Fetcher) {
		f.policy = p
	}
}

// WithUserAgent overrides the default User-Agent header.
func WithUserAgent(ua string) FetcherOption {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithMaxBodySize overrides the response body read limit.
func WithMaxBodySize(n int64) FetcherOption {
	return func(f *Fetcher) {
		f.maxBodySize = n
	}
}

// WithCache attaches a content cache that receives successful bodies.
func WithCache(c Cache) FetcherOption {
	return func(f *Fetcher) {
		f.cache = c
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) FetcherOption {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// New creates a Fetcher with the given per-request timeout.
//
// Design decision: the timeout is a client-level setting rather than a
// context the caller must build, because every call site wants the same
// budget. Callers that need a tighter per-task deadline (the crawler)
// additionally pass a context with a deadline.
func New(timeout time.Duration, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		policy:      DefaultRetryPolicy(),
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}

	f.client = &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= DefaultMaxRedirects {
				return fmt.Errorf("stopped after %d redirects", DefaultMaxRedirects)
			}
			return nil
		},
	}
	return f
}

// Fetch performs one GET with retries on transient failures. On success
// the body is stored in the cache (when configured) before returning.
// On failure the returned error is always a *Error with a Kind.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	var lastErr *Error

	for attempt := 0; attempt < f.policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := f.policy.Delay(attempt - 1)
			f.logger.Debug("retrying fetch",
				"url", rawURL,
				"attempt", attempt+1,
				"delay", delay,
			)
			select {
			case <-ctx.Done():
				return nil, &Error{Kind: KindTimeout, URL: rawURL, Err: ctx.Err()}
			case <-time.After(delay):
			}
		}

		resp, err := f.fetchOnce(ctx, rawURL)
		if err == nil {
			return resp, nil
		}

		var fe *Error
		if !errors.As(err, &fe) {
			fe = &Error{Kind: KindFatal, URL: rawURL, Err: err}
		}
		if fe.Kind != KindTransient {
			return nil, fe
		}
		lastErr = fe
	}

	f.logger.Debug("retries exhausted", "url", rawURL, "error", lastErr)
	return nil, lastErr
}

// fetchOnce performs a single GET attempt and classifies any failure.
func (f *Fetcher) fetchOnce(ctx context.Context, rawURL string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &Error{Kind: KindFatal, URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, f.classifyTransportError(ctx, rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		kind := KindFatal
		if retryableStatus(resp.StatusCode) {
			kind = KindTransient
		}
		return nil, &Error{Kind: kind, URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return nil, f.classifyTransportError(ctx, rawURL, err)
	}

	out := &Response{
		StatusCode:  resp.StatusCode,
		Body:        body,
		FinalURL:    resp.Request.URL.String(),
		ContentType: resp.Header.Get("Content-Type"),
	}

	if f.cache != nil {
		ref, err := f.cache.Store(out.FinalURL, body)
		if err != nil {
			// A cache write failure degrades the run's cache, not
			// the crawl itself.
			f.logger.Warn("content cache write failed", "url", out.FinalURL, "error", err)
		} else {
			out.CacheRef = ref
		}
	}

	return out, nil
}

// classifyTransportError maps transport-level failures onto error kinds.
//
//   - context expiry: timeout (the caller's per-task budget is spent,
//     retrying would overrun it)
//   - DNS resolution failure: fatal (the host will not appear between
//     attempts)
//   - everything else (resets, attempt-level timeouts): transient
func (f *Fetcher) classifyTransportError(ctx context.Context, rawURL string, err error) *Error {
	if ctx.Err() != nil {
		return &Error{Kind: KindTimeout, URL: rawURL, Err: ctx.Err()}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &Error{Kind: KindFatal, URL: rawURL, Err: err}
	}

	return &Error{Kind: KindTransient, URL: rawURL, Err: err}
}
