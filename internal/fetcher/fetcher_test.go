package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// fastRetry returns a retry policy with no waiting, for tests.
func fastRetry(attempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: attempts,
		BaseDelay:   0,
		MaxDelay:    0,
		Jitter:      false,
	}
}

// TestFetchSuccess tests a plain 200 response.
func TestFetchSuccess(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html>hello</html>"))
	}))
	defer srv.Close()

	f := New(5*time.Second, WithRetryPolicy(fastRetry(3)))
	resp, err := f.Fetch(context.Background(), srv.URL+"/page")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if string(resp.Body) != "<html>hello</html>" {
		t.Errorf("Body = %q, want page content", resp.Body)
	}
	if resp.FinalURL != srv.URL+"/page" {
		t.Errorf("FinalURL = %q, want %q", resp.FinalURL, srv.URL+"/page")
	}
	if !strings.HasPrefix(resp.ContentType, "text/html") {
		t.Errorf("ContentType = %q, want text/html", resp.ContentType)
	}
}

// TestFetchRetriesServerError tests that 5xx responses are retried and
// a later success is returned.
func TestFetchRetriesServerError(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("recovered"))
	}))
	defer srv.Close()

	f := New(5*time.Second, WithRetryPolicy(fastRetry(3)))
	resp, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if string(resp.Body) != "recovered" {
		t.Errorf("Body = %q, want %q", resp.Body, "recovered")
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("server saw %d requests, want 3", got)
	}
}

// TestFetchExhaustsRetries tests that a persistent 503 surfaces as a
// transient error after the full attempt budget.
func TestFetchExhaustsRetries(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := New(5*time.Second, WithRetryPolicy(fastRetry(3)))
	_, err := f.Fetch(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("Fetch() error = nil, want transient failure")
	}

	var fe *Error
	if !errors.As(err, &fe) {
		t.Fatalf("error is %T, want *Error", err)
	}
	if fe.Kind != KindTransient {
		t.Errorf("Kind = %v, want transient", fe.Kind)
	}
	if fe.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("StatusCode = %d, want 503", fe.StatusCode)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("server saw %d requests, want 3", got)
	}
}

// TestFetchFatalStatusNoRetry tests that a 404 fails immediately
// without consuming the retry budget.
func TestFetchFatalStatusNoRetry(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := New(5*time.Second, WithRetryPolicy(fastRetry(3)))
	_, err := f.Fetch(context.Background(), srv.URL)

	var fe *Error
	if !errors.As(err, &fe) {
		t.Fatalf("error is %T, want *Error", err)
	}
	if fe.Kind != KindFatal {
		t.Errorf("Kind = %v, want fatal", fe.Kind)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server saw %d requests, want 1", got)
	}
}

// TestFetchRateLimitRetried tests that 429 is treated as transient.
func TestFetchRateLimitRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := New(5*time.Second, WithRetryPolicy(fastRetry(2)))
	resp, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if string(resp.Body) != "ok" {
		t.Errorf("Body = %q, want %q", resp.Body, "ok")
	}
}

// TestFetchFollowsRedirects tests that FinalURL reflects the
// post-redirect location.
func TestFetchFollowsRedirects(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("moved here"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := New(5*time.Second, WithRetryPolicy(fastRetry(1)))
	resp, err := f.Fetch(context.Background(), srv.URL+"/old")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if resp.FinalURL != srv.URL+"/new" {
		t.Errorf("FinalURL = %q, want %q", resp.FinalURL, srv.URL+"/new")
	}
	if string(resp.Body) != "moved here" {
		t.Errorf("Body = %q, want redirect target content", resp.Body)
	}
}

// TestFetchRedirectLoop tests that an endless redirect chain errors
// out instead of spinning.
func TestFetchRedirectLoop(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, r.URL.Path+"x", http.StatusFound)
	}))
	defer srv.Close()

	f := New(5*time.Second, WithRetryPolicy(fastRetry(1)))
	if _, err := f.Fetch(context.Background(), srv.URL+"/a"); err == nil {
		t.Fatal("Fetch() error = nil, want redirect loop failure")
	}
}

// TestFetchContextCancellation tests that an expired context surfaces
// as a timeout error rather than a retried transient one.
func TestFetchContextCancellation(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	f := New(5*time.Second, WithRetryPolicy(fastRetry(3)))
	_, err := f.Fetch(ctx, srv.URL)

	var fe *Error
	if !errors.As(err, &fe) {
		t.Fatalf("error is %T, want *Error", err)
	}
	if fe.Kind != KindTimeout {
		t.Errorf("Kind = %v, want timeout", fe.Kind)
	}
}

// TestFetchBodySizeLimit tests that oversized bodies are truncated at
// the configured limit rather than read whole.
func TestFetchBodySizeLimit(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 1024)))
	}))
	defer srv.Close()

	f := New(5*time.Second, WithRetryPolicy(fastRetry(1)), WithMaxBodySize(100))
	resp, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(resp.Body) != 100 {
		t.Errorf("len(Body) = %d, want 100", len(resp.Body))
	}
}

// recordingCache captures Store calls for assertions.
type recordingCache struct {
	url  string
	body []byte
}

func (c *recordingCache) Store(finalURL string, body []byte) (string, error) {
	c.url = finalURL
	c.body = body
	return "ref-1", nil
}

// TestFetchStoresToCache tests that a configured cache receives the
// body and the reference is echoed in the response.
func TestFetchStoresToCache(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("cached content"))
	}))
	defer srv.Close()

	cache := &recordingCache{}
	f := New(5*time.Second, WithRetryPolicy(fastRetry(1)), WithCache(cache))
	resp, err := f.Fetch(context.Background(), srv.URL+"/p")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if resp.CacheRef != "ref-1" {
		t.Errorf("CacheRef = %q, want %q", resp.CacheRef, "ref-1")
	}
	if cache.url != srv.URL+"/p" {
		t.Errorf("cache saw URL %q, want %q", cache.url, srv.URL+"/p")
	}
	if string(cache.body) != "cached content" {
		t.Errorf("cache saw body %q, want page content", cache.body)
	}
}

// TestFetchSendsUserAgent tests that the browser identity header is
// present on outgoing requests.
func TestFetchSendsUserAgent(t *testing.T) {
	t.Parallel()

	var ua string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.UserAgent()
	}))
	defer srv.Close()

	f := New(5*time.Second, WithRetryPolicy(fastRetry(1)), WithUserAgent("sitemapdiff-test/1.0"))
	if _, err := f.Fetch(context.Background(), srv.URL); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if ua != "sitemapdiff-test/1.0" {
		t.Errorf("User-Agent = %q, want configured value", ua)
	}
}
