package urlnorm

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// defaultStripParams are query parameters removed during normalization
// because they never change the resource identity. Parameters with the
// "utm_" prefix are stripped regardless of this list.
var defaultStripParams = []string{
	"fbclid",
	"gclid",
	"msclkid",
	"mc_cid",
	"mc_eid",
	"replytocom",
}

// skippedExtensions is the denylist of non-content file extensions.
// URLs whose path ends in one of these are rejected so that asset
// references never enter the comparison sets.
var skippedExtensions = map[string]bool{
	// Images
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".svg": true, ".webp": true, ".ico": true, ".bmp": true,
	// Stylesheets and scripts
	".css": true, ".js": true, ".mjs": true, ".map": true,
	// Fonts
	".woff": true, ".woff2": true, ".ttf": true, ".eot": true, ".otf": true,
	// Media
	".mp3": true, ".mp4": true, ".webm": true, ".avi": true, ".mov": true,
	// Archives and binaries
	".zip": true, ".gz": true, ".tgz": true, ".rar": true, ".7z": true,
	".exe": true, ".dmg": true,
	// Documents
	".pdf": true, ".doc": true, ".docx": true, ".xls": true,
	".xlsx": true, ".ppt": true, ".pptx": true,
}

// Normalizer converts raw URLs into their canonical string form and
// enforces scope: only http(s) URLs on the target domain that do not
// match the extension denylist are accepted.
//
// Design decision: Normalize returns (string, bool) rather than an
// error because rejection is the expected outcome for a large share of
// inputs (off-domain links, asset references, mailto:). Callers count
// rejects for diagnostics but never treat them as failures.
//
// A Normalizer is immutable after construction and therefore safe for
// concurrent use by crawl workers without synchronization.
type Normalizer struct {
	// domain is the lowercased target host (including any
	// non-default port) that in-scope URLs must match.
	domain string

	// stripParams holds exact query parameter names to remove.
	stripParams map[string]bool
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithStripParams adds query parameter names to strip beyond the
// defaults. Matching is exact and case-sensitive, following the
// convention that tracking parameters are lowercase.
func WithStripParams(params []string) Option {
	return func(n *Normalizer) {
		for _, p := range params {
			n.stripParams[p] = true
		}
	}
}

// New creates a Normalizer scoped to the domain of targetURL.
func New(targetURL string, opts ...Option) (*Normalizer, error) {
	u, err := url.Parse(targetURL)
	if err != nil {
		return nil, fmt.Errorf("invalid target URL: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("target URL %q has no host", targetURL)
	}

	n := &Normalizer{
		domain:      normalizeHost(u.Scheme, u.Host),
		stripParams: make(map[string]bool),
	}
	for _, p := range defaultStripParams {
		n.stripParams[p] = true
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Domain returns the lowercased target host this Normalizer is scoped to.
func (n *Normalizer) Domain() string {
	return n.domain
}

// Normalize resolves raw against base and returns the canonical form.
// The second return value is false when the URL is out of scope:
// unparseable, non-http(s), off-domain, or a non-content asset.
//
// base may be nil, in which case raw must be absolute.
func (n *Normalizer) Normalize(raw string, base *url.URL) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "#" {
		return "", false
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	if base != nil {
		u = base.ResolveReference(u)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", false
	}

	host := normalizeHost(scheme, u.Host)
	if host != n.domain {
		return "", false
	}

	// Parsing and re-encoding through net/url canonicalizes
	// percent-encoding in the path.
	cleanPath := u.EscapedPath()
	if cleanPath == "" {
		cleanPath = "/"
	}
	if ext := strings.ToLower(path.Ext(u.Path)); skippedExtensions[ext] {
		return "", false
	}
	// Trailing-slash rule: strip unless the path is the root. Both
	// pipelines apply this through the shared instance, so the rule
	// only has to be consistent, not configurable.
	if cleanPath != "/" {
		cleanPath = strings.TrimSuffix(cleanPath, "/")
	}

	canonical := url.URL{
		Scheme:   scheme,
		Host:     host,
		Path:     "", // set via RawPath below to keep encoding exact
		RawQuery: n.normalizeQuery(u.Query()),
	}
	canonical.Path, canonical.RawPath = decodePath(cleanPath)

	return canonical.String(), true
}

// NormalizeAbsolute is Normalize with no base URL, for inputs that are
// already absolute (sitemap <loc> values, seed URLs).
func (n *Normalizer) NormalizeAbsolute(raw string) (string, bool) {
	return n.Normalize(raw, nil)
}

// normalizeQuery strips tracking parameters and re-encodes the rest.
// url.Values.Encode sorts by key, which gives the stable representation
// the comparison depends on.
func (n *Normalizer) normalizeQuery(q url.Values) string {
	for key := range q {
		if n.stripParams[key] || strings.HasPrefix(key, "utm_") {
			q.Del(key)
		}
	}
	return q.Encode()
}

// normalizeHost lowercases the host and strips the scheme's default port.
func normalizeHost(scheme, host string) string {
	host = strings.ToLower(host)
	switch scheme {
	case "http":
		host = strings.TrimSuffix(host, ":80")
	case "https":
		host = strings.TrimSuffix(host, ":443")
	}
	return host
}

// decodePath returns the decoded path and, when the decoded form would
// not re-encode identically, the original escaped form as RawPath. This
// mirrors how net/url tracks the two representations.
func decodePath(escaped string) (string, string) {
	decoded, err := url.PathUnescape(escaped)
	if err != nil {
		return escaped, ""
	}
	tmp := url.URL{Path: decoded}
	if tmp.EscapedPath() == escaped {
		return decoded, ""
	}
	return decoded, escaped
}
