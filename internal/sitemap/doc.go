// Package sitemap locates and parses XML sitemaps.
//
// Resolution handles the three ways sites publish sitemaps: an explicit
// URL given by the operator, Sitemap directives in robots.txt, and the
// conventional well-known paths. Sitemap index files are followed
// recursively with cycle and depth protection. Documents that are not
// well-formed XML fall back to a lenient text extraction so that one
// unclosed tag does not hide an entire site section.
package sitemap
