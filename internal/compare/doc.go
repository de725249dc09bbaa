// Package compare reconciles the sitemap-declared URL set against the
// crawl-reached URL set.
//
// The two directions of the set difference answer different questions:
// missing-from-sitemap is content the site serves but does not declare
// (SEO gaps, forgotten pages), missing-from-site is content the sitemap
// promises but the crawl cannot reach (dead entries, orphaned slugs).
// Optional filters suppress the structural noise that pagination and
// taxonomy archives add to the first list. A historical delta against
// the previous run turns the absolute lists into a change feed.
package compare
