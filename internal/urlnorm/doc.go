// Package urlnorm produces the canonical string form of URLs.
//
// Every other component compares URLs through this package: the sitemap
// resolver, the crawler, and the reconciler all share one Normalizer
// instance, so two spellings of the same resource always collapse to an
// identical string. The whole comparison is only as correct as this
// invariant.
package urlnorm
