// Package fetcher provides the single HTTP retrieval primitive shared
// by the sitemap resolver and the crawler.
//
// All retry, backoff, and redirect behavior lives here so that no call
// site duplicates transport policy. Failures are classified into kinds
// (transient, fatal, timeout) that callers inspect with errors.As.
package fetcher
