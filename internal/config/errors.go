package config

import "errors"

// Configuration validation errors.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to
// use errors.Is() for programmatic error handling while still providing
// human-readable messages.
var (
	// ErrNoTarget is returned when no target site URL is specified.
	ErrNoTarget = errors.New("no target specified: provide at least one site URL")

	// ErrSitemapURLWithMultipleTargets is returned when an explicit
	// sitemap URL is combined with more than one target. An explicit
	// sitemap can only describe one site.
	ErrSitemapURLWithMultipleTargets = errors.New("explicit sitemap URL requires exactly one target")

	// ErrInvalidWorkers is returned when the worker count is not
	// positive. Zero workers would mean no crawling.
	ErrInvalidWorkers = errors.New("invalid workers: must be positive")

	// ErrInvalidTimeout is returned when a timeout is not positive.
	// A zero timeout would cause immediate failures.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidBatchSize is returned when the batch size is not
	// positive. Zero would mean no targets get scanned.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidMaxPages is returned when the page budget is negative.
	// Use 0 for an unlimited crawl.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is
	// negative. Use 0 to use the default limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")
)
