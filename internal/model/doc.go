// Package model defines the core data structures shared across sitemapdiff:
// canonical URL sets with source attribution, per-page crawl records, run
// results, and comparison reports.
//
// The types in this package are plain data. All behavior that mutates them
// concurrently (the crawl frontier, the worker pool) lives in the packages
// that own the synchronization.
package model
