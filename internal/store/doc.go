// Package store persists scan runs on the filesystem.
//
// Each run lives in its own directory under
// <root>/sites/<domain>/<timestamp>/, holding the discrepancy CSVs, the
// historical comparison CSVs, the run metadata JSON, and the content
// caches. Timestamps are formatted so lexicographic directory order is
// chronological order, which makes previous-run lookup a directory
// listing plus a sort.
package store
