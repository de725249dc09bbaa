// Package database provides the SQLite run index.
//
// The filesystem store is the source of truth for run artifacts; the
// database is a queryable index over run summaries so that history
// listings and cross-domain queries do not require walking the
// directory tree.
//
// Design decision: We use SQLite (via modernc.org/sqlite) instead of
// other databases because:
// 1. No external dependencies - the database is a single file
// 2. CGO-free implementation allows easy cross-compilation
// 3. Sufficient performance for our use case
// 4. WAL mode provides good concurrent read performance
package database
