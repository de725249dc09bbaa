// Package report renders scan results for humans and tooling.
//
// This package contains writers for different output formats:
//   - SimpleWriter: Human-readable text output for terminal display
//   - MarkdownWriter: Markdown summary for documentation and sharing
//   - JSONWriter: Structured JSON output for tool integration
//   - Dashboard: Static HTML pages generated from the persisted run tree
//
// Design decision: We separate report writing from report data structures
// (which are in the model package) to follow the single responsibility
// principle. Writers consume a completed RunResult; the Dashboard reads
// only the files the store persisted, so it can be regenerated at any
// time without re-scanning.
package report
