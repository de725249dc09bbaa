// Package main provides the entry point for the sitemapdiff CLI.
//
// sitemapdiff compares what a site's sitemap declares against what a
// crawl of the site actually reaches, and reports the discrepancies in
// both directions.
//
// Usage:
//
//	sitemapdiff scan <start-url>
//	sitemapdiff compare <domain>
//	sitemapdiff report
//
// See --help for all available options.
package main

// main is the entry point for sitemapdiff.
func main() {
	Execute()
}
