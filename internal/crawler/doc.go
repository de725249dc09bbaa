// Package crawler discovers the reachable page set of a site by
// breadth-first link traversal from a seed URL.
//
// A bounded pool of workers fetches pages concurrently. The frontier
// admits each canonical URL at most once and enforces the page budget,
// so the traversal terminates even on sites with infinite URL spaces
// (calendars, faceted search). Individual page failures are recorded
// and never abort the crawl.
package crawler
