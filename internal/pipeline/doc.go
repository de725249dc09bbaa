// Package pipeline orchestrates the stages of a scan.
//
// A scan runs four stages in sequence: sitemap resolution, crawling,
// reconciliation, and persistence. Each stage is implemented as a Step
// that receives the accumulating RunResult.
//
// Design decision: We use a pipeline pattern instead of direct function
// calls because:
// 1. It allows easy addition/removal of steps without modifying core logic
// 2. It provides consistent error handling and logging across steps
// 3. It supports cancellation via context for long-running scans
//
// The pipeline supports both individual scans and batch processing of
// multiple targets with concurrency control using errgroup.
package pipeline
