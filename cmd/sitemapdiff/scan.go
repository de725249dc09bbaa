package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/sitemapdiff/sitemapdiff/internal/compare"
	"github.com/sitemapdiff/sitemapdiff/internal/config"
	"github.com/sitemapdiff/sitemapdiff/internal/database"
	"github.com/sitemapdiff/sitemapdiff/internal/fetcher"
	"github.com/sitemapdiff/sitemapdiff/internal/log"
	"github.com/sitemapdiff/sitemapdiff/internal/model"
	"github.com/sitemapdiff/sitemapdiff/internal/pipeline"
	"github.com/sitemapdiff/sitemapdiff/internal/report"
	"github.com/sitemapdiff/sitemapdiff/internal/store"
	"github.com/sitemapdiff/sitemapdiff/internal/urlnorm"
	"github.com/spf13/cobra"
)

// outputOptions selects the scan summary's format and destination.
type outputOptions struct {
	json     bool
	markdown bool
	file     string
}

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <start-url> [start-url...]",
		Short: "Scan a site and compare its sitemap against a crawl",
		Long: `Scan resolves the target's sitemap, crawls the site from the start URL,
and reports URLs present in one but not the other.

Each run is persisted under the output directory as
sites/<domain>/<timestamp>/ with the full URL lists, the discrepancy
CSVs, and a cache of every fetched page. When a previous run exists for
the same domain, the scan also reports which discrepancies are new and
which were fixed.

Examples:
  # Scan a single site
  sitemapdiff scan https://example.com

  # Scan several sites concurrently
  sitemapdiff scan https://example.com https://other.org

  # Pin the sitemap location instead of discovering it
  sitemapdiff scan --sitemap-url https://example.com/custom.xml https://example.com

  # Ignore pagination and taxonomy archives in the results
  sitemapdiff scan --ignore-pagination --ignore-categories-tags https://example.com

Configuration file (.sitemapdiff) example:
  defaults:
    maxPages: 2000
  sites:
    example.com:
      sitemapUrl: https://example.com/custom.xml
      stripParams:
        - session`,
		Args: cobra.ArbitraryArgs,
		RunE: runScanCmd,
	}

	// Scan behavior flags
	cmd.Flags().StringP("sitemap-url", "s", "",
		"Explicit sitemap URL, skipping discovery (single target only)")
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers,
		"Number of concurrent crawl workers per target")
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of pages to crawl per target (0 = unlimited)")
	cmd.Flags().IntP("depth", "d", 0,
		"Maximum crawl recursion depth (0 = unlimited)")
	cmd.Flags().DurationP("task-timeout", "t", config.DefaultTaskTimeout,
		"Per-page budget covering fetch, retries, and parse")

	// Comparison flags
	cmd.Flags().Bool("compare-previous", true,
		"Report new/fixed discrepancies against the previous run")
	cmd.Flags().Bool("ignore-pagination", false,
		"Drop paginated archive URLs from the missing-from-sitemap list")
	cmd.Flags().Bool("ignore-categories-tags", false,
		"Drop category/tag archive URLs from the missing-from-sitemap list")

	// Persistence flags
	cmd.Flags().StringP("output-dir", "o", "",
		"Root directory for run artifacts (default: XDG data directory)")
	cmd.Flags().Bool("compress-cache", true,
		"Gzip cached page bodies")

	// Batch scanning flags
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of concurrent target scans")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .sitemapdiff in current or home directory)")

	// Summary output flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON summary (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown summary (mutually exclusive with --json)")
	cmd.Flags().String("report-file", "",
		"Write the summary to the specified file instead of stdout")

	return cmd
}

// runScanCmd executes the scan command.
func runScanCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	out, err := buildOutputOptions(cmd)
	if err != nil {
		return err
	}

	logger := log.NewLogger(os.Stderr, cfg.Verbose)
	slog.SetDefault(logger)

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, cancelling...")
		cancel()
	}()

	return runScan(ctx, cfg, out, logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()

	var err error

	cfg.SitemapURL, err = cmd.Flags().GetString("sitemap-url")
	if err != nil {
		return nil, err
	}
	cfg.Workers, err = cmd.Flags().GetInt("workers")
	if err != nil {
		return nil, err
	}
	cfg.MaxPages, err = cmd.Flags().GetInt("max-pages")
	if err != nil {
		return nil, err
	}
	cfg.MaxDepth, err = cmd.Flags().GetInt("depth")
	if err != nil {
		return nil, err
	}
	cfg.TaskTimeout, err = cmd.Flags().GetDuration("task-timeout")
	if err != nil {
		return nil, err
	}
	cfg.ComparePrevious, err = cmd.Flags().GetBool("compare-previous")
	if err != nil {
		return nil, err
	}
	cfg.IgnorePagination, err = cmd.Flags().GetBool("ignore-pagination")
	if err != nil {
		return nil, err
	}
	cfg.IgnoreTaxonomy, err = cmd.Flags().GetBool("ignore-categories-tags")
	if err != nil {
		return nil, err
	}
	cfg.CompressCache, err = cmd.Flags().GetBool("compress-cache")
	if err != nil {
		return nil, err
	}
	cfg.BatchSize, err = cmd.Flags().GetInt("batch")
	if err != nil {
		return nil, err
	}
	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	outputDir, err := cmd.Flags().GetString("output-dir")
	if err != nil {
		return nil, err
	}
	if outputDir != "" {
		cfg.OutputDir = outputDir
	}

	// Load site-specific configurations from config file.
	// If user explicitly specified a config file path, error if not found.
	// If no path specified, silently use empty config if no file found.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	if configPath != "" {
		cfg.SiteConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	} else if explicitConfigPath {
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	} else {
		cfg.SiteConfigs = &config.File{
			Sites: make(map[string]config.SiteConfig),
		}
	}

	cfg.Verbose = getVerboseFlag(cmd)

	// The run index lives next to the run artifacts.
	cfg.DBDir = cfg.OutputDir

	// Positional arguments are the seed URLs.
	cfg.Targets = make([]string, len(args))
	for i, target := range args {
		cfg.Targets[i] = normalizeTarget(target)
	}

	return cfg, nil
}

// buildOutputOptions reads the summary format flags.
func buildOutputOptions(cmd *cobra.Command) (*outputOptions, error) {
	out := &outputOptions{}

	var err error
	out.json, err = cmd.Flags().GetBool("json")
	if err != nil {
		return nil, err
	}
	out.markdown, err = cmd.Flags().GetBool("markdown")
	if err != nil {
		return nil, err
	}
	out.file, err = cmd.Flags().GetString("report-file")
	if err != nil {
		return nil, err
	}

	if out.json && out.markdown {
		return nil, fmt.Errorf("--json and --markdown are mutually exclusive")
	}
	return out, nil
}

// normalizeTarget adds an https scheme to bare domains.
func normalizeTarget(target string) string {
	if strings.Contains(target, "://") {
		return target
	}
	return "https://" + target
}

// runScan executes the scan for all targets.
func runScan(ctx context.Context, cfg *config.Config, out *outputOptions, logger *slog.Logger) error {
	logger.Info("starting scan",
		"targets", cfg.Targets,
		"outputDir", cfg.OutputDir,
		"batchSize", cfg.BatchSize,
	)

	if err := os.MkdirAll(cfg.DBDir, 0o750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	db, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open run database: %w", err)
	}
	defer db.Close()

	st := store.New(cfg.OutputDir,
		store.WithCompression(cfg.CompressCache),
		store.WithStoreLogger(logger),
	)

	if len(cfg.Targets) > 1 && cfg.BatchSize > 1 {
		return runBatchScan(ctx, cfg, st, db, out, logger)
	}
	return runSequentialScan(ctx, cfg, st, db, out, logger)
}

// runSequentialScan scans targets one at a time. A failed target is
// reported and the remaining targets still run; the first failure is
// returned so the process exits non-zero.
func runSequentialScan(ctx context.Context, cfg *config.Config, st *store.Store, db *database.RunDB, out *outputOptions, logger *slog.Logger) error {
	var firstErr error
	for _, target := range cfg.Targets {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		p, run, err := buildTargetPipeline(cfg, st, db, logger, target)
		if err != nil {
			logger.Error("failed to prepare scan", "target", target, "error", err)
			fmt.Fprintf(os.Stderr, "Scan error for %s: %v\n", target, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		fmt.Printf("Scanning %s...\n", target)
		startTime := time.Now()

		if err := p.Execute(ctx, run); err != nil {
			logger.Error("scan failed", "target", target, "error", err)
			fmt.Fprintf(os.Stderr, "Scan error for %s: %v\n", target, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		fmt.Printf("Scan completed in %s\n\n", time.Since(startTime).Round(time.Millisecond))

		if err := outputRun(out, run); err != nil {
			logger.Error("summary output failed", "target", target, "error", err)
		}
	}

	return firstErr
}

// runBatchScan scans multiple targets concurrently using BatchProcessor.
func runBatchScan(ctx context.Context, cfg *config.Config, st *store.Store, db *database.RunDB, out *outputOptions, logger *slog.Logger) error {
	fmt.Printf("Starting batch scan of %d targets (concurrency: %d)...\n\n",
		len(cfg.Targets), cfg.BatchSize)

	startTime := time.Now()

	bp := pipeline.NewBatchProcessor(
		func(target string) (*pipeline.Pipeline, *model.RunResult, error) {
			return buildTargetPipeline(cfg, st, db, logger, target)
		},
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	var mu sync.Mutex
	err := bp.ProcessBatchWithCallback(ctx, cfg.Targets, func(run *model.RunResult, index int) {
		mu.Lock()
		defer mu.Unlock()

		fmt.Printf("[%d/%d] Scan completed: %s\n", index+1, len(cfg.Targets), run.Domain)

		if err := outputRun(out, run); err != nil {
			logger.Error("summary output failed", "target", run.Domain, "error", err)
		}
	})

	fmt.Printf("\nBatch scan completed in %s\n", time.Since(startTime).Round(time.Millisecond))
	return err
}

// buildTargetPipeline wires a complete scan pipeline for one target:
// normalizer scoped to the target's domain, fetchers bound to the new
// run directory's caches, and the four pipeline steps.
func buildTargetPipeline(cfg *config.Config, st *store.Store, db *database.RunDB, logger *slog.Logger, target string) (*pipeline.Pipeline, *model.RunResult, error) {
	siteCfg := cfg.SiteConfigs.GetSiteConfig(domainOf(target))

	var normOpts []urlnorm.Option
	if len(siteCfg.StripParams) > 0 {
		normOpts = append(normOpts, urlnorm.WithStripParams(siteCfg.StripParams))
	}
	norm, err := urlnorm.New(target, normOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid target %q: %w", target, err)
	}

	run := model.NewRunResult(norm.Domain(), target)
	rs, err := st.CreateRun(run.Domain, run.TimestampDir())
	if err != nil {
		return nil, nil, err
	}

	fetchOpts := []fetcher.FetcherOption{fetcher.WithLogger(logger)}
	if cfg.UserAgent != "" {
		fetchOpts = append(fetchOpts, fetcher.WithUserAgent(cfg.UserAgent))
	}
	if cfg.MaxBodySize > 0 {
		fetchOpts = append(fetchOpts, fetcher.WithMaxBodySize(cfg.MaxBodySize))
	}

	// Sitemap fetches skip the content cache; the resolver stores raw
	// documents through its own cache.
	sitemapFetcher := fetcher.New(cfg.FetchTimeout, fetchOpts...)
	crawlFetcher := fetcher.New(cfg.FetchTimeout,
		append(fetchOpts, fetcher.WithCache(rs.ContentCache()))...)

	sitemapURL := cfg.SitemapURL
	if siteCfg.SitemapURL != "" {
		sitemapURL = siteCfg.SitemapURL
	}
	workers := cfg.Workers
	if siteCfg.Workers > 0 {
		workers = siteCfg.Workers
	}
	maxPages := cfg.MaxPages
	if siteCfg.MaxPages > 0 {
		maxPages = siteCfg.MaxPages
	}

	reconcileOpts := []pipeline.ReconcileStepOption{
		pipeline.WithReconcileLogger(logger),
	}
	if cfg.ComparePrevious {
		reconcileOpts = append(reconcileOpts, pipeline.WithPreviousRunStore(st))
	}

	p := pipeline.New(pipeline.WithLogger(logger))
	p.AddSteps(
		pipeline.NewResolveSitemapStep(sitemapFetcher, norm,
			pipeline.WithExplicitSitemapURL(sitemapURL),
			pipeline.WithSitemapRawCache(rs.XMLCache()),
			pipeline.WithResolveLogger(logger),
		),
		pipeline.NewCrawlStep(crawlFetcher, norm,
			pipeline.WithCrawlWorkers(workers),
			pipeline.WithCrawlMaxPages(maxPages),
			pipeline.WithCrawlMaxDepth(cfg.MaxDepth),
			pipeline.WithCrawlTaskTimeout(cfg.TaskTimeout),
			pipeline.WithCrawlLogger(logger),
		),
		pipeline.NewReconcileStep(
			compare.NewReconciler(
				compare.WithIgnorePagination(cfg.IgnorePagination),
				compare.WithIgnoreTaxonomy(cfg.IgnoreTaxonomy),
				compare.WithReconcilerLogger(logger),
			),
			reconcileOpts...,
		),
		pipeline.NewPersistStep(rs,
			pipeline.WithRunDB(db),
			pipeline.WithPersistLogger(logger),
		),
	)
	return p, run, nil
}

// domainOf extracts the bare domain used as the site-config key.
func domainOf(target string) string {
	rest := target
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		rest = rest[:i]
	}
	return strings.ToLower(rest)
}

// outputRun writes the run summary in the requested format.
func outputRun(out *outputOptions, run *model.RunResult) error {
	var output *os.File
	if out.file != "" {
		dir := filepath.Dir(out.file)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		f, err := os.OpenFile(out.file, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	} else {
		output = os.Stdout
	}

	var w report.Writer
	switch {
	case out.json:
		w = report.NewJSONWriter(output, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case out.markdown:
		w = report.NewMarkdownWriter(output)
	default:
		w = report.NewSimpleWriter(output)
	}

	_, err := w.Write(run)
	return err
}
