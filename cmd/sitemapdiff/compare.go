package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sitemapdiff/sitemapdiff/internal/compare"
	"github.com/sitemapdiff/sitemapdiff/internal/config"
	"github.com/sitemapdiff/sitemapdiff/internal/database"
	"github.com/sitemapdiff/sitemapdiff/internal/model"
	"github.com/sitemapdiff/sitemapdiff/internal/store"
	"github.com/spf13/cobra"
)

// NewCompareCmd creates the compare command.
// This command diffs stored runs without re-scanning anything.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [domain]",
		Short: "Compare stored scan results for a domain",
		Long: `Compare diffs two persisted runs of the same domain and shows which
discrepancies are new and which were fixed between them.

By default the latest run is compared against the one before it. Use
--with-run to pick a different baseline. The comparison reads only the
persisted run directories; no network access happens.

Examples:
  # Compare the latest two runs for a domain
  sitemapdiff compare example.com

  # List all stored runs for a domain
  sitemapdiff compare --list example.com

  # Compare the latest run against a specific older run
  sitemapdiff compare --with-run 2026-08-01_09-00-00 example.com

  # Output the comparison in JSON format
  sitemapdiff compare --json example.com

  # List all domains with stored runs
  sitemapdiff compare --list-domains`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCompareCmd,
	}

	// History listing flags
	cmd.Flags().BoolP("list", "l", false,
		"List stored runs for the specified domain")
	cmd.Flags().BoolP("list-domains", "L", false,
		"List all domains with stored runs")

	// Comparison target flags
	cmd.Flags().StringP("with-run", "r", "",
		"Compare the latest run against this run timestamp (use --list to see them)")

	// Output format flags
	cmd.Flags().BoolP("json", "j", false,
		"Output comparison result in JSON format")

	// Data location
	cmd.Flags().StringP("output-dir", "o", "",
		"Root directory holding the run artifacts (default: XDG data directory)")

	return cmd
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) error {
	listDomains, err := cmd.Flags().GetBool("list-domains")
	if err != nil {
		return err
	}

	// Validate arguments before opening the database.
	var domain string
	if !listDomains {
		if len(args) == 0 {
			return errors.New("domain is required (use --list-domains to see stored domains)")
		}
		domain = strings.ToLower(args[0])
	}

	dataDir, err := cmd.Flags().GetString("output-dir")
	if err != nil {
		return err
	}
	if dataDir == "" {
		dataDir = config.XDGDataDir()
	}

	db, err := database.Open(dataDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open run database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()

	if listDomains {
		return listStoredDomains(ctx, db)
	}

	listRuns, err := cmd.Flags().GetBool("list")
	if err != nil {
		return err
	}
	if listRuns {
		return listRunHistory(ctx, db, domain)
	}

	withRun, err := cmd.Flags().GetString("with-run")
	if err != nil {
		return err
	}
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	return runComparison(store.New(dataDir), domain, withRun, jsonOutput)
}

// listStoredDomains lists every domain with at least one indexed run.
func listStoredDomains(ctx context.Context, db *database.RunDB) error {
	domains, err := db.ListDomains(ctx)
	if err != nil {
		return fmt.Errorf("failed to list domains: %w", err)
	}

	if len(domains) == 0 {
		fmt.Println("No stored runs found.")
		fmt.Println("\nUse 'sitemapdiff scan <start-url>' to scan a site.")
		return nil
	}

	fmt.Printf("Stored domains (%d):\n\n", len(domains))
	for _, domain := range domains {
		fmt.Printf("  • %s\n", domain)
	}
	fmt.Println("\nUse 'sitemapdiff compare --list <domain>' to see a domain's runs.")

	return nil
}

// listRunHistory lists all indexed runs for one domain.
func listRunHistory(ctx context.Context, db *database.RunDB, domain string) error {
	runs, err := db.History(ctx, domain)
	if err != nil {
		return fmt.Errorf("failed to get run history: %w", err)
	}

	if len(runs) == 0 {
		fmt.Printf("No stored runs found for %s\n", domain)
		fmt.Println("\nUse 'sitemapdiff scan' to scan this site.")
		return nil
	}

	fmt.Printf("Run history for %s (%d runs):\n\n", domain, len(runs))
	fmt.Printf("  %-20s  %8s  %8s  %8s  %8s\n",
		"Run", "Sitemap", "Crawled", "MissSM", "MissSite")
	fmt.Println("  " + strings.Repeat("-", 60))

	for _, r := range runs {
		fmt.Printf("  %-20s  %8d  %8d  %8d  %8d\n",
			r.Timestamp,
			r.SitemapCount,
			r.CrawledCount,
			r.MissingFromSitemap,
			r.MissingFromSite,
		)
	}

	fmt.Println("\nUse 'sitemapdiff compare <domain>' to compare the latest two runs.")
	fmt.Println("Use 'sitemapdiff compare --with-run <timestamp> <domain>' to pick the baseline.")

	return nil
}

// comparisonOutput is the JSON shape of a stored-run comparison.
type comparisonOutput struct {
	Domain    string                 `json:"domain"`
	Latest    string                 `json:"latest"`
	Baseline  string                 `json:"baseline"`
	Delta     *model.HistoricalDelta `json:"delta"`
	Unchanged bool                   `json:"unchanged"`
}

// runComparison diffs the latest stored run against a baseline.
func runComparison(st *store.Store, domain, withRun string, jsonOutput bool) error {
	runs, err := st.ListRuns(domain)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	if len(runs) == 0 {
		return fmt.Errorf("no stored runs for %s", domain)
	}
	if len(runs) < 2 && withRun == "" {
		return fmt.Errorf("comparison requires at least two runs for %s (found %d)", domain, len(runs))
	}

	latest := runs[len(runs)-1]
	var baseline string
	if withRun != "" {
		baseline = withRun
		if baseline == latest {
			return errors.New("baseline run and latest run are the same")
		}
	} else {
		baseline = runs[len(runs)-2]
	}

	current, err := readMissingLists(st, domain, latest)
	if err != nil {
		return err
	}
	previous, err := readMissingLists(st, domain, baseline)
	if err != nil {
		return err
	}

	delta := compare.Delta(current, previous.MissingFromSitemap, previous.MissingFromSite, baseline)
	out := &comparisonOutput{
		Domain:    domain,
		Latest:    latest,
		Baseline:  baseline,
		Delta:     delta,
		Unchanged: len(delta.MissingFromSitemap) == 0 && len(delta.MissingFromSite) == 0,
	}

	if jsonOutput {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(out)
	}

	printComparison(out)
	return nil
}

// readMissingLists loads one run's persisted discrepancy lists.
func readMissingLists(st *store.Store, domain, timestamp string) (*model.ComparisonReport, error) {
	rs, err := st.OpenRun(domain, timestamp)
	if err != nil {
		return nil, err
	}

	missingFromSitemap, err := rs.ReadEntries(store.MissingFromSitemapFile)
	if err != nil {
		return nil, err
	}
	missingFromSite, err := rs.ReadEntries(store.MissingFromSiteFile)
	if err != nil {
		return nil, err
	}

	return &model.ComparisonReport{
		MissingFromSitemap: missingFromSitemap,
		MissingFromSite:    missingFromSite,
	}, nil
}

// printComparison writes the human-readable comparison.
func printComparison(out *comparisonOutput) {
	fmt.Printf("Comparing %s: %s (baseline) -> %s (latest)\n\n", out.Domain, out.Baseline, out.Latest)

	if out.Unchanged {
		fmt.Println("No changes between the two runs.")
		return
	}

	printDeltaList("Missing from sitemap", out.Delta.MissingFromSitemap)
	printDeltaList("Missing from site", out.Delta.MissingFromSite)
}

// printDeltaList writes one direction of the comparison.
func printDeltaList(title string, entries []model.DeltaEntry) {
	if len(entries) == 0 {
		fmt.Printf("%s: no changes\n\n", title)
		return
	}

	fmt.Printf("%s:\n", title)
	for _, e := range entries {
		fmt.Printf("  [%s] %s\n", e.Status, e.URL)
	}
	fmt.Println()
}
