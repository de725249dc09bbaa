package main

import (
	"fmt"

	"github.com/sitemapdiff/sitemapdiff/internal/config"
	"github.com/sitemapdiff/sitemapdiff/internal/log"
	"github.com/sitemapdiff/sitemapdiff/internal/report"
	"github.com/sitemapdiff/sitemapdiff/internal/store"
	"github.com/spf13/cobra"
)

// NewReportCmd creates the report command.
func NewReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate the HTML dashboard from stored runs",
		Long: `Report renders static HTML pages from the persisted run tree: an index
of scanned domains, a scan history page per domain, and a detail page
per scan with the discrepancy tables and new/fixed markers.

The dashboard reads only the persisted files, so it can be regenerated
at any time without re-scanning.

Examples:
  # Render the dashboard into ./reports
  sitemapdiff report

  # Render from a custom data directory
  sitemapdiff report --sites-dir /var/lib/sitemapdiff --output-dir /srv/www/sitemapdiff`,
		Args: cobra.NoArgs,
		RunE: runReportCmd,
	}

	cmd.Flags().StringP("output-dir", "o", "reports",
		"Directory to write the generated HTML pages into")
	cmd.Flags().StringP("sites-dir", "s", "",
		"Root directory holding the run artifacts (default: XDG data directory)")

	return cmd
}

// runReportCmd executes the report command.
func runReportCmd(cmd *cobra.Command, _ []string) error {
	outputDir, err := cmd.Flags().GetString("output-dir")
	if err != nil {
		return err
	}
	sitesDir, err := cmd.Flags().GetString("sites-dir")
	if err != nil {
		return err
	}
	if sitesDir == "" {
		sitesDir = config.XDGDataDir()
	}

	logger := log.NewLogger(cmd.ErrOrStderr(), getVerboseFlag(cmd))

	dashboard := report.NewDashboard(
		store.New(sitesDir, store.WithStoreLogger(logger)),
		outputDir,
		report.WithDashboardLogger(logger),
	)

	pages, err := dashboard.Generate()
	if err != nil {
		return fmt.Errorf("failed to generate dashboard: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Generated %d page(s) under %s\n", pages, outputDir)
	return nil
}
