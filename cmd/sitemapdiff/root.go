// Package main provides the entry point for the sitemapdiff CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for sitemapdiff.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sitemapdiff",
		Short: "Compare a site's sitemap against a crawl of the site",
		Long: `sitemapdiff discovers a site's sitemap, crawls the site from a seed URL,
and reports the discrepancies between the two: pages the crawl reached
that the sitemap does not declare, and URLs the sitemap declares that
the crawl could not reach.

Every scan is persisted, so consecutive scans of the same site also
report which discrepancies are new and which were fixed.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewScanCmd())
	cmd.AddCommand(NewCompareCmd())
	cmd.AddCommand(NewReportCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
