package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for jobharvest.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobharvest",
		Short: "Collect job postings from apec.fr",
		Long: `jobharvest collects job postings from apec.fr.

Each run tries the JSON API first and falls back to the HTML search pages
when the API fails on its first page or returns nothing. Records are
deduplicated across both channels and stored in a local SQLite database,
a JSON-lines file or PostgreSQL.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")

	cmd.AddCommand(NewHarvestCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
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
