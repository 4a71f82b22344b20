package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for Scoutly.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scoutly",
		Short: "Website crawler for broken links and SEO issues",
		Long: `Scoutly crawls a website breadth-first, checks every link it finds and
reports broken links, redirects and on-page SEO issues.

Crawls are polite by default: robots.txt is honoured and an optional
rate limit caps requests per second. Finished crawls are kept in a local
history database so consecutive crawls of a site can be compared.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewCrawlCmd())
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
