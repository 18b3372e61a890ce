// Package main is the entry point for the pageblocks CLI.
//
// pageblocks can be used either as a library (SDK) or as a standalone binary
// with YAML configuration. This CLI provides the standalone binary approach.
//
// Usage:
//
//	pageblocks serve -c config.yaml              # Serve rendered pages and the dashboard
//	pageblocks render -c config.yaml /en/page    # Render one page to stdout
//	pageblocks import page.html --url <url>      # Convert a legacy page to Markdown
//	pageblocks validate -c config.yaml           # Validate configuration
//	pageblocks version                           # Show version info
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set by GoReleaser at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "pageblocks",
	Short: "Server-side renderer for block based sites",
	Long: `pageblocks renders pages of a block based site on the server.

It fetches authored pages from the content origin, decorates their blocks
in eager, lazy and delayed phases and serves the result, together with a
live dashboard of every block's load status.

Quick start:
  1. Create a config file (pageblocks.yaml)
  2. Run: pageblocks serve -c pageblocks.yaml
  3. Open http://localhost:8080/_dashboard in your browser

Example config:
  port: 8080
  origin: https://main--blog--acme.hlx.page
  production_domains: [blog.acme.com]`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// newLogger creates a JSON logger for CLI use.
func newLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelInfo
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: level,
	}))
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this pageblocks binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "pageblocks %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.PersistentFlags().Bool("debug", false, "log at debug level")
	rootCmd.AddCommand(versionCmd)
}
