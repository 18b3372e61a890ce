package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/pageblocks/importer"
)

// importCmd converts a legacy page to Markdown.
var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Convert a legacy page to Markdown",
	Long: `Convert a saved page of the legacy site into authored Markdown.

The legacy header, footer and page chrome are removed and the title,
description and publication date are kept in a Metadata table. Use "-" to
read the page from stdin.

Without --out the Markdown is printed. With --out it is written to
<out>/<document path>.md, where the document path is the URL path without
.html and the trailing slash.

Example:
  pageblocks import saved.html --url https://www.acme.com/en/insights/outlook.html
  curl -s https://www.acme.com/en/insights/outlook.html | pageblocks import - --url https://www.acme.com/en/insights/outlook.html -o content`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().String("url", "", "source URL of the page (required)")
	importCmd.Flags().StringP("out", "o", "", "output directory")
	_ = importCmd.MarkFlagRequired("url")
}

func runImport(cmd *cobra.Command, args []string) error {
	logger := newLogger(cmd)
	pageURL, _ := cmd.Flags().GetString("url")
	outDir, _ := cmd.Flags().GetString("out")

	var in io.Reader = cmd.InOrStdin()
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open page: %w", err)
		}
		defer f.Close()
		in = f
	}

	doc, err := importer.New(logger).Import(in, pageURL)
	if err != nil {
		return err
	}

	if outDir == "" {
		_, err := io.WriteString(cmd.OutOrStdout(), doc.Markdown)
		return err
	}

	name := doc.Path
	if name == "" {
		name = "/index"
	}
	target := filepath.Join(outDir, filepath.FromSlash(name)+".md")
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(target, []byte(doc.Markdown), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	logger.Info("page imported", "path", doc.Path, "file", target)
	return nil
}
