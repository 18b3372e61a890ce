package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// renderCmd renders a single page.
var renderCmd = &cobra.Command{
	Use:   "render <path>",
	Short: "Render one page to stdout",
	Long: `Render one page of the content origin and print the decorated document.

The path may carry a query, e.g. "/en/page?delayed=off". The block summary
is logged to stderr.

Example:
  pageblocks render -c config.yaml /en/publications/market-outlook
  pageblocks render -c config.yaml --wait-delayed /en/publications/market-outlook`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	renderCmd.Flags().Bool("wait-delayed", false, "wait for the delayed phase before printing")
	_ = renderCmd.MarkFlagRequired("config")
}

func runRender(cmd *cobra.Command, args []string) error {
	logger := newLogger(cmd)

	wait, _ := cmd.Flags().GetBool("wait-delayed")
	r, _, err := newRenderer(cmd)
	if err != nil {
		return err
	}
	defer r.Close()

	ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := r.Render(ctx, args[0])
	if err != nil {
		return err
	}
	if wait {
		select {
		case <-res.Delayed():
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for _, b := range res.Blocks() {
		attrs := []any{"index", b.Index, "block", b.Name, "status", b.Status.String(), "decorated", b.Decorated}
		if b.Error != nil {
			attrs = append(attrs, "error", b.Error.Error())
		}
		logger.Info("block", attrs...)
	}

	if err := res.Render(cmd.OutOrStdout()); err != nil {
		return fmt.Errorf("failed to write page: %w", err)
	}
	return nil
}

// commandContext returns the command context or a background context for
// commands executed without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
