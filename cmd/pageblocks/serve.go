package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/pageblocks"
	"github.com/jpalmerr/pageblocks/config"
)

const (
	shutdownTimeout = 10 * time.Second
)

// serveCmd starts the rendering server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve rendered pages and the dashboard",
	Long: `Start the pageblocks server.

The server will:
  - Load configuration from the specified YAML file
  - Render every requested path from the content origin
  - Serve the block dashboard on /_dashboard

The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  pageblocks serve -c config.yaml
  pageblocks serve --config /etc/pageblocks/config.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = serveCmd.MarkFlagRequired("config")
}

// newRenderer loads the config file named by the command's --config flag
// and creates a renderer from it.
func newRenderer(cmd *cobra.Command) (*pageblocks.Renderer, *config.Config, error) {
	logger := newLogger(cmd)

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger.Debug("config loaded", "origin", cfg.Origin, "port", cfg.Port)

	opts := config.BuildOptions(cfg)
	opts = append(opts, pageblocks.WithLogger(logger))

	r, err := pageblocks.New(opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create renderer: %w", err)
	}
	return r, cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger(cmd)

	r, cfg, err := newRenderer(cmd)
	if err != nil {
		return err
	}
	defer r.Close()

	logger.Info("starting server",
		"port", cfg.Port,
		"origin", cfg.Origin,
		"timeout", cfg.Timeout.Duration().String(),
	)

	// set up context with signal handling - cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// start server - blocks until context cancelled
	errChan := make(chan error, 1)
	go func() {
		errChan <- r.Start(ctx)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		// signal received, wait for graceful shutdown with timeout
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}
