package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/pageblocks"
	"github.com/jpalmerr/pageblocks/example/site"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	// start the demo content origin (see site/site.go)
	go func() {
		if err := http.ListenAndServe(":9999", site.Handler(logger)); err != nil {
			slog.Error("mock origin error", "error", err)
			os.Exit(1)
		}
	}()
	time.Sleep(100 * time.Millisecond)

	r, err := pageblocks.New(
		pageblocks.WithOrigin("http://localhost:9999"),
		pageblocks.WithTitle("Acme Blog (demo)"),
		pageblocks.WithPort(8080),
		pageblocks.WithRUM("http://localhost:9999", "", 1),
		pageblocks.WithWarmPages(30*time.Second, 1, site.ArticlePath),
		pageblocks.WithLogger(logger),
		pageblocks.WithBlockCallback(func(b pageblocks.BlockResult) {
			if b.Status == pageblocks.StatusLoaded && b.Error != nil {
				logger.Warn("block failed", "page", b.Page, "block", b.Name, "error", b.Error)
			}
		}),
	)
	if err != nil {
		slog.Error("failed to create renderer", "error", err)
		os.Exit(1)
	}
	defer r.Close()

	fmt.Println()
	fmt.Println("  pageblocks demo")
	fmt.Println()
	fmt.Printf("  Page:       http://localhost:8080%s\n", site.ArticlePath)
	fmt.Println("  Dashboard:  http://localhost:8080/_dashboard")
	fmt.Println()
	fmt.Println("  Press Ctrl+C to stop")
	fmt.Println()

	// set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := r.Start(ctx); err != nil {
		slog.Error("pageblocks error", "error", err)
		os.Exit(1)
	}
}
