// Standalone demo content origin for trying the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockorigin
//
// Then in another terminal:
//
//	go run ./cmd/pageblocks serve -c example/config.yaml
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/jpalmerr/pageblocks/example/site"
)

func main() {
	fmt.Println("Demo content origin starting on :9999")
	fmt.Printf("Article: http://localhost:9999%s\n", site.ArticlePath)
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := http.ListenAndServe(":9999", site.Handler(logger)); err != nil {
		slog.Error("mock origin error", "error", err)
		os.Exit(1)
	}
}
