// Package pageblocks renders pages of a block based site on the server.
//
// An authored page is plain HTML: sections of content in which a <div> with a
// class names a block ("cards", "article-header", "columns--dark-wide").
// Rendering turns that markup into the decorated document a browser would
// otherwise build client side, in three phases:
//
//   - eager: pictures are optimised, synthetic blocks (article header, image
//     groups, author and topic feeds) are built, sections are wrapped and
//     every block is classified. The first block is loaded at once when it is
//     a largest contentful paint block.
//   - lazy: the page header and footer become the gnav and footer blocks, the
//     topic taxonomy completes the tags block, and all blocks are loaded
//     concurrently.
//   - delayed: after a pause the delayed script is added, in the background.
//
// Loading a block adds its stylesheet and runs its decorator. Decorators are
// looked up through a [Resolver]; [blocks.Default] provides the built-in
// ones. A failing decorator is logged and the block still ends up loaded.
//
// # Quick Start
//
//	r, _ := pageblocks.New(pageblocks.WithOrigin("https://main--blog--acme.hlx.page"))
//	defer r.Close()
//
//	res, err := r.Render(ctx, "/en/publications/2024/market-outlook")
//	if err != nil {
//	    return err
//	}
//	for _, b := range res.Blocks() {
//	    fmt.Println(b.Name, b.Status, b.Decorated)
//	}
//	res.Render(os.Stdout)
//
// # Serving
//
// [Renderer.Start] serves rendered pages on every path, the block dashboard on
// /_dashboard and its API under /api:
//
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	r.Start(ctx) // blocks until context is cancelled
//
// # Checkpoints
//
// Every render is a page view for real user monitoring. One in weight views
// (or every view with rum=on in the query) is selected, and the checkpoints
// of selected views are posted to the collector. All checkpoints are kept for
// the dashboard whether selected or not.
//
// # Architecture
//
//   - dom: node helpers over golang.org/x/net/html
//   - page: the per page context (metadata, fetching, head editing)
//   - blocks: the built-in block decorators
//   - internal/registry: block classification and status
//   - internal/pipeline: page decoration before loading
//   - internal/loader: block stylesheet and decorator loading
//   - internal/rum: sampling and visibility checkpoints
//   - internal/store: block and checkpoint records with pub/sub
//   - internal/server: HTTP server with REST API and Server-Sent Events
//   - dashboard: embedded web UI assets
package pageblocks
