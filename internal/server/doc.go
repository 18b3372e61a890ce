// Package server provides the HTTP server for rendered pages and the block
// dashboard.
//
// Routing uses chi:
//
//   - Page rendering: every path not claimed below is rendered through a [RenderFunc]
//   - REST API: "/api/blocks" for block records, "/api/events" for sampled checkpoints
//   - Server-Sent Events: block status changes at "/api/sse"
//   - Dashboard: the embedded page at "/_dashboard"
//
// The server supports graceful shutdown via context cancellation, with a
// 5-second timeout for in-flight requests.
package server
