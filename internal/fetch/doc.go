// Package fetch provides the HTTP client used by a page render.
//
// The main components are:
//
//   - [Client]: pooled HTTP client with per-request timeouts and size limits
//   - [Response]: structured result of a single request
//   - [StatusError]: a completed request with a non-2xx status
//
// Users of the pageblocks library should not need to interact with this
// package directly.
package fetch
