// Package dashboard provides the embedded web UI of the block dashboard.
//
// The page lists every block of every rendered page with its status and
// decoration outcome, updated live over Server-Sent Events, and the most
// recent checkpoints below it.
package dashboard

import "embed"

// Assets is an embedded filesystem containing the dashboard web UI.
//
//	assets/
//	  index.html    - dashboard page with inline CSS and JavaScript
//
// index.html carries a {{.Title}} placeholder replaced by the server.
//
//go:embed assets/*
var Assets embed.FS
