// Package server implements the MCP (Model Context Protocol) server for the
// map image pipeline.
//
// This package exposes the pipeline through a JSON-RPC 2.0 server so an MCP
// client can register marker icons and fill patterns in the image table a
// map renderer draws from, inspect what is registered, and upload new
// icons to the asset API.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Loading:
//   - map_image_load: Fetch, rasterize and register one image
//   - map_image_load_default: Same, at the default 200x200 size
//
// Style drivers:
//   - map_markers_sync: Register every marker a point layer style uses
//   - map_markers_prune: Remove markers a layer no longer uses
//   - map_patterns_sync: Register fill patterns (catalog or explicit)
//   - map_image_wait: Wait for pending loads and collect failures
//
// Registry:
//   - map_image_list: List registered images
//   - map_image_has: Check a name
//   - map_image_remove: Unregister a name
//   - map_image_export: Render a registered image as PNG
//
// Assets:
//   - map_asset_validate: Check a file against the upload rules
//   - map_asset_upload: Upload an icon or image
//   - map_asset_list: List stored assets
//
// # Loading Model
//
// Loads run in the background; a tool call that starts loads returns the
// derived names immediately. Pass wait (or call map_image_wait) to block
// until the table reflects them. Competing loads for one name resolve by
// completion order unless the revision guard is enabled in the
// configuration, in which case the most recently requested load wins.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: Additional error details (typically the Go error string)
//
// Failed fetches and undecodable images do not fail a call; they are
// reported in the failures list after a wait.
//
// # Usage
//
//	srv, err := server.New(cfg, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	srv.SyncPatterns()
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
