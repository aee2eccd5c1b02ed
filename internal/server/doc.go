// Package server implements the MCP (Model Context Protocol) server for the
// surface masking tools.
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
// Raster inspection:
//   - raster_info: Size, bands, bit depth, transform and footprint
//   - raster_crop: Pixel rectangle as base64 PNG
//
// Coastline geometry:
//   - coastline_closing_edges: The three closing segments for a trace
//
// Masking:
//   - surface_mask: Full pipeline for one image, persisted to output
//   - mask_preview: Full pipeline without persisting, returned as a preview
//
// # Raster Caching
//
// Rasters are cached by URI for the lifetime of the server and shared with
// the masking pipeline, so repeated previews of one image decode it once.
// A surface_mask output is evicted after it is written.
//
// # Error Handling
//
// Missing or malformed arguments and unknown tools are rejected with code
// -32602. Tool execution errors are returned with code -32000. The data member holds the error kind (input_load, empty_input,
// geometry_assembly, rasterization, config, cancelled or other) and the
// error message.
//
// # Usage
//
//	proc := pipeline.New(store, fetcher, opts, logger)
//	srv := server.New(proc, logger)
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server
