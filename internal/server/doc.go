// Package server implements the MCP (Model Context Protocol) server that
// exposes the image token encoder as tools.
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
// Basic Image Information:
//   - image_load: Load image and get metadata
//   - image_dimensions: Get width and height
//
// Tokenization:
//   - image_num_tokens: Patch grid and token count for a file or a size
//   - image_encode: Encode one image from a path, URL or data URL
//   - image_encode_batch: Encode several images concurrently
//   - image_preview: The resized bitmap the encoder sees, as PNG
//
// # Image Caching
//
// Images given by path are decoded once and cached by path for the lifetime
// of the server process. URL inputs are fetched on every call.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: The Go error string
//
// # Usage
//
//	enc, err := multimodal.NewImageEncoder(cfg, ids)
//	if err != nil {
//	    return err
//	}
//	srv := server.New(enc, slog.Default())
//	if err := srv.Run(ctx); err != nil {
//	    return err
//	}
package server
