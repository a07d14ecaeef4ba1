// Package mcp exposes world editing as Model Context Protocol tools.
//
// The Client is a thin proxy: every tool call becomes one request against
// the REST API, so edits made by an agent reach every editor watching the
// world exactly like edits made by hand.
//
// MCP Tools:
//   - list_worlds: Live worlds, most recently used first
//   - world_snapshot: Edges, vehicles and a small text map of a world
//   - add_edge, remove_edge: Single road segments
//   - draw_path: Staircase drag between two cells (draw, flip or erase)
//   - add_vehicle, remove_vehicle, move_vehicle: Vehicles
//   - list_presets: Presets that seed worlds of the same name
//
// Transport Modes:
//   - Stdio: Client.ServeStdio for local MCP hosts
//   - HTTP: Client is an http.Handler answering one JSON-RPC message per POST
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080", log)
//	router := api.NewServer(svc, hub, api.WithMCP(client))
package mcp
