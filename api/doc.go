// Package api exposes the traffic world server over HTTP.
//
// Endpoints:
//
// Worlds:
//   - GET /worlds - List live worlds, most recently used first (?limit=N)
//   - GET /worlds/{id} - Open the world socket, or the JSON snapshot for plain requests
//   - DELETE /worlds/{id} - Drop a world
//
// Edges:
//   - POST /worlds/{id}/edges - Body {from:{x,y}, to:{x,y}}
//   - DELETE /worlds/{id}/edges/{key} - Key is "fx,fy:tx,ty", percent-encoded
//   - POST /worlds/{id}/paths - Body {from, to}; draws or erases a staircase path
//
// Vehicles:
//   - POST /worlds/{id}/vehicles - Body {x, y, color}; color may be empty
//   - PATCH /worlds/{id}/vehicles/{vid} - Body {x, y}
//   - DELETE /worlds/{id}/vehicles/{vid}
//
// Other:
//   - GET /presets - Presets that seed new worlds
//   - POST /mcp - MCP over HTTP, when configured
//   - GET /health
//
// Errors are returned as {"error": "..."} with 404 for unknown worlds,
// edges and vehicles, 409 for duplicate edges and 400 for malformed input.
package api
