// Package model defines the wire-level data shared by the traffic editor
// client and its companion server.
//
// The model package implements:
//   - Grid positions and directed edges between them
//   - Edge keys ("fx,fy:tx,ty") used in REST paths
//   - Vehicles, vehicle ids and partial vehicle updates
//   - Vehicle color generation and parsing
//
// Everything here is a plain value type. Identity of edges on the client
// side (the local id used by the render layer) lives in package world, not here.
package model
