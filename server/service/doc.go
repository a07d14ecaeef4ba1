// Package service provides the business logic of the world server.
//
// The service package implements:
//   - World lifecycle (lazy creation, preset seeding, listing, deletion)
//   - Edge and vehicle mutations
//   - Path drawing with the same draw/erase rules as the editor
//   - Event fan-out to connected clients through a Broadcaster
//   - An optional simulator that drives vehicles along the roads
//
// Core Interfaces:
//
// WorldService is the main service interface used by the REST, websocket and
// MCP transports. WorldStore and PresetSource are the storage and preset
// dependencies, satisfied by store.Manager and config.Manager.
//
// Ordering:
//
// Every mutation and its broadcast happen under one lock, so clients see
// events in the order the store applied them. Deleting a world broadcasts an
// empty snapshot so watchers match the world a later request recreates.
//
// Usage:
//
//	worlds := store.NewManager()
//	presets, _ := config.NewManager("presets")
//	svc := service.NewWorldService(worlds, presets, hub)
//
//	if err := svc.AddEdge(ctx, "asdf", edge); err != nil {
//		log.Fatal(err)
//	}
package service
