// Package store holds the authoritative state of every traffic world served
// by this process.
//
// The store package implements:
//   - Thread-safe world storage and retrieval
//   - Edge and vehicle mutation with conflict detection
//   - Server-assigned vehicle identifiers
//   - Idle world cleanup
//
// Core Types:
//
// Manager owns the set of worlds. World holds one world's edges and
// vehicles behind its own lock, so edits to different worlds never contend.
//
// Identifiers:
//
// World ids come from the route and are case-sensitive; an empty id is
// rejected with ErrInvalidWorldID. Vehicle ids are UUIDs.
//
// Every edit marks the world as accessed for CleanupIdle, except Drive,
// which the simulator uses so moving vehicles alone never keeps a world alive.
//
// Usage:
//
//	manager := store.NewManager()
//
//	w, err := manager.GetOrCreate("asdf", nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	v := w.AddVehicle(2, 3, "#ff0000")
//	if _, err := w.MoveVehicle(v.ID, model.Position{X: 3, Y: 3}); err != nil {
//		log.Fatal(err)
//	}
//
// Nothing is persisted; worlds live as long as the process or until
// CleanupIdle removes them.
package store
