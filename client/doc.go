// Package client connects the traffic editor to a world server.
//
// The client package implements:
//   - Connection: one live websocket per world, decoding server events and
//     applying them to a world.State
//   - API: fire-and-forget REST mutations, each returning a Task
//   - Session: the "worlds/:id" route, swapping world/connection pairs on navigation
//
// Threading:
//
// A Connection reads the socket on its own goroutine but never touches the
// world.State there. Decoded messages are queued, and Drain (or Pump) applies
// them on the caller's goroutine in the order they were received. A desktop
// client calls Drain once per frame from its update loop.
//
// Usage:
//
//	state := world.New("asdf")
//	conn, err := client.Dial(ctx, "http://localhost:8080", state)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer conn.Close()
//
//	// every frame
//	conn.Drain()
//
// Errors:
//
// Socket failures are logged and, unless WithReconnect is given, end the
// connection. Events naming a vehicle the State does not know are logged and
// skipped; they never stop later messages from being applied.
package client
