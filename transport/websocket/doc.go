// Package websocket pushes world events to connected editors.
//
// The Hub keeps one room per world ID. A client joins a room by opening a
// socket on GET /worlds/{id}; the first frame it receives is the world's
// snapshot, after which every event the service broadcasts for that world
// follows in order.
//
// Every outgoing text frame carries exactly one protocol envelope. Input
// from clients is read only to notice disconnects and pong replies.
//
// Usage:
//
//	hub := websocket.NewHub(log)
//	go hub.Run(ctx)
//
//	svc := service.NewWorldService(worlds, presets, hub)
//	router.HandleFunc("/worlds/{id}", func(w http.ResponseWriter, r *http.Request) {
//		hub.ServeWS(w, r, mux.Vars(r)["id"], svc)
//	})
//
// Ordering:
//
// ServeWS registers the client while the service's snapshot lock is held,
// so no event can slip between the snapshot and the first broadcast the
// client receives.
package websocket
