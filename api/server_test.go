package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wricardo/traffic-editor/client"
	"github.com/wricardo/traffic-editor/model"
	"github.com/wricardo/traffic-editor/protocol"
	"github.com/wricardo/traffic-editor/server/service"
	"github.com/wricardo/traffic-editor/server/store"
	ws "github.com/wricardo/traffic-editor/transport/websocket"
	"github.com/wricardo/traffic-editor/world"
)

func newTestServer(t *testing.T) (*Server, service.WorldService) {
	t.Helper()
	svc := service.NewWorldService(store.NewManager(), nil, nil)
	return NewServer(svc, nil), svc
}

func do(t *testing.T, h http.Handler, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestCreateAndDeleteEdge(t *testing.T) {
	server, svc := newTestServer(t)
	edge := model.EdgeData{From: model.Position{X: 0, Y: 0}, To: model.Position{X: 1, Y: 0}}

	rr := do(t, server, "POST", "/worlds/asdf/edges", edge)
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}

	// Same edge again conflicts
	rr = do(t, server, "POST", "/worlds/asdf/edges", edge)
	if rr.Code != http.StatusConflict {
		t.Errorf("Expected status 409, got %d", rr.Code)
	}

	rr = do(t, server, "DELETE", "/worlds/asdf/edges/0%2C0%3A1%2C0", nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d: %s", rr.Code, rr.Body.String())
	}

	snap, err := svc.Snapshot(context.Background(), "asdf")
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(snap.Edges) != 0 {
		t.Errorf("Expected no edges, got %v", snap.Edges)
	}

	rr = do(t, server, "DELETE", "/worlds/asdf/edges/0%2C0%3A1%2C0", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rr.Code)
	}
}

func TestCreateEdgeErrors(t *testing.T) {
	server, _ := newTestServer(t)

	tests := []struct {
		name   string
		target string
		method string
		body   interface{}
		status int
	}{
		{"loop", "/worlds/asdf/edges", "POST", model.EdgeData{}, http.StatusBadRequest},
		{"bad body", "/worlds/asdf/edges", "POST", "nope", http.StatusBadRequest},
		{"bad key", "/worlds/asdf/edges/garbage", "DELETE", nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, server, tt.method, tt.target, tt.body)
			if rr.Code != tt.status {
				t.Errorf("Expected status %d, got %d: %s", tt.status, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestVehicleLifecycle(t *testing.T) {
	server, svc := newTestServer(t)

	rr := do(t, server, "POST", "/worlds/asdf/vehicles", map[string]interface{}{"x": 2, "y": 3, "color": "#00ff00"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var v model.Vehicle
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("Failed to decode vehicle: %v", err)
	}
	if v.ID == "" || v.X != 2 || v.Y != 3 || v.Color != "#00ff00" {
		t.Errorf("Unexpected vehicle: %+v", v)
	}

	rr = do(t, server, "PATCH", "/worlds/asdf/vehicles/"+string(v.ID), model.Position{X: 4, Y: 3})
	if rr.Code != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d: %s", rr.Code, rr.Body.String())
	}
	snap, _ := svc.Snapshot(context.Background(), "asdf")
	if len(snap.Vehicles) != 1 || snap.Vehicles[0].X != 4 {
		t.Errorf("Vehicle not moved: %+v", snap.Vehicles)
	}

	rr = do(t, server, "DELETE", "/worlds/asdf/vehicles/"+string(v.ID), nil)
	if rr.Code != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", rr.Code)
	}
	rr = do(t, server, "DELETE", "/worlds/asdf/vehicles/"+string(v.ID), nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rr.Code)
	}

	rr = do(t, server, "POST", "/worlds/asdf/vehicles", map[string]interface{}{"x": 0, "y": 0, "color": "red"})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for bad color, got %d", rr.Code)
	}
}

func TestDrawPathRoute(t *testing.T) {
	server, _ := newTestServer(t)

	body := map[string]model.Position{"from": {X: 0, Y: 0}, "to": {X: 2, Y: 1}}
	rr := do(t, server, "POST", "/worlds/asdf/paths", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}

	var result service.PathResult
	if err := json.NewDecoder(rr.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode result: %v", err)
	}
	if result.Erased || len(result.Added) != len(result.Path)-1 {
		t.Errorf("Unexpected result: %+v", result)
	}
}

func TestGetWorldSnapshotJSON(t *testing.T) {
	server, svc := newTestServer(t)
	ctx := context.Background()
	svc.AddEdge(ctx, "asdf", model.EdgeData{From: model.Position{X: 0, Y: 0}, To: model.Position{X: 0, Y: 1}})

	rr := do(t, server, "GET", "/worlds/asdf", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}

	var resp struct {
		WorldID string           `json:"worldId"`
		Edges   []model.EdgeData `json:"edges"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.WorldID != "asdf" || len(resp.Edges) != 1 {
		t.Errorf("Unexpected snapshot: %+v", resp)
	}
}

func TestListAndDeleteWorlds(t *testing.T) {
	server, svc := newTestServer(t)
	ctx := context.Background()
	svc.OpenWorld(ctx, "one")
	svc.OpenWorld(ctx, "two")

	rr := do(t, server, "GET", "/worlds", nil)
	var resp struct {
		Count  int                  `json:"count"`
		Worlds []*service.WorldInfo `json:"worlds"`
	}
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Count != 2 {
		t.Errorf("Expected 2 worlds, got %d", resp.Count)
	}

	rr = do(t, server, "GET", "/worlds?limit=1", nil)
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Count != 1 {
		t.Errorf("Expected limit to apply, got %d", resp.Count)
	}

	rr = do(t, server, "DELETE", "/worlds/one", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}
	rr = do(t, server, "DELETE", "/worlds/one", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rr.Code)
	}
}

func TestListPresetsWithoutSource(t *testing.T) {
	server, _ := newTestServer(t)

	rr := do(t, server, "GET", "/presets", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Errorf("Expected empty list, got %s", rr.Body.String())
	}
}

func TestMCPRouteMounted(t *testing.T) {
	svc := service.NewWorldService(store.NewManager(), nil, nil)
	called := false
	server := NewServer(svc, nil, WithMCP(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusAccepted)
	})))

	rr := do(t, server, "POST", "/mcp", map[string]string{})
	if !called || rr.Code != http.StatusAccepted {
		t.Errorf("MCP handler not reached: called=%v status=%d", called, rr.Code)
	}

	server, _ = newTestServer(t)
	rr = do(t, server, "POST", "/mcp", map[string]string{})
	if rr.Code == http.StatusAccepted {
		t.Error("MCP route should not exist without a handler")
	}
}

// TestEditorRoundTrip drives the server with the editor's own REST and
// socket clients and checks that every mutation comes back as an event.
func TestEditorRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := ws.NewHub(nil)
	go hub.Run(ctx)
	svc := service.NewWorldService(store.NewManager(), nil, hub)
	srv := httptest.NewServer(NewServer(svc, hub))
	defer srv.Close()

	state := world.New("asdf")
	conn, err := client.Dial(ctx, srv.URL, state)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	api, err := client.NewAPI(srv.URL, "asdf")
	if err != nil {
		t.Fatalf("NewAPI failed: %v", err)
	}

	waitCtx, waitCancel := context.WithTimeout(ctx, 2*time.Second)
	defer waitCancel()
	from, to := model.Position{X: 0, Y: 0}, model.Position{X: 1, Y: 0}
	if err := api.CreateEdge(waitCtx, from, to).Wait(waitCtx); err != nil {
		t.Fatalf("CreateEdge failed: %v", err)
	}
	if err := api.CreateVehicle(waitCtx, 1, 0, "#123456").Wait(waitCtx); err != nil {
		t.Fatalf("CreateVehicle failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(state.Edges()) != 1 || len(state.Vehicles()) != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("State never caught up: %d edges, %d vehicles", len(state.Edges()), len(state.Vehicles()))
		}
		conn.Drain()
		time.Sleep(5 * time.Millisecond)
	}

	if err := api.DeleteEdge(waitCtx, model.NewEdgeKey(from, to)).Wait(waitCtx); err != nil {
		t.Fatalf("DeleteEdge failed: %v", err)
	}
	for len(state.Edges()) != 0 {
		if time.Now().After(deadline) {
			t.Fatal("edgeRemoved never applied")
		}
		conn.Drain()
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDeleteWorldResetsWatchers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := ws.NewHub(nil)
	go hub.Run(ctx)
	svc := service.NewWorldService(store.NewManager(), nil, hub)
	srv := httptest.NewServer(NewServer(svc, hub))
	defer srv.Close()

	state := world.New("w")
	conn, err := client.Dial(ctx, srv.URL, state)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	api, err := client.NewAPI(srv.URL, "w")
	if err != nil {
		t.Fatalf("NewAPI failed: %v", err)
	}
	waitCtx, waitCancel := context.WithTimeout(ctx, 2*time.Second)
	defer waitCancel()

	first := model.EdgeData{From: model.Position{X: 0, Y: 0}, To: model.Position{X: 1, Y: 0}}
	second := model.EdgeData{From: model.Position{X: 5, Y: 5}, To: model.Position{X: 5, Y: 6}}
	if err := api.CreateEdge(waitCtx, first.From, first.To).Wait(waitCtx); err != nil {
		t.Fatalf("CreateEdge failed: %v", err)
	}

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/worlds/w", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	if err := api.CreateEdge(waitCtx, second.From, second.To).Wait(waitCtx); err != nil {
		t.Fatalf("CreateEdge failed: %v", err)
	}

	snap, err := svc.Snapshot(ctx, "w")
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(snap.Edges) != 1 || snap.Edges[0] != second {
		t.Fatalf("Expected server to hold only %v, got %v", second, snap.Edges)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		conn.Drain()
		edges := state.Edges()
		if len(edges) == 1 && edges[0].Data() == second {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Client diverged from server: %d edges %v", len(edges), edges)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebSocketFirstFrameIsSnapshot(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := ws.NewHub(nil)
	go hub.Run(ctx)
	svc := service.NewWorldService(store.NewManager(), nil, hub)
	svc.AddVehicle(ctx, "asdf", 1, 1, "#ff0000")
	srv := httptest.NewServer(NewServer(svc, hub))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/worlds/asdf", nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, frame, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	msg, err := protocol.Decode(frame)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	snap, ok := msg.(protocol.Snapshot)
	if !ok {
		t.Fatalf("Expected snapshot, got %T", msg)
	}
	if len(snap.Vehicles) != 1 {
		t.Errorf("Expected 1 vehicle in snapshot, got %d", len(snap.Vehicles))
	}
}
