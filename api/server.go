package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/wricardo/traffic-editor/logging"
	"github.com/wricardo/traffic-editor/model"
	"github.com/wricardo/traffic-editor/server/config"
	"github.com/wricardo/traffic-editor/server/service"
	"github.com/wricardo/traffic-editor/server/store"
	ws "github.com/wricardo/traffic-editor/transport/websocket"
)

// Server represents the REST API server
type Server struct {
	service service.WorldService
	hub     *ws.Hub
	router  *mux.Router
	mcp     http.Handler
	log     logrus.FieldLogger
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the request logger
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Server) { s.log = l }
}

// WithMCP mounts an MCP handler on POST /mcp
func WithMCP(h http.Handler) Option {
	return func(s *Server) { s.mcp = h }
}

// NewServer creates a new API server. hub may be nil, in which case
// GET /worlds/{id} always answers with a JSON snapshot.
func NewServer(worldService service.WorldService, hub *ws.Hub, opts ...Option) *Server {
	s := &Server{
		service: worldService,
		hub:     hub,
		router:  mux.NewRouter(),
		log:     logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	// Edge keys contain a colon and arrive percent-encoded
	s.router.UseEncodedPath()
	s.router.Use(s.logRequests)

	// Worlds
	s.router.HandleFunc("/worlds", s.handleListWorlds).Methods("GET")
	s.router.HandleFunc("/worlds/{id}", s.handleGetWorld).Methods("GET")
	s.router.HandleFunc("/worlds/{id}", s.handleDeleteWorld).Methods("DELETE")

	// Edges
	s.router.HandleFunc("/worlds/{id}/edges", s.handleCreateEdge).Methods("POST")
	s.router.HandleFunc("/worlds/{id}/edges/{key}", s.handleDeleteEdge).Methods("DELETE")
	s.router.HandleFunc("/worlds/{id}/paths", s.handleDrawPath).Methods("POST")

	// Vehicles
	s.router.HandleFunc("/worlds/{id}/vehicles", s.handleCreateVehicle).Methods("POST")
	s.router.HandleFunc("/worlds/{id}/vehicles/{vid}", s.handleDeleteVehicle).Methods("DELETE")
	s.router.HandleFunc("/worlds/{id}/vehicles/{vid}", s.handleMoveVehicle).Methods("PATCH")

	// Presets
	s.router.HandleFunc("/presets", s.handleListPresets).Methods("GET")

	if s.mcp != nil {
		s.router.Handle("/mcp", s.mcp).Methods("POST")
	}

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start),
		}).Debug("request")
	})
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps service and store errors onto HTTP status codes
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrWorldNotFound),
		errors.Is(err, store.ErrEdgeNotFound),
		errors.Is(err, store.ErrVehicleNotFound),
		errors.Is(err, config.ErrPresetNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrEdgeExists),
		errors.Is(err, store.ErrWorldAlreadyExists):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrInvalidEdge),
		errors.Is(err, store.ErrInvalidWorldID),
		errors.Is(err, model.ErrInvalidEdgeKey),
		errors.Is(err, model.ErrInvalidPosition),
		errors.Is(err, service.ErrInvalidColor):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

// pathVar returns a decoded route variable
func pathVar(r *http.Request, name string) (string, error) {
	return urlUnescape(mux.Vars(r)[name])
}

// World Handlers

func (s *Server) handleListWorlds(w http.ResponseWriter, r *http.Request) {
	worlds, err := s.service.ListWorlds(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	// Most recently used first
	sort.Slice(worlds, func(i, j int) bool {
		return worlds[i].LastAccessedAt.After(worlds[j].LastAccessedAt)
	})

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l < len(worlds) {
			worlds = worlds[:l]
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":  len(worlds),
		"worlds": worlds,
	})
}

// handleGetWorld upgrades to a world socket, or returns the snapshot as
// JSON for plain requests.
func (s *Server) handleGetWorld(w http.ResponseWriter, r *http.Request) {
	worldID, err := pathVar(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if s.hub != nil && websocket.IsWebSocketUpgrade(r) {
		s.hub.ServeWS(w, r, worldID, s.service)
		return
	}

	snap, err := s.service.Snapshot(r.Context(), worldID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"worldId":  snap.WorldID,
		"edges":    snap.Edges,
		"vehicles": snap.Vehicles,
	})
}

func (s *Server) handleDeleteWorld(w http.ResponseWriter, r *http.Request) {
	worldID, err := pathVar(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.service.DeleteWorld(r.Context(), worldID); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("World %s deleted", worldID),
	})
}

// Edge Handlers

func (s *Server) handleCreateEdge(w http.ResponseWriter, r *http.Request) {
	worldID, err := pathVar(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var edge model.EdgeData
	if err := json.NewDecoder(r.Body).Decode(&edge); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := s.service.AddEdge(r.Context(), worldID, edge); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"key":  edge.Key(),
		"edge": edge,
	})
}

func (s *Server) handleDeleteEdge(w http.ResponseWriter, r *http.Request) {
	worldID, err := pathVar(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	key, err := pathVar(r, "key")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.service.RemoveEdge(r.Context(), worldID, model.EdgeKey(key)); err != nil {
		respondServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDrawPath(w http.ResponseWriter, r *http.Request) {
	worldID, err := pathVar(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req struct {
		From model.Position `json:"from"`
		To   model.Position `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := s.service.DrawPath(r.Context(), worldID, req.From, req.To)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// Vehicle Handlers

func (s *Server) handleCreateVehicle(w http.ResponseWriter, r *http.Request) {
	worldID, err := pathVar(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req struct {
		X     int    `json:"x"`
		Y     int    `json:"y"`
		Color string `json:"color"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	v, err := s.service.AddVehicle(r.Context(), worldID, req.X, req.Y, req.Color)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, v)
}

func (s *Server) handleDeleteVehicle(w http.ResponseWriter, r *http.Request) {
	worldID, err := pathVar(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	vid, err := pathVar(r, "vid")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.service.RemoveVehicle(r.Context(), worldID, model.VehicleID(vid)); err != nil {
		respondServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMoveVehicle(w http.ResponseWriter, r *http.Request) {
	worldID, err := pathVar(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	vid, err := pathVar(r, "vid")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var pos model.Position
	if err := json.NewDecoder(r.Body).Decode(&pos); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := s.service.MoveVehicle(r.Context(), worldID, model.VehicleID(vid), pos); err != nil {
		respondServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Preset Handlers

func (s *Server) handleListPresets(w http.ResponseWriter, r *http.Request) {
	presets, err := s.service.ListPresets(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, presets)
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

func urlUnescape(s string) (string, error) {
	v, err := url.PathUnescape(s)
	if err != nil {
		return "", fmt.Errorf("bad path segment %q: %w", s, err)
	}
	return v, nil
}
