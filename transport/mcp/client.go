package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"github.com/wricardo/traffic-editor/logging"
	"github.com/wricardo/traffic-editor/model"
	"github.com/wricardo/traffic-editor/server/config"
	"github.com/wricardo/traffic-editor/server/service"
)

const (
	AppName    = "Traffic World Editor"
	AppVersion = "1.0.0"

	// Worlds larger than this are listed but not drawn
	maxMapSide = 40
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
	log        logrus.FieldLogger
}

// NewClient creates a new MCP client that calls the REST API at baseURL
func NewClient(baseURL string, log logrus.FieldLogger) *Client {
	if log == nil {
		log = logging.Discard()
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log,
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		AppName,
		AppVersion,
		server.WithToolCapabilities(true),
		server.WithInstructions(`Traffic World Editor - MCP Interface

This is a thin client that proxies all requests to the REST API server.
Every change is pushed live to editors watching the same world.

WORLD MODEL:
A world is an integer grid. Roads are directed edges between neighbouring
cells (including diagonals). Vehicles sit on cells and carry a #rrggbb color.
Edge keys have the form "fx,fy:tx,ty".

AVAILABLE TOOLS:
- list_worlds: List live worlds
- world_snapshot: Edges, vehicles and a small map of a world
- add_edge / remove_edge: Edit single road segments
- draw_path: Draw a staircase road between two cells, or erase it when the first segment already exists
- add_vehicle / remove_vehicle / move_vehicle: Manage vehicles
- list_presets: Presets that seed worlds of the same name`),
	)

	c.registerTools()
}

func worldProp() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "World ID",
	}
}

func intProp(desc string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "integer",
		"description": desc,
	}
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_worlds",
		Description: "List all live worlds, most recently used first",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListWorlds)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "world_snapshot",
		Description: "Get every edge and vehicle of a world. Opens the world if it does not exist yet.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"world_id": worldProp(),
			},
			Required: []string{"world_id"},
		},
	}, c.handleSnapshot)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "add_edge",
		Description: "Add a directed road segment between two neighbouring cells",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"world_id": worldProp(),
				"from_x":   intProp("Start cell X"),
				"from_y":   intProp("Start cell Y"),
				"to_x":     intProp("End cell X"),
				"to_y":     intProp("End cell Y"),
			},
			Required: []string{"world_id", "from_x", "from_y", "to_x", "to_y"},
		},
	}, c.handleAddEdge)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "remove_edge",
		Description: "Remove a road segment by its key",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"world_id": worldProp(),
				"key": map[string]interface{}{
					"type":        "string",
					"description": `Edge key "fx,fy:tx,ty"`,
				},
			},
			Required: []string{"world_id", "key"},
		},
	}, c.handleRemoveEdge)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "draw_path",
		Description: "Draw a staircase road from one cell to another, flipping segments that point the other way. If the first segment already exists the whole path is erased instead.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"world_id": worldProp(),
				"from_x":   intProp("Start cell X"),
				"from_y":   intProp("Start cell Y"),
				"to_x":     intProp("End cell X"),
				"to_y":     intProp("End cell Y"),
			},
			Required: []string{"world_id", "from_x", "from_y", "to_x", "to_y"},
		},
	}, c.handleDrawPath)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "add_vehicle",
		Description: "Place a vehicle on a cell",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"world_id": worldProp(),
				"x":        intProp("Cell X"),
				"y":        intProp("Cell Y"),
				"color": map[string]interface{}{
					"type":        "string",
					"description": "Color as #rrggbb (random when omitted)",
				},
			},
			Required: []string{"world_id", "x", "y"},
		},
	}, c.handleAddVehicle)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "remove_vehicle",
		Description: "Remove a vehicle",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"world_id": worldProp(),
				"vehicle_id": map[string]interface{}{
					"type":        "string",
					"description": "Vehicle ID",
				},
			},
			Required: []string{"world_id", "vehicle_id"},
		},
	}, c.handleRemoveVehicle)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "move_vehicle",
		Description: "Move a vehicle to another cell",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"world_id": worldProp(),
				"vehicle_id": map[string]interface{}{
					"type":        "string",
					"description": "Vehicle ID",
				},
				"x": intProp("Target cell X"),
				"y": intProp("Target cell Y"),
			},
			Required: []string{"world_id", "vehicle_id", "x", "y"},
		},
	}, c.handleMoveVehicle)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_presets",
		Description: "List presets that seed new worlds",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListPresets)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// ServeStdio runs the MCP server over stdin/stdout until it exits
func (c *Client) ServeStdio() error {
	return server.ServeStdio(c.mcpServer)
}

// ServeHTTP answers one JSON-RPC message per POST request
func (c *Client) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	response := c.mcpServer.HandleMessage(r.Context(), body)

	w.Header().Set("Content-Type", "application/json")
	responseData, err := json.Marshal(response)
	if err != nil {
		http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
		return
	}
	w.Write(responseData)
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	target := c.baseURL + path

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.log.WithFields(logrus.Fields{"method": method, "path": path, "status": resp.StatusCode}).Debug("api call")

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func worldPath(worldID string, segments ...string) string {
	parts := append([]string{"/worlds", url.PathEscape(worldID)}, segments...)
	return strings.Join(parts, "/")
}

// Argument helpers. Numbers arrive from JSON as float64.

func stringArg(args map[string]interface{}, name string) (string, error) {
	s, _ := args[name].(string)
	if s == "" {
		return "", fmt.Errorf("%s is required", name)
	}
	return s, nil
}

func intArg(args map[string]interface{}, name string) (int, error) {
	switch v := args[name].(type) {
	case float64:
		return int(v), nil
	case int:
		return v, nil
	case json.Number:
		n, err := v.Int64()
		return int(n), err
	default:
		return 0, fmt.Errorf("%s must be an integer", name)
	}
}

func positionArgs(args map[string]interface{}, xName, yName string) (model.Position, error) {
	x, err := intArg(args, xName)
	if err != nil {
		return model.Position{}, err
	}
	y, err := intArg(args, yName)
	if err != nil {
		return model.Position{}, err
	}
	return model.Position{X: x, Y: y}, nil
}

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	if args == nil {
		args = map[string]interface{}{}
	}
	return args
}

// Tool handlers

func (c *Client) handleListWorlds(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count  int                 `json:"count"`
		Worlds []service.WorldInfo `json:"worlds"`
	}

	if err := c.apiCall(ctx, "GET", "/worlds", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Live Worlds (%d):\n\n", response.Count)
	for _, w := range response.Worlds {
		result += fmt.Sprintf("- %s (Edges: %d, Vehicles: %d, Last used: %s)\n",
			w.ID, w.Edges, w.Vehicles, w.LastAccessedAt.Format("15:04:05"))
	}

	return mcp.NewToolResultText(result), nil
}

type snapshotResponse struct {
	WorldID  string           `json:"worldId"`
	Edges    []model.EdgeData `json:"edges"`
	Vehicles []model.Vehicle  `json:"vehicles"`
}

func (c *Client) handleSnapshot(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	worldID, err := stringArg(arguments(request), "world_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var snap snapshotResponse
	if err := c.apiCall(ctx, "GET", worldPath(worldID), nil, &snap); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSnapshot(&snap)), nil
}

func (c *Client) handleAddEdge(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	worldID, err := stringArg(args, "world_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	from, err := positionArgs(args, "from_x", "from_y")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	to, err := positionArgs(args, "to_x", "to_y")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	edge := model.EdgeData{From: from, To: to}
	if err := c.apiCall(ctx, "POST", worldPath(worldID, "edges"), edge, nil); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Added edge %s", edge.Key())), nil
}

func (c *Client) handleRemoveEdge(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	worldID, err := stringArg(args, "world_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	key, err := stringArg(args, "key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := model.ParseEdgeKey(key); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := c.apiCall(ctx, "DELETE", worldPath(worldID, "edges", url.PathEscape(key)), nil, nil); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Removed edge %s", key)), nil
}

func (c *Client) handleDrawPath(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	worldID, err := stringArg(args, "world_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	from, err := positionArgs(args, "from_x", "from_y")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	to, err := positionArgs(args, "to_x", "to_y")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	body := map[string]model.Position{"from": from, "to": to}
	var result service.PathResult
	if err := c.apiCall(ctx, "POST", worldPath(worldID, "paths"), body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatPathResult(&result)), nil
}

func (c *Client) handleAddVehicle(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	worldID, err := stringArg(args, "world_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	pos, err := positionArgs(args, "x", "y")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	color, _ := args["color"].(string)

	body := map[string]interface{}{
		"x":     pos.X,
		"y":     pos.Y,
		"color": color,
	}
	var v model.Vehicle
	if err := c.apiCall(ctx, "POST", worldPath(worldID, "vehicles"), body, &v); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Added vehicle %s at (%d,%d) color %s", v.ID, v.X, v.Y, v.Color)), nil
}

func (c *Client) handleRemoveVehicle(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	worldID, err := stringArg(args, "world_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := stringArg(args, "vehicle_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := c.apiCall(ctx, "DELETE", worldPath(worldID, "vehicles", url.PathEscape(id)), nil, nil); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Removed vehicle %s", id)), nil
}

func (c *Client) handleMoveVehicle(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	worldID, err := stringArg(args, "world_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := stringArg(args, "vehicle_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	pos, err := positionArgs(args, "x", "y")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := c.apiCall(ctx, "PATCH", worldPath(worldID, "vehicles", url.PathEscape(id)), pos, nil); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Moved vehicle %s to (%d,%d)", id, pos.X, pos.Y)), nil
}

func (c *Client) handleListPresets(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var presets []config.PresetInfo
	if err := c.apiCall(ctx, "GET", "/presets", nil, &presets); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Presets (%d):\n\n", len(presets))
	for _, p := range presets {
		result += fmt.Sprintf("- %s: %s (%d edges, %d vehicles)\n", p.PresetID, p.Description, p.Edges, p.Vehicles)
	}
	result += "\nOpening a world with a preset's ID seeds it from that preset."

	return mcp.NewToolResultText(result), nil
}

// Formatting helpers

func formatPathResult(r *service.PathResult) string {
	var b strings.Builder
	cells := make([]string, len(r.Path))
	for i, p := range r.Path {
		cells[i] = "(" + p.String() + ")"
	}
	fmt.Fprintf(&b, "Path: %s\n", strings.Join(cells, " -> "))
	if r.Erased {
		fmt.Fprintf(&b, "Erased %d edges\n", len(r.Removed))
		return b.String()
	}
	fmt.Fprintf(&b, "Added %d edges", len(r.Added))
	if len(r.Removed) > 0 {
		fmt.Fprintf(&b, ", flipped %d", len(r.Removed))
	}
	b.WriteString("\n")
	return b.String()
}

func formatSnapshot(snap *snapshotResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "World: %s | Edges: %d | Vehicles: %d\n\n", snap.WorldID, len(snap.Edges), len(snap.Vehicles))

	if m := formatMap(snap); m != "" {
		b.WriteString(m)
		b.WriteString("\n")
	}

	if len(snap.Edges) > 0 {
		keys := make([]string, len(snap.Edges))
		for i, e := range snap.Edges {
			keys[i] = string(e.Key())
		}
		sort.Strings(keys)
		b.WriteString("Edges:\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s\n", k)
		}
	}

	if len(snap.Vehicles) > 0 {
		b.WriteString("Vehicles:\n")
		for _, v := range snap.Vehicles {
			fmt.Fprintf(&b, "- %s at (%d,%d) %s\n", v.ID, v.X, v.Y, v.Color)
		}
	}
	return b.String()
}

// formatMap draws the bounding box of the world: '#' for road cells, 'V'
// for cells holding a vehicle and '.' for empty ground.
func formatMap(snap *snapshotResponse) string {
	var cells []model.Position
	for _, e := range snap.Edges {
		cells = append(cells, e.From, e.To)
	}
	for _, v := range snap.Vehicles {
		cells = append(cells, v.Position())
	}
	if len(cells) == 0 {
		return ""
	}

	minX, minY, maxX, maxY := cells[0].X, cells[0].Y, cells[0].X, cells[0].Y
	for _, p := range cells {
		minX, maxX = min(minX, p.X), max(maxX, p.X)
		minY, maxY = min(minY, p.Y), max(maxY, p.Y)
	}
	if maxX-minX >= maxMapSide || maxY-minY >= maxMapSide {
		return ""
	}

	grid := make([][]byte, maxY-minY+1)
	for y := range grid {
		grid[y] = bytes.Repeat([]byte{'.'}, maxX-minX+1)
	}
	for _, e := range snap.Edges {
		grid[e.From.Y-minY][e.From.X-minX] = '#'
		grid[e.To.Y-minY][e.To.X-minX] = '#'
	}
	for _, v := range snap.Vehicles {
		grid[v.Y-minY][v.X-minX] = 'V'
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Map from (%d,%d):\n", minX, minY)
	for _, row := range grid {
		b.Write(row)
		b.WriteString("\n")
	}
	return b.String()
}
