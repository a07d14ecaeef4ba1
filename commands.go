package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jpillora/backoff"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/traffic-editor/api"
	"github.com/wricardo/traffic-editor/client"
	"github.com/wricardo/traffic-editor/model"
	"github.com/wricardo/traffic-editor/render"
	"github.com/wricardo/traffic-editor/server/config"
	"github.com/wricardo/traffic-editor/transport/mcp"
	"github.com/wricardo/traffic-editor/world"
)

const defaultServer = "http://localhost:8080"

func serverFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "server",
		Value:   defaultServer,
		Usage:   "base URL of the traffic server",
		Sources: cli.EnvVars("TRAFFIC_SERVER"),
	}
}

func worldFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:  "world",
		Value: client.DefaultWorld,
		Usage: "world ID, or a route such as #/worlds/<id>",
	}
}

// MCP

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:    "mcp",
		Aliases: []string{"stdio-mcp"},
		Usage:   "run an MCP stdio server (starts an internal HTTP server when none is reachable)",
		Flags:   []cli.Flag{serverFlag()},
		Action:  runMCP,
	}
}

// serverReachable reports whether a traffic server answers at baseURL
func serverReachable(ctx context.Context, baseURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < 500
}

// runMCP serves MCP over stdio. It reuses the server at --server when one
// answers, otherwise it starts an internal one on a random loopback port.
func runMCP(ctx context.Context, cmd *cli.Command) error {
	log := newLogger(cmd)
	baseURL := cmd.String("server")

	if serverReachable(ctx, baseURL) {
		log.WithField("server", baseURL).Info("using external HTTP server for MCP")
	} else {
		log.WithField("server", baseURL).Info("no external server found, starting internal HTTP server")

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}

		st := newStack(ctx, log, cmd.String("presets"))
		httpServer := &http.Server{Handler: api.NewServer(st.service, st.hub)}
		go func() {
			if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("internal HTTP server error")
			}
		}()
		defer httpServer.Close()

		baseURL = "http://" + listener.Addr().String()
	}

	mcpClient := mcp.NewClient(baseURL, log.WithField("component", "mcp"))
	log.Info("MCP stdio server ready")
	return mcpClient.ServeStdio()
}

// Watch

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "follow a world and log every change",
		Flags: []cli.Flag{
			serverFlag(),
			worldFlag(),
			&cli.BoolFlag{
				Name:  "reconnect",
				Usage: "redial with backoff when the socket drops",
			},
		},
		Action: runWatch,
	}
}

// logObserver logs every change applied to a State
func logObserver(log logrus.FieldLogger) world.Observer {
	return world.Observer{
		EdgeAdded: func(e world.Edge) {
			log.WithField("edge", e.Data().Key()).Info("edge added")
		},
		EdgeRemoved: func(e world.Edge) {
			log.WithField("edge", e.Data().Key()).Info("edge removed")
		},
		EdgesReset: func(edges []world.Edge) {
			log.WithField("edges", len(edges)).Info("edges replaced")
		},
		VehicleAdded: func(v model.Vehicle) {
			log.WithFields(logrus.Fields{"vehicle": v.ID, "x": v.X, "y": v.Y, "color": v.Color}).Info("vehicle added")
		},
		VehicleRemoved: func(v model.Vehicle) {
			log.WithField("vehicle", v.ID).Info("vehicle removed")
		},
		VehiclesReset: func(vs []model.Vehicle) {
			log.WithField("vehicles", len(vs)).Info("vehicles replaced")
		},
		VehicleUpdated: func(prev, cur model.Vehicle) {
			log.WithFields(logrus.Fields{
				"vehicle": cur.ID,
				"from":    prev.Position().String(),
				"to":      cur.Position().String(),
			}).Info("vehicle moved")
		},
	}
}

func runWatch(ctx context.Context, cmd *cli.Command) error {
	log := newLogger(cmd)
	worldID, err := client.ParseRoute(cmd.String("world"))
	if err != nil {
		return err
	}

	state := world.New(worldID)
	state.Subscribe(logObserver(log.WithField("world_id", worldID)))

	opts := []client.Option{client.WithLogger(log)}
	if cmd.Bool("reconnect") {
		opts = append(opts, client.WithReconnect(&backoff.Backoff{
			Min:    500 * time.Millisecond,
			Max:    30 * time.Second,
			Factor: 2,
			Jitter: true,
		}))
	}

	conn, err := client.Dial(ctx, cmd.String("server"), state, opts...)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.Pump(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// Render

func renderCommand() *cli.Command {
	return &cli.Command{
		Name:      "render",
		Usage:     "draw a world, or a preset file, to a PNG",
		ArgsUsage: "[preset.json]",
		Flags: []cli.Flag{
			serverFlag(),
			worldFlag(),
			&cli.StringFlag{
				Name:  "out",
				Value: "world.png",
				Usage: "output file",
			},
			&cli.StringFlag{
				Name:  "size",
				Value: "800x600",
				Usage: "image size as WIDTHxHEIGHT",
			},
			&cli.StringFlag{
				Name:  "zoom",
				Value: strconv.Itoa(render.DefaultZoom),
				Usage: "pixels per cell",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Value: 5 * time.Second,
				Usage: "how long to wait for the world snapshot",
			},
		},
		Action: runRender,
	}
}

// parseSize parses "WIDTHxHEIGHT"
func parseSize(s string) (int, int, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return 0, 0, fmt.Errorf("size must look like 800x600, got %q", s)
	}
	w, err := strconv.Atoi(ws)
	if err != nil || w <= 0 {
		return 0, 0, fmt.Errorf("invalid width in %q", s)
	}
	h, err := strconv.Atoi(hs)
	if err != nil || h <= 0 {
		return 0, 0, fmt.Errorf("invalid height in %q", s)
	}
	return w, h, nil
}

// fetchState dials a world and returns once its snapshot has been applied
func fetchState(ctx context.Context, log logrus.FieldLogger, baseURL, worldID string) (*world.State, error) {
	state := world.New(worldID)
	loaded := false
	cancel := state.Subscribe(world.Observer{
		VehiclesReset: func([]model.Vehicle) { loaded = true },
	})
	defer cancel()

	conn, err := client.Dial(ctx, baseURL, state, client.WithLogger(log))
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	for !loaded {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for snapshot of %s: %w", worldID, ctx.Err())
		case <-conn.Done():
			conn.Drain()
			if !loaded {
				return nil, fmt.Errorf("connection to %s closed before snapshot", worldID)
			}
		case <-time.After(10 * time.Millisecond):
			conn.Drain()
		}
	}
	return state, nil
}

// presetState loads a preset file into a fresh State
func presetState(path string) (*world.State, error) {
	p, err := config.LoadFile(path)
	if err != nil {
		return nil, err
	}
	state := world.New(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	// Preset vehicles get their ids from the server; number them locally
	vehicles := make([]model.Vehicle, len(p.Vehicles))
	for i, v := range p.Vehicles {
		if v.ID == "" {
			v.ID = model.VehicleID("p" + strconv.Itoa(i+1))
		}
		vehicles[i] = v
	}
	state.ResetEdges(p.Edges)
	state.ResetVehicles(vehicles)
	return state, nil
}

func runRender(ctx context.Context, cmd *cli.Command) error {
	log := newLogger(cmd)

	width, height, err := parseSize(cmd.String("size"))
	if err != nil {
		return err
	}
	zoom, err := strconv.Atoi(cmd.String("zoom"))
	if err != nil {
		return fmt.Errorf("invalid zoom %q", cmd.String("zoom"))
	}

	var state *world.State
	if path := cmd.Args().First(); path != "" {
		state, err = presetState(path)
	} else {
		var worldID string
		worldID, err = client.ParseRoute(cmd.String("world"))
		if err == nil {
			fetchCtx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
			defer cancel()
			state, err = fetchState(fetchCtx, log, cmd.String("server"), worldID)
		}
	}
	if err != nil {
		return err
	}

	scene := render.NewScene(state, width, height, render.WithZoom(zoom))
	defer scene.Close()

	painter := render.NewImagePainter(width, height)
	scene.Draw(painter)

	out := cmd.String("out")
	if err := painter.SavePNG(out); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	log.WithFields(logrus.Fields{
		"world_id": state.ID(),
		"edges":    len(state.Edges()),
		"vehicles": len(state.Vehicles()),
		"out":      out,
	}).Info("rendered world")
	return nil
}

// Validate

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "validate preset files (defaults to every preset in --presets)",
		ArgsUsage: "[file.json ...]",
		Action:    runValidate,
	}
}

func runValidate(ctx context.Context, cmd *cli.Command) error {
	files := cmd.Args().Slice()
	if len(files) == 0 {
		matches, err := filepath.Glob(filepath.Join(cmd.String("presets"), "*.json"))
		if err != nil {
			return err
		}
		files = matches
	}
	if len(files) == 0 {
		return fmt.Errorf("no preset files found")
	}

	failed := 0
	for _, f := range files {
		r := config.ValidateFile(f)
		printValidation(os.Stdout, r)
		if !r.Valid {
			failed++
		}
	}

	fmt.Printf("\n%d/%d presets valid\n", len(files)-failed, len(files))
	if failed > 0 {
		return fmt.Errorf("%d invalid presets", failed)
	}
	return nil
}

func printValidation(out io.Writer, r config.ValidationResult) {
	status := "OK"
	if !r.Valid {
		status = "INVALID"
	}
	fmt.Fprintf(out, "%s: %s\n", r.File, status)
	for _, e := range r.Errors {
		fmt.Fprintf(out, "  error: %s\n", e)
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(out, "  warning: %s\n", w)
	}
	for _, i := range r.Info {
		fmt.Fprintf(out, "  %s\n", i)
	}
}
