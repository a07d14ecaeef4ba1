// Command traffic runs the traffic world server and its headless tools.
//
// Commands:
//  1. "serve" (default) runs the HTTP server: REST API, world sockets and an /mcp endpoint
//  2. "mcp" runs an MCP stdio server against a running server, or an internal one
//  3. "watch" follows a world over its socket and logs every change
//  4. "render" draws a world or preset file to a PNG
//  5. "validate" checks preset files
//
// Settings come from flags, the environment and an optional .env file.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/traffic-editor/api"
	"github.com/wricardo/traffic-editor/logging"
	"github.com/wricardo/traffic-editor/server/config"
	"github.com/wricardo/traffic-editor/server/service"
	"github.com/wricardo/traffic-editor/server/store"
	"github.com/wricardo/traffic-editor/transport/mcp"
	"github.com/wricardo/traffic-editor/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Traffic World Server"
)

func main() {
	// Load .env file if it exists
	envErr := godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newCommand()
	cmd.Before = func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
		if envErr != nil && !os.IsNotExist(envErr) {
			newLogger(cmd).WithError(envErr).Warn("error loading .env file")
		}
		return ctx, nil
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newCommand builds the command tree. Serve flags live on the root so the
// bare command starts the server.
func newCommand() *cli.Command {
	return &cli.Command{
		Name:    "traffic",
		Usage:   AppName,
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "debug, info, warn or error",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Value:   "text",
				Usage:   "text or json",
				Sources: cli.EnvVars("LOG_FORMAT"),
			},
			&cli.StringFlag{
				Name:    "addr",
				Value:   ":8080",
				Usage:   "HTTP listen address",
				Sources: cli.EnvVars("TRAFFIC_ADDR"),
			},
			&cli.StringFlag{
				Name:    "presets",
				Value:   "presets",
				Usage:   "directory of world presets",
				Sources: cli.EnvVars("TRAFFIC_PRESETS_DIR"),
			},
			&cli.DurationFlag{
				Name:    "tick",
				Usage:   "move vehicles along their roads at this interval (0 disables)",
				Sources: cli.EnvVars("TRAFFIC_TICK"),
			},
			&cli.DurationFlag{
				Name:    "idle-ttl",
				Value:   24 * time.Hour,
				Usage:   "drop worlds nobody watched or touched for this long",
				Sources: cli.EnvVars("TRAFFIC_IDLE_TTL"),
			},
			&cli.BoolFlag{
				Name:    "ngrok",
				Usage:   "expose the server through an ngrok tunnel",
				Sources: cli.EnvVars("NGROK_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "ngrok-auth",
				Usage:   "ngrok auth token",
				Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN"),
			},
			&cli.StringFlag{
				Name:    "ngrok-domain",
				Usage:   "custom ngrok domain",
				Sources: cli.EnvVars("NGROK_DOMAIN"),
			},
		},
		Action: runServe,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP server with REST API, world sockets and MCP endpoint",
				Action: runServe,
			},
			mcpCommand(),
			watchCommand(),
			renderCommand(),
			validateCommand(),
		},
	}
}

func newLogger(cmd *cli.Command) *logrus.Logger {
	return logging.NewWith(cmd.String("log-level"), cmd.String("log-format"), os.Stderr)
}

// stack is one fully wired server
type stack struct {
	worlds  *store.Manager
	hub     *websocket.Hub
	service service.WorldService
}

// newStack wires the world store, preset source, hub and service. A missing
// preset directory leaves worlds unseeded.
func newStack(ctx context.Context, log logrus.FieldLogger, presetDir string) *stack {
	var presets service.PresetSource
	if m, err := config.NewManager(presetDir); err != nil {
		log.WithError(err).Warn("running without presets")
	} else {
		presets = m
	}

	hub := websocket.NewHub(log.WithField("component", "hub"))
	go hub.Run(ctx)

	worlds := store.NewManager()
	svc := service.NewWorldService(worlds, presets, hub, service.WithLogger(log.WithField("component", "service")))
	return &stack{worlds: worlds, hub: hub, service: svc}
}

// cleanupRoutine periodically removes worlds that nobody watches and nobody
// touched within ttl.
func (s *stack) cleanupRoutine(ctx context.Context, log logrus.FieldLogger, ttl time.Duration) {
	interval := ttl / 24
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := s.worlds.CleanupIdle(ttl, func(id string) bool {
				return s.hub.ClientCount(id) > 0
			})
			if len(removed) > 0 {
				log.WithField("worlds", removed).Info("cleaned up idle worlds")
			}
		}
	}
}

// localURL turns a listen address into a URL this process can call
func localURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// runServe starts the HTTP server with REST API, world sockets and an /mcp
// endpoint. If ngrok is enabled it also provisions a public tunnel.
func runServe(ctx context.Context, cmd *cli.Command) error {
	log := newLogger(cmd)
	addr := cmd.String("addr")
	log.WithFields(logrus.Fields{"version": Version, "addr": addr}).Infof("starting %s", AppName)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	st := newStack(ctx, log, cmd.String("presets"))
	mcpClient := mcp.NewClient(localURL(addr), log.WithField("component", "mcp"))
	handler := api.NewServer(st.service, st.hub,
		api.WithLogger(log.WithField("component", "api")),
		api.WithMCP(mcpClient),
	)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		st.cleanupRoutine(ctx, log, cmd.Duration("idle-ttl"))
	}()

	if tick := cmd.Duration("tick"); tick > 0 {
		sim := service.NewSimulator(st.service, tick, nil, log.WithField("component", "simulator"))
		wg.Add(1)
		go func() {
			defer wg.Done()
			sim.Run(ctx)
		}()
	}

	httpServer := &http.Server{
		Addr:        addr,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		base := localURL(addr)
		log.Infof("REST API: %s/worlds", base)
		log.Infof("World socket: ws%s/worlds/<world_id>", base[len("http"):])
		log.Infof("MCP endpoint: %s/mcp", base)

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	if cmd.Bool("ngrok") {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrok(ctx, log, cmd.String("ngrok-auth"), cmd.String("ngrok-domain"), handler)
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case runErr = <-errc:
	}
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP server shutdown error")
	}

	wg.Wait()
	log.Info("server stopped")
	return runErr
}

// runNgrok serves handler through an ngrok tunnel until ctx is done
func runNgrok(ctx context.Context, log logrus.FieldLogger, authToken, domain string, handler http.Handler) {
	if authToken == "" {
		log.Warn("ngrok enabled but no auth token provided (use --ngrok-auth or NGROK_AUTHTOKEN)")
		return
	}

	var tunnel ngrokConfig.Tunnel
	if domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(domain))
		log.WithField("domain", domain).Info("using custom ngrok domain")
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(authToken))
	if err != nil {
		log.WithError(err).Error("failed to start ngrok tunnel")
		return
	}

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			log.WithError(err).Warn("failed to close ngrok tunnel")
		}
	}()

	log.WithField("url", tun.URL()).Info("ngrok tunnel established")
	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		log.WithError(err).Warn("ngrok server error")
	}
	log.Info("ngrok tunnel closed")
}
