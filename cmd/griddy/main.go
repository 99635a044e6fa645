// Command griddy starts the simulation server.
//
// It supports three subcommands:
//  1. "serve" (default) – runs the HTTP server exposing the REST API, the
//     WebSocket hub, and an /mcp HTTP endpoint
//  2. "stdio-mcp" – runs an MCP stdio server, reusing an external API server
//     if one is already listening, or starting an internal one otherwise
//  3. "validate" – validates every description YAML file in a directory
//
// Flags control host/port, description directory, session persistence,
// logging, and optional ngrok tunneling for external access during
// development.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/griddy-sim/griddy/api"
	"github.com/griddy-sim/griddy/gdy"
	"github.com/griddy-sim/griddy/session"
	"github.com/griddy-sim/griddy/transport/mcp"
	"github.com/griddy-sim/griddy/transport/websocket"
)

const appName = "griddy"

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: error loading .env file: %v\n", err)
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()

	cmd := &cli.Command{
		Name:  appName,
		Usage: "data-driven grid-world simulation server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "host", Value: "localhost", Usage: "HTTP server host"},
			&cli.IntFlag{Name: "port", Value: 8080, Usage: "HTTP server port"},
			&cli.StringFlag{Name: "descriptions-dir", Value: descriptionsDirDefault(), Usage: "directory containing description YAML files"},
			&cli.StringFlag{Name: "sessions-dir", Value: "sessions", Usage: "directory for persisted session state"},
			&cli.BoolFlag{Name: "no-persistence", Usage: "disable session persistence"},
			&cli.BoolFlag{Name: "debug", Usage: "enable debug logging"},
			&cli.BoolFlag{Name: "ngrok", Usage: "expose the HTTP server through an ngrok tunnel"},
			&cli.StringFlag{Name: "ngrok-auth", Usage: "ngrok auth token (or NGROK_AUTHTOKEN env var)"},
			&cli.StringFlag{Name: "ngrok-domain", Usage: "custom ngrok domain"},
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the HTTP server (REST API, WebSocket hub, MCP endpoint)",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runServe(ctx, cmd, logger)
				},
			},
			{
				Name:  "stdio-mcp",
				Usage: "run an MCP stdio server",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runStdioMCP(ctx, cmd, logger)
				},
			},
			{
				Name:  "validate",
				Usage: "validate every description in descriptions-dir",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runValidate(cmd, logger)
				},
			},
		},
		DefaultCommand: "serve",
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		logger.Fatal().Err(err).Msg("exiting")
	}
}

func descriptionsDirDefault() string {
	if dir := os.Getenv("DESCRIPTIONS_DIR"); dir != "" {
		return dir
	}
	return "descriptions"
}

func setupLevel(cmd *cli.Command, logger zerolog.Logger) zerolog.Logger {
	if cmd.Bool("debug") {
		return logger.Level(zerolog.DebugLevel)
	}
	return logger.Level(zerolog.InfoLevel)
}

// newServices wires a description manager and a session manager, optionally
// backed by file persistence, restoring any previously persisted sessions.
func newServices(cmd *cli.Command, logger zerolog.Logger) (*session.Manager, error) {
	descriptions := gdy.NewManager(cmd.String("descriptions-dir"))

	var sessions *session.Manager
	if cmd.Bool("no-persistence") {
		sessions = session.NewManager(descriptions)
	} else {
		persistence, err := session.NewFilePersistence(cmd.String("sessions-dir"), descriptions)
		if err != nil {
			return nil, fmt.Errorf("creating session persistence: %w", err)
		}
		sessions = session.NewManagerWithPersistence(descriptions, persistence)
		if err := sessions.LoadPersisted(); err != nil {
			logger.Warn().Err(err).Msg("failed to load persisted sessions")
		}
	}
	return sessions, nil
}

func runServe(ctx context.Context, cmd *cli.Command, logger zerolog.Logger) error {
	logger = setupLevel(cmd, logger)

	sessions, err := newServices(cmd, logger)
	if err != nil {
		return err
	}
	go sessionCleanupRoutine(sessions, logger)

	hub := websocket.NewHub(logger)
	go hub.Run()

	apiServer := api.NewServer(sessions, hub, logger)

	addr := fmt.Sprintf("%s:%d", cmd.String("host"), cmd.Int("port"))
	baseURL := fmt.Sprintf("http://%s", addr)
	mcpClient := mcp.NewClient(baseURL)

	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", apiServer)
	mainRouter.HandleFunc("/mcp", mcpHTTPHandler(mcpClient))

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mainRouter,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	shutdownCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info().Str("addr", addr).Msg("HTTP server listening")
		logger.Info().Str("url", baseURL+"/api").Msg("REST API")
		logger.Info().Str("url", "ws://"+addr+"/ws?session=<session_id>").Msg("WebSocket")
		logger.Info().Str("url", baseURL+"/mcp").Msg("MCP endpoint")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	if cmd.Bool("ngrok") || os.Getenv("NGROK_ENABLED") == "true" {
		wg.Add(1)
		go runNgrokTunnel(shutdownCtx, &wg, cmd, mainRouter, logger)
	}

	sig := <-stop
	logger.Info().Str("signal", sig.String()).Msg("shutting down")
	cancel()

	shutdown, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdown); err != nil {
		logger.Warn().Err(err).Msg("HTTP server shutdown error")
	}
	wg.Wait()
	logger.Info().Msg("server stopped")
	return nil
}

func mcpHTTPHandler(mcpClient *mcp.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := mcpClient.GetMCPServer().HandleMessage(r.Context(), body)
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(response); err != nil {
			http.Error(w, "failed to marshal response", http.StatusInternalServerError)
		}
	}
}

func runNgrokTunnel(ctx context.Context, wg *sync.WaitGroup, cmd *cli.Command, handler http.Handler, logger zerolog.Logger) {
	defer wg.Done()

	authToken := cmd.String("ngrok-auth")
	if authToken == "" {
		authToken = os.Getenv("NGROK_AUTHTOKEN")
	}
	if authToken == "" {
		logger.Warn().Msg("ngrok enabled but no auth token provided")
		return
	}

	domain := cmd.String("ngrok-domain")
	if domain == "" {
		domain = os.Getenv("NGROK_DOMAIN")
	}

	var tunnel ngrokConfig.Tunnel
	if domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(domain))
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(authToken))
	if err != nil {
		logger.Warn().Err(err).Msg("failed to start ngrok tunnel")
		return
	}
	defer tun.Close()

	logger.Info().Str("url", tun.URL()).Msg("ngrok tunnel established")
	if err := http.Serve(tun, handler); err != nil && err != http.ErrServerClosed {
		logger.Warn().Err(err).Msg("ngrok server error")
	}
}

func sessionCleanupRoutine(sessions *session.Manager, logger zerolog.Logger) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()
	for range ticker.C {
		removed := sessions.CleanupIdleSince(time.Now().Add(-24 * time.Hour))
		if removed > 0 {
			logger.Info().Int("removed", removed).Msg("cleaned up idle sessions")
		}
	}
}

// runStdioMCP reuses an external API server at localhost:8080 if reachable,
// or starts a minimal internal one bound to a random loopback port.
func runStdioMCP(ctx context.Context, cmd *cli.Command, logger zerolog.Logger) error {
	logger = setupLevel(cmd, logger)

	externalURL := "http://localhost:8080"
	testClient := &http.Client{Timeout: 2 * time.Second}
	baseURL := externalURL
	if resp, err := testClient.Get(externalURL + "/api/sessions"); err == nil {
		resp.Body.Close()
	} else {
		sessions, err := newServices(cmd, logger)
		if err != nil {
			return err
		}

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("getting available port: %w", err)
		}
		internalAddr := listener.Addr().String()

		hub := websocket.NewHub(logger)
		go hub.Run()
		apiServer := api.NewServer(sessions, hub, logger)

		httpServer := &http.Server{Handler: apiServer}
		go func() {
			if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
				logger.Warn().Err(err).Msg("internal HTTP server error")
			}
		}()
		time.Sleep(100 * time.Millisecond)
		baseURL = "http://" + internalAddr
		logger.Info().Str("addr", internalAddr).Msg("started internal HTTP server for MCP stdio")
	}

	mcpClient := mcp.NewClient(baseURL)
	logger.Info().Str("base_url", baseURL).Msg("MCP stdio server ready")
	return server.ServeStdio(mcpClient.GetMCPServer())
}

func runValidate(cmd *cli.Command, logger zerolog.Logger) error {
	dir := cmd.String("descriptions-dir")
	manager := gdy.NewManager(dir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading %s: %w", dir, err)
	}

	failed := false
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		descName := strings.TrimSuffix(entry.Name(), ext)
		if _, err := manager.Load(descName); err != nil {
			logger.Error().Str("description", descName).Err(err).Msg("invalid")
			failed = true
			continue
		}
		logger.Info().Str("description", descName).Msg("valid")
	}
	if failed {
		return fmt.Errorf("one or more descriptions failed validation")
	}
	return nil
}
