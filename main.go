// Command cabinsmart runs the CabinSmart cabin server.
//
// Commands:
//  1. "serve" (default) runs the HTTP server exposing the REST API, the /ws
//     WebSocket and an /mcp HTTP endpoint
//  2. "mcp" runs an MCP stdio server, reusing an external API server when one
//     answers and starting an internal one otherwise
//  3. "reset-seats" wipes and reseeds every seat
//  4. "validate-config" loads and checks the configuration
//
// Configuration comes from an optional YAML file (--config), then the
// environment (.env is loaded first), then command flags.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v3"
	"github.com/wricardo/cabinsmart/api"
	"github.com/wricardo/cabinsmart/cabin/config"
	"github.com/wricardo/cabinsmart/cabin/service"
	"github.com/wricardo/cabinsmart/cabin/store"
	"github.com/wricardo/cabinsmart/transport/broker"
	"github.com/wricardo/cabinsmart/transport/mcp"
	"github.com/wricardo/cabinsmart/transport/websocket"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "CabinSmart Server"
)

func main() {
	// Load .env file if it exists
	envErr := godotenv.Load()

	cmd := newApp(os.Stderr)
	if envErr != nil && !os.IsNotExist(envErr) {
		slog.Warn("error loading .env file", "error", envErr)
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("cabinsmart failed", "error", err)
		os.Exit(1)
	}
}

// newApp builds the command tree. Logs go to logOut; stdout is left to
// command output and the MCP stdio transport.
func newApp(logOut io.Writer) *cli.Command {
	return &cli.Command{
		Name:           "cabinsmart",
		Usage:          "real-time cabin seat and bathroom queue server",
		Version:        Version,
		DefaultCommand: "serve",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML configuration file",
				Sources: cli.EnvVars("CABIN_CONFIG"),
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the HTTP server with REST API, WebSocket and MCP endpoint",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "host", Usage: "HTTP server host"},
					&cli.IntFlag{Name: "port", Usage: "HTTP server port"},
					&cli.BoolFlag{Name: "ngrok", Usage: "expose the server through an ngrok tunnel"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg, logger, err := loadConfig(cmd, logOut)
					if err != nil {
						return err
					}
					return runServe(ctx, cfg, logger)
				},
			},
			{
				Name:  "mcp",
				Usage: "run an MCP stdio server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "api-url",
						Usage: "external API server to reuse when it is reachable",
						Value: "http://localhost:8000",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg, logger, err := loadConfig(cmd, logOut)
					if err != nil {
						return err
					}
					return runStdioMCP(ctx, cfg, logger, cmd.String("api-url"))
				},
			},
			{
				Name:  "reset-seats",
				Usage: "replace every seat with a fresh one and empty the bathroom queue",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg, logger, err := loadConfig(cmd, logOut)
					if err != nil {
						return err
					}
					return runResetSeats(ctx, cfg, logger, cmd.Root().Writer)
				},
			},
			{
				Name:  "validate-config",
				Usage: "load the configuration and report problems",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg, _, err := loadConfig(cmd, logOut)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.Root().Writer, "configuration ok: store=%s broker=%s cabin=%dx%d listen=%s\n",
						cfg.Store.Backend, cfg.Broker.Kind, cfg.Cabin.Rows, cfg.Cabin.SeatsPerRow, cfg.HTTP.Addr())
					return nil
				},
			},
		},
	}
}

// loadConfig layers file, environment and flags, validates the result and
// builds the logger.
func loadConfig(cmd *cli.Command, logOut io.Writer) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, nil, err
	}
	cfg.ApplyEnv(os.LookupEnv)

	if cmd.IsSet("host") {
		cfg.HTTP.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.HTTP.Port = int(cmd.Int("port"))
	}
	if cmd.Bool("ngrok") {
		cfg.Ngrok.Enabled = true
	}
	if cmd.Bool("debug") {
		cfg.Log.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logger, err := newLogger(cfg.Log, logOut)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func newLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := config.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level, AddSource: level == slog.LevelDebug}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// openStore connects the configured backend.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendRedis:
		return store.NewRedisStore(ctx, store.RedisOptions{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
			Prefix:   cfg.Store.Redis.Prefix,
		})
	case config.BackendPostgres:
		return store.NewPostgresStore(ctx, cfg.Store.Postgres.DSN)
	default:
		if cfg.Store.SnapshotPath == "" {
			return store.NewMemoryStore(), nil
		}
		persistence, err := store.NewFilePersistence(cfg.Store.SnapshotPath)
		if err != nil {
			return nil, err
		}
		return store.NewMemoryStoreWithPersistence(persistence, logger)
	}
}

// newPublisher returns the external event publisher, or nil when mirroring
// is disabled.
func newPublisher(cfg config.BrokerConfig) (broker.Publisher, error) {
	switch cfg.Kind {
	case config.BrokerKafka:
		return broker.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic), nil
	case config.BrokerAMQP:
		return broker.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
	default:
		return nil, nil
	}
}

// application is the wired object graph behind one HTTP listener.
type application struct {
	store   store.Store
	service *service.Service
	hub     *websocket.Hub
	mirror  *broker.Mirror
	handler http.Handler
}

// newApplication opens the store, seeds the cabin and wires hub,
// dispatcher, REST API and MCP endpoint. mcpBaseURL is where the /mcp
// tools send their REST calls.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, mcpBaseURL string) (*application, error) {
	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Backend, err)
	}

	svc := service.New(st, cfg.Cabin, service.WithLogger(logger))
	if _, err := svc.Initialize(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to initialize cabin: %w", err)
	}

	hub := websocket.NewHub(logger)
	app := &application{store: st, service: svc, hub: hub}

	var out websocket.Broadcaster = hub
	pub, err := newPublisher(cfg.Broker)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to connect %s broker: %w", cfg.Broker.Kind, err)
	}
	if pub != nil {
		app.mirror = broker.NewMirror(hub, pub, cfg.Broker.Buffer, logger)
		out = app.mirror
		logger.Info("mirroring cabin events", "broker", cfg.Broker.Kind)
	}

	dispatcher := websocket.NewDispatcher(svc, out, logger)
	ws := websocket.NewHandler(hub, dispatcher, logger, websocket.HandlerOptions{
		SendBuffer:     cfg.WebSocket.SendBuffer,
		MaxMessageSize: cfg.WebSocket.MaxMessageSize,
	})

	mux := http.NewServeMux()
	mux.Handle("/mcp", mcp.NewClient(mcpBaseURL, Version))
	mux.Handle("/", api.NewServer(dispatcher, ws, logger))
	app.handler = mux

	return app, nil
}

func (a *application) Close() error {
	var errs []error
	if a.mirror != nil {
		errs = append(errs, a.mirror.Close())
	}
	errs = append(errs, a.store.Close())
	return errors.Join(errs...)
}

// runServe starts the HTTP server and, when enabled, an ngrok tunnel. It
// blocks until SIGINT or SIGTERM.
func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := cfg.HTTP.Addr()
	app, err := newApplication(ctx, cfg, logger, "http://"+loopbackAddr(cfg.HTTP))
	if err != nil {
		return err
	}
	defer app.Close()

	httpServer := &http.Server{
		Addr:        addr,
		Handler:     app.handler,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	logger.Info("starting server", "app", AppName, "version", Version,
		"addr", addr, "store", cfg.Store.Backend, "broker", cfg.Broker.Kind)

	var wg sync.WaitGroup
	errCh := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("HTTP server listening",
			"rest", "http://"+addr+"/",
			"websocket", "ws://"+addr+"/ws",
			"mcp", "http://"+addr+"/mcp")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	if cfg.Ngrok.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			serveNgrok(ctx, cfg.Ngrok, app.handler, logger)
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case runErr = <-errCh:
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	wg.Wait()
	logger.Info("server stopped")
	return runErr
}

// serveNgrok serves handler through an ngrok tunnel until ctx is done.
func serveNgrok(ctx context.Context, cfg config.NgrokConfig, handler http.Handler, logger *slog.Logger) {
	if cfg.AuthToken == "" {
		logger.Warn("ngrok enabled but no auth token provided (set NGROK_AUTHTOKEN)")
		return
	}

	var tunnel ngrokConfig.Tunnel
	if cfg.Domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(cfg.Domain))
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(cfg.AuthToken))
	if err != nil {
		logger.Error("failed to start ngrok tunnel", "error", err)
		return
	}

	url := tun.URL()
	logger.Info("ngrok tunnel established", "url", url, "websocket", url+"/ws", "mcp", url+"/mcp")

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			logger.Warn("failed to close ngrok tunnel", "error", err)
		}
	}()

	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		logger.Error("ngrok server error", "error", err)
	}
	logger.Info("ngrok tunnel closed")
}

// loopbackAddr is the address local clients use to reach the server.
func loopbackAddr(cfg config.HTTPConfig) string {
	host := cfg.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, fmt.Sprint(cfg.Port))
}

// runStdioMCP serves MCP over stdio. It reuses the API at externalURL when
// it answers; otherwise it starts an internal API on a random loopback
// port.
func runStdioMCP(ctx context.Context, cfg *config.Config, logger *slog.Logger, externalURL string) error {
	baseURL := externalURL
	if !apiReachable(externalURL) {
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}
		baseURL = "http://" + listener.Addr().String()

		app, err := newApplication(ctx, cfg, logger, baseURL)
		if err != nil {
			listener.Close()
			return err
		}
		defer app.Close()

		httpServer := &http.Server{Handler: app.handler}
		go func() {
			if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("internal HTTP server error", "error", err)
			}
		}()
		defer httpServer.Close()

		logger.Info("MCP stdio server ready (using internal HTTP server)", "api", baseURL)
	} else {
		logger.Info("MCP stdio server ready (using external HTTP server)", "api", baseURL)
	}

	client := mcp.NewClient(baseURL, Version)
	if err := server.ServeStdio(client.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}

// apiReachable reports whether baseURL answers as a healthy cabin API.
func apiReachable(baseURL string) bool {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}

	var health struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return false
	}
	return health.Status == "healthy"
}

func runResetSeats(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) error {
	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.Store.Backend, err)
	}
	defer st.Close()

	svc := service.New(st, cfg.Cabin, service.WithLogger(logger))
	if err := svc.ResetSeats(ctx); err != nil {
		return err
	}

	fmt.Fprintf(out, "reset %d seats (%d business rows) in %s store\n",
		cfg.Cabin.Rows*cfg.Cabin.SeatsPerRow, cfg.Cabin.BusinessRows, cfg.Store.Backend)
	return nil
}
