package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	mem "ascnd/adapters/memory"
	redisAdapter "ascnd/adapters/redis"
	"ascnd/api/rpcapi"
	"ascnd/config"
	"ascnd/core"
	"ascnd/engine"
	"ascnd/integrations/webhook"
	"ascnd/local"
	"ascnd/realtime"
)

// App aggregates the assembled server components.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Hub     *realtime.Hub
	Service *engine.Service
	Handler http.Handler
	Server  *http.Server

	closers []func() error
}

// BuildApp wires config, logging, storage, the leaderboard service and the
// HTTP surface together.
func BuildApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := setupLogging(cfg, os.Stdout)

	storage, closeStorage, err := setupStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	hub := realtime.NewHub()
	svc, err := provideService(cfg, storage, hub, logger)
	if err != nil {
		_ = closeStorage()
		return nil, err
	}

	if len(cfg.Webhooks.Endpoints) > 0 {
		sink := provideWebhooks(cfg, logger)
		svc.Subscribe(engine.AnyEvent, sink.OnEvent)
	}

	handler := provideHandler(cfg, svc, hub, logger)

	return &App{
		Config:  cfg,
		Logger:  logger,
		Hub:     hub,
		Service: svc,
		Handler: handler,
		Server:  provideServer(cfg, handler),
		closers: []func() error{
			func() error { svc.Close(); return nil },
			closeStorage,
		},
	}, nil
}

// Close releases the event bus and storage connections.
func (a *App) Close() error {
	var first error
	for _, c := range a.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func provideConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	if profile := os.Getenv("ASCND_PROFILE"); profile != "" && profile != "default" {
		cfg, err := config.LoadProfile(profile)
		if err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return cfg, nil
	}
	return config.Load()
}

func provideService(cfg *config.Config, storage engine.Storage, hub *realtime.Hub, logger *slog.Logger) (*engine.Service, error) {
	return local.New(
		local.WithStorage(storage),
		local.WithBoards(toBoards(cfg.Leaderboards)...),
		local.WithDispatchMode(engine.DispatchAsync),
		local.WithRealtime(hub),
		local.WithLogger(logger),
		local.WithIdempotencyTTL(cfg.Server.IdempotencyTTL),
	)
}

func provideWebhooks(cfg *config.Config, logger *slog.Logger) *webhook.Sink {
	events := make([]core.EventType, 0, len(cfg.Webhooks.Events))
	for _, e := range cfg.Webhooks.Events {
		events = append(events, core.EventType(e))
	}
	var client *http.Client
	if cfg.Webhooks.Timeout > 0 {
		client = &http.Client{Timeout: cfg.Webhooks.Timeout}
	}
	return webhook.New(cfg.Webhooks.Endpoints,
		webhook.WithClient(client),
		webhook.WithEvents(events...),
		webhook.WithSecret(cfg.Webhooks.Secret),
		webhook.WithLogger(logger),
	)
}

func provideHandler(cfg *config.Config, svc *engine.Service, hub *realtime.Hub, logger *slog.Logger) http.Handler {
	opts := rpcapi.Options{
		APIKeys:          cfg.Security.APIKeys,
		AllowedOrigins:   cfg.Security.AllowedOrigins,
		RateLimitEnabled: cfg.Security.EnableRateLimit,
		RateLimitRPM:     cfg.Security.RateLimit.RequestsPerMinute,
		RateLimitBurst:   cfg.Security.RateLimit.BurstSize,
		Logger:           logger,
	}
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		opts.Registry = reg
	}
	return rpcapi.NewMux(svc, hub, opts)
}

func provideServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
}

// setupLogging configures the logger based on configuration.
func setupLogging(cfg *config.Config, stdout io.Writer) *slog.Logger {
	var out io.Writer = stdout
	if cfg.Logging.Output == "stderr" {
		out = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Logging.Level),
	}

	var handler slog.Handler
	switch cfg.Logging.Format {
	case "text":
		handler = slog.NewTextHandler(out, opts)
	default:
		handler = slog.NewJSONHandler(out, opts)
	}

	if len(cfg.Logging.Attributes) > 0 {
		handler = handler.WithAttrs(convertAttributes(cfg.Logging.Attributes))
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func convertAttributes(attrs map[string]string) []slog.Attr {
	result := make([]slog.Attr, 0, len(attrs))
	for k, v := range attrs {
		result = append(result, slog.String(k, v))
	}
	return result
}

// setupStorage creates the storage adapter named by configuration and
// returns its close function.
func setupStorage(_ context.Context, cfg *config.Config) (engine.Storage, func() error, error) {
	switch cfg.Storage.Adapter {
	case "memory":
		return mem.New(), func() error { return nil }, nil
	case "redis":
		r := cfg.Storage.Redis
		store, err := redisAdapter.New(redisAdapter.Config{
			Addr:         r.Addr,
			Password:     r.Password,
			DB:           r.DB,
			PoolSize:     r.PoolSize,
			MinIdleConns: r.MinIdleConns,
			DialTimeout:  r.DialTimeout,
			ReadTimeout:  r.ReadTimeout,
			WriteTimeout: r.WriteTimeout,
			KeyPrefix:    r.KeyPrefix,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage adapter: %s", cfg.Storage.Adapter)
	}
}
