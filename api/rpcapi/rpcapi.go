package rpcapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	wsadapter "ascnd/adapters/websocket"
	"ascnd/engine"
	"ascnd/realtime"
	"ascnd/transport"
)

// Options configures the RPC surface.
type Options struct {
	// APIKeys, if non-empty, enables static API key auth via x-api-key or Authorization: Bearer.
	APIKeys []string
	// AllowedOrigins enables CORS for browser clients; "*" allows any origin.
	AllowedOrigins []string
	// RateLimitEnabled toggles rate limiting.
	RateLimitEnabled bool
	// RateLimitRPM is the allowed requests per minute per client key.
	RateLimitRPM int
	// RateLimitBurst defines burst capacity.
	RateLimitBurst int
	// Registry, if set, receives server metrics and is served at /metrics.
	Registry *prometheus.Registry
	Logger   *slog.Logger
}

// NewMux builds an http.Handler exposing the leaderboard service.
// Routes:
//   - POST /ascnd.v1.AscndService/{SubmitScore,GetLeaderboard,GetPlayerRank}
//   - GET  /healthz
//   - WS   /ws?leaderboard={id}
//   - GET  /metrics (when Registry is set)
func NewMux(svc *engine.Service, hub *realtime.Hub, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	keys := newKeySet(opts.APIKeys)

	interceptors := []connect.Interceptor{loggingInterceptor(logger)}
	if opts.Registry != nil {
		m := newMetrics(opts.Registry)
		interceptors = append(interceptors, m.interceptor())
		svc.Subscribe(engine.AnyEvent, m.onEvent)
		if hub != nil {
			m.trackSubscribers(opts.Registry, hub)
		}
	}
	if keys.enabled() {
		interceptors = append(interceptors, authInterceptor(keys))
	}
	if opts.RateLimitEnabled && opts.RateLimitRPM > 0 && opts.RateLimitBurst > 0 {
		interceptors = append(interceptors, rateLimitInterceptor(newRateLimiter(opts.RateLimitRPM, opts.RateLimitBurst)))
	}
	handlerOpts := []connect.HandlerOption{
		connect.WithCodec(transport.JSONCodec{}),
		connect.WithInterceptors(interceptors...),
	}

	mux := http.NewServeMux()
	mux.Handle(transport.SubmitScoreProcedure, connect.NewUnaryHandler(
		transport.SubmitScoreProcedure, unary(svc.SubmitScore, logger), handlerOpts...))
	mux.Handle(transport.GetLeaderboardProcedure, connect.NewUnaryHandler(
		transport.GetLeaderboardProcedure, unary(svc.GetLeaderboard, logger), handlerOpts...))
	mux.Handle(transport.GetPlayerRankProcedure, connect.NewUnaryHandler(
		transport.GetPlayerRankProcedure, unary(svc.GetPlayerRank, logger), handlerOpts...))

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		healthCheck(w, r, svc, hub)
	})
	if hub != nil {
		var ws http.Handler = wsadapter.Handler(hub, wsadapter.Options{AllowedOrigins: opts.AllowedOrigins})
		if keys.enabled() {
			ws = requireAPIKey(ws, keys)
		}
		mux.Handle("/ws", ws)
	}
	if opts.Registry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{}))
	}

	var handler http.Handler = mux
	if len(opts.AllowedOrigins) > 0 {
		handler = withCORS(handler, opts.AllowedOrigins)
	}
	return handler
}

// unary adapts a service method to a Connect handler func.
func unary[Req, Res any](fn func(context.Context, *Req) (*Res, error), logger *slog.Logger) func(context.Context, *connect.Request[Req]) (*connect.Response[Res], error) {
	return func(ctx context.Context, req *connect.Request[Req]) (*connect.Response[Res], error) {
		res, err := fn(ctx, req.Msg)
		if err != nil {
			return nil, toConnectError(ctx, logger, err)
		}
		return connect.NewResponse(res), nil
	}
}

// healthCheck pings storage and reports stream subscribers.
func healthCheck(w http.ResponseWriter, r *http.Request, svc *engine.Service, hub *realtime.Hub) {
	checks := map[string]any{"storage": "ok"}
	status := map[string]any{"status": "healthy", "checks": checks}
	if hub != nil {
		checks["subscribers"] = hub.Len()
	}
	code := http.StatusOK
	if err := svc.Ping(r.Context()); err != nil {
		code = http.StatusServiceUnavailable
		status["status"] = "unhealthy"
		checks["storage"] = "failed"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(status)
}
