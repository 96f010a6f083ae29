package rpcapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"connectrpc.com/connect"

	"ascnd/transport"
)

var (
	errMissingAPIKey = errors.New("missing API key")
	errInvalidAPIKey = errors.New("invalid API key")
)

type keySet map[string]struct{}

func newKeySet(apiKeys []string) keySet {
	allowed := make(keySet, len(apiKeys))
	for _, k := range apiKeys {
		k = strings.TrimSpace(k)
		if k != "" {
			allowed[k] = struct{}{}
		}
	}
	return allowed
}

func (k keySet) enabled() bool { return len(k) > 0 }

func (k keySet) check(key string) error {
	if key == "" {
		return errMissingAPIKey
	}
	if _, ok := k[key]; !ok {
		return errInvalidAPIKey
	}
	return nil
}

// authInterceptor enforces the shared API key list on RPCs.
func authInterceptor(keys keySet) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if err := keys.check(extractAPIKey(req.Header())); err != nil {
				return nil, connect.NewError(connect.CodeUnauthenticated, err)
			}
			return next(ctx, req)
		}
	}
}

// requireAPIKey guards plain HTTP routes. Browsers cannot set headers on
// WebSocket handshakes, so the api_key query parameter is accepted too.
func requireAPIKey(next http.Handler, keys keySet) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := extractAPIKey(r.Header)
		if key == "" {
			key = r.URL.Query().Get("api_key")
		}
		if err := keys.check(key); err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func extractAPIKey(h http.Header) string {
	if key := h.Get(transport.APIKeyHeader); key != "" {
		return key
	}
	auth := h.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

// rateLimitInterceptor applies the token bucket per API key, or per peer host.
func rateLimitInterceptor(limiter *rateLimiter) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if !limiter.allow(clientKey(req)) {
				return nil, newError(connect.CodeResourceExhausted, "too many requests", map[string]any{
					"reason":         "RATE_LIMITED",
					"limitPerMinute": limiter.rpm,
				})
			}
			return next(ctx, req)
		}
	}
}

func clientKey(req connect.AnyRequest) string {
	if key := extractAPIKey(req.Header()); key != "" {
		return key
	}
	addr := req.Peer().Addr
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

type rateLimiter struct {
	rpm   float64
	burst float64
	mu    sync.Mutex
	b     map[string]*bucket
	now   func() time.Time
}

type bucket struct {
	tokens float64
	last   time.Time
}

func newRateLimiter(rpm, burst int) *rateLimiter {
	return &rateLimiter{
		rpm:   float64(rpm),
		burst: float64(burst),
		b:     make(map[string]*bucket),
		now:   time.Now,
	}
}

func (l *rateLimiter) allow(key string) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.b[key]
	if !ok {
		l.b[key] = &bucket{tokens: l.burst - 1, last: now}
		return true
	}
	b.tokens += now.Sub(b.last).Minutes() * l.rpm
	if b.tokens > l.burst {
		b.tokens = l.burst
	}
	b.last = now
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

var (
	corsAllowHeaders = strings.Join([]string{
		"Content-Type", "Authorization", transport.APIKeyHeader,
		"Connect-Protocol-Version", "Connect-Timeout-Ms",
		"Grpc-Timeout", "X-Grpc-Web", "X-User-Agent",
	}, ",")
	corsExposeHeaders = strings.Join([]string{
		"Grpc-Status", "Grpc-Message", "Grpc-Status-Details-Bin",
	}, ",")
)

// withCORS lets browser Connect and gRPC-Web clients reach the service.
func withCORS(next http.Handler, origins []string) http.Handler {
	allowAll := false
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case allowAll:
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && allowed[origin]:
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Expose-Headers", corsExposeHeaders)
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", corsAllowHeaders)
			w.Header().Set("Access-Control-Max-Age", "7200")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// loggingInterceptor logs every RPC with its outcome.
func loggingInterceptor(logger *slog.Logger) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			attrs := []any{
				"procedure", req.Spec().Procedure,
				"protocol", req.Peer().Protocol,
				"duration", time.Since(start),
			}
			if err != nil {
				logger.InfoContext(ctx, "rpc failed", append(attrs, "code", connect.CodeOf(err).String(), "error", err)...)
				return resp, err
			}
			logger.DebugContext(ctx, "rpc", attrs...)
			return resp, nil
		}
	}
}
