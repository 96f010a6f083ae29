package transport

import (
	"context"
	"log/slog"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WithLogger logs every call (procedure, duration, outcome) after auth has run.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Connection) {
		if logger != nil {
			c.extra = append(c.extra, LoggingInterceptor(logger))
		}
	}
}

// WithMetrics records per-procedure call counts and latencies on reg.
// Each registerer can back only one Connection.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *Connection) {
		if reg != nil {
			c.extra = append(c.extra, NewMetrics(reg).Interceptor())
		}
	}
}

// LoggingInterceptor logs completed calls. Failures are logged at warn level.
func LoggingInterceptor(logger *slog.Logger) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			attrs := []any{
				"procedure", req.Spec().Procedure,
				"duration", time.Since(start),
			}
			if err != nil {
				logger.WarnContext(ctx, "ascnd call failed", append(attrs, "code", connect.CodeOf(err).String(), "error", err)...)
				return resp, err
			}
			logger.DebugContext(ctx, "ascnd call", attrs...)
			return resp, nil
		}
	}
}

// Metrics holds the client-side Prometheus collectors.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewMetrics registers the client collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ascnd_client_requests_total",
				Help: "Total number of RPCs issued to the leaderboard service",
			},
			[]string{"procedure", "code"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ascnd_client_request_duration_seconds",
				Help:    "Duration of leaderboard RPCs in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"procedure"},
		),
	}
}

// Interceptor observes each call.
func (m *Metrics) Interceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			procedure := req.Spec().Procedure
			code := "ok"
			if err != nil {
				code = connect.CodeOf(err).String()
			}
			m.requestsTotal.WithLabelValues(procedure, code).Inc()
			m.requestDuration.WithLabelValues(procedure).Observe(time.Since(start).Seconds())
			return resp, err
		}
	}
}
