package rpcapi

import (
	"context"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"ascnd/core"
	"ascnd/realtime"
)

type metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	eventsTotal     *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	return &metrics{
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ascnd_server_requests_total",
				Help: "Total number of RPCs handled",
			},
			[]string{"procedure", "code"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ascnd_server_request_duration_seconds",
				Help:    "RPC handling time in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"procedure"},
		),
		eventsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ascnd_score_events_total",
				Help: "Score events by leaderboard and type",
			},
			[]string{"leaderboard", "type"},
		),
	}
}

func (m *metrics) interceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			code := "ok"
			if err != nil {
				code = connect.CodeOf(err).String()
			}
			m.requestsTotal.WithLabelValues(req.Spec().Procedure, code).Inc()
			m.requestDuration.WithLabelValues(req.Spec().Procedure).Observe(time.Since(start).Seconds())
			return resp, err
		}
	}
}

func (m *metrics) onEvent(_ context.Context, e core.Event) {
	m.eventsTotal.WithLabelValues(e.LeaderboardID, string(e.Type)).Inc()
}

func (m *metrics) trackSubscribers(reg prometheus.Registerer, hub *realtime.Hub) {
	promauto.With(reg).NewGaugeFunc(prometheus.GaugeOpts{
		Name: "ascnd_stream_subscribers",
		Help: "Connected event stream subscribers",
	}, func() float64 { return float64(hub.Len()) })
}
