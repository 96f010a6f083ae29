package transport

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ascnd/core"
)

// countingClient fails the test if Build ever reaches the network.
type countingClient struct{ calls int32 }

func (c *countingClient) Do(*http.Request) (*http.Response, error) {
	atomic.AddInt32(&c.calls, 1)
	return nil, errors.New("unexpected network call")
}

// newScoreServer serves SubmitScore and reports the x-api-key header of each call.
func newScoreServer(t *testing.T, delay time.Duration) (*httptest.Server, <-chan string) {
	t.Helper()
	keys := make(chan string, 16)
	mux := http.NewServeMux()
	mux.Handle(SubmitScoreProcedure, connect.NewUnaryHandler(
		SubmitScoreProcedure,
		func(ctx context.Context, req *connect.Request[core.SubmitScoreRequest]) (*connect.Response[core.SubmitScoreResponse], error) {
			keys <- req.Header().Get(APIKeyHeader)
			if delay > 0 {
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return nil, connect.NewError(connect.CodeDeadlineExceeded, ctx.Err())
				}
			}
			return connect.NewResponse(&core.SubmitScoreResponse{ScoreID: "s-" + req.Msg.PlayerID, Rank: 1}), nil
		},
		connect.WithCodec(JSONCodec{}),
	))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, keys
}

func TestBuild_InvalidConfig(t *testing.T) {
	tests := []struct {
		name  string
		cfg   Config
		field string
	}{
		{"empty endpoint", Config{APIKey: "k"}, "endpoint"},
		{"blank endpoint", Config{Endpoint: "   ", APIKey: "k"}, "endpoint"},
		{"empty api key", Config{Endpoint: "http://localhost"}, "api_key"},
		{"both empty", Config{}, "endpoint"},
		{"negative timeout", Config{Endpoint: "http://localhost", APIKey: "k", Timeout: -time.Second}, "timeout"},
		{"unknown protocol", Config{Endpoint: "http://localhost", APIKey: "k", Protocol: "websocket"}, "protocol"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := &countingClient{}
			conn, err := Build(tt.cfg, WithHTTPClient(hc))
			require.Error(t, err)
			assert.Nil(t, conn)

			var cfgErr *ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.field, cfgErr.Field)
			assert.Zero(t, atomic.LoadInt32(&hc.calls))
		})
	}
}

func TestBuild_Defaults(t *testing.T) {
	conn, err := Build(Config{Endpoint: " https://api.ascnd.gg/// ", APIKey: "k"})
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, "https://api.ascnd.gg", conn.Endpoint())
	assert.Equal(t, DefaultTimeout, conn.Timeout())
	assert.Equal(t, ProtocolConnect, conn.Protocol())
	assert.Len(t, conn.Interceptors(), 1, "auth must be the only link by default")
}

func TestConfig_Redacted(t *testing.T) {
	cfg := Config{Endpoint: "http://x", APIKey: "secret"}
	assert.Equal(t, "[REDACTED]", cfg.Redacted().APIKey)
	assert.Equal(t, "secret", cfg.APIKey)
}

func TestUnary_SendsAPIKeyOnEveryCall(t *testing.T) {
	srv, keys := newScoreServer(t, 0)

	conn, err := Build(Config{Endpoint: srv.URL + "/", APIKey: "key-123"})
	require.NoError(t, err)
	call := NewUnary[core.SubmitScoreRequest, core.SubmitScoreResponse](conn, SubmitScoreProcedure)

	for i := 0; i < 3; i++ {
		resp, err := call.Call(context.Background(), &core.SubmitScoreRequest{LeaderboardID: "lb", PlayerID: "p1", Score: 10})
		require.NoError(t, err)
		assert.Equal(t, "s-p1", resp.ScoreID)
		assert.Equal(t, "key-123", <-keys)
	}
}

func TestUnary_GRPCWeb(t *testing.T) {
	srv, keys := newScoreServer(t, 0)

	conn, err := Build(Config{Endpoint: srv.URL, APIKey: "web-key", Protocol: ProtocolGRPCWeb})
	require.NoError(t, err)
	call := NewUnary[core.SubmitScoreRequest, core.SubmitScoreResponse](conn, SubmitScoreProcedure)

	resp, err := call.Call(context.Background(), &core.SubmitScoreRequest{PlayerID: "p2"})
	require.NoError(t, err)
	assert.Equal(t, "s-p2", resp.ScoreID)
	assert.Equal(t, "web-key", <-keys)
}

func TestAuthInterceptor_RunsBeforeShortCircuit(t *testing.T) {
	errStop := errors.New("stopped by middleware")
	var seen string
	stop := connect.UnaryInterceptorFunc(func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			seen = req.Header().Get(APIKeyHeader)
			return nil, errStop
		}
	})

	hc := &countingClient{}
	conn, err := Build(Config{Endpoint: "http://localhost:1", APIKey: "k-first"}, WithHTTPClient(hc), WithInterceptors(stop))
	require.NoError(t, err)
	require.Len(t, conn.Interceptors(), 2)

	call := NewUnary[core.SubmitScoreRequest, core.SubmitScoreResponse](conn, SubmitScoreProcedure)
	_, err = call.Call(context.Background(), &core.SubmitScoreRequest{})

	assert.ErrorIs(t, err, errStop)
	assert.Equal(t, "k-first", seen)
	assert.Zero(t, atomic.LoadInt32(&hc.calls))
}

func TestUnary_TimeoutIsPerCall(t *testing.T) {
	srv, _ := newScoreServer(t, time.Second)

	conn, err := Build(Config{Endpoint: srv.URL, APIKey: "k", Timeout: 50 * time.Millisecond})
	require.NoError(t, err)
	call := NewUnary[core.SubmitScoreRequest, core.SubmitScoreResponse](conn, SubmitScoreProcedure)

	start := time.Now()
	_, err = call.Call(context.Background(), &core.SubmitScoreRequest{})
	require.Error(t, err)
	assert.Equal(t, connect.CodeDeadlineExceeded, connect.CodeOf(err))
	assert.Less(t, time.Since(start), 900*time.Millisecond)
}

func TestWithMetricsAndLogger(t *testing.T) {
	srv, _ := newScoreServer(t, 0)

	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	conn, err := Build(Config{Endpoint: srv.URL, APIKey: "k"},
		WithInterceptors(metrics.Interceptor()),
		WithLogger(logger),
	)
	require.NoError(t, err)
	assert.Len(t, conn.Interceptors(), 3)

	call := NewUnary[core.SubmitScoreRequest, core.SubmitScoreResponse](conn, SubmitScoreProcedure)
	_, err = call.Call(context.Background(), &core.SubmitScoreRequest{PlayerID: "p"})
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.requestsTotal.WithLabelValues(SubmitScoreProcedure, "ok")))
	assert.Contains(t, logs.String(), SubmitScoreProcedure)
}
