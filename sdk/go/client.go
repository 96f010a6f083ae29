package sdk

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"ascnd/config"
	"ascnd/core"
	"ascnd/transport"
)

// Client provides typed access to the leaderboard service. It is immutable
// after construction and safe for concurrent use.
type Client struct {
	conn *transport.Connection

	submitScore    *transport.Unary[core.SubmitScoreRequest, core.SubmitScoreResponse]
	getLeaderboard *transport.Unary[core.GetLeaderboardRequest, core.GetLeaderboardResponse]
	getPlayerRank  *transport.Unary[core.GetPlayerRankRequest, core.GetPlayerRankResponse]
}

// NewClient validates cfg and constructs a client. Configuration problems are
// reported as *transport.ConfigurationError; nothing is sent over the network.
func NewClient(cfg transport.Config, opts ...transport.Option) (*Client, error) {
	conn, err := transport.Build(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return NewClientFromConnection(conn), nil
}

// NewClientFromEnv builds a client from the ASCND_* environment variables.
func NewClientFromEnv(opts ...transport.Option) (*Client, error) {
	cfg, err := config.ClientFromEnv()
	if err != nil {
		return nil, err
	}
	return NewClient(cfg, opts...)
}

// NewClientFromConnection binds the three procedures to an existing connection.
func NewClientFromConnection(conn *transport.Connection) *Client {
	return &Client{
		conn:           conn,
		submitScore:    transport.NewUnary[core.SubmitScoreRequest, core.SubmitScoreResponse](conn, transport.SubmitScoreProcedure),
		getLeaderboard: transport.NewUnary[core.GetLeaderboardRequest, core.GetLeaderboardResponse](conn, transport.GetLeaderboardProcedure),
		getPlayerRank:  transport.NewUnary[core.GetPlayerRankRequest, core.GetPlayerRankResponse](conn, transport.GetPlayerRankProcedure),
	}
}

// Connection exposes the underlying transport state.
func (c *Client) Connection() *transport.Connection { return c.conn }

// Close releases idle HTTP connections.
func (c *Client) Close() { c.conn.Close() }

// SubmitScore records a score for a player.
func (c *Client) SubmitScore(ctx context.Context, req *core.SubmitScoreRequest) (*core.SubmitScoreResponse, error) {
	resp, err := c.submitScore.Call(ctx, req)
	if err != nil {
		return nil, Normalize(err)
	}
	return resp, nil
}

// GetLeaderboard fetches a page of ranked entries.
func (c *Client) GetLeaderboard(ctx context.Context, req *core.GetLeaderboardRequest) (*core.GetLeaderboardResponse, error) {
	resp, err := c.getLeaderboard.Call(ctx, req)
	if err != nil {
		return nil, Normalize(err)
	}
	return resp, nil
}

// GetPlayerRank looks up one player's standing. A player with no score is
// not an error: the response has Rank == nil.
func (c *Client) GetPlayerRank(ctx context.Context, req *core.GetPlayerRankRequest) (*core.GetPlayerRankResponse, error) {
	resp, err := c.getPlayerRank.Call(ctx, req)
	if err != nil {
		return nil, Normalize(err)
	}
	return resp, nil
}

// Health probes /healthz on the service endpoint.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, c.conn.Timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.conn.Endpoint()+"/healthz", nil)
	if err != nil {
		return HealthStatus{}, Normalize(err)
	}
	for k, vals := range c.conn.AuthHeader() {
		req.Header[k] = vals
	}

	resp, err := c.conn.HTTPClient().Do(req)
	if err != nil {
		return HealthStatus{}, Normalize(err)
	}
	defer resp.Body.Close()

	var hs HealthStatus
	if err := decodeJSON(resp, &hs); err != nil {
		return HealthStatus{}, Normalize(err)
	}
	return hs, nil
}

// SubscribeEvents connects to the service's event stream and emits
// core.Event values. The channel closes when ctx is done or the connection drops.
func (c *Client) SubscribeEvents(ctx context.Context) (<-chan core.Event, error) {
	wsURL := deriveWSURL(c.conn.Endpoint())
	if wsURL == "" {
		return nil, Normalize(errors.New("endpoint is not an http(s) URL"))
	}
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	ws, _, err := dialer.DialContext(ctx, wsURL, c.conn.AuthHeader())
	if err != nil {
		return nil, Normalize(err)
	}

	out := make(chan core.Event, 32)
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = ws.Close()
		case <-done:
		}
	}()
	go func() {
		defer close(out)
		defer close(done)
		defer ws.Close()
		for {
			var evt core.Event
			if err := ws.ReadJSON(&evt); err != nil {
				return
			}
			select {
			case out <- evt:
			case <-ctx.Done():
				return
			default:
				// slow consumer
			}
		}
	}()
	return out, nil
}

func deriveWSURL(httpBase string) string {
	u, err := url.Parse(httpBase)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		return ""
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String()
}
