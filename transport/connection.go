package transport

import (
	"context"
	"net/http"
	"time"

	"connectrpc.com/connect"
)

// Option customizes a Connection. Interceptors added through options always
// run after the auth interceptor.
type Option func(*Connection)

// WithHTTPClient sets the HTTP client used for calls.
func WithHTTPClient(h connect.HTTPClient) Option {
	return func(c *Connection) {
		if h != nil {
			c.httpClient = h
			c.ownedClient = nil
		}
	}
}

// WithInterceptors appends interceptors to the call chain.
func WithInterceptors(interceptors ...connect.Interceptor) Option {
	return func(c *Connection) {
		c.extra = append(c.extra, interceptors...)
	}
}

// Connection is the prepared, immutable state shared by every call: target,
// per-call timeout and interceptor chain. It is safe for concurrent use.
type Connection struct {
	endpoint    string
	apiKey      string
	timeout     time.Duration
	protocol    Protocol
	httpClient  connect.HTTPClient
	ownedClient *http.Client
	extra       []connect.Interceptor
	chain       []connect.Interceptor
}

// Build validates cfg and prepares a Connection. It performs no I/O.
func Build(cfg Config, opts ...Option) (*Connection, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	owned := &http.Client{}
	c := &Connection{
		endpoint:    cfg.Endpoint,
		apiKey:      cfg.APIKey,
		timeout:     cfg.Timeout,
		protocol:    cfg.Protocol,
		httpClient:  owned,
		ownedClient: owned,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.chain = make([]connect.Interceptor, 0, len(c.extra)+1)
	c.chain = append(c.chain, AuthInterceptor(cfg.APIKey))
	c.chain = append(c.chain, c.extra...)
	return c, nil
}

// Endpoint returns the normalized base URL.
func (c *Connection) Endpoint() string { return c.endpoint }

// Timeout returns the per-call deadline.
func (c *Connection) Timeout() time.Duration { return c.timeout }

// Protocol returns the wire protocol.
func (c *Connection) Protocol() Protocol { return c.protocol }

// HTTPClient returns the client calls are sent through.
func (c *Connection) HTTPClient() connect.HTTPClient { return c.httpClient }

// AuthHeader returns a fresh header set carrying the API key, for requests
// made outside the RPC chain.
func (c *Connection) AuthHeader() http.Header {
	h := make(http.Header)
	h.Set(APIKeyHeader, c.apiKey)
	return h
}

// Interceptors returns a copy of the call chain, outermost first.
func (c *Connection) Interceptors() []connect.Interceptor {
	return append([]connect.Interceptor(nil), c.chain...)
}

// Close releases idle connections held by a Connection-owned HTTP client.
func (c *Connection) Close() {
	if c.ownedClient != nil {
		c.ownedClient.CloseIdleConnections()
	}
}

func (c *Connection) clientOptions() []connect.ClientOption {
	opts := []connect.ClientOption{
		connect.WithCodec(JSONCodec{}),
		connect.WithInterceptors(c.chain...),
	}
	if c.protocol == ProtocolGRPCWeb {
		opts = append(opts, connect.WithGRPCWeb())
	}
	return opts
}

// Unary is a typed caller for one unary procedure.
type Unary[Req, Res any] struct {
	procedure string
	client    *connect.Client[Req, Res]
	timeout   time.Duration
}

// NewUnary binds procedure to conn.
func NewUnary[Req, Res any](conn *Connection, procedure string) *Unary[Req, Res] {
	return &Unary[Req, Res]{
		procedure: procedure,
		client:    connect.NewClient[Req, Res](conn.httpClient, conn.endpoint+procedure, conn.clientOptions()...),
		timeout:   conn.timeout,
	}
}

// Procedure returns the bound procedure path.
func (u *Unary[Req, Res]) Procedure() string { return u.procedure }

// Call sends req and waits at most the connection timeout for the response.
// Errors are returned exactly as the transport produced them.
func (u *Unary[Req, Res]) Call(ctx context.Context, req *Req) (*Res, error) {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	resp, err := u.client.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}
