package local

import (
	"log/slog"
	"time"

	mem "ascnd/adapters/memory"
	"ascnd/engine"
	"ascnd/realtime"
)

// DefaultBoard is served when no boards are configured.
var DefaultBoard = engine.Board{ID: "high-scores", Name: "High Scores"}

// Option configures the service builder.
type Option func(*config)

type config struct {
	storage engine.Storage
	mode    engine.DispatchMode
	boards  []engine.Board
	hub     *realtime.Hub
	logger  *slog.Logger
	ttl     time.Duration
}

// WithStorage sets the persistence adapter.
func WithStorage(s engine.Storage) Option { return func(c *config) { c.storage = s } }

// WithBoards sets the leaderboards to serve.
func WithBoards(boards ...engine.Board) Option {
	return func(c *config) { c.boards = append(c.boards, boards...) }
}

// WithDispatchMode selects sync or async event dispatch.
func WithDispatchMode(m engine.DispatchMode) Option { return func(c *config) { c.mode = m } }

// WithRealtime forwards every score event to the hub.
func WithRealtime(h *realtime.Hub) Option { return func(c *config) { c.hub = h } }

func WithLogger(l *slog.Logger) Option { return func(c *config) { c.logger = l } }

// WithIdempotencyTTL overrides how long submissions are replayable.
func WithIdempotencyTTL(d time.Duration) Option { return func(c *config) { c.ttl = d } }

// New builds a leaderboard service. Defaults:
//   - storage: in-memory
//   - boards: DefaultBoard
//   - dispatch: async
func New(opts ...Option) (*engine.Service, error) {
	cfg := &config{mode: engine.DispatchAsync}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.storage == nil {
		cfg.storage = mem.New()
	}
	if len(cfg.boards) == 0 {
		cfg.boards = []engine.Board{DefaultBoard}
	}

	var svcOpts []engine.Option
	if cfg.logger != nil {
		svcOpts = append(svcOpts, engine.WithLogger(cfg.logger))
	}
	if cfg.ttl > 0 {
		svcOpts = append(svcOpts, engine.WithIdempotencyTTL(cfg.ttl))
	}

	svc, err := engine.NewService(cfg.storage, engine.NewEventBus(cfg.mode), cfg.boards, svcOpts...)
	if err != nil {
		return nil, err
	}
	if cfg.hub != nil {
		svc.Subscribe(engine.AnyEvent, cfg.hub.Broadcast)
	}
	return svc, nil
}
