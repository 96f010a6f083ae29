package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"ascnd/core"
)

// DefaultIdempotencyTTL is how long an idempotency key is remembered.
const DefaultIdempotencyTTL = 24 * time.Hour

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger used for anticheat decisions.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithIdempotencyTTL sets how long submissions are remembered by key.
func WithIdempotencyTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.idemTTL = ttl
		}
	}
}

// Service ranks scores across the configured leaderboards.
type Service struct {
	storage Storage
	bus     *EventBus
	boards  map[string]*Board
	now     func() time.Time
	epoch   time.Time
	idemTTL time.Duration
	logger  *slog.Logger
}

func NewService(storage Storage, bus *EventBus, boards []Board, opts ...Option) (*Service, error) {
	if storage == nil || bus == nil {
		panic("NewService requires non-nil storage and bus")
	}
	s := &Service{
		storage: storage,
		bus:     bus,
		boards:  make(map[string]*Board, len(boards)),
		now:     time.Now,
		idemTTL: DefaultIdempotencyTTL,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.epoch = s.now().UTC()
	for _, b := range boards {
		if err := b.validate(); err != nil {
			return nil, err
		}
		if _, dup := s.boards[b.ID]; dup {
			return nil, fmt.Errorf("duplicate leaderboard %s", b.ID)
		}
		b.Brackets = append([]Bracket(nil), b.Brackets...)
		b.sortBrackets()
		s.boards[b.ID] = &b
	}
	return s, nil
}

// Subscribe convenience method.
func (s *Service) Subscribe(typ core.EventType, handler func(context.Context, core.Event)) func() {
	return s.bus.Subscribe(typ, handler)
}

// Ping checks the storage backend.
func (s *Service) Ping(ctx context.Context) error { return s.storage.Ping(ctx) }

func (s *Service) Close() { s.bus.Close() }

func (s *Service) board(id string) (*Board, error) {
	b, ok := s.boards[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLeaderboard, id)
	}
	return b, nil
}

func (s *Service) SubmitScore(ctx context.Context, req *core.SubmitScoreRequest) (*core.SubmitScoreResponse, error) {
	if req == nil || strings.TrimSpace(req.PlayerID) == "" {
		return nil, fmt.Errorf("%w: player id is required", ErrInvalidRequest)
	}
	b, err := s.board(req.LeaderboardID)
	if err != nil {
		return nil, err
	}

	var v verdict
	idemKey := ""
	if req.IdempotencyKey != nil {
		idemKey = *req.IdempotencyKey
	}
	keyTaken := false
	if idemKey != "" {
		prev, err := s.storage.LoadSubmission(ctx, b.ID, idemKey)
		if err != nil {
			return nil, fmt.Errorf("load submission: %w", err)
		}
		if prev != nil {
			if prev.Matches(req) {
				return s.replay(ctx, b, prev), nil
			}
			keyTaken = true
			v.add(core.FlagDuplicateIdempotency, core.ActionReject, "idempotency key was already used with a different payload")
		}
	}

	if b.Anticheat.Enabled {
		b.Anticheat.checkStatic(req, &v)
		if b.Anticheat.MaxSubmissions > 0 {
			n, err := s.storage.CountSubmission(ctx, b.ID, req.PlayerID, b.Anticheat.window())
			if err != nil {
				return nil, fmt.Errorf("count submissions: %w", err)
			}
			if n > b.Anticheat.MaxSubmissions {
				v.add(core.FlagVelocityExceeded, b.Anticheat.action(),
					fmt.Sprintf("%d submissions within %s exceeds %d", n, b.Anticheat.window(), b.Anticheat.MaxSubmissions))
			}
		}
	}

	resp := &core.SubmitScoreResponse{ScoreID: uuid.NewString()}
	if b.Anticheat.Enabled || len(v.violations) > 0 {
		resp.Anticheat = v.result()
	}

	if v.action == core.ActionReject {
		s.logger.InfoContext(ctx, "score rejected", "leaderboard", b.ID, "player", req.PlayerID, "violations", len(v.violations))
		s.bus.Publish(ctx, core.NewScoreRejected(b.ID, req.PlayerID, req.Score, v.action))
		if idemKey != "" && !keyTaken {
			if replay, err := s.remember(ctx, b, idemKey, req, resp); err != nil || replay != nil {
				return replay, err
			}
		}
		return resp, nil
	}

	w, err := b.resolve(core.Period{Kind: core.PeriodKindCurrent}, s.now(), s.epoch)
	if err != nil {
		return nil, err
	}
	key := BoardKey{Board: b.ID, Period: w.key}
	score := Score{Player: req.PlayerID, Value: req.Score, Metadata: req.Metadata}
	improved, err := s.storage.SubmitBest(ctx, key, score)
	if err != nil {
		return nil, fmt.Errorf("store score: %w", err)
	}
	if w.key != AllTimePeriod {
		if _, err := s.storage.SubmitBest(ctx, BoardKey{Board: b.ID, Period: AllTimePeriod}, score); err != nil {
			return nil, fmt.Errorf("store all-time score: %w", err)
		}
	}
	if v.action == core.ActionShadowBan {
		s.logger.InfoContext(ctx, "player shadow banned", "leaderboard", b.ID, "player", req.PlayerID)
		if err := s.storage.BanPlayer(ctx, b.ID, req.PlayerID); err != nil {
			return nil, fmt.Errorf("ban player: %w", err)
		}
	}

	rank, _, _, err := s.position(ctx, key, nil, req.PlayerID)
	if err != nil {
		return nil, err
	}
	resp.Rank = uint32(rank)
	resp.IsNewBest = improved

	if idemKey != "" && !keyTaken {
		if replay, err := s.remember(ctx, b, idemKey, req, resp); err != nil || replay != nil {
			return replay, err
		}
	}

	if v.action != core.ActionShadowBan {
		s.bus.Publish(ctx, core.NewScoreSubmitted(b.ID, req.PlayerID, resp.ScoreID, req.Score, resp.Rank))
		if improved {
			s.bus.Publish(ctx, core.NewBest(b.ID, req.PlayerID, resp.ScoreID, req.Score, resp.Rank))
		}
	}
	return resp, nil
}

// remember stores resp under idemKey. If a concurrent submission claimed the
// key first, its response is replayed instead.
func (s *Service) remember(ctx context.Context, b *Board, idemKey string, req *core.SubmitScoreRequest, resp *core.SubmitScoreResponse) (*core.SubmitScoreResponse, error) {
	sub := Submission{PlayerID: req.PlayerID, Score: req.Score, Metadata: req.Metadata, Response: *resp}
	saved, err := s.storage.SaveSubmission(ctx, b.ID, idemKey, sub, s.idemTTL)
	if err != nil {
		return nil, fmt.Errorf("save submission: %w", err)
	}
	if saved {
		return nil, nil
	}
	prev, err := s.storage.LoadSubmission(ctx, b.ID, idemKey)
	if err != nil {
		return nil, fmt.Errorf("load submission: %w", err)
	}
	if prev == nil || !prev.Matches(req) {
		return nil, nil
	}
	return s.replay(ctx, b, prev), nil
}

func (s *Service) replay(ctx context.Context, b *Board, prev *Submission) *core.SubmitScoreResponse {
	resp := prev.Response
	resp.WasDeduplicated = true
	s.bus.Publish(ctx, core.NewScoreDeduplicated(b.ID, prev.PlayerID, resp.ScoreID, prev.Score))
	return &resp
}

func (s *Service) GetLeaderboard(ctx context.Context, req *core.GetLeaderboardRequest) (*core.GetLeaderboardResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: request is required", ErrInvalidRequest)
	}
	b, w, view, err := s.target(req.LeaderboardID, req.Period, req.ViewSlug)
	if err != nil {
		return nil, err
	}
	key := BoardKey{Board: b.ID, Period: w.key}
	limit := core.ClampLimit(req.Limit)
	offset := core.EffectiveOffset(req.Offset)

	banned, err := s.storage.BannedPlayers(ctx, b.ID)
	if err != nil {
		return nil, fmt.Errorf("load banned players: %w", err)
	}
	var page []Score
	var total int
	if view == nil && len(banned) == 0 {
		if total, err = s.storage.Count(ctx, key); err != nil {
			return nil, fmt.Errorf("count entries: %w", err)
		}
		if page, err = s.storage.Range(ctx, key, offset, limit); err != nil {
			return nil, fmt.Errorf("range entries: %w", err)
		}
	} else {
		all, err := s.standings(ctx, key, view, banned, "")
		if err != nil {
			return nil, err
		}
		total = len(all)
		if offset < total {
			page = all[offset:min(offset+limit, total)]
		}
	}

	entries := make([]core.LeaderboardEntry, 0, len(page))
	for i, sc := range page {
		rank := offset + i + 1
		entries = append(entries, core.LeaderboardEntry{
			Rank:     uint32(rank),
			PlayerID: sc.Player,
			Score:    sc.Value,
			Metadata: sc.Metadata,
			Bracket:  b.bracketFor(Percentile(rank, total)),
		})
	}
	resp := &core.GetLeaderboardResponse{
		Entries:      entries,
		TotalEntries: uint32(total),
		PeriodStart:  w.start,
		PeriodEnd:    w.end,
		HasMore:      core.HasMore(offset, len(entries), total),
	}
	if view != nil {
		resp.View = &core.ViewInfo{Slug: view.Slug, Name: view.Name}
	}
	return resp, nil
}

func (s *Service) GetPlayerRank(ctx context.Context, req *core.GetPlayerRankRequest) (*core.GetPlayerRankResponse, error) {
	if req == nil || strings.TrimSpace(req.PlayerID) == "" {
		return nil, fmt.Errorf("%w: player id is required", ErrInvalidRequest)
	}
	b, w, view, err := s.target(req.LeaderboardID, req.Period, req.ViewSlug)
	if err != nil {
		return nil, err
	}
	key := BoardKey{Board: b.ID, Period: w.key}

	rank, total, sc, err := s.position(ctx, key, view, req.PlayerID)
	if err != nil {
		return nil, err
	}
	resp := &core.GetPlayerRankResponse{TotalEntries: uint32(total)}
	if rank == 0 {
		return resp, nil
	}

	best := sc.Value
	if w.key != AllTimePeriod {
		if allTime, ok, err := s.storage.Score(ctx, BoardKey{Board: b.ID, Period: AllTimePeriod}, req.PlayerID); err != nil {
			return nil, fmt.Errorf("load best score: %w", err)
		} else if ok {
			best = allTime.Value
		}
	}
	pct := Percentile(rank, total)
	resp.Rank = core.Ptr(uint32(rank))
	resp.Score = core.Ptr(sc.Value)
	resp.BestScore = core.Ptr(best)
	resp.Percentile = core.Ptr(pct)
	resp.Bracket = b.bracketFor(pct)
	if view != nil {
		global, _, _, err := s.position(ctx, key, nil, req.PlayerID)
		if err != nil {
			return nil, err
		}
		if global > 0 {
			resp.GlobalRank = core.Ptr(uint32(global))
		}
	}
	return resp, nil
}

func (s *Service) target(id string, period, viewSlug *string) (*Board, window, *View, error) {
	b, err := s.board(id)
	if err != nil {
		return nil, window{}, nil, err
	}
	p, err := core.ParsePeriod(period)
	if err != nil {
		return nil, window{}, nil, err
	}
	view, err := b.view(viewSlug)
	if err != nil {
		return nil, window{}, nil, err
	}
	w, err := b.resolve(p, s.now(), s.epoch)
	if err != nil {
		return nil, window{}, nil, err
	}
	return b, w, view, nil
}

// position returns the 1-based rank of player as that player sees the board,
// the number of entries they see, and their score. Rank 0 means unranked.
func (s *Service) position(ctx context.Context, key BoardKey, view *View, player string) (int, int, Score, error) {
	banned, err := s.storage.BannedPlayers(ctx, key.Board)
	if err != nil {
		return 0, 0, Score{}, fmt.Errorf("load banned players: %w", err)
	}
	if view == nil && len(banned) == 0 {
		total, err := s.storage.Count(ctx, key)
		if err != nil {
			return 0, 0, Score{}, fmt.Errorf("count entries: %w", err)
		}
		rank, ok, err := s.storage.Rank(ctx, key, player)
		if err != nil || !ok {
			return 0, total, Score{}, err
		}
		sc, ok, err := s.storage.Score(ctx, key, player)
		if err != nil || !ok {
			return 0, total, Score{}, err
		}
		return rank, total, sc, nil
	}

	all, err := s.standings(ctx, key, view, banned, player)
	if err != nil {
		return 0, 0, Score{}, err
	}
	for i, sc := range all {
		if sc.Player == player {
			return i + 1, len(all), sc, nil
		}
	}
	return 0, len(all), Score{}, nil
}

// standings lists a period in rank order with banned players hidden, except
// from themselves, and only entries matching view.
func (s *Service) standings(ctx context.Context, key BoardKey, view *View, banned map[string]bool, viewer string) ([]Score, error) {
	n, err := s.storage.Count(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("count entries: %w", err)
	}
	all, err := s.storage.Range(ctx, key, 0, n)
	if err != nil {
		return nil, fmt.Errorf("range entries: %w", err)
	}
	out := make([]Score, 0, len(all))
	for _, sc := range all {
		if banned[sc.Player] && sc.Player != viewer {
			continue
		}
		if view != nil && !view.matches(sc.Metadata) {
			continue
		}
		out = append(out, sc)
	}
	return out, nil
}
