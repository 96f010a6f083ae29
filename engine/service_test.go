package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mem "ascnd/adapters/memory"
	"ascnd/core"
	"ascnd/engine"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newService(t *testing.T, boards ...engine.Board) (*engine.Service, *clock) {
	t.Helper()
	clk := &clock{t: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	store := mem.New().WithClock(clk.now)
	svc, err := engine.NewService(store, engine.NewEventBus(engine.DispatchSync), boards, engine.WithClock(clk.now))
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return svc, clk
}

func submit(t *testing.T, svc *engine.Service, board, player string, score int64) *core.SubmitScoreResponse {
	t.Helper()
	resp, err := svc.SubmitScore(context.Background(), &core.SubmitScoreRequest{LeaderboardID: board, PlayerID: player, Score: score})
	require.NoError(t, err)
	return resp
}

func TestSubmitScore_RanksAndBest(t *testing.T) {
	svc, _ := newService(t, engine.Board{ID: "high-scores"})

	var events []core.EventType
	svc.Subscribe(engine.AnyEvent, func(_ context.Context, e core.Event) { events = append(events, e.Type) })

	r1 := submit(t, svc, "high-scores", "p1", 1000)
	assert.NotEmpty(t, r1.ScoreID)
	assert.Equal(t, uint32(1), r1.Rank)
	assert.True(t, r1.IsNewBest)
	assert.Nil(t, r1.Anticheat)

	r2 := submit(t, svc, "high-scores", "p2", 2000)
	assert.Equal(t, uint32(1), r2.Rank)

	r3 := submit(t, svc, "high-scores", "p1", 500)
	assert.False(t, r3.IsNewBest)
	assert.Equal(t, uint32(2), r3.Rank)

	assert.Equal(t, []core.EventType{
		core.EventScoreSubmitted, core.EventNewBest,
		core.EventScoreSubmitted, core.EventNewBest,
		core.EventScoreSubmitted,
	}, events)
}

func TestSubmitScore_IdempotentReplay(t *testing.T) {
	svc, _ := newService(t, engine.Board{ID: "lb"})
	ctx := context.Background()
	req := &core.SubmitScoreRequest{LeaderboardID: "lb", PlayerID: "p1", Score: 10, IdempotencyKey: core.Ptr("key-1")}

	first, err := svc.SubmitScore(ctx, req)
	require.NoError(t, err)
	assert.False(t, first.WasDeduplicated)

	second, err := svc.SubmitScore(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.WasDeduplicated)
	assert.Equal(t, first.ScoreID, second.ScoreID)
	assert.Equal(t, first.Rank, second.Rank)
}

func TestSubmitScore_ReusedKeyDifferentPayloadRejected(t *testing.T) {
	svc, _ := newService(t, engine.Board{ID: "lb"})
	ctx := context.Background()

	_, err := svc.SubmitScore(ctx, &core.SubmitScoreRequest{LeaderboardID: "lb", PlayerID: "p1", Score: 10, IdempotencyKey: core.Ptr("k")})
	require.NoError(t, err)

	resp, err := svc.SubmitScore(ctx, &core.SubmitScoreRequest{LeaderboardID: "lb", PlayerID: "p1", Score: 99, IdempotencyKey: core.Ptr("k")})
	require.NoError(t, err)
	require.NotNil(t, resp.Anticheat)
	assert.False(t, resp.Anticheat.Passed)
	assert.Equal(t, core.ActionReject, resp.Anticheat.Action)
	require.Len(t, resp.Anticheat.Violations, 1)
	assert.Equal(t, core.FlagDuplicateIdempotency, resp.Anticheat.Violations[0].FlagType)
	assert.False(t, resp.WasDeduplicated)

	rank, err := svc.GetPlayerRank(ctx, &core.GetPlayerRankRequest{LeaderboardID: "lb", PlayerID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, int64(10), *rank.Score, "rejected score must not be stored")
}

func TestSubmitScore_AnticheatActions(t *testing.T) {
	policy := func(action core.AnticheatAction) engine.AnticheatPolicy {
		return engine.AnticheatPolicy{Enabled: true, MaxScore: core.Ptr(int64(1000)), Action: action}
	}
	svc, _ := newService(t,
		engine.Board{ID: "flag", Anticheat: policy(core.ActionFlag)},
		engine.Board{ID: "reject", Anticheat: policy(core.ActionReject)},
	)
	ctx := context.Background()

	ok := submit(t, svc, "flag", "p1", 10)
	require.NotNil(t, ok.Anticheat)
	assert.True(t, ok.Anticheat.Passed)
	assert.Equal(t, core.ActionNone, ok.Anticheat.Action)

	flagged := submit(t, svc, "flag", "p2", 5000)
	assert.False(t, flagged.Anticheat.Passed)
	assert.Equal(t, core.ActionFlag, flagged.Anticheat.Action)
	assert.Equal(t, uint32(1), flagged.Rank, "flagged scores still count")

	rejected := submit(t, svc, "reject", "p3", 5000)
	assert.Equal(t, core.ActionReject, rejected.Anticheat.Action)
	assert.Zero(t, rejected.Rank)

	board, err := svc.GetLeaderboard(ctx, &core.GetLeaderboardRequest{LeaderboardID: "reject"})
	require.NoError(t, err)
	assert.Zero(t, board.TotalEntries)
}

func TestSubmitScore_VelocityAndMissingKey(t *testing.T) {
	svc, clk := newService(t, engine.Board{ID: "lb", Anticheat: engine.AnticheatPolicy{
		Enabled:               true,
		MaxSubmissions:        2,
		Window:                time.Minute,
		RequireIdempotencyKey: true,
		Action:                core.ActionFlag,
	}})

	r := submit(t, svc, "lb", "p1", 1)
	require.Len(t, r.Anticheat.Violations, 1)
	assert.Equal(t, core.FlagMissingIdempotencyKey, r.Anticheat.Violations[0].FlagType)

	submit(t, svc, "lb", "p1", 2)
	r = submit(t, svc, "lb", "p1", 3)
	var flags []core.AnticheatFlagType
	for _, v := range r.Anticheat.Violations {
		flags = append(flags, v.FlagType)
	}
	assert.Contains(t, flags, core.FlagVelocityExceeded)

	clk.t = clk.t.Add(2 * time.Minute)
	r = submit(t, svc, "lb", "p1", 4)
	assert.Len(t, r.Anticheat.Violations, 1, "velocity window resets")
}

func TestShadowBanHidesPlayerFromOthers(t *testing.T) {
	svc, _ := newService(t, engine.Board{ID: "lb", Anticheat: engine.AnticheatPolicy{
		Enabled: true, MaxScore: core.Ptr(int64(100)), Action: core.ActionShadowBan,
	}})
	ctx := context.Background()

	submit(t, svc, "lb", "honest", 50)
	banned := submit(t, svc, "lb", "cheater", 1000)
	assert.Equal(t, core.ActionShadowBan, banned.Anticheat.Action)
	assert.Equal(t, uint32(1), banned.Rank, "the cheater still sees themselves on top")

	board, err := svc.GetLeaderboard(ctx, &core.GetLeaderboardRequest{LeaderboardID: "lb"})
	require.NoError(t, err)
	require.Len(t, board.Entries, 1)
	assert.Equal(t, "honest", board.Entries[0].PlayerID)
	assert.Equal(t, uint32(1), board.Entries[0].Rank)
	assert.Equal(t, uint32(1), board.TotalEntries)

	self, err := svc.GetPlayerRank(ctx, &core.GetPlayerRankRequest{LeaderboardID: "lb", PlayerID: "cheater"})
	require.NoError(t, err)
	require.True(t, self.Ranked())
	assert.Equal(t, uint32(1), *self.Rank)
}

func TestGetLeaderboard_Pagination(t *testing.T) {
	svc, _ := newService(t, engine.Board{ID: "lb"})
	ctx := context.Background()
	for i := 0; i < 25; i++ {
		submit(t, svc, "lb", string(rune('a'+i)), int64(i*10))
	}

	first, err := svc.GetLeaderboard(ctx, &core.GetLeaderboardRequest{LeaderboardID: "lb"})
	require.NoError(t, err)
	assert.Len(t, first.Entries, core.DefaultLimit)
	assert.True(t, first.HasMore)
	assert.Equal(t, uint32(25), first.TotalEntries)
	assert.Nil(t, first.PeriodEnd, "all-time boards have no end")
	require.NoError(t, first.Validate(0))

	last, err := svc.GetLeaderboard(ctx, &core.GetLeaderboardRequest{LeaderboardID: "lb", Limit: core.Ptr(int32(10)), Offset: core.Ptr(uint32(20))})
	require.NoError(t, err)
	assert.Len(t, last.Entries, 5)
	assert.False(t, last.HasMore)
	assert.Equal(t, uint32(21), last.Entries[0].Rank)
	require.NoError(t, last.Validate(20))

	past, err := svc.GetLeaderboard(ctx, &core.GetLeaderboardRequest{LeaderboardID: "lb", Offset: core.Ptr(uint32(100))})
	require.NoError(t, err)
	assert.NotNil(t, past.Entries)
	assert.Empty(t, past.Entries)
	assert.False(t, past.HasMore)
}

func TestPeriods(t *testing.T) {
	svc, clk := newService(t, engine.Board{ID: "daily", ResetInterval: 24 * time.Hour})
	ctx := context.Background()

	submit(t, svc, "daily", "yesterday", 500)
	clk.t = clk.t.Add(24 * time.Hour)
	submit(t, svc, "daily", "today", 100)

	cur, err := svc.GetLeaderboard(ctx, &core.GetLeaderboardRequest{LeaderboardID: "daily"})
	require.NoError(t, err)
	require.Len(t, cur.Entries, 1)
	assert.Equal(t, "today", cur.Entries[0].PlayerID)
	assert.Equal(t, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), cur.PeriodStart)
	require.NotNil(t, cur.PeriodEnd)
	assert.Equal(t, time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC), *cur.PeriodEnd)

	prev, err := svc.GetLeaderboard(ctx, &core.GetLeaderboardRequest{LeaderboardID: "daily", Period: core.Ptr(core.PeriodPrevious)})
	require.NoError(t, err)
	require.Len(t, prev.Entries, 1)
	assert.Equal(t, "yesterday", prev.Entries[0].PlayerID)

	at, err := svc.GetLeaderboard(ctx, &core.GetLeaderboardRequest{LeaderboardID: "daily", Period: core.Ptr("2026-03-10T18:30:00Z")})
	require.NoError(t, err)
	assert.Equal(t, prev.Entries, at.Entries)

	rank, err := svc.GetPlayerRank(ctx, &core.GetPlayerRankRequest{LeaderboardID: "daily", PlayerID: "yesterday"})
	require.NoError(t, err)
	assert.False(t, rank.Ranked(), "no score in the current period")

	_, err = svc.GetLeaderboard(ctx, &core.GetLeaderboardRequest{LeaderboardID: "daily", Period: core.Ptr("last-week")})
	assert.ErrorIs(t, err, core.ErrInvalidPeriod)
}

func TestBestScoreSpansPeriods(t *testing.T) {
	svc, clk := newService(t, engine.Board{ID: "daily", ResetInterval: 24 * time.Hour})
	ctx := context.Background()

	submit(t, svc, "daily", "p1", 900)
	clk.t = clk.t.Add(24 * time.Hour)
	submit(t, svc, "daily", "p1", 300)

	rank, err := svc.GetPlayerRank(ctx, &core.GetPlayerRankRequest{LeaderboardID: "daily", PlayerID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, int64(300), *rank.Score)
	assert.Equal(t, int64(900), *rank.BestScore)
}

func TestViewsAndBrackets(t *testing.T) {
	svc, _ := newService(t, engine.Board{
		ID: "lb",
		Brackets: []engine.Bracket{
			{Name: "Bronze", Color: "#CD7F32", MinPercentile: 0},
			{Name: "Gold", Color: "#FFD700", MinPercentile: 90},
			{Name: "Silver", Color: "#C0C0C0", MinPercentile: 50},
		},
		Views: []engine.View{{Slug: "eu", Name: "Europe", Key: "region", Value: "eu"}},
	})
	ctx := context.Background()
	players := []struct {
		id     string
		score  int64
		region string
	}{
		{"a", 500, "eu"}, {"b", 400, "us"}, {"c", 300, "eu"}, {"d", 200, "us"}, {"e", 100, "eu"},
	}
	for _, p := range players {
		_, err := svc.SubmitScore(ctx, &core.SubmitScoreRequest{
			LeaderboardID: "lb", PlayerID: p.id, Score: p.score,
			Metadata: []byte(`{"region":"` + p.region + `"}`),
		})
		require.NoError(t, err)
	}

	all, err := svc.GetLeaderboard(ctx, &core.GetLeaderboardRequest{LeaderboardID: "lb"})
	require.NoError(t, err)
	assert.Equal(t, "Gold", all.Entries[0].Bracket.Name)
	assert.Equal(t, "Silver", all.Entries[1].Bracket.Name)
	assert.Equal(t, "Silver", all.Entries[2].Bracket.Name)
	assert.Equal(t, "Bronze", all.Entries[4].Bracket.Name)

	eu, err := svc.GetLeaderboard(ctx, &core.GetLeaderboardRequest{LeaderboardID: "lb", ViewSlug: core.Ptr("eu")})
	require.NoError(t, err)
	require.NotNil(t, eu.View)
	assert.Equal(t, "Europe", eu.View.Name)
	require.Len(t, eu.Entries, 3)
	assert.Equal(t, []string{"a", "c", "e"}, []string{eu.Entries[0].PlayerID, eu.Entries[1].PlayerID, eu.Entries[2].PlayerID})
	assert.Equal(t, uint32(2), eu.Entries[1].Rank)

	c, err := svc.GetPlayerRank(ctx, &core.GetPlayerRankRequest{LeaderboardID: "lb", PlayerID: "c", ViewSlug: core.Ptr("eu")})
	require.NoError(t, err)
	assert.Equal(t, uint32(2), *c.Rank)
	assert.Equal(t, uint32(3), *c.GlobalRank)
	assert.Equal(t, uint32(3), c.TotalEntries)
	assert.InDelta(t, 50.0, *c.Percentile, 0.001)
	require.NoError(t, c.Validate())

	plain, err := svc.GetPlayerRank(ctx, &core.GetPlayerRankRequest{LeaderboardID: "lb", PlayerID: "c"})
	require.NoError(t, err)
	assert.Nil(t, plain.GlobalRank)

	_, err = svc.GetLeaderboard(ctx, &core.GetLeaderboardRequest{LeaderboardID: "lb", ViewSlug: core.Ptr("asia")})
	assert.ErrorIs(t, err, engine.ErrUnknownView)
}

func TestGetPlayerRank_Unranked(t *testing.T) {
	svc, _ := newService(t, engine.Board{ID: "lb"})
	submit(t, svc, "lb", "someone", 1)

	resp, err := svc.GetPlayerRank(context.Background(), &core.GetPlayerRankRequest{LeaderboardID: "lb", PlayerID: "nobody"})
	require.NoError(t, err)
	assert.False(t, resp.Ranked())
	assert.Nil(t, resp.Score)
	assert.Nil(t, resp.Percentile)
	assert.Equal(t, uint32(1), resp.TotalEntries)
	require.NoError(t, resp.Validate())
}

func TestErrors(t *testing.T) {
	svc, _ := newService(t, engine.Board{ID: "lb"})
	ctx := context.Background()

	_, err := svc.SubmitScore(ctx, &core.SubmitScoreRequest{LeaderboardID: "missing", PlayerID: "p"})
	assert.ErrorIs(t, err, engine.ErrUnknownLeaderboard)

	_, err = svc.SubmitScore(ctx, &core.SubmitScoreRequest{LeaderboardID: "lb"})
	assert.ErrorIs(t, err, engine.ErrInvalidRequest)

	_, err = svc.GetLeaderboard(ctx, &core.GetLeaderboardRequest{LeaderboardID: "lb", Period: core.Ptr(core.PeriodPrevious)})
	assert.ErrorIs(t, err, engine.ErrNoPreviousPeriod)
}

func TestNewService_RejectsBadBoards(t *testing.T) {
	bus := engine.NewEventBus(engine.DispatchSync)
	_, err := engine.NewService(mem.New(), bus, []engine.Board{{ID: "a"}, {ID: "a"}})
	assert.Error(t, err)

	_, err = engine.NewService(mem.New(), bus, []engine.Board{{ID: "b", Brackets: []engine.Bracket{{Name: "x", Color: "red"}}}})
	assert.Error(t, err)

	_, err = engine.NewService(mem.New(), bus, []engine.Board{{ID: "c", Anticheat: engine.AnticheatPolicy{Enabled: true, Action: "ban"}}})
	assert.Error(t, err)
}
