package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ascnd/core"
	"ascnd/engine"
)

// newTestStore spins up a miniredis server and returns a store plus the server.
func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewWithClient(client, "test"), mr
}

func TestStore_SubmitBestKeepsHighest(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	key := engine.BoardKey{Board: "lb", Period: engine.AllTimePeriod}

	improved, err := store.SubmitBest(ctx, key, engine.Score{Player: "p1", Value: 100, Metadata: []byte(`{"region":"eu"}`)})
	require.NoError(t, err)
	assert.True(t, improved)

	improved, err = store.SubmitBest(ctx, key, engine.Score{Player: "p1", Value: 50, Metadata: []byte(`{"region":"us"}`)})
	require.NoError(t, err)
	assert.False(t, improved)

	improved, err = store.SubmitBest(ctx, key, engine.Score{Player: "p1", Value: 100})
	require.NoError(t, err)
	assert.False(t, improved, "equal score is not an improvement")

	sc, ok, err := store.Score(ctx, key, "p1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(100), sc.Value)
	assert.Equal(t, `{"region":"eu"}`, string(sc.Metadata))
}

func TestStore_OrderingMatchesMemory(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	key := engine.BoardKey{Board: "lb", Period: "1700000000"}

	for _, s := range []engine.Score{
		{Player: "zed", Value: 10},
		{Player: "amy", Value: 10},
		{Player: "bob", Value: 30},
		{Player: "neg", Value: -5},
	} {
		_, err := store.SubmitBest(ctx, key, s)
		require.NoError(t, err)
	}

	page, err := store.Range(ctx, key, 0, 10)
	require.NoError(t, err)
	require.Len(t, page, 4)
	assert.Equal(t, []string{"bob", "amy", "zed", "neg"}, []string{page[0].Player, page[1].Player, page[2].Player, page[3].Player})
	assert.Equal(t, int64(-5), page[3].Value)
	assert.Nil(t, page[0].Metadata)

	rank, ok, err := store.Rank(ctx, key, "zed")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, rank)

	_, ok, err = store.Rank(ctx, key, "ghost")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := store.Count(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	page, err = store.Range(ctx, key, 3, 10)
	require.NoError(t, err)
	assert.Len(t, page, 1)
}

func TestStore_Submissions(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	got, err := store.LoadSubmission(ctx, "lb", "k1")
	require.NoError(t, err)
	assert.Nil(t, got)

	sub := engine.Submission{PlayerID: "p1", Score: 7, Response: core.SubmitScoreResponse{ScoreID: "s-1", Rank: 2}}
	saved, err := store.SaveSubmission(ctx, "lb", "k1", sub, time.Hour)
	require.NoError(t, err)
	assert.True(t, saved)

	saved, err = store.SaveSubmission(ctx, "lb", "k1", engine.Submission{PlayerID: "p2"}, time.Hour)
	require.NoError(t, err)
	assert.False(t, saved)

	got, err = store.LoadSubmission(ctx, "lb", "k1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "s-1", got.Response.ScoreID)
	assert.Equal(t, "p1", got.PlayerID)

	mr.FastForward(2 * time.Hour)
	got, err = store.LoadSubmission(ctx, "lb", "k1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_CountSubmissionWindow(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		n, err := store.CountSubmission(ctx, "lb", "p1", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}
	mr.FastForward(time.Minute + time.Second)

	n, err := store.CountSubmission(ctx, "lb", "p1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestStore_BannedPlayers(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	banned, err := store.BannedPlayers(ctx, "lb")
	require.NoError(t, err)
	assert.Empty(t, banned)

	require.NoError(t, store.BanPlayer(ctx, "lb", "cheater"))
	banned, err = store.BannedPlayers(ctx, "lb")
	require.NoError(t, err)
	assert.True(t, banned["cheater"])

	require.NoError(t, store.Ping(ctx))
}
