package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"ascnd/engine"
)

// Config holds Redis connection configuration
type Config struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// KeyPrefix namespaces every key this store writes.
	KeyPrefix string
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		KeyPrefix:    "ascnd",
	}
}

// Store implements engine.Storage on Redis.
// Data structure:
// - {prefix}:lb:{board}:{period} -> sorted set of players scored by -score,
//   so ascending order is score desc then player asc
// - {prefix}:lb:{board}:{period}:meta -> hash player -> metadata of the best score
// - {prefix}:idem:{board}:{key} -> JSON Submission with TTL
// - {prefix}:vel:{board}:{player} -> submission counter expiring with the window
// - {prefix}:banned:{board} -> set of shadow-banned players
type Store struct {
	client *redis.Client
	prefix string
}

// New creates a new Redis-backed storage with the provided configuration
func New(config Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Store{client: client, prefix: prefixOrDefault(config.KeyPrefix)}, nil
}

// NewWithClient creates a Store using an existing Redis client (useful for testing)
func NewWithClient(client *redis.Client, prefix string) *Store {
	return &Store{client: client, prefix: prefixOrDefault(prefix)}
}

func prefixOrDefault(p string) string {
	if p == "" {
		return "ascnd"
	}
	return p
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) boardKey(k engine.BoardKey) string {
	return fmt.Sprintf("%s:lb:%s:%s", s.prefix, k.Board, k.Period)
}

func (s *Store) metaKey(k engine.BoardKey) string {
	return s.boardKey(k) + ":meta"
}

func (s *Store) idemKey(board, key string) string {
	return fmt.Sprintf("%s:idem:%s:%s", s.prefix, board, key)
}

func (s *Store) velocityKey(board, player string) string {
	return fmt.Sprintf("%s:vel:%s:%s", s.prefix, board, player)
}

func (s *Store) bannedKey(board string) string {
	return fmt.Sprintf("%s:banned:%s", s.prefix, board)
}

// Lua script replacing a player's score and metadata only when it improves.
// Scores are stored negated, so lower is better.
var submitBestScript = redis.NewScript(`
	local cur = redis.call('ZSCORE', KEYS[1], ARGV[1])
	local next_val = tonumber(ARGV[2])
	if cur and tonumber(cur) <= next_val then
		return 0
	end
	redis.call('ZADD', KEYS[1], ARGV[2], ARGV[1])
	redis.call('HSET', KEYS[2], ARGV[1], ARGV[3])
	return 1
`)

// Lua script counting submissions in a fixed window.
var countScript = redis.NewScript(`
	local n = redis.call('INCR', KEYS[1])
	if n == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	return n
`)

// SubmitBest atomically keeps the better of the stored and submitted score.
// Scores travel as float64, so values beyond 2^53 lose precision.
func (s *Store) SubmitBest(ctx context.Context, key engine.BoardKey, sc engine.Score) (bool, error) {
	res, err := submitBestScript.Run(ctx, s.client,
		[]string{s.boardKey(key), s.metaKey(key)},
		sc.Player, -sc.Value, string(sc.Metadata),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("failed to submit score: %w", err)
	}
	return res == 1, nil
}

func (s *Store) Score(ctx context.Context, key engine.BoardKey, player string) (engine.Score, bool, error) {
	v, err := s.client.ZScore(ctx, s.boardKey(key), player).Result()
	if errors.Is(err, redis.Nil) {
		return engine.Score{}, false, nil
	}
	if err != nil {
		return engine.Score{}, false, fmt.Errorf("failed to get score: %w", err)
	}
	meta, err := s.client.HGet(ctx, s.metaKey(key), player).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		return engine.Score{}, false, fmt.Errorf("failed to get metadata: %w", err)
	}
	return engine.Score{Player: player, Value: -int64(v), Metadata: nonEmpty(meta)}, true, nil
}

func (s *Store) Rank(ctx context.Context, key engine.BoardKey, player string) (int, bool, error) {
	r, err := s.client.ZRank(ctx, s.boardKey(key), player).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get rank: %w", err)
	}
	return int(r) + 1, true, nil
}

func (s *Store) Range(ctx context.Context, key engine.BoardKey, offset, limit int) ([]engine.Score, error) {
	if offset < 0 || limit <= 0 {
		return nil, nil
	}
	zs, err := s.client.ZRangeWithScores(ctx, s.boardKey(key), int64(offset), int64(offset+limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to range scores: %w", err)
	}
	if len(zs) == 0 {
		return nil, nil
	}
	players := make([]string, len(zs))
	for i, z := range zs {
		players[i], _ = z.Member.(string)
	}
	metas, err := s.client.HMGet(ctx, s.metaKey(key), players...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get metadata: %w", err)
	}
	out := make([]engine.Score, len(zs))
	for i, z := range zs {
		out[i] = engine.Score{Player: players[i], Value: -int64(z.Score)}
		if m, ok := metas[i].(string); ok {
			out[i].Metadata = nonEmpty([]byte(m))
		}
	}
	return out, nil
}

func (s *Store) Count(ctx context.Context, key engine.BoardKey) (int, error) {
	n, err := s.client.ZCard(ctx, s.boardKey(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count scores: %w", err)
	}
	return int(n), nil
}

func (s *Store) LoadSubmission(ctx context.Context, board, idemKey string) (*engine.Submission, error) {
	data, err := s.client.Get(ctx, s.idemKey(board, idemKey)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load submission: %w", err)
	}
	var sub engine.Submission
	if err := json.Unmarshal(data, &sub); err != nil {
		return nil, fmt.Errorf("failed to decode submission: %w", err)
	}
	return &sub, nil
}

func (s *Store) SaveSubmission(ctx context.Context, board, idemKey string, sub engine.Submission, ttl time.Duration) (bool, error) {
	data, err := json.Marshal(sub)
	if err != nil {
		return false, err
	}
	ok, err := s.client.SetNX(ctx, s.idemKey(board, idemKey), data, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to save submission: %w", err)
	}
	return ok, nil
}

func (s *Store) CountSubmission(ctx context.Context, board, player string, window time.Duration) (int64, error) {
	n, err := countScript.Run(ctx, s.client, []string{s.velocityKey(board, player)}, window.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to count submission: %w", err)
	}
	return n, nil
}

func (s *Store) BanPlayer(ctx context.Context, board, player string) error {
	if err := s.client.SAdd(ctx, s.bannedKey(board), player).Err(); err != nil {
		return fmt.Errorf("failed to ban player: %w", err)
	}
	return nil
}

func (s *Store) BannedPlayers(ctx context.Context, board string) (map[string]bool, error) {
	members, err := s.client.SMembers(ctx, s.bannedKey(board)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list banned players: %w", err)
	}
	out := make(map[string]bool, len(members))
	for _, m := range members {
		out[m] = true
	}
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func nonEmpty(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}

var _ engine.Storage = (*Store)(nil)
