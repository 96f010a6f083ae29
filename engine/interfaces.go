package engine

import (
	"context"
	"errors"
	"time"

	"ascnd/core"
)

var (
	ErrUnknownLeaderboard = errors.New("unknown leaderboard")
	ErrUnknownView        = errors.New("unknown view")
	ErrNoPreviousPeriod   = errors.New("leaderboard has no reset interval")
	ErrInvalidRequest     = errors.New("invalid request")
)

// BoardKey addresses one period of one leaderboard.
type BoardKey struct {
	Board  string
	Period string
}

// Score is a player's best score within a period.
type Score struct {
	Player   string
	Value    int64
	Metadata []byte
}

// Submission is what an idempotency key remembers: the payload it was first
// used with and the response that was returned.
type Submission struct {
	PlayerID string                   `json:"playerId"`
	Score    int64                    `json:"score"`
	Metadata []byte                   `json:"metadata,omitempty"`
	Response core.SubmitScoreResponse `json:"response"`
}

// Matches reports whether req carries the same payload as s.
func (s *Submission) Matches(req *core.SubmitScoreRequest) bool {
	return s.PlayerID == req.PlayerID && s.Score == req.Score && string(s.Metadata) == string(req.Metadata)
}

// Storage abstracts persistence for leaderboard state. Ordering within a
// period is score descending, then player ascending.
type Storage interface {
	// SubmitBest keeps s only if it beats the player's current best in key.
	SubmitBest(ctx context.Context, key BoardKey, s Score) (improved bool, err error)
	Score(ctx context.Context, key BoardKey, player string) (Score, bool, error)
	// Rank is 1-based.
	Rank(ctx context.Context, key BoardKey, player string) (int, bool, error)
	Range(ctx context.Context, key BoardKey, offset, limit int) ([]Score, error)
	Count(ctx context.Context, key BoardKey) (int, error)

	// LoadSubmission returns nil when idemKey has not been used.
	LoadSubmission(ctx context.Context, board, idemKey string) (*Submission, error)
	// SaveSubmission stores sub unless idemKey is already taken.
	SaveSubmission(ctx context.Context, board, idemKey string, sub Submission, ttl time.Duration) (bool, error)
	// CountSubmission records one submission and returns how many the player
	// made within the current window.
	CountSubmission(ctx context.Context, board, player string, window time.Duration) (int64, error)

	BanPlayer(ctx context.Context, board, player string) error
	BannedPlayers(ctx context.Context, board string) (map[string]bool, error)

	Ping(ctx context.Context) error
}
