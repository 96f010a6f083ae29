package core

import "time"

// AnticheatAction is the service's response to a detected violation.
type AnticheatAction string

const (
	ActionNone      AnticheatAction = "none"
	ActionFlag      AnticheatAction = "flag"
	ActionShadowBan AnticheatAction = "shadow_ban"
	ActionReject    AnticheatAction = "reject"
)

// Valid reports whether a is one of the known actions.
func (a AnticheatAction) Valid() bool {
	switch a {
	case ActionNone, ActionFlag, ActionShadowBan, ActionReject:
		return true
	}
	return false
}

// Severity orders actions so the strictest one can be picked.
func (a AnticheatAction) Severity() int {
	switch a {
	case ActionFlag:
		return 1
	case ActionShadowBan:
		return 2
	case ActionReject:
		return 3
	default:
		return 0
	}
}

// AnticheatFlagType classifies a single anticheat violation.
type AnticheatFlagType string

const (
	FlagBoundsExceeded        AnticheatFlagType = "bounds_exceeded"
	FlagVelocityExceeded      AnticheatFlagType = "velocity_exceeded"
	FlagDuplicateIdempotency  AnticheatFlagType = "duplicate_idempotency"
	FlagMissingIdempotencyKey AnticheatFlagType = "missing_idempotency_key"
)

// SubmitScoreRequest records a score for a player on a leaderboard.
type SubmitScoreRequest struct {
	LeaderboardID  string  `json:"leaderboardId"`
	PlayerID       string  `json:"playerId"`
	Score          int64   `json:"score"`
	Metadata       []byte  `json:"metadata,omitempty"`
	IdempotencyKey *string `json:"idempotencyKey,omitempty"`
}

// SubmitScoreResponse is the service's verdict on a submitted score.
type SubmitScoreResponse struct {
	ScoreID         string           `json:"scoreId"`
	Rank            uint32           `json:"rank"`
	IsNewBest       bool             `json:"isNewBest"`
	WasDeduplicated bool             `json:"wasDeduplicated"`
	Anticheat       *AnticheatResult `json:"anticheat,omitempty"`
}

// AnticheatResult summarizes the anticheat evaluation of a submission.
type AnticheatResult struct {
	Passed     bool                 `json:"passed"`
	Action     AnticheatAction      `json:"action"`
	Violations []AnticheatViolation `json:"violations,omitempty"`
}

// AnticheatViolation is one rule the submission tripped.
type AnticheatViolation struct {
	FlagType AnticheatFlagType `json:"flagType"`
	Reason   string            `json:"reason"`
}

// GetLeaderboardRequest pages through a leaderboard.
// Nil fields are left for the service to default.
type GetLeaderboardRequest struct {
	LeaderboardID string  `json:"leaderboardId"`
	Limit         *int32  `json:"limit,omitempty"`
	Offset        *uint32 `json:"offset,omitempty"`
	Period        *string `json:"period,omitempty"`
	ViewSlug      *string `json:"viewSlug,omitempty"`
}

// GetLeaderboardResponse is one page of a leaderboard, rank ascending.
type GetLeaderboardResponse struct {
	Entries      []LeaderboardEntry `json:"entries"`
	TotalEntries uint32             `json:"totalEntries"`
	PeriodStart  time.Time          `json:"periodStart"`
	PeriodEnd    *time.Time         `json:"periodEnd,omitempty"`
	HasMore      bool               `json:"hasMore"`
	View         *ViewInfo          `json:"view,omitempty"`
}

// LeaderboardEntry is a ranked row.
type LeaderboardEntry struct {
	Rank     uint32       `json:"rank"`
	PlayerID string       `json:"playerId"`
	Score    int64        `json:"score"`
	Metadata []byte       `json:"metadata,omitempty"`
	Bracket  *BracketInfo `json:"bracket,omitempty"`
}

// GetPlayerRankRequest looks up a single player's standing.
type GetPlayerRankRequest struct {
	LeaderboardID string  `json:"leaderboardId"`
	PlayerID      string  `json:"playerId"`
	Period        *string `json:"period,omitempty"`
	ViewSlug      *string `json:"viewSlug,omitempty"`
}

// GetPlayerRankResponse describes a player's standing.
// A nil Rank means the player is unranked and every rank-dependent field is nil too.
type GetPlayerRankResponse struct {
	Rank         *uint32      `json:"rank,omitempty"`
	Score        *int64       `json:"score,omitempty"`
	BestScore    *int64       `json:"bestScore,omitempty"`
	Percentile   *float64     `json:"percentile,omitempty"`
	TotalEntries uint32       `json:"totalEntries"`
	Bracket      *BracketInfo `json:"bracket,omitempty"`
	GlobalRank   *uint32      `json:"globalRank,omitempty"`
}

// Ranked reports whether the player has a rank in the requested scope.
func (r *GetPlayerRankResponse) Ranked() bool { return r != nil && r.Rank != nil }

// BracketInfo is a named tier with a display color.
type BracketInfo struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// ViewInfo names the view a leaderboard page was filtered by.
type ViewInfo struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}
