package core

import "time"

// EventType enumerates leaderboard events.
type EventType string

const (
	EventScoreSubmitted    EventType = "score_submitted"
	EventNewBest           EventType = "new_best"
	EventScoreRejected     EventType = "score_rejected"
	EventScoreDeduplicated EventType = "score_deduplicated"
)

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	switch t {
	case EventScoreSubmitted, EventNewBest, EventScoreRejected, EventScoreDeduplicated:
		return true
	}
	return false
}

// Event represents an immutable leaderboard event.
type Event struct {
	Type          EventType       `json:"type"`
	Time          time.Time       `json:"time"`
	LeaderboardID string          `json:"leaderboardId"`
	PlayerID      string          `json:"playerId"`
	ScoreID       string          `json:"scoreId,omitempty"`
	Score         int64           `json:"score"`
	Rank          uint32          `json:"rank,omitempty"`
	Action        AnticheatAction `json:"action,omitempty"`
}

func NewScoreSubmitted(board, player, scoreID string, score int64, rank uint32) Event {
	return Event{Type: EventScoreSubmitted, Time: time.Now().UTC(), LeaderboardID: board, PlayerID: player, ScoreID: scoreID, Score: score, Rank: rank}
}

func NewBest(board, player, scoreID string, score int64, rank uint32) Event {
	return Event{Type: EventNewBest, Time: time.Now().UTC(), LeaderboardID: board, PlayerID: player, ScoreID: scoreID, Score: score, Rank: rank}
}

func NewScoreRejected(board, player string, score int64, action AnticheatAction) Event {
	return Event{Type: EventScoreRejected, Time: time.Now().UTC(), LeaderboardID: board, PlayerID: player, Score: score, Action: action}
}

func NewScoreDeduplicated(board, player, scoreID string, score int64) Event {
	return Event{Type: EventScoreDeduplicated, Time: time.Now().UTC(), LeaderboardID: board, PlayerID: player, ScoreID: scoreID, Score: score}
}
