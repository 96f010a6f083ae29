package leaderboard

// Entry is one player's position-defining score.
type Entry struct {
	Player string
	Score  int64
}

// Board keeps entries ordered by score descending, then player ascending.
type Board interface {
	Update(player string, score int64)
	Remove(player string)
	Get(player string) (Entry, bool)
	// Rank returns the 1-based position of player.
	Rank(player string) (int, bool)
	// Range returns up to limit entries starting at the 0-based offset.
	Range(offset, limit int) []Entry
	Len() int
}
