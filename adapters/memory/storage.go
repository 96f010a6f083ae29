package memory

import (
	"context"
	"sync"
	"time"

	"ascnd/engine"
	"ascnd/leaderboard"
)

// Store is a concurrent in-memory Storage implementation backed by skip lists.
type Store struct {
	periods sync.Map // map[engine.BoardKey]*periodRecord

	mu          sync.Mutex
	submissions map[string]submissionRecord
	velocity    map[string]*counter
	banned      map[string]map[string]bool
	now         func() time.Time
}

type periodRecord struct {
	mu    sync.Mutex
	board *leaderboard.SkipList
	meta  map[string][]byte
}

type submissionRecord struct {
	sub     engine.Submission
	expires time.Time
}

type counter struct {
	start time.Time
	n     int64
}

func New() *Store {
	return &Store{
		submissions: map[string]submissionRecord{},
		velocity:    map[string]*counter{},
		banned:      map[string]map[string]bool{},
		now:         time.Now,
	}
}

// WithClock returns s using now for TTLs and velocity windows.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) getOrCreate(key engine.BoardKey) *periodRecord {
	if v, ok := s.periods.Load(key); ok {
		return v.(*periodRecord)
	}
	rec := &periodRecord{board: leaderboard.NewSkipList(), meta: map[string][]byte{}}
	actual, _ := s.periods.LoadOrStore(key, rec)
	return actual.(*periodRecord)
}

func (s *Store) lookup(key engine.BoardKey) (*periodRecord, bool) {
	v, ok := s.periods.Load(key)
	if !ok {
		return nil, false
	}
	return v.(*periodRecord), true
}

func (s *Store) SubmitBest(_ context.Context, key engine.BoardKey, sc engine.Score) (bool, error) {
	rec := s.getOrCreate(key)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if cur, ok := rec.board.Get(sc.Player); ok && cur.Score >= sc.Value {
		return false, nil
	}
	rec.board.Update(sc.Player, sc.Value)
	rec.meta[sc.Player] = append([]byte(nil), sc.Metadata...)
	return true, nil
}

func (s *Store) Score(_ context.Context, key engine.BoardKey, player string) (engine.Score, bool, error) {
	rec, ok := s.lookup(key)
	if !ok {
		return engine.Score{}, false, nil
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	e, ok := rec.board.Get(player)
	if !ok {
		return engine.Score{}, false, nil
	}
	return rec.score(e), true, nil
}

func (s *Store) Rank(_ context.Context, key engine.BoardKey, player string) (int, bool, error) {
	rec, ok := s.lookup(key)
	if !ok {
		return 0, false, nil
	}
	r, ok := rec.board.Rank(player)
	return r, ok, nil
}

func (s *Store) Range(_ context.Context, key engine.BoardKey, offset, limit int) ([]engine.Score, error) {
	rec, ok := s.lookup(key)
	if !ok {
		return nil, nil
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	entries := rec.board.Range(offset, limit)
	out := make([]engine.Score, 0, len(entries))
	for _, e := range entries {
		out = append(out, rec.score(e))
	}
	return out, nil
}

func (s *Store) Count(_ context.Context, key engine.BoardKey) (int, error) {
	rec, ok := s.lookup(key)
	if !ok {
		return 0, nil
	}
	return rec.board.Len(), nil
}

func (r *periodRecord) score(e leaderboard.Entry) engine.Score {
	var meta []byte
	if m := r.meta[e.Player]; len(m) > 0 {
		meta = append([]byte(nil), m...)
	}
	return engine.Score{Player: e.Player, Value: e.Score, Metadata: meta}
}

func submissionKey(board, idemKey string) string { return board + "\x00" + idemKey }

func (s *Store) LoadSubmission(_ context.Context, board, idemKey string) (*engine.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.submissions[submissionKey(board, idemKey)]
	if !ok || s.now().After(rec.expires) {
		return nil, nil
	}
	sub := rec.sub
	return &sub, nil
}

func (s *Store) SaveSubmission(_ context.Context, board, idemKey string, sub engine.Submission, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := submissionKey(board, idemKey)
	now := s.now()
	if rec, ok := s.submissions[k]; ok && !now.After(rec.expires) {
		return false, nil
	}
	s.submissions[k] = submissionRecord{sub: sub, expires: now.Add(ttl)}
	return true, nil
}

func (s *Store) CountSubmission(_ context.Context, board, player string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := board + "\x00" + player
	now := s.now()
	c, ok := s.velocity[k]
	if !ok || now.Sub(c.start) >= window {
		c = &counter{start: now}
		s.velocity[k] = c
	}
	c.n++
	return c.n, nil
}

func (s *Store) BanPlayer(_ context.Context, board, player string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.banned[board] == nil {
		s.banned[board] = map[string]bool{}
	}
	s.banned[board][player] = true
	return nil
}

func (s *Store) BannedPlayers(_ context.Context, board string) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]bool, len(s.banned[board]))
	for p := range s.banned[board] {
		out[p] = true
	}
	return out, nil
}

func (s *Store) Ping(context.Context) error { return nil }

var _ engine.Storage = (*Store)(nil)
