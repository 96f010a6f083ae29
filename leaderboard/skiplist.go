package leaderboard

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"sync"
)

// A skip list keyed by (score desc, player asc). Each forward link records
// how many level-0 nodes it spans, so rank and offset lookups are O(log n).

const maxLevel = 16
const pFactor = 0.25

type node struct {
	e    Entry
	next [maxLevel]*node
	span [maxLevel]int
}

type SkipList struct {
	mu       sync.RWMutex
	head     *node
	lvl      int
	length   int
	byPlayer map[string]*node
	rng      *rand.Rand
}

func NewSkipList() *SkipList {
	var seed [16]byte
	if _, err := cryptorand.Read(seed[:]); err != nil {
		seed = [16]byte{}
	}
	seed1 := binary.BigEndian.Uint64(seed[:8])
	seed2 := binary.BigEndian.Uint64(seed[8:])

	return &SkipList{
		head:     &node{},
		lvl:      1,
		byPlayer: map[string]*node{},
		rng:      rand.New(rand.NewPCG(seed1, seed2)),
	}
}

func (s *SkipList) randomLevel() int {
	lvl := 1
	for lvl < maxLevel && s.rng.Float64() < pFactor {
		lvl++
	}
	return lvl
}

func less(a, b Entry) bool {
	if a.Score == b.Score {
		return a.Player < b.Player
	}
	return a.Score > b.Score
}

// Update inserts player or moves it to score.
func (s *SkipList) Update(player string, score int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.byPlayer[player]; ok {
		if old.e.Score == score {
			return
		}
		s.removeLocked(old.e)
	}
	s.insertLocked(Entry{Player: player, Score: score})
}

func (s *SkipList) insertLocked(e Entry) {
	var update [maxLevel]*node
	var rank [maxLevel]int
	cur := s.head
	for i := s.lvl - 1; i >= 0; i-- {
		if i < s.lvl-1 {
			rank[i] = rank[i+1]
		}
		for cur.next[i] != nil && less(cur.next[i].e, e) {
			rank[i] += cur.span[i]
			cur = cur.next[i]
		}
		update[i] = cur
	}

	lvl := s.randomLevel()
	if lvl > s.lvl {
		for i := s.lvl; i < lvl; i++ {
			rank[i] = 0
			update[i] = s.head
			update[i].span[i] = s.length
		}
		s.lvl = lvl
	}

	n := &node{e: e}
	for i := 0; i < lvl; i++ {
		n.next[i] = update[i].next[i]
		update[i].next[i] = n
		n.span[i] = update[i].span[i] - (rank[0] - rank[i])
		update[i].span[i] = rank[0] - rank[i] + 1
	}
	for i := lvl; i < s.lvl; i++ {
		update[i].span[i]++
	}
	s.length++
	s.byPlayer[e.Player] = n
}

func (s *SkipList) removeLocked(e Entry) {
	var update [maxLevel]*node
	cur := s.head
	for i := s.lvl - 1; i >= 0; i-- {
		for cur.next[i] != nil && less(cur.next[i].e, e) {
			cur = cur.next[i]
		}
		update[i] = cur
	}
	target := update[0].next[0]
	if target == nil || target.e != e {
		return
	}
	for i := 0; i < s.lvl; i++ {
		if update[i].next[i] == target {
			update[i].span[i] += target.span[i] - 1
			update[i].next[i] = target.next[i]
		} else {
			update[i].span[i]--
		}
	}
	for s.lvl > 1 && s.head.next[s.lvl-1] == nil {
		s.lvl--
	}
	s.length--
	delete(s.byPlayer, e.Player)
}

func (s *SkipList) Remove(player string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.byPlayer[player]; ok {
		s.removeLocked(n.e)
	}
}

func (s *SkipList) Get(player string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n, ok := s.byPlayer[player]; ok {
		return n.e, true
	}
	return Entry{}, false
}

func (s *SkipList) Rank(player string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.byPlayer[player]
	if !ok {
		return 0, false
	}
	e := n.e
	rank := 0
	cur := s.head
	for i := s.lvl - 1; i >= 0; i-- {
		for cur.next[i] != nil && (less(cur.next[i].e, e) || cur.next[i].e == e) {
			rank += cur.span[i]
			cur = cur.next[i]
		}
		if cur != s.head && cur.e == e {
			return rank, true
		}
	}
	return 0, false
}

func (s *SkipList) Range(offset, limit int) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if offset < 0 || limit <= 0 || offset >= s.length {
		return nil
	}
	if rest := s.length - offset; limit > rest {
		limit = rest
	}
	out := make([]Entry, 0, limit)
	cur := s.byRankLocked(offset + 1)
	for cur != nil && len(out) < limit {
		out = append(out, cur.e)
		cur = cur.next[0]
	}
	return out
}

// byRankLocked returns the node at 1-based rank r.
func (s *SkipList) byRankLocked(r int) *node {
	traversed := 0
	cur := s.head
	for i := s.lvl - 1; i >= 0; i-- {
		for cur.next[i] != nil && traversed+cur.span[i] <= r {
			traversed += cur.span[i]
			cur = cur.next[i]
		}
		if traversed == r {
			return cur
		}
	}
	return nil
}

func (s *SkipList) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.length
}

var _ Board = (*SkipList)(nil)
