package engine

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"ascnd/core"
)

// AllTimePeriod is the period key of the never-resetting board every score
// is also recorded on.
const AllTimePeriod = "all"

// Board defines one leaderboard served by the engine.
type Board struct {
	ID   string
	Name string
	// ResetInterval splits the board into fixed UTC-aligned periods.
	// Zero means a single all-time period.
	ResetInterval time.Duration
	Anticheat     AnticheatPolicy
	Brackets      []Bracket
	Views         []View
}

// Bracket labels players whose percentile is at least MinPercentile.
type Bracket struct {
	Name          string
	Color         string
	MinPercentile float64
}

// View restricts a board to entries whose metadata has Key equal to Value.
type View struct {
	Slug  string
	Name  string
	Key   string
	Value string
}

func (b Board) validate() error {
	if b.ID == "" {
		return fmt.Errorf("leaderboard id is required")
	}
	if b.ResetInterval < 0 {
		return fmt.Errorf("leaderboard %s: reset interval must not be negative", b.ID)
	}
	for _, br := range b.Brackets {
		if br.Name == "" {
			return fmt.Errorf("leaderboard %s: bracket name is required", b.ID)
		}
		if br.MinPercentile < 0 || br.MinPercentile > 100 {
			return fmt.Errorf("leaderboard %s: bracket %s percentile out of range", b.ID, br.Name)
		}
		if br.Color != "" && !core.ValidHexColor(br.Color) {
			return fmt.Errorf("leaderboard %s: bracket %s color %q is not a hex color", b.ID, br.Name, br.Color)
		}
	}
	seen := map[string]bool{}
	for _, v := range b.Views {
		if v.Slug == "" || v.Key == "" {
			return fmt.Errorf("leaderboard %s: view slug and key are required", b.ID)
		}
		if seen[v.Slug] {
			return fmt.Errorf("leaderboard %s: duplicate view %s", b.ID, v.Slug)
		}
		seen[v.Slug] = true
	}
	return b.Anticheat.validate()
}

// window is a resolved period.
type window struct {
	key   string
	start time.Time
	end   *time.Time
}

// resolve maps a period selector to a concrete window.
func (b *Board) resolve(p core.Period, now time.Time, epoch time.Time) (window, error) {
	if b.ResetInterval == 0 {
		if p.Kind == core.PeriodKindPrevious {
			return window{}, ErrNoPreviousPeriod
		}
		return window{key: AllTimePeriod, start: epoch}, nil
	}
	t := now
	switch p.Kind {
	case core.PeriodKindPrevious:
		t = now.Add(-b.ResetInterval)
	case core.PeriodKindAt:
		t = p.At
	}
	start := t.UTC().Truncate(b.ResetInterval)
	end := start.Add(b.ResetInterval)
	return window{key: strconv.FormatInt(start.Unix(), 10), start: start, end: &end}, nil
}

func (b *Board) view(slug *string) (*View, error) {
	if slug == nil || *slug == "" {
		return nil, nil
	}
	for i := range b.Views {
		if b.Views[i].Slug == *slug {
			return &b.Views[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownView, *slug)
}

// bracketFor picks the highest bracket the percentile qualifies for.
func (b *Board) bracketFor(percentile float64) *core.BracketInfo {
	for _, br := range b.Brackets {
		if percentile >= br.MinPercentile {
			return &core.BracketInfo{Name: br.Name, Color: br.Color}
		}
	}
	return nil
}

func (b *Board) sortBrackets() {
	sort.SliceStable(b.Brackets, func(i, j int) bool {
		return b.Brackets[i].MinPercentile > b.Brackets[j].MinPercentile
	})
}

// Percentile places rank within total: 100 for the top, 0 for the bottom.
func Percentile(rank, total int) float64 {
	if total <= 1 {
		return 100
	}
	return 100 * float64(total-rank) / float64(total-1)
}

func (v *View) matches(metadata []byte) bool {
	if len(metadata) == 0 {
		return false
	}
	var fields map[string]any
	if err := json.Unmarshal(metadata, &fields); err != nil {
		return false
	}
	val, ok := fields[v.Key]
	if !ok {
		return false
	}
	switch x := val.(type) {
	case string:
		return x == v.Value
	default:
		return fmt.Sprint(x) == v.Value
	}
}
