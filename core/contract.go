package core

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100

	PeriodCurrent  = "current"
	PeriodPrevious = "previous"
)

// PeriodKind selects how a Period resolves to a time window.
type PeriodKind int

const (
	PeriodKindCurrent PeriodKind = iota
	PeriodKindPrevious
	PeriodKindAt
)

// Period is a parsed period selector. At is only meaningful for PeriodKindAt.
type Period struct {
	Kind PeriodKind
	At   time.Time
}

// ErrInvalidPeriod is returned by ParsePeriod for unrecognized selectors.
var ErrInvalidPeriod = errors.New("period must be \"current\", \"previous\" or an RFC3339 timestamp")

// ParsePeriod interprets an optional period selector. Nil and empty mean current.
func ParsePeriod(p *string) (Period, error) {
	if p == nil {
		return Period{Kind: PeriodKindCurrent}, nil
	}
	s := strings.TrimSpace(*p)
	switch strings.ToLower(s) {
	case "", PeriodCurrent:
		return Period{Kind: PeriodKindCurrent}, nil
	case PeriodPrevious:
		return Period{Kind: PeriodKindPrevious}, nil
	}
	at, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	return Period{Kind: PeriodKindAt, At: at.UTC()}, nil
}

// ClampLimit applies the page size default and bounds.
func ClampLimit(limit *int32) int {
	if limit == nil {
		return DefaultLimit
	}
	switch n := int(*limit); {
	case n < 1:
		return 1
	case n > MaxLimit:
		return MaxLimit
	default:
		return n
	}
}

// EffectiveOffset returns the page offset, zero when absent.
func EffectiveOffset(offset *uint32) int {
	if offset == nil {
		return 0
	}
	return int(*offset)
}

// HasMore reports whether entries exist past the current page.
func HasMore(offset, count, total int) bool {
	return offset+count < total
}

// Validate checks the paging and ordering invariants of a page fetched at offset.
func (r *GetLeaderboardResponse) Validate(offset int) error {
	if r == nil {
		return errors.New("nil leaderboard response")
	}
	if want := HasMore(offset, len(r.Entries), int(r.TotalEntries)); r.HasMore != want {
		return fmt.Errorf("hasMore=%t but offset %d + %d entries vs total %d", r.HasMore, offset, len(r.Entries), r.TotalEntries)
	}
	for i, e := range r.Entries {
		if e.Rank < 1 {
			return fmt.Errorf("entry %d: rank must be 1-based, got %d", i, e.Rank)
		}
		if i == 0 {
			continue
		}
		prev := r.Entries[i-1]
		if e.Rank <= prev.Rank {
			return fmt.Errorf("entry %d: rank %d not after %d", i, e.Rank, prev.Rank)
		}
		if e.Score > prev.Score {
			return fmt.Errorf("entry %d: score %d above previous %d", i, e.Score, prev.Score)
		}
	}
	return nil
}

// Validate checks that rank-dependent fields are present only when a rank is.
func (r *GetPlayerRankResponse) Validate() error {
	if r == nil {
		return errors.New("nil player rank response")
	}
	if r.Rank == nil {
		var present []string
		if r.Score != nil {
			present = append(present, "score")
		}
		if r.BestScore != nil {
			present = append(present, "bestScore")
		}
		if r.Percentile != nil {
			present = append(present, "percentile")
		}
		if r.Bracket != nil {
			present = append(present, "bracket")
		}
		if r.GlobalRank != nil {
			present = append(present, "globalRank")
		}
		if len(present) > 0 {
			return fmt.Errorf("unranked response carries %s", strings.Join(present, ", "))
		}
		return nil
	}
	if *r.Rank < 1 {
		return fmt.Errorf("rank must be 1-based, got %d", *r.Rank)
	}
	if p := r.Percentile; p != nil && (*p < 0 || *p > 100) {
		return fmt.Errorf("percentile %v outside [0,100]", *p)
	}
	return nil
}

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// ValidHexColor reports whether c looks like #rgb or #rrggbb.
func ValidHexColor(c string) bool { return hexColor.MatchString(c) }

// NewIdempotencyKey returns a random key suitable for SubmitScoreRequest.IdempotencyKey.
func NewIdempotencyKey() string { return uuid.NewString() }

// Ptr returns a pointer to v, handy for filling optional request fields.
func Ptr[T any](v T) *T { return &v }
