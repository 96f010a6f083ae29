package engine

import (
	"fmt"
	"time"

	"ascnd/core"
)

// AnticheatPolicy configures per-board checks. Action applies to bounds,
// velocity and missing-key violations; reusing an idempotency key with a
// different payload is always rejected.
type AnticheatPolicy struct {
	Enabled               bool
	MinScore              *int64
	MaxScore              *int64
	MaxSubmissions        int64
	Window                time.Duration
	RequireIdempotencyKey bool
	Action                core.AnticheatAction
}

func (p AnticheatPolicy) validate() error {
	if !p.Enabled {
		return nil
	}
	if p.Action != "" && !p.Action.Valid() {
		return fmt.Errorf("anticheat action %q is not valid", p.Action)
	}
	if p.MinScore != nil && p.MaxScore != nil && *p.MinScore > *p.MaxScore {
		return fmt.Errorf("anticheat min score exceeds max score")
	}
	if p.MaxSubmissions < 0 || p.Window < 0 {
		return fmt.Errorf("anticheat velocity limits must not be negative")
	}
	return nil
}

func (p AnticheatPolicy) action() core.AnticheatAction {
	if p.Action == "" {
		return core.ActionFlag
	}
	return p.Action
}

func (p AnticheatPolicy) window() time.Duration {
	if p.Window <= 0 {
		return time.Minute
	}
	return p.Window
}

// verdict accumulates violations and keeps the strictest action.
type verdict struct {
	action     core.AnticheatAction
	violations []core.AnticheatViolation
}

func (v *verdict) add(flag core.AnticheatFlagType, action core.AnticheatAction, reason string) {
	v.violations = append(v.violations, core.AnticheatViolation{FlagType: flag, Reason: reason})
	if action.Severity() > v.action.Severity() {
		v.action = action
	}
}

func (v *verdict) result() *core.AnticheatResult {
	action := v.action
	if action == "" {
		action = core.ActionNone
	}
	return &core.AnticheatResult{
		Passed:     len(v.violations) == 0,
		Action:     action,
		Violations: v.violations,
	}
}

// checkStatic runs the checks that need no storage.
func (p AnticheatPolicy) checkStatic(req *core.SubmitScoreRequest, v *verdict) {
	if p.MinScore != nil && req.Score < *p.MinScore {
		v.add(core.FlagBoundsExceeded, p.action(), fmt.Sprintf("score %d is below minimum %d", req.Score, *p.MinScore))
	}
	if p.MaxScore != nil && req.Score > *p.MaxScore {
		v.add(core.FlagBoundsExceeded, p.action(), fmt.Sprintf("score %d is above maximum %d", req.Score, *p.MaxScore))
	}
	if p.RequireIdempotencyKey && (req.IdempotencyKey == nil || *req.IdempotencyKey == "") {
		v.add(core.FlagMissingIdempotencyKey, p.action(), "idempotency key is required")
	}
}
