// Package approval decides whether a completed attendance session can be
// approved without staff review.
package approval

import (
	"strings"
	"time"
)

type PermissionLevel string

const (
	LevelPrimaryAdmin PermissionLevel = "manage"
	LevelSchoolAdmin  PermissionLevel = "part_manage"
	LevelStaff        PermissionLevel = "staff"
	LevelVolunteer    PermissionLevel = "volunteer"
)

// Reason is the first rule a session failed.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonPermission      Reason = "staff review required for this operator"
	ReasonTooOld          Reason = "entries older than 7 days need review"
	ReasonTooLong         Reason = "sessions longer than 8 hours need review"
	ReasonAbnormalRemark  Reason = "system-processed sessions need review"
	ReasonInvalidInterval Reason = "session interval is invalid"
)

// DefaultMarkers tag sessions closed or corrected by the system.
var DefaultMarkers = []string{
	"system-auto-checkout",
	"admin-reset",
	"overtime",
	"anomaly",
	"自动签退",
}

type Engine struct {
	Levels      []PermissionLevel
	MaxAge      time.Duration
	MaxDuration time.Duration
	Markers     []string
}

func NewEngine() *Engine {
	return &Engine{
		Levels:      []PermissionLevel{LevelPrimaryAdmin, LevelSchoolAdmin},
		MaxAge:      7 * 24 * time.Hour,
		MaxDuration: 8 * time.Hour,
		Markers:     DefaultMarkers,
	}
}

type Decision struct {
	AutoApprove bool
	Reason      Reason
}

// ShouldAutoApprove reports whether the session qualifies. start, end and
// now must be in the same frame.
func (e *Engine) ShouldAutoApprove(level PermissionLevel, start, end time.Time, remark string, now time.Time) bool {
	return e.Evaluate(level, start, end, remark, now).AutoApprove
}

func (e *Engine) Evaluate(level PermissionLevel, start, end time.Time, remark string, now time.Time) Decision {
	if !e.privileged(level) {
		return Decision{Reason: ReasonPermission}
	}
	if start.IsZero() || end.IsZero() || end.Before(start) {
		return Decision{Reason: ReasonInvalidInterval}
	}
	if now.Sub(start) > e.MaxAge {
		return Decision{Reason: ReasonTooOld}
	}
	if end.Sub(start) > e.MaxDuration {
		return Decision{Reason: ReasonTooLong}
	}
	if e.abnormal(remark) {
		return Decision{Reason: ReasonAbnormalRemark}
	}
	return Decision{AutoApprove: true}
}

func (e *Engine) privileged(level PermissionLevel) bool {
	for _, l := range e.Levels {
		if l == level {
			return true
		}
	}
	return false
}

func (e *Engine) abnormal(remark string) bool {
	lower := strings.ToLower(remark)
	for _, m := range e.Markers {
		if strings.Contains(lower, strings.ToLower(m)) {
			return true
		}
	}
	return false
}
