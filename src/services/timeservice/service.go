// Package timeservice parses and formats the naive local timestamps
// exchanged with the hour-record backend.
//
// The backend stores "2006-01-02 15:04:05" strings exactly as received and
// never converts time zones, so every time handled here is a wall-clock
// reading. Parsed values live in a zero-offset "naive" frame: the fields of
// the returned time.Time are the wall-clock fields of the input string.
// This keeps FormatForServer(ParseServerTime(s)) == s for every
// well-formed s, including readings inside a DST gap, at the price of
// wall-clock (not physical) arithmetic across DST transitions.
package timeservice

import (
	"fmt"
	"strings"
	"time"

	"Backend-Volunteer-Hours/src/clock"

	"go.uber.org/zap"
)

// ServerLayout is the wire format of every timestamp sent to the backend.
const ServerLayout = "2006-01-02 15:04:05"

const (
	OvertimeThreshold  = 12 * time.Hour
	TooLongThreshold   = 24 * time.Hour
	ReasonablePast     = 30 * 24 * time.Hour
	ReasonableFuture   = time.Hour
	relativeWindowDays = 30
)

var naive = time.FixedZone("naive", 0)

var naiveLayouts = []string{
	ServerLayout,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006/01/02 15:04:05",
}

var offsetLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05 -0700",
}

type Service struct {
	clock   clock.Clock
	loc     *time.Location
	phrases Phrases
	logger  *zap.Logger
}

type Option func(*Service)

// WithLocation sets the zone whose wall clock "now" is read from.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

func WithPhrases(p Phrases) Option {
	return func(s *Service) { s.phrases = p }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func New(opts ...Option) *Service {
	s := &Service{
		clock:   clock.Real(),
		loc:     time.Local,
		phrases: EnglishPhrases(),
		logger:  zap.L().Named("timeservice"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the current wall-clock time in the naive frame.
func (s *Service) Now() time.Time {
	return s.wall(s.clock.Now())
}

// Location is the zone used to read the wall clock.
func (s *Service) Location() *time.Location {
	return s.loc
}

// wall re-expresses t as a naive wall-clock reading. Values already in the
// naive frame are returned unchanged.
func (s *Service) wall(t time.Time) time.Time {
	if t.Location() == naive {
		return t
	}
	t = t.In(s.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), naive)
}

// Instant converts a naive reading back to an absolute time in the service
// location, e.g. for timers.
func (s *Service) Instant(t time.Time) time.Time {
	if t.Location() != naive {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), s.loc)
}

// ParseServerTime parses a backend timestamp. Input without an offset is
// read literally as local wall-clock time. Input carrying "Z" or an
// explicit offset is parsed as such and shown on the local wall clock.
func (s *Service) ParseServerTime(raw string) (time.Time, bool) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, false
	}

	if hasOffset(value) {
		for _, layout := range offsetLayouts {
			if t, err := time.Parse(layout, value); err == nil {
				return s.wall(t), true
			}
		}
	} else {
		for _, layout := range naiveLayouts {
			if t, err := time.ParseInLocation(layout, value, naive); err == nil {
				return t, true
			}
		}
	}

	s.logger.Warn("unparsable server time", zap.String("raw", raw))
	return time.Time{}, false
}

// hasOffset reports whether a timestamp carries a zone designator after
// its time-of-day part.
func hasOffset(value string) bool {
	if strings.HasSuffix(value, "Z") || strings.HasSuffix(value, "z") {
		return true
	}
	clockPart := value
	if i := strings.IndexAny(value, "T "); i >= 0 {
		clockPart = value[i+1:]
	} else {
		return false
	}
	return strings.ContainsAny(clockPart, "+-")
}

// FormatForServer renders t as "YYYY-MM-DD HH:mm:ss" on the local wall
// clock. A zero t formats the current time.
func (s *Service) FormatForServer(t time.Time) string {
	if t.IsZero() {
		t = s.clock.Now()
	}
	return s.wall(t).Format(ServerLayout)
}

// CurrentLocalTime is FormatForServer(now).
func (s *Service) CurrentLocalTime() string {
	return s.FormatForServer(time.Time{})
}

type DisplayOptions struct {
	ShowDate bool
	ShowTime bool
	Relative bool
}

// DefaultDisplay shows the time of day only.
var DefaultDisplay = DisplayOptions{ShowTime: true}

func (s *Service) FormatForDisplay(t time.Time, opts DisplayOptions) string {
	if t.IsZero() {
		return "--:--"
	}
	w := s.wall(t)

	if opts.Relative && sameDay(w, s.Now()) {
		return s.phrases.Today + " " + w.Format("15:04")
	}

	var parts []string
	if opts.ShowDate {
		parts = append(parts, w.Format("2006/01/02"))
	}
	if opts.ShowTime {
		parts = append(parts, w.Format("15:04"))
	}
	return strings.Join(parts, " ")
}

// FormatRelative describes how long ago t was.
func (s *Service) FormatRelative(t time.Time) string {
	if t.IsZero() {
		return s.phrases.Unknown
	}
	diff := s.Now().Sub(s.wall(t))
	minutes := int(diff / time.Minute)
	hours := minutes / 60
	days := hours / 24

	switch {
	case minutes < 1:
		return s.phrases.JustNow
	case minutes < 60:
		return fmt.Sprintf(s.phrases.MinutesAgo, minutes)
	case hours < 24:
		return fmt.Sprintf(s.phrases.HoursAgo, hours)
	case days < relativeWindowDays:
		return fmt.Sprintf(s.phrases.DaysAgo, days)
	}
	return s.FormatForDisplay(t, DisplayOptions{ShowDate: true})
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

type DurationResult struct {
	Minutes    int    `json:"minutes"`
	Display    string `json:"display"`
	IsValid    bool   `json:"isValid"`
	IsOvertime bool   `json:"isOvertime"`
}

// CalculateDuration measures end - start in whole minutes. The result is
// invalid when either end is zero or end is before start.
func (s *Service) CalculateDuration(start, end time.Time) DurationResult {
	if start.IsZero() || end.IsZero() {
		return DurationResult{Display: s.phrases.InvalidDuration}
	}

	diff := s.wall(end).Sub(s.wall(start))
	if diff < 0 {
		return DurationResult{Display: s.phrases.EndBeforeStart}
	}

	minutes := int(diff / time.Minute)
	hours := minutes / 60
	mins := minutes % 60
	overtime := hours >= int(OvertimeThreshold/time.Hour)

	display := s.phrases.duration(hours, mins)
	if overtime {
		display += s.phrases.Overtime
	}

	return DurationResult{
		Minutes:    minutes,
		Display:    display,
		IsValid:    true,
		IsOvertime: overtime,
	}
}

// CalculateDurationStrings parses both backend strings and measures them.
func (s *Service) CalculateDurationStrings(start, end string) DurationResult {
	st, _ := s.ParseServerTime(start)
	et, _ := s.ParseServerTime(end)
	return s.CalculateDuration(st, et)
}

// IsReasonableTime reports whether t lies within [now-30d, now+1h].
func (s *Service) IsReasonableTime(t time.Time) bool {
	if t.IsZero() {
		return false
	}
	now := s.Now()
	w := s.wall(t)
	return !w.Before(now.Add(-ReasonablePast)) && !w.After(now.Add(ReasonableFuture))
}

type AnomalyType string

const (
	AnomalyNone    AnomalyType = "none"
	AnomalyFuture  AnomalyType = "future"
	AnomalyTooLong AnomalyType = "too_long"
)

type Anomaly struct {
	Type    AnomalyType `json:"type"`
	Message string      `json:"message"`
}

// DetectTimeAnomaly flags a check-in time in the future or more than 24
// hours in the past.
func (s *Service) DetectTimeAnomaly(checkin time.Time) Anomaly {
	if checkin.IsZero() {
		return Anomaly{Type: AnomalyNone}
	}
	elapsed := s.Now().Sub(s.wall(checkin))
	switch {
	case elapsed < 0:
		return Anomaly{Type: AnomalyFuture, Message: s.phrases.FutureCheckin}
	case elapsed > TooLongThreshold:
		return Anomaly{
			Type:    AnomalyTooLong,
			Message: fmt.Sprintf(s.phrases.TooLongCheckin, elapsed.Hours()),
		}
	}
	return Anomaly{Type: AnomalyNone}
}
