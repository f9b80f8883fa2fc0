// Package autocheckout closes a tracked volunteer session when the app
// stays in the background, or when the session runs past 12 hours.
package autocheckout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"Backend-Volunteer-Hours/src/apperror"
	"Backend-Volunteer-Hours/src/clock"
	"Backend-Volunteer-Hours/src/models"
	checkInOut "Backend-Volunteer-Hours/src/services/check-in-out"
	"Backend-Volunteer-Hours/src/services/identity"
	"Backend-Volunteer-Hours/src/services/sessionstore"
	"Backend-Volunteer-Hours/src/services/timeservice"

	"go.uber.org/zap"
)

type State string

const (
	StateIdle              State = "idle"
	StateTracking          State = "tracking"
	StatePendingTimeout    State = "pending_timeout"
	StateCheckoutAttempted State = "checkout_attempted"
)

// Remark tags written on system-initiated checkouts.
const (
	TagAutoCheckout = "[system-auto-checkout]"
	TagOvertime     = "[overtime]"
)

// Attendance is the checkout capability the scheduler drives.
type Attendance interface {
	CheckOut(ctx context.Context, req checkInOut.CheckoutRequest) (checkInOut.CheckoutResult, error)
}

type outcome int

const (
	outcomeDone outcome = iota
	outcomeClosed
	outcomeDeferred
)

type Scheduler struct {
	store      *sessionstore.Store
	attendance Attendance
	identity   identity.Provider
	times      *timeservice.Service
	lifecycle  LifecycleSource
	clock      clock.Clock
	logger     *zap.Logger

	mu          sync.Mutex
	ctx         context.Context
	state       State
	tracking    *models.TrackingState
	config      models.AutoCheckoutConfig
	timer       *clock.Timer
	timerGen    uint64
	unsubscribe func()
}

type Option func(*Scheduler)

func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

func New(store *sessionstore.Store, attendance Attendance, idp identity.Provider, times *timeservice.Service, lifecycle LifecycleSource, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:      store,
		attendance: attendance,
		identity:   idp,
		times:      times,
		lifecycle:  lifecycle,
		clock:      clock.Real(),
		logger:     zap.L().Named("autocheckout"),
		ctx:        context.Background(),
		state:      StateIdle,
		config:     models.DefaultAutoCheckoutConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start loads the configuration, replays a pending checkout once,
// restores the tracked session and subscribes to lifecycle events.
func (s *Scheduler) Start(ctx context.Context) error {
	cfg, err := s.store.Config(ctx)
	if err != nil {
		return fmt.Errorf("load auto-checkout config: %w", err)
	}

	s.mu.Lock()
	s.ctx = ctx
	s.config = cfg
	s.mu.Unlock()

	s.replayPending(ctx)
	if err := s.restore(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.unsubscribe = s.lifecycle.Subscribe(s.OnLifecycle)
	s.mu.Unlock()

	s.TriggerOvertimeCheck(ctx)
	return nil
}

// Stop unsubscribes from lifecycle events and cancels the timer.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.cancelTimerLocked()
}

func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Tracking returns a copy of the tracked session, or nil.
func (s *Scheduler) Tracking() *models.TrackingState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tracking == nil {
		return nil
	}
	t := *s.tracking
	return &t
}

func (s *Scheduler) Config() models.AutoCheckoutConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config
}

// UpdateConfig persists a partial configuration change. Disabling auto
// checkout cancels a pending timeout.
func (s *Scheduler) UpdateConfig(ctx context.Context, patch models.AutoCheckoutConfigPatch) (models.AutoCheckoutConfig, error) {
	cfg, err := s.store.UpdateConfig(ctx, patch)
	if err != nil {
		return cfg, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = cfg
	if !cfg.Enabled && s.state == StatePendingTimeout {
		s.cancelTimerLocked()
		s.state = StateTracking
	}
	return cfg, nil
}

// RecordCheckin starts tracking a session. An empty startTime means now.
func (s *Scheduler) RecordCheckin(ctx context.Context, subjectUserID, subjectName, sessionID, startTime string) error {
	if startTime == "" {
		startTime = s.times.CurrentLocalTime()
	}
	state := models.TrackingState{
		SubjectUserID:  subjectUserID,
		SubjectName:    subjectName,
		SessionID:      sessionID,
		CheckinTime:    startTime,
		LastActiveTime: s.times.CurrentLocalTime(),
	}
	if err := s.store.SaveTrackingState(ctx, state); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelTimerLocked()
	s.tracking = &state
	s.state = StateTracking
	s.logger.Info("tracking session",
		zap.String("subject_user_id", subjectUserID),
		zap.String("session_id", sessionID),
		zap.String("start_time", startTime),
	)
	return nil
}

// RecordCheckout stops tracking the subject, including a tracking state
// persisted by another process.
func (s *Scheduler) RecordCheckout(ctx context.Context, subjectUserID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tracking != nil {
		if s.tracking.SubjectUserID != subjectUserID {
			return nil
		}
		return s.clearLocked(ctx)
	}

	stored, err := s.store.TrackingState(ctx)
	if err != nil {
		return err
	}
	if stored != nil && stored.SubjectUserID == subjectUserID {
		return s.store.ClearTrackingState(ctx)
	}
	return nil
}

// OnLifecycle reacts to the app moving between foreground and background.
func (s *Scheduler) OnLifecycle(ev Event) {
	switch ev {
	case EventBackground:
		s.onBackground()
	case EventActive:
		s.onActive()
	}
}

func (s *Scheduler) onBackground() {
	s.mu.Lock()
	if !s.config.Enabled || s.tracking == nil ||
		(s.state != StateTracking && s.state != StatePendingTimeout) {
		s.mu.Unlock()
		return
	}

	s.state = StatePendingTimeout
	s.tracking.LastActiveTime = s.times.CurrentLocalTime()
	if err := s.store.SaveTrackingState(s.ctx, *s.tracking); err != nil {
		s.logger.Warn("persist last active time failed", zap.Error(err))
	}

	s.cancelTimerLocked()
	s.timerGen++
	gen := s.timerGen
	delay := time.Duration(s.config.DelaySeconds) * time.Second
	s.mu.Unlock()

	// AfterFunc may fire inline for a zero delay, so it runs unlocked.
	t := s.clock.AfterFunc(delay, func() { s.onTimer(gen) })

	s.mu.Lock()
	if s.timerGen == gen && s.state == StatePendingTimeout {
		s.timer = t
	} else {
		t.Stop()
	}
	s.mu.Unlock()

	s.logger.Info("app in background, auto checkout armed", zap.Duration("delay", delay))
}

func (s *Scheduler) onActive() {
	s.mu.Lock()
	s.cancelTimerLocked()
	if s.state == StatePendingTimeout {
		s.state = StateTracking
	}
	ctx := s.ctx
	s.mu.Unlock()

	s.TriggerOvertimeCheck(ctx)
}

func (s *Scheduler) onTimer(gen uint64) {
	s.mu.Lock()
	if gen != s.timerGen || s.state != StatePendingTimeout || s.tracking == nil {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.state = StateCheckoutAttempted
	snapshot := *s.tracking
	ctx := s.ctx
	s.mu.Unlock()

	result := s.attempt(ctx, snapshot, true)
	s.settle(ctx, snapshot, result)
}

// TriggerOvertimeCheck closes the tracked session at start + 12 hours once
// it has been open longer than that.
func (s *Scheduler) TriggerOvertimeCheck(ctx context.Context) {
	s.mu.Lock()
	if s.tracking == nil || s.state == StateCheckoutAttempted {
		s.mu.Unlock()
		return
	}
	start, ok := s.times.ParseServerTime(s.tracking.CheckinTime)
	if !ok || s.times.Now().Sub(start) <= timeservice.OvertimeThreshold {
		s.mu.Unlock()
		return
	}
	s.cancelTimerLocked()
	s.state = StateCheckoutAttempted
	snapshot := *s.tracking
	s.mu.Unlock()

	s.logger.Warn("session past 12 hours, closing",
		zap.String("subject_user_id", snapshot.SubjectUserID),
		zap.String("session_id", snapshot.SessionID),
		zap.String("start_time", snapshot.CheckinTime),
	)
	result := s.attempt(ctx, snapshot, true)
	s.settle(ctx, snapshot, result)
}

// attempt checks the snapshot's session out. Failures are parked as a
// pending intent when park is set.
func (s *Scheduler) attempt(ctx context.Context, snapshot models.TrackingState, park bool) outcome {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("auto checkout panicked", zap.Any("panic", r))
		}
	}()

	deferred := func(reason string, err error) outcome {
		s.logger.Warn("auto checkout deferred",
			zap.String("subject_user_id", snapshot.SubjectUserID),
			zap.String("session_id", snapshot.SessionID),
			zap.String("reason", reason),
			zap.Error(err),
		)
		if park {
			s.park(ctx, snapshot, reason)
		}
		return outcomeDeferred
	}

	if _, ok := s.identity.CurrentCredential(ctx); !ok {
		return deferred("no credential", nil)
	}
	op, err := s.identity.OperatorIdentity(ctx)
	if err != nil {
		return deferred("operator identity unavailable", err)
	}

	remark, end := s.closeParams(snapshot)
	_, err = s.attendance.CheckOut(ctx, checkInOut.CheckoutRequest{
		SubjectUserID:  snapshot.SubjectUserID,
		OperatorUserID: op.UserID,
		OperatorName:   op.DisplayName,
		Remark:         remark,
		EndTime:        end,
	})
	switch {
	case err == nil:
		s.logger.Info("auto checkout done",
			zap.String("subject_user_id", snapshot.SubjectUserID),
			zap.String("session_id", snapshot.SessionID),
			zap.String("remark", remark),
		)
		return outcomeDone
	case apperror.IsKind(err, apperror.KindAlreadyCheckedOut), apperror.IsKind(err, apperror.KindNotCheckedIn):
		s.logger.Info("session already closed remotely",
			zap.String("subject_user_id", snapshot.SubjectUserID),
			zap.String("session_id", snapshot.SessionID),
		)
		return outcomeClosed
	}
	return deferred("checkout failed", err)
}

// closeParams picks the remark and end time: sessions past 12 hours are
// closed at start + 12 hours.
func (s *Scheduler) closeParams(snapshot models.TrackingState) (string, time.Time) {
	now := s.times.Now()
	start, ok := s.times.ParseServerTime(snapshot.CheckinTime)
	if ok && now.Sub(start) > timeservice.OvertimeThreshold {
		elapsed := now.Sub(start)
		return fmt.Sprintf("%s%s open %.1f hours since %s, capped at 12 hours",
			TagAutoCheckout, TagOvertime, elapsed.Hours(), snapshot.CheckinTime), start.Add(timeservice.OvertimeThreshold)
	}
	return TagAutoCheckout + " app left in background", time.Time{}
}

func (s *Scheduler) park(ctx context.Context, snapshot models.TrackingState, reason string) {
	intent := models.PendingCheckoutIntent{
		SubjectUserID: snapshot.SubjectUserID,
		Session:       &snapshot,
		Reason:        reason,
		CreatedAt:     s.clock.Now(),
	}
	if err := s.store.SavePendingIntent(ctx, intent); err != nil {
		s.logger.Error("persist pending checkout failed",
			zap.String("subject_user_id", snapshot.SubjectUserID),
			zap.Error(err),
		)
	}
}

func (s *Scheduler) settle(ctx context.Context, snapshot models.TrackingState, result outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sameSubject := s.tracking != nil && s.tracking.SubjectUserID == snapshot.SubjectUserID
	switch result {
	case outcomeDone, outcomeClosed:
		if sameSubject {
			if err := s.clearLocked(ctx); err != nil {
				s.logger.Warn("clear tracking state failed", zap.Error(err))
			}
		}
	case outcomeDeferred:
		if s.tracking != nil && s.state == StateCheckoutAttempted {
			s.state = StateTracking
		}
	}
}

func (s *Scheduler) replayPending(ctx context.Context) {
	intent, err := s.store.TakePendingIntent(ctx)
	if err != nil {
		s.logger.Warn("read pending checkout failed", zap.Error(err))
		return
	}
	if intent == nil || intent.Session == nil {
		return
	}

	s.logger.Info("replaying pending checkout",
		zap.String("subject_user_id", intent.SubjectUserID),
		zap.String("session_id", intent.Session.SessionID),
		zap.String("reason", intent.Reason),
	)
	result := s.attempt(ctx, *intent.Session, false)
	if result == outcomeDeferred {
		return
	}

	stored, err := s.store.TrackingState(ctx)
	if err == nil && stored != nil && stored.SubjectUserID == intent.SubjectUserID {
		if err := s.store.ClearTrackingState(ctx); err != nil {
			s.logger.Warn("clear tracking state failed", zap.Error(err))
		}
	}
}

// restore reloads the tracked session, dropping one that is no longer
// plausible.
func (s *Scheduler) restore(ctx context.Context) error {
	state, err := s.store.TrackingState(ctx)
	if err != nil {
		s.logger.Warn("read tracking state failed", zap.Error(err))
		state = nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if state == nil {
		s.tracking = nil
		s.state = StateIdle
		return nil
	}

	start, ok := s.times.ParseServerTime(state.CheckinTime)
	if !ok || !s.times.IsReasonableTime(start) {
		s.logger.Info("discarding stale tracking state",
			zap.String("subject_user_id", state.SubjectUserID),
			zap.String("start_time", state.CheckinTime),
		)
		s.tracking = nil
		s.state = StateIdle
		return s.store.ClearTrackingState(ctx)
	}

	// Sessions past the overtime threshold stay tracked so that Start's
	// overtime check closes them at start + 12h.
	if maxAge := time.Duration(s.config.MaxWorkHours) * time.Hour; s.times.Now().Sub(start) > maxAge {
		s.logger.Warn("restored session is overdue",
			zap.String("subject_user_id", state.SubjectUserID),
			zap.String("session_id", state.SessionID),
			zap.String("start_time", state.CheckinTime),
			zap.Int("max_work_hours", s.config.MaxWorkHours),
		)
	}

	s.tracking = state
	s.state = StateTracking
	return nil
}

func (s *Scheduler) clearLocked(ctx context.Context) error {
	s.cancelTimerLocked()
	s.tracking = nil
	s.state = StateIdle
	return s.store.ClearTrackingState(ctx)
}

func (s *Scheduler) cancelTimerLocked() {
	s.timerGen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
