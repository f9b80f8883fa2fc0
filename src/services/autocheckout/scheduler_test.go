package autocheckout

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"Backend-Volunteer-Hours/src/apperror"
	"Backend-Volunteer-Hours/src/clock"
	"Backend-Volunteer-Hours/src/models"
	checkInOut "Backend-Volunteer-Hours/src/services/check-in-out"
	"Backend-Volunteer-Hours/src/services/identity"
	"Backend-Volunteer-Hours/src/services/sessionstore"
	"Backend-Volunteer-Hours/src/services/timeservice"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeAttendance struct {
	mu    sync.Mutex
	calls []checkInOut.CheckoutRequest
	err   error
}

func (f *fakeAttendance) CheckOut(_ context.Context, req checkInOut.CheckoutRequest) (checkInOut.CheckoutResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.err != nil {
		return checkInOut.CheckoutResult{}, f.err
	}
	return checkInOut.CheckoutResult{SessionID: "rec-1"}, nil
}

func (f *fakeAttendance) Calls() []checkInOut.CheckoutRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]checkInOut.CheckoutRequest(nil), f.calls...)
}

type fixture struct {
	sched      *Scheduler
	clk        *clock.FakeClock
	store      *sessionstore.Store
	attendance *fakeAttendance
	lifecycle  *Broadcaster
	times      *timeservice.Service
}

var operator = identity.Static{
	Token:    "tok",
	Operator: identity.Operator{UserID: "900", DisplayName: "Ops"},
}

func newFixture(t *testing.T, now time.Time, kv sessionstore.KV, idp identity.Provider) *fixture {
	t.Helper()
	clk := clock.Fake(now)
	times := timeservice.New(timeservice.WithClock(clk), timeservice.WithLocation(time.UTC), timeservice.WithLogger(zap.NewNop()))
	store := sessionstore.New(kv, sessionstore.WithClock(clk), sessionstore.WithTimes(times), sessionstore.WithLogger(zap.NewNop()))
	att := &fakeAttendance{}
	lc := NewBroadcaster()
	sched := New(store, att, idp, times, lc, WithClock(clk), WithLogger(zap.NewNop()))
	return &fixture{sched: sched, clk: clk, store: store, attendance: att, lifecycle: lc, times: times}
}

var morning = time.Date(2025, 1, 25, 9, 0, 0, 0, time.UTC)

func TestBackgroundTimeoutChecksOut(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, morning, sessionstore.NewMemoryKV(), operator)
	require.NoError(t, f.sched.Start(ctx))
	require.NoError(t, f.sched.RecordCheckin(ctx, "42", "Li Lei", "rec-1", ""))
	assert.Equal(t, StateTracking, f.sched.State())

	f.clk.Advance(time.Hour)
	f.lifecycle.Emit(EventBackground)
	assert.Equal(t, StatePendingTimeout, f.sched.State())

	f.clk.Advance(4 * time.Second)
	assert.Empty(t, f.attendance.Calls())

	f.clk.Advance(time.Second)
	calls := f.attendance.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "42", calls[0].SubjectUserID)
	assert.Equal(t, "900", calls[0].OperatorUserID)
	assert.True(t, strings.HasPrefix(calls[0].Remark, TagAutoCheckout))
	assert.True(t, calls[0].EndTime.IsZero())

	assert.Equal(t, StateIdle, f.sched.State())
	assert.Nil(t, f.sched.Tracking())
	stored, err := f.store.TrackingState(ctx)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestReturningToForegroundCancelsTimer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, morning, sessionstore.NewMemoryKV(), operator)
	require.NoError(t, f.sched.Start(ctx))
	require.NoError(t, f.sched.RecordCheckin(ctx, "42", "Li Lei", "rec-1", ""))

	f.lifecycle.Emit(EventBackground)
	f.clk.Advance(2 * time.Second)
	f.lifecycle.Emit(EventActive)
	f.clk.Advance(time.Minute)

	assert.Empty(t, f.attendance.Calls())
	assert.Equal(t, StateTracking, f.sched.State())
	assert.Equal(t, 0, f.clk.PendingCount())
}

func TestRepeatedBackgroundRearmsSingleTimer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, morning, sessionstore.NewMemoryKV(), operator)
	require.NoError(t, f.sched.Start(ctx))
	require.NoError(t, f.sched.RecordCheckin(ctx, "42", "Li Lei", "rec-1", ""))

	f.lifecycle.Emit(EventBackground)
	f.clk.Advance(3 * time.Second)
	f.lifecycle.Emit(EventBackground)
	assert.Equal(t, 1, f.clk.PendingCount())

	f.clk.Advance(3 * time.Second)
	assert.Empty(t, f.attendance.Calls())

	f.clk.Advance(2 * time.Second)
	assert.Len(t, f.attendance.Calls(), 1)
}

func TestBackgroundIgnoredWhenDisabledOrIdle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, morning, sessionstore.NewMemoryKV(), operator)
	require.NoError(t, f.sched.Start(ctx))

	f.lifecycle.Emit(EventBackground)
	assert.Equal(t, StateIdle, f.sched.State())

	require.NoError(t, f.sched.RecordCheckin(ctx, "42", "Li Lei", "rec-1", ""))
	disabled := false
	cfg, err := f.sched.UpdateConfig(ctx, models.AutoCheckoutConfigPatch{Enabled: &disabled})
	require.NoError(t, err)
	assert.False(t, cfg.Enabled)

	f.lifecycle.Emit(EventBackground)
	f.clk.Advance(time.Minute)
	assert.Equal(t, StateTracking, f.sched.State())
	assert.Empty(t, f.attendance.Calls())
}

func TestZeroDelayChecksOutImmediately(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, morning, sessionstore.NewMemoryKV(), operator)
	require.NoError(t, f.sched.Start(ctx))
	zero := 0
	_, err := f.sched.UpdateConfig(ctx, models.AutoCheckoutConfigPatch{DelaySeconds: &zero})
	require.NoError(t, err)
	require.NoError(t, f.sched.RecordCheckin(ctx, "42", "Li Lei", "rec-1", ""))

	f.lifecycle.Emit(EventBackground)

	assert.Len(t, f.attendance.Calls(), 1)
	assert.Equal(t, StateIdle, f.sched.State())
	assert.Equal(t, 0, f.clk.PendingCount())
}

func TestOvertimeCheckClosesAtTwelveHours(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, morning, sessionstore.NewMemoryKV(), operator)
	require.NoError(t, f.sched.Start(ctx))
	require.NoError(t, f.sched.RecordCheckin(ctx, "42", "Li Lei", "rec-1", "2025-01-24 20:00:00"))

	f.lifecycle.Emit(EventActive)

	calls := f.attendance.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "2025-01-25 08:00:00", f.times.FormatForServer(calls[0].EndTime))
	assert.Contains(t, calls[0].Remark, TagAutoCheckout)
	assert.Contains(t, calls[0].Remark, TagOvertime)
	assert.Contains(t, calls[0].Remark, "2025-01-24 20:00:00")
	assert.Equal(t, StateIdle, f.sched.State())
}

func TestOvertimeCheckLeavesShortSessionAlone(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, morning, sessionstore.NewMemoryKV(), operator)
	require.NoError(t, f.sched.Start(ctx))
	require.NoError(t, f.sched.RecordCheckin(ctx, "42", "Li Lei", "rec-1", "2025-01-24 21:00:00"))

	f.sched.TriggerOvertimeCheck(ctx)

	assert.Empty(t, f.attendance.Calls())
	assert.Equal(t, StateTracking, f.sched.State())
}

func TestMissingCredentialParksIntent(t *testing.T) {
	ctx := context.Background()
	kv := sessionstore.NewMemoryKV()
	f := newFixture(t, morning, kv, identity.Static{})
	require.NoError(t, f.sched.Start(ctx))
	require.NoError(t, f.sched.RecordCheckin(ctx, "42", "Li Lei", "rec-1", ""))

	f.lifecycle.Emit(EventBackground)
	f.clk.Advance(5 * time.Second)

	assert.Empty(t, f.attendance.Calls())
	assert.Equal(t, StateTracking, f.sched.State())

	intent, err := f.store.TakePendingIntent(ctx)
	require.NoError(t, err)
	require.NotNil(t, intent)
	assert.Equal(t, "42", intent.SubjectUserID)
	assert.Equal(t, "rec-1", intent.Session.SessionID)
	assert.Equal(t, "no credential", intent.Reason)
}

func TestCheckoutFailureParksIntent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, morning, sessionstore.NewMemoryKV(), operator)
	f.attendance.err = apperror.New(apperror.KindTransientNetwork, "offline")
	require.NoError(t, f.sched.Start(ctx))
	require.NoError(t, f.sched.RecordCheckin(ctx, "42", "Li Lei", "rec-1", ""))

	f.lifecycle.Emit(EventBackground)
	f.clk.Advance(5 * time.Second)

	assert.Equal(t, StateTracking, f.sched.State())
	intent, err := f.store.TakePendingIntent(ctx)
	require.NoError(t, err)
	require.NotNil(t, intent)
	assert.Equal(t, "checkout failed", intent.Reason)
}

func TestRemotelyClosedSessionClearsTracking(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, morning, sessionstore.NewMemoryKV(), operator)
	f.attendance.err = apperror.ErrAlreadyCheckedOut
	require.NoError(t, f.sched.Start(ctx))
	require.NoError(t, f.sched.RecordCheckin(ctx, "42", "Li Lei", "rec-1", ""))

	f.lifecycle.Emit(EventBackground)
	f.clk.Advance(5 * time.Second)

	assert.Equal(t, StateIdle, f.sched.State())
	intent, err := f.store.TakePendingIntent(ctx)
	require.NoError(t, err)
	assert.Nil(t, intent)
}

func TestPendingIntentReplayedOnceAtStart(t *testing.T) {
	ctx := context.Background()
	kv := sessionstore.NewMemoryKV()
	f := newFixture(t, morning, kv, operator)

	session := models.TrackingState{SubjectUserID: "42", SessionID: "rec-1", CheckinTime: "2025-01-25 07:00:00"}
	require.NoError(t, f.store.SaveTrackingState(ctx, session))
	require.NoError(t, f.store.SavePendingIntent(ctx, models.PendingCheckoutIntent{
		SubjectUserID: "42", Session: &session, Reason: "no credential", CreatedAt: morning,
	}))

	require.NoError(t, f.sched.Start(ctx))

	require.Len(t, f.attendance.Calls(), 1)
	assert.Equal(t, StateIdle, f.sched.State())
	intent, err := f.store.TakePendingIntent(ctx)
	require.NoError(t, err)
	assert.Nil(t, intent)
}

func TestFailedReplayIsDiscarded(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, morning, sessionstore.NewMemoryKV(), operator)
	f.attendance.err = errors.New("boom")

	session := models.TrackingState{SubjectUserID: "42", SessionID: "rec-1", CheckinTime: "2025-01-25 07:00:00"}
	require.NoError(t, f.store.SavePendingIntent(ctx, models.PendingCheckoutIntent{
		SubjectUserID: "42", Session: &session, CreatedAt: morning,
	}))

	require.NoError(t, f.sched.Start(ctx))

	assert.Len(t, f.attendance.Calls(), 1)
	intent, err := f.store.TakePendingIntent(ctx)
	require.NoError(t, err)
	assert.Nil(t, intent)
}

func TestStartRestoresRecentTrackingState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, morning, sessionstore.NewMemoryKV(), operator)
	require.NoError(t, f.store.SaveTrackingState(ctx, models.TrackingState{
		SubjectUserID: "42", SessionID: "rec-1", CheckinTime: "2025-01-25 08:00:00",
	}))

	require.NoError(t, f.sched.Start(ctx))

	assert.Equal(t, StateTracking, f.sched.State())
	require.NotNil(t, f.sched.Tracking())
	assert.Equal(t, "rec-1", f.sched.Tracking().SessionID)
	assert.Equal(t, 1, f.lifecycle.Subscribers())

	f.sched.Stop()
	assert.Equal(t, 0, f.lifecycle.Subscribers())
}

func TestStartDiscardsImplausibleTrackingState(t *testing.T) {
	cases := map[string]string{
		"unparsable":             "yesterday-ish",
		"older than 30 days":     "2024-12-20 08:00:00",
		"more than 1h in future": "2025-01-26 08:00:00",
	}
	for name, checkin := range cases {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t, morning, sessionstore.NewMemoryKV(), operator)
			require.NoError(t, f.store.SaveTrackingState(ctx, models.TrackingState{
				SubjectUserID: "42", SessionID: "rec-1", CheckinTime: checkin,
			}))

			require.NoError(t, f.sched.Start(ctx))

			assert.Equal(t, StateIdle, f.sched.State())
			stored, err := f.store.TrackingState(ctx)
			require.NoError(t, err)
			assert.Nil(t, stored)
		})
	}
}

func TestStartClosesOverdueRestoredSessionAtOvertimeCap(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, morning, sessionstore.NewMemoryKV(), operator)
	require.NoError(t, f.store.SaveTrackingState(ctx, models.TrackingState{
		SubjectUserID: "42", SessionID: "rec-1", CheckinTime: "2025-01-24 08:00:00",
	}))

	require.NoError(t, f.sched.Start(ctx))

	calls := f.attendance.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "42", calls[0].SubjectUserID)
	assert.Equal(t, "2025-01-24 20:00:00", f.times.FormatForServer(calls[0].EndTime))
	assert.Contains(t, calls[0].Remark, TagOvertime)
	assert.Equal(t, StateIdle, f.sched.State())

	stored, err := f.store.TrackingState(ctx)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestRecordCheckoutStopsTracking(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, morning, sessionstore.NewMemoryKV(), operator)
	require.NoError(t, f.sched.Start(ctx))
	require.NoError(t, f.sched.RecordCheckin(ctx, "42", "Li Lei", "rec-1", ""))
	f.lifecycle.Emit(EventBackground)

	require.NoError(t, f.sched.RecordCheckout(ctx, "7"))
	assert.Equal(t, StatePendingTimeout, f.sched.State())

	require.NoError(t, f.sched.RecordCheckout(ctx, "42"))
	assert.Equal(t, StateIdle, f.sched.State())
	f.clk.Advance(time.Minute)
	assert.Empty(t, f.attendance.Calls())
}

func TestRecordCheckoutClearsPersistedStateOfAnotherProcess(t *testing.T) {
	ctx := context.Background()
	kv := sessionstore.NewMemoryKV()
	writer := newFixture(t, morning, kv, operator)
	require.NoError(t, writer.sched.RecordCheckin(ctx, "42", "Li Lei", "rec-1", ""))

	reader := newFixture(t, morning, kv, operator)
	require.NoError(t, reader.sched.RecordCheckout(ctx, "42"))

	stored, err := reader.store.TrackingState(ctx)
	require.NoError(t, err)
	assert.Nil(t, stored)
}
