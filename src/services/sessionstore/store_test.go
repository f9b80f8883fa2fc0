package sessionstore

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"Backend-Volunteer-Hours/src/clock"
	"Backend-Volunteer-Hours/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(kv KV) (*Store, *clock.FakeClock) {
	clk := clock.Fake(time.Date(2025, 1, 25, 9, 0, 0, 0, time.UTC))
	return New(kv, WithClock(clk), WithLogger(zap.NewNop())), clk
}

// failingKV fails every operation.
type failingKV struct{}

func (failingKV) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("storage unavailable")
}
func (failingKV) Set(context.Context, string, string) error { return errors.New("storage unavailable") }
func (failingKV) Remove(context.Context, string) error      { return errors.New("storage unavailable") }

func strPtr(s string) *string { return &s }

func TestCheckinCacheExpiresAfterTenMinutes(t *testing.T) {
	ctx := context.Background()
	store, clk := newTestStore(NewMemoryKV())

	store.CacheCheckin(ctx, "42", "rec-1", "2025-01-25 09:00:00")

	entry, ok := store.CachedCheckin(ctx, "42")
	require.True(t, ok)
	assert.Equal(t, "rec-1", entry.SessionID)
	assert.Equal(t, "2025-01-25 09:00:00", entry.StartTime)

	clk.Advance(10 * time.Minute)
	_, ok = store.CachedCheckin(ctx, "42")
	assert.True(t, ok, "entry is valid for the full ttl")

	clk.Advance(time.Second)
	_, ok = store.CachedCheckin(ctx, "42")
	assert.False(t, ok)
}

func TestCheckinCacheIsPerSubject(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(NewMemoryKV())

	store.CacheCheckin(ctx, "1", "rec-1", "2025-01-25 09:00:00")
	store.CacheCheckin(ctx, "2", "rec-2", "2025-01-25 09:05:00")
	store.ClearCheckin(ctx, "1")

	_, ok := store.CachedCheckin(ctx, "1")
	assert.False(t, ok)
	entry, ok := store.CachedCheckin(ctx, "2")
	assert.True(t, ok)
	assert.Equal(t, "rec-2", entry.SessionID)
}

func TestCheckinCacheToleratesStorageFailures(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(failingKV{})

	assert.NotPanics(t, func() {
		store.CacheCheckin(ctx, "1", "rec-1", "2025-01-25 09:00:00")
		store.ClearCheckin(ctx, "1")
	})
	_, ok := store.CachedCheckin(ctx, "1")
	assert.False(t, ok)
}

func TestCorruptCacheEntryIsAMiss(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	store, _ := newTestStore(kv)
	require.NoError(t, kv.Set(ctx, CheckinCacheKey("9"), "{not json"))

	_, ok := store.CachedCheckin(ctx, "9")
	assert.False(t, ok)
	_, exists, _ := kv.Get(ctx, CheckinCacheKey("9"))
	assert.False(t, exists)
}

func TestConfigDefaultsArePersisted(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	store, _ := newTestStore(kv)

	cfg, err := store.Config(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultAutoCheckoutConfig(), cfg)

	_, exists, _ := kv.Get(ctx, KeyAutoCheckoutConfig)
	assert.True(t, exists)
}

func TestUpdateConfigMergesPartialPatch(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(NewMemoryKV())

	delay := 30
	cfg, err := store.UpdateConfig(ctx, models.AutoCheckoutConfigPatch{DelaySeconds: &delay})
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.DelaySeconds)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 24, cfg.MaxWorkHours)

	disabled := false
	cfg, err = store.UpdateConfig(ctx, models.AutoCheckoutConfigPatch{Enabled: &disabled})
	require.NoError(t, err)
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 30, cfg.DelaySeconds)

	reloaded, err := store.Config(ctx)
	require.NoError(t, err)
	assert.Equal(t, cfg, reloaded)
}

func TestUnreadableConfigFallsBackToDefaults(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	store, _ := newTestStore(kv)
	require.NoError(t, kv.Set(ctx, KeyAutoCheckoutConfig, "garbage"))

	cfg, err := store.Config(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultAutoCheckoutConfig(), cfg)
}

func TestTrackingStateLifecycle(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(NewMemoryKV())

	state, err := store.TrackingState(ctx)
	require.NoError(t, err)
	assert.Nil(t, state)

	want := models.TrackingState{SubjectUserID: "7", SubjectName: "Ana", SessionID: "rec-7", CheckinTime: "2025-01-25 08:00:00"}
	require.NoError(t, store.SaveTrackingState(ctx, want))

	state, err = store.TrackingState(ctx)
	require.NoError(t, err)
	assert.Equal(t, &want, state)

	require.NoError(t, store.ClearTrackingState(ctx))
	state, err = store.TrackingState(ctx)
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestTakePendingIntentReturnsItOnce(t *testing.T) {
	ctx := context.Background()
	store, clk := newTestStore(NewMemoryKV())

	intent := models.PendingCheckoutIntent{
		SubjectUserID: "7",
		Session:       &models.TrackingState{SubjectUserID: "7", SessionID: "rec-7", CheckinTime: "2025-01-25 08:00:00"},
		Reason:        "network",
		CreatedAt:     clk.Now(),
	}
	require.NoError(t, store.SavePendingIntent(ctx, intent))

	got, err := store.TakePendingIntent(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "rec-7", got.Session.SessionID)
	assert.True(t, intent.CreatedAt.Equal(got.CreatedAt))

	got, err = store.TakePendingIntent(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLatestSessionClearsCacheWhenClosed(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(NewMemoryKV())
	store.CacheCheckin(ctx, "5", "rec-5", "2025-01-25 08:00:00")

	closed := &models.HourRecord{ID: "rec-5", UserID: "5", StartTime: "2025-01-25 08:00:00", EndTime: strPtr("2025-01-25 09:00:00")}
	record, err := store.GetOpenSession(ctx, "5", func(context.Context, string) (*models.HourRecord, error) {
		return closed, nil
	})
	require.NoError(t, err)
	assert.Nil(t, record)

	_, ok := store.CachedCheckin(ctx, "5")
	assert.False(t, ok)
}

func TestLatestSessionKeepsNewerCachedCheckin(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(NewMemoryKV())
	store.CacheCheckin(ctx, "5", "rec-6", "2025-01-25 08:55:00")

	older := &models.HourRecord{ID: "rec-5", UserID: "5", StartTime: "2025-01-24 09:00:00", EndTime: strPtr("2025-01-24 17:00:00")}
	record, err := store.LatestSession(ctx, "5", func(context.Context, string) (*models.HourRecord, error) {
		return older, nil
	})
	require.NoError(t, err)
	assert.Equal(t, older, record)

	entry, ok := store.CachedCheckin(ctx, "5")
	require.True(t, ok, "an older closed session leaves the cache alone")
	assert.Equal(t, "rec-6", entry.SessionID)

	later := &models.HourRecord{ID: "rec-7", UserID: "5", StartTime: "2025-01-25 08:55:00", EndTime: strPtr("2025-01-25 08:58:00")}
	_, err = store.LatestSession(ctx, "5", func(context.Context, string) (*models.HourRecord, error) {
		return later, nil
	})
	require.NoError(t, err)
	_, ok = store.CachedCheckin(ctx, "5")
	assert.False(t, ok, "a closed session started at the cached time supersedes it")
}

func TestGetOpenSessionReturnsOpenRecord(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(NewMemoryKV())
	open := &models.HourRecord{ID: "rec-5", UserID: "5", StartTime: "2025-01-25 08:00:00"}

	record, err := store.GetOpenSession(ctx, "5", func(context.Context, string) (*models.HourRecord, error) {
		return open, nil
	})
	require.NoError(t, err)
	assert.Equal(t, open, record)

	record, err = store.GetOpenSession(ctx, "6", func(context.Context, string) (*models.HourRecord, error) {
		return nil, nil
	})
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestLatestSessionPropagatesFetchError(t *testing.T) {
	store, _ := newTestStore(NewMemoryKV())
	boom := errors.New("offline")

	_, err := store.LatestSession(context.Background(), "5", func(context.Context, string) (*models.HourRecord, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestLatestSessionCollapsesConcurrentLookups(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(NewMemoryKV())

	var calls int32
	release := make(chan struct{})
	fetch := func(context.Context, string) (*models.HourRecord, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return &models.HourRecord{ID: "rec-1", UserID: "1"}, nil
	}

	const n = 8
	var started, done sync.WaitGroup
	started.Add(n)
	done.Add(n)
	results := make([]*models.HourRecord, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer done.Done()
			started.Done()
			results[i], _ = store.LatestSession(ctx, "1", fetch)
		}(i)
	}
	started.Wait()
	time.Sleep(50 * time.Millisecond)
	close(release)
	done.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, r := range results {
		require.NotNil(t, r)
		assert.Equal(t, "rec-1", r.ID)
	}
}
