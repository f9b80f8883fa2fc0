// Package sessionstore keeps the client-side attendance state: the short
// lived check-in cache, the auto-checkout configuration, the scheduler's
// tracking state and the pending checkout intent.
package sessionstore

import (
	"context"
	"encoding/json"
	"fmt"

	"Backend-Volunteer-Hours/src/clock"
	"Backend-Volunteer-Hours/src/models"
	"Backend-Volunteer-Hours/src/services/timeservice"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	KeyAutoCheckoutConfig = "volunteer_auto_checkout_config"
	KeyCheckinState       = "volunteer_checkin_state"
	KeyPendingCheckout    = "volunteer_pending_checkout"
	checkinCachePrefix    = "volunteer_checkin_cache:"
)

func CheckinCacheKey(subjectUserID string) string {
	return checkinCachePrefix + subjectUserID
}

// SessionFetcher returns the latest session of a subject from the
// authoritative remote service, or nil when the subject has none.
type SessionFetcher func(ctx context.Context, subjectUserID string) (*models.HourRecord, error)

type Store struct {
	kv     KV
	clock  clock.Clock
	times  *timeservice.Service
	sf     *singleflight.Group
	logger *zap.Logger
}

type Option func(*Store)

func WithClock(c clock.Clock) Option {
	return func(s *Store) { s.clock = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithTimes sets the normalizer used to compare session start times.
func WithTimes(t *timeservice.Service) Option {
	return func(s *Store) { s.times = t }
}

func New(kv KV, opts ...Option) *Store {
	s := &Store{
		kv:     kv,
		clock:  clock.Real(),
		sf:     &singleflight.Group{},
		logger: zap.L().Named("sessionstore"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.times == nil {
		s.times = timeservice.New(timeservice.WithClock(s.clock), timeservice.WithLogger(s.logger))
	}
	return s
}

// LatestSession performs an authoritative lookup of the subject's latest
// session. Concurrent lookups for one subject share a single remote call.
// A closed session clears the subject's cache entry unless it predates the
// cached check-in, which happens while the server has not listed the new
// session yet.
func (s *Store) LatestSession(ctx context.Context, subjectUserID string, fetch SessionFetcher) (*models.HourRecord, error) {
	v, err, _ := s.sf.Do(subjectUserID, func() (interface{}, error) {
		return fetch(ctx, subjectUserID)
	})
	if err != nil {
		return nil, err
	}

	record, _ := v.(*models.HourRecord)
	if record != nil && !record.IsOpen() && s.supersedesCheckin(ctx, subjectUserID, record) {
		s.ClearCheckin(ctx, subjectUserID)
	}
	return record, nil
}

// supersedesCheckin reports whether the closed record is the cached
// session or started at or after it. Unparsable start times count as
// superseding.
func (s *Store) supersedesCheckin(ctx context.Context, subjectUserID string, closed *models.HourRecord) bool {
	cached, ok := s.CachedCheckin(ctx, subjectUserID)
	if !ok || closed.ID == cached.SessionID {
		return true
	}
	closedStart, ok := s.times.ParseServerTime(closed.StartTime)
	if !ok {
		return true
	}
	cachedStart, ok := s.times.ParseServerTime(cached.StartTime)
	if !ok {
		return true
	}
	return !closedStart.Before(cachedStart)
}

// GetOpenSession is LatestSession restricted to open sessions.
func (s *Store) GetOpenSession(ctx context.Context, subjectUserID string, fetch SessionFetcher) (*models.HourRecord, error) {
	record, err := s.LatestSession(ctx, subjectUserID, fetch)
	if err != nil || record == nil || !record.IsOpen() {
		return nil, err
	}
	return record, nil
}

// CacheCheckin records a fresh check-in. Failures are logged, not returned.
func (s *Store) CacheCheckin(ctx context.Context, subjectUserID, sessionID, startTime string) {
	entry := models.CheckinCacheEntry{
		SubjectUserID: subjectUserID,
		SessionID:     sessionID,
		StartTime:     startTime,
		CachedAt:      s.clock.Now(),
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		s.logger.Warn("encode checkin cache failed", zap.Error(err))
		return
	}

	key := CheckinCacheKey(subjectUserID)
	if ekv, ok := s.kv.(ExpiringKV); ok {
		err = ekv.SetWithTTL(ctx, key, string(raw), models.CheckinCacheTTL)
	} else {
		err = s.kv.Set(ctx, key, string(raw))
	}
	if err != nil {
		s.logger.Warn("write checkin cache failed",
			zap.String("subject_user_id", subjectUserID),
			zap.Error(err),
		)
	}
}

// CachedCheckin returns the unexpired cache entry for the subject. Read
// errors and corrupt entries count as a miss.
func (s *Store) CachedCheckin(ctx context.Context, subjectUserID string) (models.CheckinCacheEntry, bool) {
	var entry models.CheckinCacheEntry

	raw, ok, err := s.kv.Get(ctx, CheckinCacheKey(subjectUserID))
	if err != nil {
		s.logger.Warn("read checkin cache failed",
			zap.String("subject_user_id", subjectUserID),
			zap.Error(err),
		)
		return entry, false
	}
	if !ok {
		return entry, false
	}
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		s.logger.Warn("corrupt checkin cache entry", zap.String("subject_user_id", subjectUserID), zap.Error(err))
		s.ClearCheckin(ctx, subjectUserID)
		return entry, false
	}
	if entry.Expired(s.clock.Now()) {
		s.ClearCheckin(ctx, subjectUserID)
		return models.CheckinCacheEntry{}, false
	}
	return entry, true
}

func (s *Store) ClearCheckin(ctx context.Context, subjectUserID string) {
	if err := s.kv.Remove(ctx, CheckinCacheKey(subjectUserID)); err != nil {
		s.logger.Warn("clear checkin cache failed",
			zap.String("subject_user_id", subjectUserID),
			zap.Error(err),
		)
	}
}

// Config loads the auto-checkout configuration. When nothing is stored the
// defaults are persisted and returned; an unreadable value falls back to
// the defaults.
func (s *Store) Config(ctx context.Context) (models.AutoCheckoutConfig, error) {
	cfg := models.DefaultAutoCheckoutConfig()

	found, err := s.getJSON(ctx, KeyAutoCheckoutConfig, &cfg)
	if err != nil {
		s.logger.Warn("load auto-checkout config failed, using defaults", zap.Error(err))
		return models.DefaultAutoCheckoutConfig(), nil
	}
	if !found {
		if err := s.setJSON(ctx, KeyAutoCheckoutConfig, cfg); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

// UpdateConfig merges patch onto the current configuration and persists it.
func (s *Store) UpdateConfig(ctx context.Context, patch models.AutoCheckoutConfigPatch) (models.AutoCheckoutConfig, error) {
	current, err := s.Config(ctx)
	if err != nil {
		return current, err
	}
	next := patch.Apply(current)
	if err := s.setJSON(ctx, KeyAutoCheckoutConfig, next); err != nil {
		return current, err
	}
	s.logger.Info("auto-checkout config updated",
		zap.Bool("enabled", next.Enabled),
		zap.Int("delay_seconds", next.DelaySeconds),
		zap.Int("max_work_hours", next.MaxWorkHours),
	)
	return next, nil
}

func (s *Store) SaveTrackingState(ctx context.Context, state models.TrackingState) error {
	return s.setJSON(ctx, KeyCheckinState, state)
}

// TrackingState returns the persisted tracking state, or nil.
func (s *Store) TrackingState(ctx context.Context) (*models.TrackingState, error) {
	var state models.TrackingState
	found, err := s.getJSON(ctx, KeyCheckinState, &state)
	if err != nil || !found {
		return nil, err
	}
	return &state, nil
}

func (s *Store) ClearTrackingState(ctx context.Context) error {
	return s.kv.Remove(ctx, KeyCheckinState)
}

func (s *Store) SavePendingIntent(ctx context.Context, intent models.PendingCheckoutIntent) error {
	return s.setJSON(ctx, KeyPendingCheckout, intent)
}

// TakePendingIntent returns the stored intent, if any, and removes it.
func (s *Store) TakePendingIntent(ctx context.Context) (*models.PendingCheckoutIntent, error) {
	var intent models.PendingCheckoutIntent
	found, err := s.getJSON(ctx, KeyPendingCheckout, &intent)
	if removeErr := s.kv.Remove(ctx, KeyPendingCheckout); removeErr != nil {
		s.logger.Warn("remove pending checkout failed", zap.Error(removeErr))
	}
	if err != nil || !found {
		return nil, err
	}
	return &intent, nil
}

func (s *Store) getJSON(ctx context.Context, key string, v any) (bool, error) {
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) setJSON(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.kv.Set(ctx, key, string(raw))
}
