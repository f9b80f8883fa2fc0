package models

import "time"

// CheckinCacheEntry bridges replication lag between a check-in and an
// immediate check-out. Entries expire CheckinCacheTTL after CachedAt.
type CheckinCacheEntry struct {
	SubjectUserID string    `json:"subjectUserId"`
	SessionID     string    `json:"sessionId"`
	StartTime     string    `json:"startTime"`
	CachedAt      time.Time `json:"cachedAt"`
}

const CheckinCacheTTL = 10 * time.Minute

// Expired reports whether the entry is past its TTL at now.
func (e CheckinCacheEntry) Expired(now time.Time) bool {
	return now.Sub(e.CachedAt) > CheckinCacheTTL
}

// AutoCheckoutConfig controls the background-exit auto checkout.
type AutoCheckoutConfig struct {
	Enabled          bool `json:"enabled" yaml:"enabled"`
	DelaySeconds     int  `json:"delaySeconds" yaml:"delaySeconds"`
	ShowConfirmation bool `json:"showConfirmation" yaml:"showConfirmation"`
	MaxWorkHours     int  `json:"maxWorkHours" yaml:"maxWorkHours"`
}

func DefaultAutoCheckoutConfig() AutoCheckoutConfig {
	return AutoCheckoutConfig{
		Enabled:          true,
		DelaySeconds:     5,
		ShowConfirmation: false,
		MaxWorkHours:     24,
	}
}

// AutoCheckoutConfigPatch is a partial update; nil fields keep their value.
type AutoCheckoutConfigPatch struct {
	Enabled          *bool `json:"enabled,omitempty"`
	DelaySeconds     *int  `json:"delaySeconds,omitempty"`
	ShowConfirmation *bool `json:"showConfirmation,omitempty"`
	MaxWorkHours     *int  `json:"maxWorkHours,omitempty"`
}

// Apply returns c with the non-nil fields of p applied.
func (p AutoCheckoutConfigPatch) Apply(c AutoCheckoutConfig) AutoCheckoutConfig {
	if p.Enabled != nil {
		c.Enabled = *p.Enabled
	}
	if p.DelaySeconds != nil && *p.DelaySeconds >= 0 {
		c.DelaySeconds = *p.DelaySeconds
	}
	if p.ShowConfirmation != nil {
		c.ShowConfirmation = *p.ShowConfirmation
	}
	if p.MaxWorkHours != nil && *p.MaxWorkHours > 0 {
		c.MaxWorkHours = *p.MaxWorkHours
	}
	return c
}

// TrackingState is the persisted state of a subject being tracked by the
// auto-checkout scheduler. Times are naive local strings.
type TrackingState struct {
	SubjectUserID  string `json:"userId"`
	SubjectName    string `json:"userName"`
	SessionID      string `json:"recordId"`
	CheckinTime    string `json:"checkinTime"`
	LastActiveTime string `json:"lastActiveTime"`
}

// PendingCheckoutIntent is a checkout that could not complete. It is
// replayed once at the next start and then discarded.
type PendingCheckoutIntent struct {
	SubjectUserID string         `json:"userId"`
	Session       *TrackingState `json:"checkinState,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	CreatedAt     time.Time      `json:"timestamp"`
}
