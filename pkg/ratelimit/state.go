// Package ratelimit paces requests against one remote store and tracks an
// error budget so a failing store is not hammered by retries.
//
// Pacing is a token bucket (golang.org/x/time/rate). The error budget counts
// failed remote calls inside a fixed window: below the warning threshold calls
// are throttled, below the critical threshold they are refused until the
// window resets.
package ratelimit

import (
	"time"
)

// Thresholds for error budget decisions, as errors remaining in the window.
const (
	ErrorThresholdCritical = 5
	ErrorThresholdWarning  = 20
	ErrorThresholdHealthy  = 50
)

// State is a snapshot of the error budget.
type State struct {
	// ErrorsRemaining is the number of failures allowed before calls are refused.
	ErrorsRemaining int `json:"errors_remaining"`

	// ResetAt is when the budget window restarts at full capacity.
	ResetAt time.Time `json:"reset_at"`

	// IsHealthy is true when ErrorsRemaining >= ErrorThresholdHealthy.
	IsHealthy bool `json:"is_healthy"`
}

// NeedsCriticalBlock returns true if calls must be refused.
func (s *State) NeedsCriticalBlock() bool {
	return s.ErrorsRemaining < ErrorThresholdCritical
}

// NeedsThrottling returns true if calls should be slowed down.
func (s *State) NeedsThrottling() bool {
	return s.ErrorsRemaining < ErrorThresholdWarning && !s.NeedsCriticalBlock()
}

// TimeUntilReset returns the duration until the window restarts, or 0.
func (s *State) TimeUntilReset() time.Duration {
	d := time.Until(s.ResetAt)
	if d < 0 {
		return 0
	}
	return d
}

// UpdateHealth recomputes IsHealthy.
func (s *State) UpdateHealth() {
	s.IsHealthy = s.ErrorsRemaining >= ErrorThresholdHealthy
}
