package tracker

import (
	"time"

	"github.com/BDisp/app-application-logger/internal/platform"

	"go.uber.org/zap"
)

// ActivityState represents the current activity state
type ActivityState string

const (
	StateActive ActivityState = "active"
	StateIdle   ActivityState = "idle"
)

// ActivityTracker answers how long the user has been away from the keyboard
// and mouse. It never fails: a platform error reads as "not idle".
type ActivityTracker struct {
	platform      platform.Platform
	idleThreshold time.Duration
	logger        *zap.Logger
	lastErr       string
}

// NewActivityTracker creates a new activity tracker
func NewActivityTracker(
	platform platform.Platform,
	idleThreshold time.Duration,
	logger *zap.Logger,
) *ActivityTracker {
	return &ActivityTracker{
		platform:      platform,
		idleThreshold: idleThreshold,
		logger:        logger,
	}
}

// IdleThreshold returns the inactivity after which the user counts as idle
func (at *ActivityTracker) IdleThreshold() time.Duration {
	return at.idleThreshold
}

// IdleDuration returns the time since the last user input, or zero when
// the platform cannot tell
func (at *ActivityTracker) IdleDuration() time.Duration {
	idle, err := at.platform.IdleDuration()
	if err != nil {
		// Only log when the failure changes so a missing extension does not flood the log
		if msg := err.Error(); msg != at.lastErr {
			at.lastErr = msg
			at.logger.Debug("Idle time lookup failed, assuming user is active", zap.Error(err))
		}
		return 0
	}
	at.lastErr = ""

	if idle < 0 {
		return 0
	}
	return idle
}

// CheckState samples the idle time and classifies it against the threshold
func (at *ActivityTracker) CheckState() (ActivityState, time.Duration) {
	idle := at.IdleDuration()
	if idle >= at.idleThreshold {
		return StateIdle, idle
	}
	return StateActive, idle
}
