package tracker

import (
	"github.com/BDisp/app-application-logger/internal/platform"
	"github.com/BDisp/app-application-logger/internal/record"

	"go.uber.org/zap"
)

// Target is the application window that has input focus
type Target struct {
	ProcessName string
	WindowTitle string
	ProcessID   int
	Location    string // executable path, empty when it could not be read
}

// ID identifies a focus target. Two observations are the same focus when
// both the process name and the window title match.
func (t Target) ID() string {
	return t.ProcessName + "_" + t.WindowTitle
}

// WindowTracker resolves the focused window. Like ActivityTracker it never
// fails; any platform error reads as "nothing focused".
type WindowTracker struct {
	platform platform.Platform
	logger   *zap.Logger
	lastErr  string
}

// NewWindowTracker creates a new window tracker
func NewWindowTracker(platform platform.Platform, logger *zap.Logger) *WindowTracker {
	return &WindowTracker{
		platform: platform,
		logger:   logger,
	}
}

// CurrentTarget returns the focused window, if there is one that belongs to
// a user process
func (wt *WindowTracker) CurrentTarget() (Target, bool) {
	window, err := wt.platform.GetActiveWindow()
	if err != nil {
		if msg := err.Error(); msg != wt.lastErr {
			wt.lastErr = msg
			wt.logger.Debug("Failed to get active window", zap.Error(err))
		}
		return Target{}, false
	}
	wt.lastErr = ""

	if window == nil || window.Protected || window.Application == "" {
		return Target{}, false
	}

	return Target{
		ProcessName: window.Application,
		WindowTitle: window.Title,
		ProcessID:   window.ProcessID,
		Location:    window.ProcessPath,
	}, true
}

// CommandLine returns the command line of the target's process, or the
// unknown placeholder when it cannot be read (access denied, process gone)
func (wt *WindowTracker) CommandLine(t Target) string {
	cmdline, err := wt.platform.GetCommandLine(t.ProcessID)
	if err != nil {
		wt.logger.Debug("Command line lookup failed",
			zap.String("application", t.ProcessName),
			zap.Int("pid", t.ProcessID),
			zap.Error(err),
		)
		return record.Unknown
	}
	return cmdline
}
