package platform

import "time"

// Platform defines the interface for platform-specific operations
type Platform interface {
	// IdleDuration returns the time elapsed since the last keyboard or mouse input
	IdleDuration() (time.Duration, error)

	// GetActiveWindow returns the window that currently has input focus, or
	// nil when no window is focused
	GetActiveWindow() (*WindowInfo, error)

	// GetCommandLine returns the command line a process was started with
	GetCommandLine(processID int) (string, error)

	// GetDeviceID returns a stable identifier for this machine
	GetDeviceID() (string, error)

	// GetSystemInfo returns system information
	GetSystemInfo() (*SystemInfo, error)

	// OpenFile opens a file with the desktop's default application
	OpenFile(path string) error

	// Close releases any connection held to the windowing system
	Close() error
}

// WindowInfo contains information about a window
type WindowInfo struct {
	Title       string
	Application string // process name without extension
	ProcessID   int
	ProcessPath string
	// Protected marks windows owned by reserved system processes; they are
	// never reported as a focus target
	Protected bool
	Timestamp time.Time
}

// SystemInfo contains system information
type SystemInfo struct {
	OS        string
	OSVersion string
	Arch      string
	Hostname  string
}
