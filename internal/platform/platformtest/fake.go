// Package platformtest provides a scripted platform for tests.
package platformtest

import (
	"errors"
	"sync"
	"time"

	"github.com/BDisp/app-application-logger/internal/platform"
)

var errNotScripted = errors.New("fake platform: not scripted")

// Fake is a platform.Platform whose answers are set by the test
type Fake struct {
	mu sync.Mutex

	Idle        time.Duration
	IdleErr     error
	Window      *platform.WindowInfo
	WindowErr   error
	CommandLine map[int]string
	DeviceID    string
	Opened      []string

	idleCalls   int
	windowCalls int
}

var _ platform.Platform = (*Fake)(nil)

// New returns a fake with nothing focused and no idle time
func New() *Fake {
	return &Fake{CommandLine: make(map[int]string)}
}

// SetIdle scripts the idle duration
func (f *Fake) SetIdle(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Idle = d
}

// Focus scripts the focused window. An empty application means nothing
// is focused.
func (f *Fake) Focus(application, title string, pid int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if application == "" && title == "" {
		f.Window = nil
		return
	}
	f.Window = &platform.WindowInfo{
		Title:       title,
		Application: application,
		ProcessID:   pid,
		ProcessPath: "/opt/" + application + "/" + application,
		Timestamp:   time.Now(),
	}
}

// IdleCalls returns how often IdleDuration was called
func (f *Fake) IdleCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.idleCalls
}

// WindowCalls returns how often GetActiveWindow was called
func (f *Fake) WindowCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.windowCalls
}

func (f *Fake) IdleDuration() (time.Duration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.idleCalls++
	return f.Idle, f.IdleErr
}

func (f *Fake) GetActiveWindow() (*platform.WindowInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.windowCalls++
	if f.WindowErr != nil {
		return nil, f.WindowErr
	}
	if f.Window == nil {
		return nil, nil
	}
	w := *f.Window
	return &w, nil
}

func (f *Fake) GetCommandLine(processID int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cmdline, ok := f.CommandLine[processID]; ok {
		return cmdline, nil
	}
	return "", errNotScripted
}

func (f *Fake) GetDeviceID() (string, error) {
	if f.DeviceID == "" {
		return "", errNotScripted
	}
	return f.DeviceID, nil
}

func (f *Fake) GetSystemInfo() (*platform.SystemInfo, error) {
	return &platform.SystemInfo{OS: "fake", OSVersion: "fake", Arch: "fake", Hostname: "fake-host"}, nil
}

func (f *Fake) OpenFile(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Opened = append(f.Opened, path)
	return nil
}

func (f *Fake) Close() error {
	return nil
}
