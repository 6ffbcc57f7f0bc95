// Package tray shows the monitor in the system notification area.
package tray

import (
	"fmt"
	"time"

	"github.com/getlantern/systray"
	"go.uber.org/zap"
)

const appName = "Application Logger"

// Controller is the part of the monitor the tray drives
type Controller interface {
	Start()
	Stop()
	Running() bool
	StatusText() string
	ForceCommit() (string, error)
}

// Opener opens a file with the desktop's default application
type Opener interface {
	OpenFile(path string) error
}

// Tray is a thin shell over the monitor commands. All state lives in the
// monitor; the tray only mirrors it.
type Tray struct {
	controller Controller
	opener     Opener
	refresh    time.Duration
	logger     *zap.Logger

	stopChan chan struct{}
}

// NewTray creates a tray for controller
func NewTray(controller Controller, opener Opener, logger *zap.Logger) *Tray {
	return &Tray{
		controller: controller,
		opener:     opener,
		refresh:    time.Second,
		logger:     logger,
		stopChan:   make(chan struct{}),
	}
}

// Run shows the tray icon and blocks until Quit is chosen or Close is
// called. onExit runs after the icon is removed.
func (t *Tray) Run(onExit func()) {
	systray.Run(t.onReady, func() {
		if onExit != nil {
			onExit()
		}
	})
}

// Close removes the tray icon and makes Run return
func (t *Tray) Close() {
	select {
	case <-t.stopChan:
		return
	default:
		close(t.stopChan)
	}
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle(appName)

	startStop := systray.AddMenuItem(startStopLabel(t.controller.Running()), "Start or stop logging")
	openLog := systray.AddMenuItem("Open log file", "Commit queued records and open today's log")
	commit := systray.AddMenuItem("Commit log now", "Write queued records to the log file")
	systray.AddSeparator()
	quit := systray.AddMenuItem("Exit", "Stop logging and exit")

	status := systray.AddMenuItem("", "")
	status.Disable()

	go func() {
		ticker := time.NewTicker(t.refresh)
		defer ticker.Stop()

		for {
			running := t.controller.Running()
			startStop.SetTitle(startStopLabel(running))
			status.SetTitle(t.controller.StatusText())
			systray.SetTooltip(tooltip(running, t.controller.StatusText()))

			select {
			case <-startStop.ClickedCh:
				t.toggle()
			case <-openLog.ClickedCh:
				if err := t.openLog(); err != nil {
					t.logger.Warn("Failed to open log file", zap.Error(err))
				}
			case <-commit.ClickedCh:
				if file, err := t.controller.ForceCommit(); err != nil {
					t.logger.Warn("Commit from tray failed", zap.String("file", file), zap.Error(err))
				}
			case <-quit.ClickedCh:
				t.Close()
				return
			case <-ticker.C:
			case <-t.stopChan:
				return
			}
		}
	}()
}

func (t *Tray) toggle() {
	if t.controller.Running() {
		t.controller.Stop()
		return
	}
	t.controller.Start()
}

// openLog commits the queue first so the file shows every record
func (t *Tray) openLog() error {
	file, err := t.controller.ForceCommit()
	if err != nil {
		t.logger.Warn("Commit before opening log failed", zap.Error(err))
	}
	if err := t.opener.OpenFile(file); err != nil {
		return fmt.Errorf("failed to open %s: %w", file, err)
	}
	return nil
}

func startStopLabel(running bool) string {
	if running {
		return "Stop"
	}
	return "Start"
}

func tooltip(running bool, status string) string {
	state := "stopped"
	if running {
		state = "started"
	}
	return fmt.Sprintf("%s (%s)\n%s", appName, state, status)
}
