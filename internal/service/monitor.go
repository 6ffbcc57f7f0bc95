package service

import (
	"fmt"
	"sync"
	"time"

	"github.com/BDisp/app-application-logger/internal/collector"
	"github.com/BDisp/app-application-logger/internal/models"
	"github.com/BDisp/app-application-logger/internal/queue"
	"github.com/BDisp/app-application-logger/internal/record"
	"github.com/BDisp/app-application-logger/internal/tracker"

	"go.uber.org/zap"
)

// Status texts reported to the UI layer
const (
	StatusStopped = "Stopped"
	StatusIdle    = "User idle"
	StatusRunning = "Running"
)

// Journal keeps a browsable copy of every emitted event. Writes are best
// effort and never affect the log commit path.
type Journal interface {
	Insert(e models.Event, runID, logFile string) error
}

// MonitorConfig holds the loop settings
type MonitorConfig struct {
	CheckInterval time.Duration
	RunID         string
}

// Snapshot is a point-in-time view of the monitor for the UI layer
type Snapshot struct {
	Running        bool      `json:"running"`
	Status         string    `json:"status"`
	QueueDepth     int       `json:"queueDepth"`
	Dropped        int       `json:"dropped"`
	CurrentLogFile string    `json:"currentLogFile"`
	LastCommitFile string    `json:"lastCommitFile"`
	LastCommitTime time.Time `json:"lastCommitTime"`
	RunID          string    `json:"runId"`
	Machine        string    `json:"machine"`
}

// Monitor samples focus and idleness on a ticker and feeds formatted
// records to the commit engine. Commands from the tray or the control API
// may arrive on any goroutine; every access to the monitor state happens
// under mu, so ticks never overlap with each other or with a command.
type Monitor struct {
	state     *models.MonitorState
	engine    *collector.CommitEngine
	formatter *record.Formatter
	activity  *tracker.ActivityTracker
	windows   *tracker.WindowTracker
	journal   Journal
	config    MonitorConfig
	now       func() time.Time
	logger    *zap.Logger

	mu       sync.Mutex
	running  bool
	status   string
	stopChan chan struct{}
	done     chan struct{}
}

// NewMonitor creates a stopped monitor. journal may be nil.
func NewMonitor(
	state *models.MonitorState,
	engine *collector.CommitEngine,
	formatter *record.Formatter,
	activity *tracker.ActivityTracker,
	windows *tracker.WindowTracker,
	journal Journal,
	config MonitorConfig,
	now func() time.Time,
	logger *zap.Logger,
) *Monitor {
	if now == nil {
		now = time.Now
	}
	return &Monitor{
		state:     state,
		engine:    engine,
		formatter: formatter,
		activity:  activity,
		windows:   windows,
		journal:   journal,
		config:    config,
		now:       now,
		logger:    logger,
		status:    StatusStopped,
	}
}

// Start arms the ticker. Calling Start on a running monitor does nothing.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}
	m.arm()

	m.stopChan = make(chan struct{})
	m.done = make(chan struct{})
	go m.loop(m.stopChan, m.done)

	m.logger.Info("Monitor started",
		zap.Duration("check_interval", m.config.CheckInterval),
		zap.Duration("idle_threshold", m.activity.IdleThreshold()),
		zap.String("run_id", m.config.RunID),
	)
}

// Stop logs a forced status::stop record and disarms the ticker. Calling
// Stop on a stopped monitor does nothing.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.emit(m.formatter.Status(models.KindStatusStop, 0), collector.Options{Force: true})
	m.status = StatusStopped
	done := m.disarm()
	m.mu.Unlock()

	<-done
	m.logger.Info("Monitor stopped", zap.Int("queued", m.QueueDepth()))
}

// Handoff disarms the ticker without logging a stop, saves the records that
// are still queued to the staging file and clears the queue. The next
// process picks them up with ReplayStaging.
func (m *Monitor) Handoff(staging *queue.Staging) error {
	m.mu.Lock()
	var done <-chan struct{}
	if m.running {
		done = m.disarm()
	}
	pending := m.engine.Pending()
	if err := staging.Save(pending); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("failed to hand off queued records: %w", err)
	}
	m.engine.Clear()
	m.status = StatusStopped
	m.mu.Unlock()

	if done != nil {
		<-done
	}
	m.logger.Info("Queued records handed off",
		zap.String("staging_file", staging.Path()),
		zap.Int("count", len(pending)),
	)
	return nil
}

// ReplayStaging puts the records left by a previous handoff back in the
// queue, in order and without committing them, then removes the file.
// Replayed records are also added to the journal.
func (m *Monitor) ReplayStaging(staging *queue.Staging) (int, error) {
	replayed, err := staging.Replay()
	if err != nil {
		return 0, fmt.Errorf("failed to replay staging file: %w", err)
	}
	if len(replayed) == 0 {
		return 0, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	lines := make([]string, 0, len(replayed))
	for _, r := range replayed {
		lines = append(lines, r.Line)
		m.journalInsert(r.Event, m.engine.CurrentFileName())
	}
	m.engine.Restore(lines)

	m.logger.Info("Staged records restored",
		zap.String("staging_file", staging.Path()),
		zap.Int("count", len(lines)),
	)
	return len(lines), nil
}

// ForceCommit writes every queued record to the current log file and
// returns its name
func (m *Monitor) ForceCommit() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fileName := m.engine.CurrentFileName()
	if err := m.engine.Flush(fileName); err != nil {
		return fileName, fmt.Errorf("failed to commit log: %w", err)
	}
	return fileName, nil
}

// QueueDepth returns the number of records not yet committed
func (m *Monitor) QueueDepth() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.engine.Depth()
}

// StatusText returns the last status shown to the user
func (m *Monitor) StatusText() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Running reports whether the ticker is armed
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Snapshot returns the current monitor view
func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		Running:        m.running,
		Status:         m.status,
		QueueDepth:     m.engine.Depth(),
		Dropped:        m.engine.Dropped(),
		CurrentLogFile: m.engine.CurrentFileName(),
		LastCommitFile: m.state.LastCommittedFileName,
		LastCommitTime: m.state.LastCommitTime,
		RunID:          m.config.RunID,
		Machine:        m.formatter.Machine(),
	}
}

func (m *Monitor) arm() {
	m.running = true
	m.status = StatusRunning
	m.state.IsUserIdle = false
	m.state.LastFocusedID = ""
	m.state.LastCommitTime = m.now()
}

// disarm stops the current loop and returns the channel closed when that
// loop has returned
func (m *Monitor) disarm() <-chan struct{} {
	m.running = false
	close(m.stopChan)
	return m.done
}

func (m *Monitor) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.tick()
		case <-stop:
			return
		}
	}
}

func (m *Monitor) tick() {
	m.mu.Lock()
	defer m.mu.Unlock()

	// A tick that raced with Stop must not log after the stop record
	if !m.running {
		return
	}
	m.step()
}

// step runs one sampling pass. The caller holds mu.
func (m *Monitor) step() {
	state, _ := m.activity.CheckState()

	switch {
	case state == tracker.StateIdle && !m.state.IsUserIdle:
		m.state.IsUserIdle = true
		m.state.LastFocusedID = ""
		m.checkDayRollover()
		// The user went idle when input stopped, not when the threshold was crossed
		m.emit(m.formatter.Status(models.KindStatusIdle, -m.activity.IdleThreshold()), collector.Options{Force: true})
		m.status = StatusIdle
	case state == tracker.StateActive && m.state.IsUserIdle:
		m.state.IsUserIdle = false
	}

	if !m.state.IsUserIdle {
		if target, ok := m.windows.CurrentTarget(); ok && target.ID() != m.state.LastFocusedID {
			m.logFocus(target)
			m.state.LastFocusedID = target.ID()
		}
	}

	m.engine.FlushIfStale()
}

func (m *Monitor) logFocus(target tracker.Target) {
	m.checkDayRollover()

	location := target.Location
	if location == "" {
		location = record.Unknown
	}
	commandLine := m.windows.CommandLine(target)

	m.emit(m.formatter.Event(models.KindAppFocus, target.ProcessName, location, target.WindowTitle, commandLine, 0), collector.Options{})
	m.status = "Name: " + target.ProcessName + ", " + target.WindowTitle
}

// checkDayRollover closes the previous day's file with an end-of-day
// record when the first record of a new day would go to a different file
func (m *Monitor) checkDayRollover() {
	if m.now().Day() == m.state.LastDayLogged {
		return
	}
	previous := m.state.LastCommittedFileName
	if previous == "" || m.engine.CurrentFileName() == previous {
		return
	}

	m.logger.Info("Day changed, closing log file", zap.String("file", previous))
	m.emit(m.formatter.Status(models.KindStatusEndOfDay, 0), collector.Options{Force: true, FileName: previous})
}

func (m *Monitor) emit(e models.Event, opts collector.Options) {
	logFile := opts.FileName
	if logFile == "" {
		logFile = m.engine.CurrentFileName()
	}
	m.journalInsert(e, logFile)
	m.engine.Enqueue(record.Format(e), opts)
}

func (m *Monitor) journalInsert(e models.Event, logFile string) {
	if m.journal == nil {
		return
	}
	if err := m.journal.Insert(e, m.config.RunID, logFile); err != nil {
		m.logger.Debug("Failed to record event in history",
			zap.String("kind", string(e.Kind)),
			zap.Error(err),
		)
	}
}
