package service

import (
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/BDisp/app-application-logger/internal/collector"
	"github.com/BDisp/app-application-logger/internal/logfile"
	"github.com/BDisp/app-application-logger/internal/models"
	"github.com/BDisp/app-application-logger/internal/platform/platformtest"
	"github.com/BDisp/app-application-logger/internal/queue"
	"github.com/BDisp/app-application-logger/internal/record"
	"github.com/BDisp/app-application-logger/internal/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const idleThreshold = 5 * time.Minute

type commit struct {
	path  string
	lines []string
}

type fakeSink struct {
	mu      sync.Mutex
	commits []commit
	fail    error
}

func (s *fakeSink) Append(path string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	lines := strings.SplitAfter(string(data), record.Terminator)
	s.commits = append(s.commits, commit{path: path, lines: lines[:len(lines)-1]})
	return nil
}

func (s *fakeSink) Commits() []commit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]commit(nil), s.commits...)
}

type fakeJournal struct {
	events []models.Event
	files  []string
	runIDs []string
}

func (j *fakeJournal) Insert(e models.Event, runID, logFile string) error {
	j.events = append(j.events, e)
	j.files = append(j.files, logFile)
	j.runIDs = append(j.runIDs, runID)
	return nil
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type harness struct {
	monitor  *Monitor
	platform *platformtest.Fake
	sink     *fakeSink
	journal  *fakeJournal
	engine   *collector.CommitEngine
	state    *models.MonitorState
	clock    *clock
}

func newHarness(t *testing.T, start time.Time) *harness {
	t.Helper()

	logger := zap.NewNop()
	clk := &clock{t: start}
	fake := platformtest.New()
	sink := &fakeSink{}
	journal := &fakeJournal{}
	state := &models.MonitorState{}

	engine := collector.NewCommitEngine(
		state,
		sink,
		logfile.NewResolver("logs/[[year]]-[[month]]-[[day]].log", "host"),
		collector.Settings{MaxEntries: 20, MaxAge: time.Hour, MaxPending: 1000},
		clk.Now,
		logger,
	)

	m := NewMonitor(
		state,
		engine,
		record.NewFormatter("host", clk.Now),
		tracker.NewActivityTracker(fake, idleThreshold, logger),
		tracker.NewWindowTracker(fake, logger),
		journal,
		MonitorConfig{CheckInterval: time.Hour, RunID: "run-1"},
		clk.Now,
		logger,
	)
	t.Cleanup(m.Stop)

	return &harness{
		monitor:  m,
		platform: fake,
		sink:     sink,
		journal:  journal,
		engine:   engine,
		state:    state,
		clock:    clk,
	}
}

func parseAll(t *testing.T, lines []string) []models.Event {
	t.Helper()
	events := make([]models.Event, 0, len(lines))
	for _, l := range lines {
		e, err := record.Parse(l)
		require.NoError(t, err)
		events = append(events, e)
	}
	return events
}

func kinds(events []models.Event) []models.Kind {
	out := make([]models.Kind, 0, len(events))
	for _, e := range events {
		out = append(out, e.Kind)
	}
	return out
}

var jan31 = time.Date(2024, 1, 31, 10, 0, 0, 0, time.UTC)

func TestMonitorLogsOneFocusPerRun(t *testing.T) {
	h := newHarness(t, jan31)
	h.monitor.Start()

	h.platform.Focus("code", "main.go", 100)
	h.monitor.tick()
	h.monitor.tick()
	h.monitor.tick()

	h.platform.Focus("code", "record.go", 100)
	h.monitor.tick()
	h.monitor.tick()

	h.platform.Focus("code", "main.go", 100)
	h.monitor.tick()

	events := parseAll(t, h.engine.Pending())
	require.Len(t, events, 3)
	assert.Equal(t, []string{"main.go", "record.go", "main.go"}, []string{events[0].Subject, events[1].Subject, events[2].Subject})
	for _, e := range events {
		assert.Equal(t, models.KindAppFocus, e.Kind)
		assert.Equal(t, "code", e.Title)
		assert.Equal(t, "/opt/code/code", e.Location)
		assert.Equal(t, "host", e.Machine)
	}
	assert.Equal(t, "Name: code, main.go", h.monitor.StatusText())
	assert.Empty(t, h.sink.Commits())
}

func TestMonitorFocusDetails(t *testing.T) {
	h := newHarness(t, jan31)
	h.monitor.Start()

	h.platform.Focus("vim", "notes.txt", 42)
	h.platform.Window.ProcessPath = ""
	h.platform.CommandLine[42] = "vim notes.txt"
	h.monitor.tick()

	h.platform.Focus("less", "README", 43)
	h.monitor.tick()

	events := parseAll(t, h.engine.Pending())
	require.Len(t, events, 2)
	assert.Equal(t, record.Unknown, events[0].Location)
	assert.Equal(t, "vim notes.txt", events[0].CommandLine)
	assert.Equal(t, record.Unknown, events[1].CommandLine, "command line lookup failure still logs the focus")
}

func TestMonitorIgnoresUnqualifiedWindows(t *testing.T) {
	h := newHarness(t, jan31)
	h.monitor.Start()

	h.monitor.tick()
	h.platform.WindowErr = errors.New("BadWindow")
	h.monitor.tick()

	assert.Zero(t, h.monitor.QueueDepth())
	assert.Equal(t, StatusRunning, h.monitor.StatusText())
}

func TestMonitorIdleIsBackdatedAndCommitted(t *testing.T) {
	h := newHarness(t, jan31)
	h.monitor.Start()

	h.platform.Focus("code", "main.go", 100)
	h.monitor.tick()

	h.platform.SetIdle(idleThreshold + 30*time.Second)
	h.monitor.tick()
	h.monitor.tick()

	commits := h.sink.Commits()
	require.Len(t, commits, 1, "idle forces exactly one commit")
	events := parseAll(t, commits[0].lines)
	assert.Equal(t, []models.Kind{models.KindAppFocus, models.KindStatusIdle}, kinds(events))
	assert.True(t, events[1].Timestamp.Equal(jan31.Add(-idleThreshold)), "idle starts when input stopped")
	assert.Equal(t, "logs/2024-01-31.log", commits[0].path)
	assert.Equal(t, StatusIdle, h.monitor.StatusText())
	assert.True(t, h.state.IsUserIdle)
	assert.Empty(t, h.state.LastFocusedID)

	// Back from idle: the same window is logged again
	h.platform.SetIdle(time.Second)
	h.monitor.tick()

	events = parseAll(t, h.engine.Pending())
	require.Len(t, events, 1)
	assert.Equal(t, models.KindAppFocus, events[0].Kind)
	assert.Equal(t, "main.go", events[0].Subject)
	assert.False(t, h.state.IsUserIdle)
}

func TestMonitorIdleSkipsFocusLookup(t *testing.T) {
	h := newHarness(t, jan31)
	h.monitor.Start()

	h.platform.SetIdle(time.Hour)
	h.monitor.tick()
	calls := h.platform.WindowCalls()
	h.monitor.tick()

	assert.Equal(t, calls, h.platform.WindowCalls())
}

func TestMonitorFlushesAfterTwentyFirstRecord(t *testing.T) {
	h := newHarness(t, jan31)
	h.monitor.Start()

	for i := 0; i < 20; i++ {
		h.platform.Focus("app", "window "+string(rune('A'+i)), 100)
		h.monitor.tick()
	}
	assert.Empty(t, h.sink.Commits())
	assert.Equal(t, 20, h.monitor.QueueDepth())

	h.platform.Focus("app", "window last", 100)
	h.monitor.tick()

	commits := h.sink.Commits()
	require.Len(t, commits, 1)
	assert.Len(t, commits[0].lines, 21)
	assert.Zero(t, h.monitor.QueueDepth())
}

func TestMonitorFlushesStaleQueue(t *testing.T) {
	h := newHarness(t, jan31)
	h.monitor.Start()

	h.platform.Focus("code", "main.go", 100)
	h.monitor.tick()
	assert.Empty(t, h.sink.Commits())

	h.clock.Set(jan31.Add(time.Hour + time.Second))
	h.monitor.tick()

	commits := h.sink.Commits()
	require.Len(t, commits, 1)
	assert.Len(t, commits[0].lines, 1)
	assert.Equal(t, jan31.Add(time.Hour+time.Second), h.state.LastCommitTime)
}

func TestMonitorDayRollover(t *testing.T) {
	h := newHarness(t, time.Date(2024, 1, 31, 23, 59, 0, 0, time.UTC))
	h.monitor.Start()

	h.platform.Focus("code", "main.go", 100)
	h.monitor.tick()
	_, err := h.monitor.ForceCommit()
	require.NoError(t, err)

	h.clock.Set(time.Date(2024, 2, 1, 0, 0, 10, 0, time.UTC))
	h.platform.Focus("code", "record.go", 100)
	h.monitor.tick()
	_, err = h.monitor.ForceCommit()
	require.NoError(t, err)

	commits := h.sink.Commits()
	require.Len(t, commits, 3)

	assert.Equal(t, "logs/2024-01-31.log", commits[1].path)
	assert.Equal(t, []models.Kind{models.KindStatusEndOfDay}, kinds(parseAll(t, commits[1].lines)))

	assert.Equal(t, "logs/2024-02-01.log", commits[2].path)
	events := parseAll(t, commits[2].lines)
	require.Len(t, events, 1)
	assert.Equal(t, "record.go", events[0].Subject)
}

func TestMonitorDayRolloverSurvivesFailedCommit(t *testing.T) {
	h := newHarness(t, time.Date(2024, 1, 31, 23, 0, 0, 0, time.UTC))
	h.monitor.Start()

	h.platform.Focus("code", "main.go", 100)
	h.monitor.tick()
	_, err := h.monitor.ForceCommit()
	require.NoError(t, err)

	h.platform.Focus("code", "late.go", 100)
	h.monitor.tick()

	h.clock.Set(time.Date(2024, 2, 1, 0, 0, 10, 0, time.UTC))
	h.sink.mu.Lock()
	h.sink.fail = errors.New("disk full")
	h.sink.mu.Unlock()
	h.platform.Focus("code", "record.go", 100)
	h.monitor.tick()
	require.Len(t, h.sink.Commits(), 1)

	h.sink.mu.Lock()
	h.sink.fail = nil
	h.sink.mu.Unlock()
	h.platform.Focus("code", "next.go", 100)
	h.monitor.tick()
	file, err := h.monitor.ForceCommit()
	require.NoError(t, err)
	assert.Equal(t, "logs/2024-02-01.log", file)

	commits := h.sink.Commits()
	require.Len(t, commits, 3)

	assert.Equal(t, "logs/2024-01-31.log", commits[1].path)
	events := parseAll(t, commits[1].lines)
	assert.Equal(t, []models.Kind{models.KindAppFocus, models.KindStatusEndOfDay}, kinds(events))
	assert.Equal(t, "late.go", events[0].Subject)

	assert.Equal(t, "logs/2024-02-01.log", commits[2].path)
	events = parseAll(t, commits[2].lines)
	require.Len(t, events, 2)
	assert.Equal(t, "record.go", events[0].Subject)
	assert.Equal(t, "next.go", events[1].Subject)
	assert.Zero(t, h.monitor.QueueDepth())
}

func TestMonitorNoRolloverBeforeFirstCommit(t *testing.T) {
	h := newHarness(t, time.Date(2024, 1, 31, 23, 59, 0, 0, time.UTC))
	h.monitor.Start()

	h.platform.Focus("code", "main.go", 100)
	h.monitor.tick()

	h.clock.Set(time.Date(2024, 2, 1, 0, 1, 0, 0, time.UTC))
	h.platform.Focus("code", "record.go", 100)
	h.monitor.tick()

	assert.Equal(t, []models.Kind{models.KindAppFocus, models.KindAppFocus}, kinds(parseAll(t, h.engine.Pending())))
}

func TestMonitorFailedCommitKeepsOrder(t *testing.T) {
	h := newHarness(t, jan31)
	h.monitor.Start()

	h.sink.fail = errors.New("disk full")
	for _, title := range []string{"one", "two", "three"} {
		h.platform.Focus("app", title, 100)
		h.monitor.tick()
	}

	_, err := h.monitor.ForceCommit()
	require.Error(t, err)
	assert.Equal(t, 3, h.monitor.QueueDepth())

	h.sink.fail = nil
	h.platform.Focus("app", "four", 100)
	h.monitor.tick()

	file, err := h.monitor.ForceCommit()
	require.NoError(t, err)
	assert.Equal(t, "logs/2024-01-31.log", file)

	commits := h.sink.Commits()
	require.Len(t, commits, 1)
	events := parseAll(t, commits[0].lines)
	require.Len(t, events, 4)
	for i, title := range []string{"one", "two", "three", "four"} {
		assert.Equal(t, title, events[i].Subject)
	}
}

func TestMonitorStartStopAreIdempotent(t *testing.T) {
	h := newHarness(t, jan31)
	assert.Equal(t, StatusStopped, h.monitor.StatusText())

	h.monitor.Stop()
	assert.Empty(t, h.sink.Commits(), "stopping a stopped monitor logs nothing")

	h.monitor.Start()
	h.monitor.Start()
	assert.True(t, h.monitor.Running())

	h.platform.Focus("code", "main.go", 100)
	h.monitor.tick()

	h.monitor.Stop()
	h.monitor.Stop()
	assert.False(t, h.monitor.Running())
	assert.Equal(t, StatusStopped, h.monitor.StatusText())

	commits := h.sink.Commits()
	require.Len(t, commits, 1)
	assert.Equal(t, []models.Kind{models.KindAppFocus, models.KindStatusStop}, kinds(parseAll(t, commits[0].lines)))

	// A tick after stop does nothing
	h.platform.Focus("code", "other.go", 100)
	h.monitor.tick()
	assert.Zero(t, h.monitor.QueueDepth())
}

func TestMonitorStopReturnsWhileRestarted(t *testing.T) {
	h := newHarness(t, jan31)

	for i := 0; i < 200; i++ {
		h.monitor.Start()

		stopped := make(chan struct{})
		go func() {
			h.monitor.Stop()
			close(stopped)
		}()
		h.monitor.Start()

		select {
		case <-stopped:
		case <-time.After(5 * time.Second):
			t.Fatalf("Stop blocked on a loop started after it (iteration %d)", i)
		}
		h.monitor.Stop()
	}
	assert.False(t, h.monitor.Running())
}

func TestMonitorStartResetsFocusMemory(t *testing.T) {
	h := newHarness(t, jan31)
	h.monitor.Start()
	h.platform.Focus("code", "main.go", 100)
	h.monitor.tick()
	h.monitor.Stop()

	h.monitor.Start()
	h.monitor.tick()

	events := parseAll(t, h.engine.Pending())
	require.Len(t, events, 1)
	assert.Equal(t, "main.go", events[0].Subject)
}

func TestMonitorHandoffAndReplay(t *testing.T) {
	staging := queue.NewStaging(filepath.Join(t.TempDir(), "staging.log"), zap.NewNop())

	h := newHarness(t, jan31)
	h.monitor.Start()
	for _, title := range []string{"one", "two"} {
		h.platform.Focus("app", title, 100)
		h.monitor.tick()
	}
	pending := h.engine.Pending()

	require.NoError(t, h.monitor.Handoff(staging))
	assert.False(t, h.monitor.Running())
	assert.Zero(t, h.monitor.QueueDepth())
	assert.Empty(t, h.sink.Commits(), "handoff does not log a stop")
	assert.True(t, staging.Exists())

	next := newHarness(t, jan31.Add(time.Minute))
	n, err := next.monitor.ReplayStaging(staging)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, pending, next.engine.Pending())
	assert.Empty(t, next.sink.Commits(), "replay does not commit")
	assert.False(t, staging.Exists())
	require.Len(t, next.journal.events, 2)
	assert.Equal(t, "one", next.journal.events[0].Subject)

	n, err = next.monitor.ReplayStaging(staging)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMonitorJournalsEveryEvent(t *testing.T) {
	h := newHarness(t, jan31)
	h.monitor.Start()

	h.platform.Focus("code", "main.go", 100)
	h.monitor.tick()
	h.monitor.Stop()

	require.Len(t, h.journal.events, 2)
	assert.Equal(t, []models.Kind{models.KindAppFocus, models.KindStatusStop}, kinds(h.journal.events))
	assert.Equal(t, []string{"logs/2024-01-31.log", "logs/2024-01-31.log"}, h.journal.files)
	assert.Equal(t, []string{"run-1", "run-1"}, h.journal.runIDs)
}

func TestMonitorSnapshot(t *testing.T) {
	h := newHarness(t, jan31)
	h.monitor.Start()
	h.platform.Focus("code", "main.go", 100)
	h.monitor.tick()

	snap := h.monitor.Snapshot()
	assert.True(t, snap.Running)
	assert.Equal(t, 1, snap.QueueDepth)
	assert.Equal(t, "logs/2024-01-31.log", snap.CurrentLogFile)
	assert.Equal(t, "run-1", snap.RunID)
	assert.Equal(t, "host", snap.Machine)
	assert.Equal(t, "Name: code, main.go", snap.Status)
}
