package collector

import (
	"strings"
	"time"

	"github.com/BDisp/app-application-logger/internal/models"

	"go.uber.org/zap"
)

// Sink durably appends committed text to a log file
type Sink interface {
	Append(path string, data []byte) error
}

// Resolver returns the log file for records logged at a given time
type Resolver interface {
	Resolve(t time.Time) string
}

// Options tune how a single record is committed
type Options struct {
	// Force commits the queue right after the record is added
	Force bool
	// FileName overrides the resolved destination of a forced commit
	FileName string
}

// Settings are the commit policy limits
type Settings struct {
	MaxEntries int           // flush when the queue grows past this many records
	MaxAge     time.Duration // flush when the last commit is older than this
	MaxPending int           // oldest records are dropped past this many; 0 disables the bound
}

// CommitEngine owns the ordered queue of formatted records and decides when
// they are appended to the log. It is not safe for concurrent use; the
// monitor serializes every call.
type CommitEngine struct {
	state    *models.MonitorState
	sink     Sink
	resolver Resolver
	settings Settings
	now      func() time.Time
	logger   *zap.Logger

	records []string
	held    []segment
	dropped int
}

// segment is a run of records at the head of the queue whose forced commit
// to an explicit file failed. They still belong to that file.
type segment struct {
	fileName string
	count    int
}

// NewCommitEngine creates a commit engine sharing the given monitor state
func NewCommitEngine(
	state *models.MonitorState,
	sink Sink,
	resolver Resolver,
	settings Settings,
	now func() time.Time,
	logger *zap.Logger,
) *CommitEngine {
	if now == nil {
		now = time.Now
	}
	return &CommitEngine{
		state:    state,
		sink:     sink,
		resolver: resolver,
		settings: settings,
		now:      now,
		logger:   logger,
	}
}

// Enqueue adds a formatted record to the end of the queue and commits the
// queue when it has grown past the entry limit or the record forces it.
// It reports whether a commit succeeded.
func (ce *CommitEngine) Enqueue(record string, opts Options) bool {
	ce.records = append(ce.records, record)
	ce.state.LastDayLogged = ce.now().Day()
	ce.enforceBound()

	if len(ce.records) > ce.settings.MaxEntries || opts.Force {
		err := ce.Flush(opts.FileName)
		if err != nil && opts.FileName != "" {
			ce.hold(opts.FileName)
		}
		return err == nil
	}
	return false
}

// Restore puts records back at the end of the queue without triggering a
// commit. Used to replay a staging file.
func (ce *CommitEngine) Restore(records []string) {
	ce.records = append(ce.records, records...)
	ce.enforceBound()
}

// Flush appends every queued record, in order, to fileName or to the file
// resolved for now when fileName is empty. Records held for an earlier file
// are committed to that file first. On failure the queue is kept intact and
// the error is returned for the caller to ignore.
func (ce *CommitEngine) Flush(fileName string) error {
	for len(ce.held) > 0 {
		s := ce.held[0]
		if err := ce.commit(s.fileName, ce.records[:s.count]); err != nil {
			return err
		}
		ce.records = append(ce.records[:0], ce.records[s.count:]...)
		ce.held = ce.held[1:]
	}

	if len(ce.records) == 0 {
		return nil
	}

	if fileName == "" {
		fileName = ce.resolver.Resolve(ce.now())
	}
	if err := ce.commit(fileName, ce.records); err != nil {
		return err
	}
	ce.records = ce.records[:0]
	return nil
}

func (ce *CommitEngine) commit(fileName string, records []string) error {
	var b strings.Builder
	for _, r := range records {
		b.WriteString(r)
	}

	if err := ce.sink.Append(fileName, []byte(b.String())); err != nil {
		ce.logger.Warn("Failed to commit log records, keeping them queued",
			zap.String("file", fileName),
			zap.Int("queued", len(ce.records)),
			zap.Error(err),
		)
		return err
	}

	ce.logger.Debug("Log records committed",
		zap.String("file", fileName),
		zap.Int("count", len(records)),
	)

	ce.state.LastCommitTime = ce.now()
	ce.state.LastCommittedFileName = fileName
	return nil
}

// hold pins every queued record not already held to fileName
func (ce *CommitEngine) hold(fileName string) {
	covered := 0
	for _, s := range ce.held {
		covered += s.count
	}
	if covered >= len(ce.records) {
		return
	}
	ce.held = append(ce.held, segment{fileName: fileName, count: len(ce.records) - covered})
}

// FlushIfStale commits a non-empty queue whose last commit is older than the
// configured maximum age. It reports whether a commit succeeded.
func (ce *CommitEngine) FlushIfStale() bool {
	if len(ce.records) == 0 {
		return false
	}
	if ce.now().Sub(ce.state.LastCommitTime) <= ce.settings.MaxAge {
		return false
	}
	return ce.Flush("") == nil
}

// Depth returns the number of queued records
func (ce *CommitEngine) Depth() int {
	return len(ce.records)
}

// Pending returns a copy of the queued records in order
func (ce *CommitEngine) Pending() []string {
	out := make([]string, len(ce.records))
	copy(out, ce.records)
	return out
}

// Clear empties the queue without committing it
func (ce *CommitEngine) Clear() {
	ce.records = ce.records[:0]
	ce.held = nil
}


// Dropped returns how many records were discarded by the queue bound
func (ce *CommitEngine) Dropped() int {
	return ce.dropped
}

// CurrentFileName returns the log file records would be committed to now
func (ce *CommitEngine) CurrentFileName() string {
	return ce.resolver.Resolve(ce.now())
}

func (ce *CommitEngine) enforceBound() {
	limit := ce.settings.MaxPending
	if limit <= 0 || len(ce.records) <= limit {
		return
	}

	excess := len(ce.records) - limit
	ce.records = append(ce.records[:0], ce.records[excess:]...)
	ce.dropped += excess

	for n := excess; n > 0 && len(ce.held) > 0; {
		if ce.held[0].count > n {
			ce.held[0].count -= n
			break
		}
		n -= ce.held[0].count
		ce.held = ce.held[1:]
	}

	ce.logger.Warn("Log queue bound reached, dropped oldest records",
		zap.Int("dropped", excess),
		zap.Int("dropped_total", ce.dropped),
		zap.Int("max_pending", limit),
	)
}
