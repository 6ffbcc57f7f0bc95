package models

import "time"

// Kind identifies what an activity record describes
type Kind string

// Record kinds as they appear in the second column of a log line
const (
	KindAppFocus       Kind = "app::focus"
	KindStatusIdle     Kind = "status::idle"
	KindStatusStop     Kind = "status::stop"
	KindStatusEndOfDay Kind = "status::end-of-day"
)

// Valid reports whether k is one of the known record kinds
func (k Kind) Valid() bool {
	switch k {
	case KindAppFocus, KindStatusIdle, KindStatusStop, KindStatusEndOfDay:
		return true
	}
	return false
}

// Event is one observed fact. It is never modified after formatting.
type Event struct {
	Timestamp   time.Time `json:"timestamp"`
	Kind        Kind      `json:"kind"`
	Machine     string    `json:"machine"`
	Title       string    `json:"title"`
	Location    string    `json:"location"`    // executable path
	Subject     string    `json:"subject"`     // window title
	CommandLine string    `json:"commandLine"`
}

// MonitorState is the mutable state of a running monitor. One instance is
// owned by the monitor loop and shared by pointer with the commit engine.
type MonitorState struct {
	IsUserIdle            bool
	LastFocusedID         string
	LastDayLogged         int
	LastCommitTime        time.Time
	LastCommittedFileName string
}

// ActivityRecord is an event as kept in the local history
type ActivityRecord struct {
	ID int64 `json:"id"`
	Event
	RunID   string `json:"runId"`
	LogFile string `json:"logFile"`
}
