// Package record turns activity events into log lines and back.
//
// A line is seven tab separated fields terminated by CRLF:
//
//	timestamp  kind  machine  title  location  subject  commandLine
package record

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BDisp/app-application-logger/internal/models"
)

const (
	Delimiter  = "\t"
	Terminator = "\r\n"

	// TimeLayout is a round-trippable timestamp with 100ns precision and
	// an explicit UTC offset, e.g. 2008-06-15T21:15:07.0000000-07:00.
	TimeLayout = "2006-01-02T15:04:05.0000000-07:00"

	// Unknown replaces a field whose lookup failed.
	Unknown = "?"

	fieldCount = 7
)

// ErrMalformedLine is returned by Parse for lines that are not log records
var ErrMalformedLine = errors.New("malformed log line")

// Formatter builds events stamped with the current time and machine name
type Formatter struct {
	machine string
	now     func() time.Time
}

// NewFormatter creates a formatter. A nil clock means time.Now.
func NewFormatter(machine string, now func() time.Time) *Formatter {
	if now == nil {
		now = time.Now
	}
	return &Formatter{
		machine: machine,
		now:     now,
	}
}

// Machine returns the machine name stamped on every event
func (f *Formatter) Machine() string {
	return f.machine
}

// Event builds an event of the given kind. offset is added to the current
// time and is only used to backdate idle transitions.
func (f *Formatter) Event(kind models.Kind, title, location, subject, commandLine string, offset time.Duration) models.Event {
	return models.Event{
		Timestamp:   f.now().Add(offset),
		Kind:        kind,
		Machine:     f.machine,
		Title:       title,
		Location:    location,
		Subject:     subject,
		CommandLine: commandLine,
	}
}

// Status builds an event that carries no application details
func (f *Formatter) Status(kind models.Kind, offset time.Duration) models.Event {
	return f.Event(kind, "", "", "", "", offset)
}

// Format returns the canonical line for e, terminator included
func Format(e models.Event) string {
	var b strings.Builder
	b.Grow(64 + len(e.Title) + len(e.Location) + len(e.Subject) + len(e.CommandLine))

	b.WriteString(e.Timestamp.Format(TimeLayout))
	for _, field := range []string{string(e.Kind), e.Machine, e.Title, e.Location, e.Subject, e.CommandLine} {
		b.WriteString(Delimiter)
		b.WriteString(field)
	}
	b.WriteString(Terminator)

	return b.String()
}

// Parse reverses Format. The terminator is optional so lines read with a
// line scanner parse as well.
func Parse(line string) (models.Event, error) {
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")

	fields := strings.Split(line, Delimiter)
	if len(fields) != fieldCount {
		return models.Event{}, fmt.Errorf("%w: expected %d fields, got %d", ErrMalformedLine, fieldCount, len(fields))
	}

	ts, err := time.Parse(TimeLayout, fields[0])
	if err != nil {
		return models.Event{}, fmt.Errorf("%w: bad timestamp %q: %v", ErrMalformedLine, fields[0], err)
	}

	return models.Event{
		Timestamp:   ts,
		Kind:        models.Kind(fields[1]),
		Machine:     fields[2],
		Title:       fields[3],
		Location:    fields[4],
		Subject:     fields[5],
		CommandLine: fields[6],
	}, nil
}
