package queue

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/BDisp/app-application-logger/internal/models"
	"github.com/BDisp/app-application-logger/internal/record"

	"go.uber.org/zap"
)

// Staging is the side file that carries queued but uncommitted records
// across a deliberate process relaunch
type Staging struct {
	path   string
	logger *zap.Logger
}

// Replayed is one record recovered from the staging file
type Replayed struct {
	Line  string
	Event models.Event
}

// NewStaging creates a staging file handle
func NewStaging(path string, logger *zap.Logger) *Staging {
	return &Staging{
		path:   path,
		logger: logger,
	}
}

// Path returns the staging file location
func (s *Staging) Path() string {
	return s.path
}

// Exists reports whether a staging file is waiting to be replayed
func (s *Staging) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Save writes records to the staging file, replacing any previous content.
// Records keep their log line format.
func (s *Staging) Save(records []string) error {
	var b strings.Builder
	for _, r := range records {
		b.WriteString(r)
		if !strings.HasSuffix(r, record.Terminator) {
			b.WriteString(record.Terminator)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(b.String()), 0o600); err != nil {
		return fmt.Errorf("failed to write staging file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move staging file into place: %w", err)
	}

	s.logger.Info("Queued records staged for relaunch",
		zap.String("path", s.path),
		zap.Int("count", len(records)),
	)
	return nil
}

// Replay reads every record from the staging file, in order, and deletes
// the file. Lines that do not parse are skipped. A missing file yields no
// records and no error.
func (s *Staging) Replay() ([]Replayed, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open staging file: %w", err)
	}

	var replayed []Replayed
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		text := strings.TrimSuffix(scanner.Text(), "\r")
		if text == "" {
			continue
		}

		event, err := record.Parse(text)
		if err != nil {
			s.logger.Warn("Skipping malformed staging line",
				zap.Int("line", lineNo),
				zap.Error(err),
			)
			continue
		}

		replayed = append(replayed, Replayed{
			Line:  text + record.Terminator,
			Event: event,
		})
	}
	scanErr := scanner.Err()
	f.Close()

	if scanErr != nil {
		return nil, fmt.Errorf("failed to read staging file: %w", scanErr)
	}

	if err := os.Remove(s.path); err != nil {
		return nil, fmt.Errorf("failed to delete staging file: %w", err)
	}

	s.logger.Info("Staging file replayed",
		zap.String("path", s.path),
		zap.Int("count", len(replayed)),
	)
	return replayed, nil
}
