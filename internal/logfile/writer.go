package logfile

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrEmptyPath is returned when asked to append to an empty file name
var ErrEmptyPath = errors.New("empty log file path")

// Writer appends committed records to log files. Files are only ever
// appended to; the writer never truncates or rewrites them.
type Writer struct {
	dirPerm  os.FileMode
	filePerm os.FileMode
}

// NewWriter creates a log file writer
func NewWriter() *Writer {
	return &Writer{
		dirPerm:  0o755,
		filePerm: 0o644,
	}
}

// Append writes data to the end of path in a single write call, creating
// the file and its directory when missing.
func (w *Writer) Append(path string, data []byte) error {
	if path == "" {
		return ErrEmptyPath
	}

	if dir := strings.TrimRight(Dir(path), `/\`); dir != "" {
		if err := os.MkdirAll(dir, w.dirPerm); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, w.filePerm)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to append to log file: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}
	return nil
}
