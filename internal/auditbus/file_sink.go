package auditbus

import (
	"context"
	"fmt"
	"os"
	"sync"
)

// maxFileSize is the rollover threshold for the audit log file, mirroring
// the 5 MB RotatingFileHandler ceiling used by the original service's
// logging configuration.
const maxFileSize = 5 * 1024 * 1024

// FileSink is the mandatory, serially-appendable JSON-lines audit log.
// It is safe for concurrent use and safe to read from (e.g. for the
// audit-log download endpoint) while writes proceed, since writes are
// append-only and protected by a mutex.
type FileSink struct {
	mu   sync.Mutex
	path string
	f    *os.File
	size int64
}

// NewFileSink opens (creating if necessary) the audit log at path.
func NewFileSink(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("auditbus: open audit log: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("auditbus: stat audit log: %w", err)
	}
	return &FileSink{path: path, f: f, size: info.Size()}, nil
}

// Path returns the configured audit log path, for the download handler.
func (s *FileSink) Path() string {
	return s.path
}

// Publish appends one JSON line to the audit log, rotating to a ".1"
// backup when the file exceeds maxFileSize.
func (s *FileSink) Publish(_ context.Context, e Event) error {
	line, err := e.Marshal()
	if err != nil {
		return fmt.Errorf("auditbus: marshal event: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.size+int64(len(line)) > maxFileSize {
		if err := s.rotateLocked(); err != nil {
			return err
		}
	}

	n, err := s.f.Write(line)
	if err != nil {
		return fmt.Errorf("auditbus: write audit log: %w", err)
	}
	s.size += int64(n)
	return nil
}

// rotateLocked renames the current log to a ".1" backup and opens a
// fresh file in its place. Callers must hold s.mu.
func (s *FileSink) rotateLocked() error {
	if err := s.f.Close(); err != nil {
		return fmt.Errorf("auditbus: close audit log before rotation: %w", err)
	}
	backup := s.path + ".1"
	_ = os.Remove(backup)
	if err := os.Rename(s.path, backup); err != nil {
		return fmt.Errorf("auditbus: rotate audit log: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("auditbus: reopen audit log after rotation: %w", err)
	}
	s.f = f
	s.size = 0
	return nil
}

// Close closes the underlying file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}
