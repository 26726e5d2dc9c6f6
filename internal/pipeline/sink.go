package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileSink writes one day file. A sink ends either committed, leaving a
// complete file on disk, or aborted, leaving nothing.
type FileSink struct {
	file    *os.File
	path    string
	written int64
	done    bool
}

// CreateFileSink creates (or truncates) name inside dir.
func CreateFileSink(dir, name string) (*FileSink, error) {
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return &FileSink{file: f, path: path}, nil
}

func (s *FileSink) Write(p []byte) (int, error) {
	n, err := s.file.Write(p)
	s.written += int64(n)
	if err != nil {
		return n, fmt.Errorf("write %s: %w", s.path, err)
	}
	return n, nil
}

// Path is the file location.
func (s *FileSink) Path() string {
	return s.path
}

// Written is the number of bytes accepted so far.
func (s *FileSink) Written() int64 {
	return s.written
}

// Commit syncs and closes the file. Only after Commit returns nil is the file
// complete. On error the partial file is removed.
func (s *FileSink) Commit() error {
	if s.done {
		return errors.New("file sink already finished")
	}
	s.done = true

	if err := s.file.Sync(); err != nil {
		_ = s.file.Close()
		_ = os.Remove(s.path)
		return fmt.Errorf("sync %s: %w", s.path, err)
	}
	if err := s.file.Close(); err != nil {
		_ = os.Remove(s.path)
		return fmt.Errorf("close %s: %w", s.path, err)
	}
	return nil
}

// Abort closes and removes the partial file. Calling it after Commit is a no-op.
func (s *FileSink) Abort() error {
	if s.done {
		return nil
	}
	s.done = true
	_ = s.file.Close()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", s.path, err)
	}
	return nil
}
