package audit

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"urlrisk/pkg/domain"
)

// FileSink appends audit records to a JSONL file. Every record is flushed
// before Append returns.
type FileSink struct {
	path string

	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
}

// Ensure FileSink conforms to the Sink interface at compile time.
var _ Sink = (*FileSink)(nil)

// NewFileSink opens (or creates) path for appending, creating parent
// directories when needed.
func NewFileSink(path string) (*FileSink, error) {
	if path == "" {
		return nil, fmt.Errorf("audit file path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("could not create audit log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644) //nolint: gosec
	if err != nil {
		return nil, fmt.Errorf("could not open audit log: %w", err)
	}

	return &FileSink{
		path:   path,
		file:   f,
		writer: bufio.NewWriter(f),
	}, nil
}

func (s *FileSink) Name() string { return "file_jsonl:" + s.path }

func (s *FileSink) Append(_ context.Context, rec domain.AuditRecord) error {
	line := Line(rec)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return fmt.Errorf("audit log %s is closed", s.path)
	}
	if _, err := s.writer.Write(line); err != nil {
		return fmt.Errorf("could not write audit record: %w", err)
	}
	if err := s.writer.Flush(); err != nil {
		return fmt.Errorf("could not flush audit log: %w", err)
	}

	return nil
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	flushErr := s.writer.Flush()
	closeErr := s.file.Close()
	s.file = nil

	if flushErr != nil {
		return fmt.Errorf("could not flush audit log: %w", flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("could not close audit log: %w", closeErr)
	}

	return nil
}
