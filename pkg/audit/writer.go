package audit

import (
	"context"
	"fmt"
	"io"
	"sync"

	"urlrisk/pkg/domain"
)

// WriterSink appends newline-delimited JSON records to an io.Writer.
// Writes are serialized so that concurrent records never interleave.
type WriterSink struct {
	name string

	mu sync.Mutex
	w  io.Writer
}

// Ensure WriterSink conforms to the Sink interface at compile time.
var _ Sink = (*WriterSink)(nil)

// NewWriterSink returns a sink writing JSONL records to w.
func NewWriterSink(name string, w io.Writer) *WriterSink {
	return &WriterSink{name: name, w: w}
}

func (s *WriterSink) Name() string { return s.name }

// Append encodes rec and writes it with a single Write call.
func (s *WriterSink) Append(_ context.Context, rec domain.AuditRecord) error {
	line := Line(rec)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.w.Write(line); err != nil {
		return fmt.Errorf("could not write audit record: %w", err)
	}

	return nil
}

// Close is a no-op; the writer is owned by the caller.
func (s *WriterSink) Close() error { return nil }
