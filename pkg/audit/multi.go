package audit

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/multierr"

	"urlrisk/pkg/domain"
)

// Multi appends every record to all of its sinks. A failing sink does not stop
// the others; the failures are combined into one error.
type Multi struct {
	sinks []Sink
}

// Ensure Multi conforms to the Sink interface at compile time.
var _ Sink = (*Multi)(nil)

// NewMulti returns a sink fanning out to sinks in order.
func NewMulti(sinks ...Sink) *Multi {
	return &Multi{sinks: sinks}
}

func (m *Multi) Name() string {
	names := make([]string, 0, len(m.sinks))
	for _, s := range m.sinks {
		names = append(names, s.Name())
	}

	return "multi(" + strings.Join(names, ",") + ")"
}

func (m *Multi) Append(ctx context.Context, rec domain.AuditRecord) error {
	var err error
	for _, s := range m.sinks {
		if appendErr := s.Append(ctx, rec); appendErr != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", s.Name(), appendErr))
		}
	}

	return err
}

func (m *Multi) Close() error {
	var err error
	for _, s := range m.sinks {
		err = multierr.Append(err, s.Close())
	}

	return err
}
