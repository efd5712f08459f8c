package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"urlrisk/pkg/audit"
	"urlrisk/pkg/domain"
	"urlrisk/pkg/logger"
	"urlrisk/pkg/serrors"
	"urlrisk/pkg/storage"
)

// DefaultUnavailableSnooze is how long a forward job waits when the
// downstream sink is unavailable.
const DefaultUnavailableSnooze = 30 * time.Second

// AuditForwardWorker is a River worker that publishes stored audit records to
// a downstream sink (kafka) and marks them as forwarded.
//
// A record that no longer exists cancels the job. A record that was already
// forwarded completes the job without publishing again, so a job retried after
// a failed MarkAuditRecordForwarded may publish the same record twice but never
// loses one. An unavailable sink snoozes the job; other failures are returned
// and retried by River with backoff.
type AuditForwardWorker struct {
	river.WorkerDefaults[audit.ForwardArgs]

	storage storage.AuditStorage
	sink    audit.Sink
	snooze  time.Duration
}

// NewAuditForwardWorker returns a worker reading records from strg and
// publishing them to sink.
func NewAuditForwardWorker(strg storage.AuditStorage, sink audit.Sink) *AuditForwardWorker {
	return &AuditForwardWorker{
		storage: strg,
		sink:    sink,
		snooze:  DefaultUnavailableSnooze,
	}
}

// Work forwards the record referenced by the job.
func (w *AuditForwardWorker) Work(ctx context.Context, job *river.Job[audit.ForwardArgs]) error {
	ctx = logger.WithFields(ctx, zap.Int64("jobID", job.ID), zap.String("decisionID", job.Args.ID))

	id, err := uuid.Parse(job.Args.ID)
	if err != nil {
		logger.Error(ctx, "invalid decision id in forward job", zap.Error(err))

		return river.JobCancel(serrors.Wrap(serrors.ErrBadRequest, err, "invalid decision id")) //nolint: wrapcheck
	}

	entry, err := w.storage.AuditRecordByID(ctx, domain.DecisionID(id))
	if err != nil {
		return fmt.Errorf("could not load audit record: %w", err)
	}
	if entry == nil {
		logger.Warn(ctx, "audit record to forward does not exist")

		return river.JobCancel(serrors.With(serrors.ErrNotFound, "audit record %s not found", job.Args.ID)) //nolint: wrapcheck
	}
	if entry.Forwarded() {
		logger.Debug(ctx, "audit record already forwarded", zap.Time("forwardedAt", entry.ForwardedAt))

		return nil
	}

	if err := w.sink.Append(ctx, entry.Record); err != nil {
		logger.Error(ctx, "error in forwarding audit record", zap.String("sink", w.sink.Name()), zap.Error(err))

		if errors.Is(err, serrors.ErrUnavailable) {
			return river.JobSnooze(w.snooze) //nolint: wrapcheck
		}

		return fmt.Errorf("could not forward audit record: %w", err)
	}

	if err := w.storage.MarkAuditRecordForwarded(ctx, entry.Record.ID); err != nil {
		return fmt.Errorf("could not mark audit record as forwarded: %w", err)
	}

	logger.Info(ctx, "audit record forwarded", zap.String("sink", w.sink.Name()))

	return nil
}
