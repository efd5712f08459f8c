package audit

import (
	"context"
	"fmt"

	"urlrisk/pkg/domain"
	"urlrisk/pkg/storage"
)

// StorageSink stores audit records in the database. With the outbox enabled,
// a ForwardArgs job is inserted in the same transaction as the record.
type StorageSink struct {
	storage storage.Storage
	outbox  bool
}

// Ensure StorageSink conforms to the Sink interface at compile time.
var _ Sink = (*StorageSink)(nil)

// NewStorageSink returns a sink backed by strg. The sink does not own strg;
// Close leaves it open.
func NewStorageSink(strg storage.Storage, outbox bool) *StorageSink {
	return &StorageSink{storage: strg, outbox: outbox}
}

func (s *StorageSink) Name() string { return "postgres" }

func (s *StorageSink) Append(ctx context.Context, rec domain.AuditRecord) error {
	if !s.outbox {
		if err := s.storage.StoreAuditRecords(ctx, rec); err != nil {
			return fmt.Errorf("could not store audit record: %w", err)
		}

		return nil
	}

	return s.storage.WithTx(ctx, func(tx storage.AllStorage) error {
		if err := tx.StoreAuditRecords(ctx, rec); err != nil {
			return fmt.Errorf("could not store audit record: %w", err)
		}

		if _, err := tx.AddJob(ctx, ForwardArgs{ID: rec.ID.String()}, nil); err != nil {
			return fmt.Errorf("could not enqueue audit record forward job: %w", err)
		}

		return nil
	})
}

func (s *StorageSink) Close() error { return nil }
