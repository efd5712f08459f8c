package storage

import (
	"context"
	"time"

	"urlrisk/pkg/domain"
)

// AuditEntry is a persisted audit record together with its delivery state.
type AuditEntry struct {
	Record domain.AuditRecord
	// ForwardedAt is the time the record was published downstream. Zero means
	// it has not been forwarded yet.
	ForwardedAt time.Time
}

// Forwarded reports whether the entry has already been published downstream.
func (e AuditEntry) Forwarded() bool { return !e.ForwardedAt.IsZero() }

// AuditStorage persists audit records. Records are append-only; the only
// mutation is marking a record as forwarded.
type AuditStorage interface {
	// StoreAuditRecords inserts one or more audit records. Inserting a record
	// whose ID already exists is a no-op.
	StoreAuditRecords(ctx context.Context, records ...domain.AuditRecord) error
	// AuditRecordByID returns the entry with the given decision ID, or nil when
	// it does not exist.
	AuditRecordByID(ctx context.Context, ID domain.DecisionID) (*AuditEntry, error)
	// MarkAuditRecordForwarded sets forwarded_at on the entry if it is not set yet.
	MarkAuditRecordForwarded(ctx context.Context, ID domain.DecisionID) error
}
