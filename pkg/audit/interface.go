// Package audit persists one structured record per decision. Sinks append
// records to a JSONL file or stream, a Kafka topic, or PostgreSQL; Multi fans
// a record out to several of them.
package audit

import (
	"context"

	"urlrisk/pkg/domain"
)

// Sink durably appends audit records. Append must be atomic per record and safe
// for concurrent use; ordering between records is not guaranteed.
//
//go:generate mockgen -package mockaudit -source=interface.go -destination=mock/mockaudit.go *
type Sink interface {
	// Name identifies the sink in logs and metrics.
	Name() string
	// Append persists a single record.
	Append(ctx context.Context, rec domain.AuditRecord) error
	// Close flushes and releases the sink's resources.
	Close() error
}
