package postgres

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"urlrisk/pkg/domain"
	"urlrisk/pkg/storage"
)

const (
	auditRecordsTable = "audit_records"
)

// StoreAuditRecords inserts the records, ignoring IDs that are already stored.
func (p *PgSQL) StoreAuditRecords(ctx context.Context, records ...domain.AuditRecord) error {
	if len(records) == 0 {
		return nil
	}

	_, err := p.Builder.Insert(auditRecordsTable).
		Rows(domainAuditRecordsToPg(records)).
		OnConflict(goqu.DoNothing()).
		Executor().ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("could not store audit records into pg: %w", err)
	}

	return nil
}

func (p *PgSQL) AuditRecordByID(ctx context.Context, id domain.DecisionID) (*storage.AuditEntry, error) {
	var row PgAuditRecord
	found, err := p.Builder.From(auditRecordsTable).
		Where(goqu.I("id").Eq(uuid.UUID(id))).
		Executor().ScanStructContext(ctx, &row)
	if err != nil {
		return nil, fmt.Errorf("could not get audit record by id from pg: %w", err)
	}
	if !found {
		return nil, nil //nolint: nilnil
	}

	return row.ToDomain(), nil
}

func (p *PgSQL) MarkAuditRecordForwarded(ctx context.Context, id domain.DecisionID) error {
	_, err := p.Builder.Update(auditRecordsTable).
		Set(goqu.Record{"forwarded_at": goqu.L("CURRENT_TIMESTAMP")}).
		Where(
			goqu.I("id").Eq(uuid.UUID(id)),
			goqu.I("forwarded_at").IsNull(),
		).Executor().ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("could not mark audit record as forwarded in pg: %w", err)
	}

	return nil
}
