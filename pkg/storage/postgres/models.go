package postgres

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"urlrisk/pkg/domain"
	"urlrisk/pkg/storage"
)

type PgAuditRecord struct {
	ID       uuid.UUID      `db:"id"`
	ClientIP sql.NullString `db:"client_ip"`

	URL            string  `db:"url"`
	Domain         string  `db:"domain"`
	TrustedDomain  bool    `db:"trusted_domain"`
	Prediction     string  `db:"prediction"`
	Probability    float64 `db:"probability_malicious"`
	SafeThreshold  float64 `db:"safe_threshold"`
	MaliciousLimit float64 `db:"malicious_threshold"`
	ModelVersion   string  `db:"model_version"`
	Source         string  `db:"source"`

	DecidedAt   time.Time    `db:"decided_at"`
	ForwardedAt sql.NullTime `db:"forwarded_at" goqu:"skipinsert"`
}

func (p *PgAuditRecord) ToDomain() *storage.AuditEntry {
	return &storage.AuditEntry{
		Record: domain.AuditRecord{
			Decision: domain.Decision{
				ID:             domain.DecisionID(p.ID),
				URL:            p.URL,
				Domain:         p.Domain,
				Trusted:        p.TrustedDomain,
				Classification: domain.Classification(p.Prediction),
				Probability:    p.Probability,
				Thresholds: domain.Thresholds{
					Safe:      p.SafeThreshold,
					Malicious: p.MaliciousLimit,
				},
				Source:       domain.Source(p.Source),
				ModelVersion: p.ModelVersion,
				Timestamp:    p.DecidedAt.UTC(),
			},
			Caller: p.ClientIP.String,
		},
		ForwardedAt: p.ForwardedAt.Time,
	}
}

func (p *PgAuditRecord) FromDomain(rec domain.AuditRecord) {
	*p = PgAuditRecord{
		ID: uuid.UUID(rec.ID),
		ClientIP: sql.NullString{
			String: rec.Caller,
			Valid:  rec.Caller != "",
		},
		URL:            rec.URL,
		Domain:         rec.Domain,
		TrustedDomain:  rec.Trusted,
		Prediction:     string(rec.Classification),
		Probability:    rec.Probability,
		SafeThreshold:  rec.Thresholds.Safe,
		MaliciousLimit: rec.Thresholds.Malicious,
		ModelVersion:   rec.ModelVersion,
		Source:         string(rec.Source),
		DecidedAt:      rec.Timestamp.UTC(),
	}
}

func domainAuditRecordsToPg(records []domain.AuditRecord) []PgAuditRecord {
	out := make([]PgAuditRecord, len(records))
	for i := range out {
		out[i].FromDomain(records[i])
	}

	return out
}
