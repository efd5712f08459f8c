package domain

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// DecisionID uniquely identifies a single evaluation.
// It wraps uuid.UUID to provide type safety at the domain layer.
type DecisionID uuid.UUID

// String returns the canonical textual form of the ID.
func (id DecisionID) String() string { return uuid.UUID(id).String() }

// Classification is the three-level risk label assigned to a URL.
type Classification string

const (
	// ClassificationBenign marks a URL as safe.
	ClassificationBenign Classification = "benign"
	// ClassificationSuspicious marks a URL whose probability falls between the thresholds.
	ClassificationSuspicious Classification = "suspicious"
	// ClassificationMalicious marks a URL as phishing/scam.
	ClassificationMalicious Classification = "malicious"
)

// Severity orders classifications: benign < suspicious < malicious.
// Unknown values get -1.
func (c Classification) Severity() int {
	switch c {
	case ClassificationBenign:
		return 0
	case ClassificationSuspicious:
		return 1
	case ClassificationMalicious:
		return 2
	default:
		return -1
	}
}

// Source records which path produced a Classification.
type Source string

const (
	// SourceWhitelist means the trusted-domain override produced the decision.
	SourceWhitelist Source = "whitelist"
	// SourceModel means the probability scorer produced the decision.
	SourceModel Source = "model"
)

// Thresholds is the calibrated (safe, malicious) pair partitioning the
// probability space into three bands.
type Thresholds struct {
	Safe      float64 `yaml:"safe"`
	Malicious float64 `yaml:"malicious"`
}

// Validate reports whether both cut points are within [0,1] and Safe <= Malicious.
func (t Thresholds) Validate() error {
	for name, v := range map[string]float64{"safe": t.Safe, "malicious": t.Malicious} {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return fmt.Errorf("%s threshold %v is outside [0,1]", name, v)
		}
	}
	if t.Safe > t.Malicious {
		return fmt.Errorf("safe threshold %v is greater than malicious threshold %v", t.Safe, t.Malicious)
	}

	return nil
}

// Decision is the complete, immutable result of one evaluation. It is both the
// API response payload and the body of the audit entry.
type Decision struct {
	// ID is generated per evaluation and links the response to its audit entry.
	ID DecisionID
	// URL is the raw input as submitted.
	URL string
	// Domain is the normalized host derived from URL.
	Domain string
	// Trusted is true when Domain matched the trusted-domain registry.
	Trusted bool
	// Classification is the assigned label.
	Classification Classification
	// Probability is the malicious-probability; a fixed sentinel for trusted domains.
	Probability float64
	// Thresholds are the cut points in effect for this evaluation.
	Thresholds Thresholds
	// Source tells whether the whitelist or the model produced the label.
	Source Source
	// ModelVersion identifies the loaded model bundle.
	ModelVersion string
	// Timestamp is the capture time in UTC.
	Timestamp time.Time
}

// AuditRecord is the audit-log representation of a Decision: the same data
// plus the identifier of the caller that asked for it.
type AuditRecord struct {
	Decision

	// Caller is the caller identifier (usually the client IP). Empty means unknown.
	Caller string
}

// NewAuditRecord pairs a decision with the caller identifier.
func NewAuditRecord(d Decision, caller string) AuditRecord {
	return AuditRecord{Decision: d, Caller: caller}
}
