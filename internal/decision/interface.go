package decision

import (
	"context"

	"urlrisk/pkg/domain"
)

// Info describes the configuration an Engine decides with.
type Info struct {
	ModelVersion   string
	Thresholds     domain.Thresholds
	TrustedEntries int
}

//go:generate mockgen -package mockdecision -source=interface.go -destination=mock/mockdecision.go *
type Engine interface {
	Decide(ctx context.Context, URL string) (*domain.Decision, error)
	Info() Info
}
