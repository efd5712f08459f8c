// Package scorer defines the probability scorer capability used by the
// decision engine and the helpers shared by its implementations.
package scorer

import "context"

// Scorer maps a raw URL string to the probability, in [0,1], that it is malicious.
// Implementations must be safe for concurrent use.
//
//go:generate mockgen -package mockscorer -source=interface.go -destination=mock/mockscorer.go *
type Scorer interface {
	// Score returns the malicious-probability for URL. Any failure is returned
	// as an error; implementations never substitute a default probability.
	Score(ctx context.Context, URL string) (float64, error)
}
