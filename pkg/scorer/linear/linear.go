// Package linear scores URLs with a logistic regression over TF-IDF features.
package linear

import (
	"context"
	"fmt"
	"math"
	"os"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"urlrisk/pkg/scorer"
	"urlrisk/pkg/scorer/tfidf"
)

// Weights are the fitted coefficients of a binary logistic regression.
type Weights struct {
	Coef      []float64
	Intercept float64
}

// LoadWeights reads a model artifact of the form {"coef": [...], "intercept": 0.1}.
// A single-row matrix ({"coef": [[...]], "intercept": [0.1]}) is accepted too.
func LoadWeights(path string) (*Weights, error) {
	data, err := os.ReadFile(path) //nolint: gosec
	if err != nil {
		return nil, fmt.Errorf("could not read model weights: %w", err)
	}

	w, err := ParseWeights(data)
	if err != nil {
		return nil, fmt.Errorf("could not parse model weights %s: %w", path, err)
	}

	return w, nil
}

// ParseWeights decodes a model artifact.
func ParseWeights(data []byte) (*Weights, error) {
	w := &Weights{}
	var hasIntercept bool

	d := jx.DecodeBytes(data)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "coef":
			coef, err := decodeRow(d)
			if err != nil {
				return errors.Wrap(err, "coef")
			}
			w.Coef = coef
		case "intercept":
			if d.Next() == jx.Array {
				row, err := decodeRow(d)
				if err != nil {
					return errors.Wrap(err, "intercept")
				}
				if len(row) != 1 {
					return errors.Errorf("intercept must have one element, got %d", len(row))
				}
				w.Intercept = row[0]
			} else {
				f, err := d.Float64()
				if err != nil {
					return errors.Wrap(err, "intercept")
				}
				w.Intercept = f
			}
			hasIntercept = true
		default:
			return d.Skip()
		}

		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "decode")
	}

	if len(w.Coef) == 0 {
		return nil, errors.New("coef is empty")
	}
	if !hasIntercept {
		return nil, errors.New("intercept is missing")
	}

	return w, nil
}

// decodeRow reads either a flat array of numbers or an array holding exactly
// one such array.
func decodeRow(d *jx.Decoder) ([]float64, error) {
	var (
		row    []float64
		nested int
	)
	if err := d.Arr(func(d *jx.Decoder) error {
		if d.Next() == jx.Array {
			nested++
			if nested > 1 {
				return errors.New("only a single row is supported")
			}

			return d.Arr(func(d *jx.Decoder) error {
				f, err := d.Float64()
				row = append(row, f)

				return err
			})
		}

		f, err := d.Float64()
		row = append(row, f)

		return err
	}); err != nil {
		return nil, err
	}

	return row, nil
}

// Scorer computes p = 1 / (1 + exp(-(w·x + b))) over TF-IDF features.
type Scorer struct {
	vectorizer *tfidf.Vectorizer
	weights    *Weights
}

// Ensure Scorer conforms to the scorer.Scorer interface at compile time.
var _ scorer.Scorer = (*Scorer)(nil)

// New pairs a vectorizer with weights of the same dimension.
func New(vectorizer *tfidf.Vectorizer, weights *Weights) (*Scorer, error) {
	if vectorizer.Dim() != len(weights.Coef) {
		return nil, fmt.Errorf("model has %d coefficients but the vectorizer produces %d features",
			len(weights.Coef), vectorizer.Dim())
	}

	return &Scorer{vectorizer: vectorizer, weights: weights}, nil
}

func (s *Scorer) Score(ctx context.Context, URL string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	x := s.vectorizer.Transform(URL)
	z := s.weights.Intercept
	for i, idx := range x.Indices {
		z += s.weights.Coef[idx] * x.Values[i]
	}

	return sigmoid(z), nil
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)

	return e / (1 + e)
}
