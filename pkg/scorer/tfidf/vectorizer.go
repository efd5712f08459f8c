// Package tfidf reproduces the character n-gram TF-IDF transform of a fitted
// vectorizer exported to JSON. N-grams are taken over Unicode code points.
package tfidf

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"unicode"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// Analyzer selects how n-grams are extracted.
type Analyzer string

const (
	// AnalyzerChar extracts n-grams across the whole text.
	AnalyzerChar Analyzer = "char"
	// AnalyzerCharWB extracts n-grams inside whitespace separated words padded
	// with one space on each side.
	AnalyzerCharWB Analyzer = "char_wb"
)

// Norm is the normalization applied to the weighted vector.
type Norm string

const (
	NormL2   Norm = "l2"
	NormNone Norm = "none"
)

// Vectorizer maps text onto a sparse TF-IDF vector. It is immutable and safe
// for concurrent use.
type Vectorizer struct {
	analyzer   Analyzer
	minN, maxN int
	lowercase  bool
	sublinear  bool
	norm       Norm
	vocabulary map[string]int
	idf        []float64
}

// Load reads a vectorizer artifact from path.
func Load(path string) (*Vectorizer, error) {
	data, err := os.ReadFile(path) //nolint: gosec
	if err != nil {
		return nil, fmt.Errorf("could not read vectorizer: %w", err)
	}

	v, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("could not parse vectorizer %s: %w", path, err)
	}

	return v, nil
}

// Parse decodes a vectorizer artifact:
//
//	{"analyzer":"char_wb","ngram_range":[3,5],"lowercase":true,"sublinear_tf":true,
//	 "norm":"l2","vocabulary":{"abc":0},"idf":[1.7]}
//
// idf is optional; without it raw term frequencies are used.
func Parse(data []byte) (*Vectorizer, error) {
	v := &Vectorizer{
		analyzer:  AnalyzerChar,
		minN:      1,
		maxN:      1,
		lowercase: true,
		norm:      NormL2,
	}

	d := jx.DecodeBytes(data)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "analyzer":
			s, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "analyzer")
			}
			v.analyzer = Analyzer(s)
		case "ngram_range":
			var bounds []int
			if err := d.Arr(func(d *jx.Decoder) error {
				n, err := d.Int()
				if err != nil {
					return err
				}
				bounds = append(bounds, n)

				return nil
			}); err != nil {
				return errors.Wrap(err, "ngram_range")
			}
			if len(bounds) != 2 {
				return errors.Errorf("ngram_range must have two elements, got %d", len(bounds))
			}
			v.minN, v.maxN = bounds[0], bounds[1]
		case "lowercase":
			b, err := d.Bool()
			if err != nil {
				return errors.Wrap(err, "lowercase")
			}
			v.lowercase = b
		case "sublinear_tf":
			b, err := d.Bool()
			if err != nil {
				return errors.Wrap(err, "sublinear_tf")
			}
			v.sublinear = b
		case "norm":
			if d.Next() == jx.Null {
				v.norm = NormNone

				return d.Null()
			}
			s, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "norm")
			}
			v.norm = Norm(s)
		case "vocabulary":
			v.vocabulary = map[string]int{}
			if err := d.Obj(func(d *jx.Decoder, term string) error {
				idx, err := d.Int()
				if err != nil {
					return err
				}
				v.vocabulary[term] = idx

				return nil
			}); err != nil {
				return errors.Wrap(err, "vocabulary")
			}
		case "idf":
			if err := d.Arr(func(d *jx.Decoder) error {
				f, err := d.Float64()
				if err != nil {
					return err
				}
				v.idf = append(v.idf, f)

				return nil
			}); err != nil {
				return errors.Wrap(err, "idf")
			}
		default:
			return d.Skip()
		}

		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "decode")
	}

	if err := v.validate(); err != nil {
		return nil, err
	}

	return v, nil
}

func (v *Vectorizer) validate() error {
	switch v.analyzer {
	case AnalyzerChar, AnalyzerCharWB:
	default:
		return errors.Errorf("unsupported analyzer %q", v.analyzer)
	}
	switch v.norm {
	case NormL2, NormNone:
	default:
		return errors.Errorf("unsupported norm %q", v.norm)
	}
	if v.minN < 1 || v.maxN < v.minN {
		return errors.Errorf("invalid ngram_range [%d, %d]", v.minN, v.maxN)
	}
	if len(v.vocabulary) == 0 {
		return errors.New("vocabulary is empty")
	}
	for term, idx := range v.vocabulary {
		if idx < 0 || idx >= len(v.vocabulary) {
			return errors.Errorf("vocabulary index %d of %q is out of range", idx, term)
		}
	}
	if v.idf != nil && len(v.idf) != len(v.vocabulary) {
		return errors.Errorf("idf has %d weights for %d terms", len(v.idf), len(v.vocabulary))
	}

	return nil
}

// Dim returns the number of features.
func (v *Vectorizer) Dim() int { return len(v.vocabulary) }

// Vector is a sparse feature vector with strictly increasing indices.
type Vector struct {
	Indices []int
	Values  []float64
}

// Dense expands the vector into a float32 slice of length dim.
func (s Vector) Dense(dim int) []float32 {
	out := make([]float32, dim)
	for i, idx := range s.Indices {
		out[idx] = float32(s.Values[i])
	}

	return out
}

// Transform returns the TF-IDF vector of text. N-grams missing from the
// vocabulary are ignored.
func (v *Vectorizer) Transform(text string) Vector {
	if v.lowercase {
		text = strings.ToLower(text)
	}
	text = collapseWhitespace(text)

	counts := map[int]float64{}
	emit := func(gram []rune) {
		if idx, ok := v.vocabulary[string(gram)]; ok {
			counts[idx]++
		}
	}
	switch v.analyzer {
	case AnalyzerCharWB:
		v.charWBNgrams(text, emit)
	default:
		v.charNgrams(text, emit)
	}

	vec := Vector{
		Indices: make([]int, 0, len(counts)),
		Values:  make([]float64, 0, len(counts)),
	}
	for idx := range counts {
		vec.Indices = append(vec.Indices, idx)
	}
	sort.Ints(vec.Indices)

	var sumSquares float64
	for _, idx := range vec.Indices {
		tf := counts[idx]
		if v.sublinear {
			tf = 1 + math.Log(tf)
		}
		if v.idf != nil {
			tf *= v.idf[idx]
		}
		vec.Values = append(vec.Values, tf)
		sumSquares += tf * tf
	}

	if v.norm == NormL2 && sumSquares > 0 {
		norm := math.Sqrt(sumSquares)
		for i := range vec.Values {
			vec.Values[i] /= norm
		}
	}

	return vec
}

func (v *Vectorizer) charNgrams(text string, emit func([]rune)) {
	runes := []rune(text)
	for n := v.minN; n <= v.maxN && n <= len(runes); n++ {
		for i := 0; i+n <= len(runes); i++ {
			emit(runes[i : i+n])
		}
	}
}

// charWBNgrams pads every word with spaces. A word shorter than an n-gram
// size is emitted once as a whole and larger sizes are skipped.
func (v *Vectorizer) charWBNgrams(text string, emit func([]rune)) {
	for _, word := range strings.Fields(text) {
		w := []rune(" " + word + " ")
		for n := v.minN; n <= v.maxN; n++ {
			if n >= len(w) {
				emit(w)

				break
			}
			for i := 0; i+n <= len(w); i++ {
				emit(w[i : i+n])
			}
		}
	}
}

// collapseWhitespace replaces every run of two or more whitespace characters
// with a single space.
func collapseWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		if !unicode.IsSpace(runes[i]) {
			b.WriteRune(runes[i])

			continue
		}
		j := i
		for j+1 < len(runes) && unicode.IsSpace(runes[j+1]) {
			j++
		}
		if j > i {
			b.WriteByte(' ')
			i = j

			continue
		}
		b.WriteRune(runes[i])
	}

	return b.String()
}
