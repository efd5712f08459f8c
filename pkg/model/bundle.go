// Package model loads the model bundle: calibrated thresholds, the model
// version and the scoring artifacts. A bundle is read once at startup and any
// missing or corrupt artifact is reported as serrors.ErrInvalidConfig.
package model

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"urlrisk/pkg/domain"
	"urlrisk/pkg/scorer"
	"urlrisk/pkg/scorer/linear"
	"urlrisk/pkg/scorer/onnx"
	"urlrisk/pkg/scorer/remote"
	"urlrisk/pkg/scorer/tfidf"
	"urlrisk/pkg/serrors"
)

// Artifact file names inside a bundle directory.
const (
	ThresholdsFile  = "thresholds.yaml"
	VectorizerFile  = "vectorizer.json"
	LinearModelFile = "model.json"
	ONNXModelFile   = "model.onnx"
)

// DefaultVersion is used when thresholds.yaml does not name a version.
const DefaultVersion = "v2.0"

// Scorer kinds.
const (
	KindLinear = "linear"
	KindONNX   = "onnx"
	KindRemote = "remote"
)

// Bundle is a loaded model bundle.
type Bundle struct {
	// Dir is the bundle directory.
	Dir string
	// Thresholds are the calibrated cut points.
	Thresholds domain.Thresholds
	// Version identifies the bundle in decisions and the info endpoint.
	Version string
}

type thresholdsFile struct {
	Safe      *float64 `yaml:"safe"`
	Malicious *float64 `yaml:"malicious"`
	Version   string   `yaml:"version"`
}

// Load reads thresholds.yaml from dir. Both thresholds are required and must
// satisfy 0 <= safe <= malicious <= 1.
func Load(dir string) (*Bundle, error) {
	if dir == "" {
		return nil, serrors.With(serrors.ErrInvalidConfig, "model bundle directory is empty")
	}

	path := filepath.Join(dir, ThresholdsFile)
	data, err := os.ReadFile(path) //nolint: gosec
	if err != nil {
		return nil, serrors.Wrap(serrors.ErrInvalidConfig, err, "could not read thresholds")
	}

	var tf thresholdsFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, serrors.Wrap(serrors.ErrInvalidConfig, err, "could not parse %s", path)
	}
	if tf.Safe == nil || tf.Malicious == nil {
		return nil, serrors.With(serrors.ErrInvalidConfig, "%s must define both safe and malicious", path)
	}

	thresholds := domain.Thresholds{Safe: *tf.Safe, Malicious: *tf.Malicious}
	if err := thresholds.Validate(); err != nil {
		return nil, serrors.Wrap(serrors.ErrInvalidConfig, err, "invalid thresholds in %s", path)
	}

	version := tf.Version
	if version == "" {
		version = DefaultVersion
	}

	return &Bundle{
		Dir:        dir,
		Thresholds: thresholds,
		Version:    version,
	}, nil
}

// Path returns the path of an artifact inside the bundle.
func (b *Bundle) Path(name string) string {
	return filepath.Join(b.Dir, name)
}

// ScorerOptions select and configure the scorer built from a bundle.
type ScorerOptions struct {
	// Kind is one of KindLinear, KindONNX or KindRemote.
	Kind string

	ONNXSharedLibraryPath string
	ONNXOutputName        string
	ONNXIntraOpThreads    int

	RemoteEndpoint string
	RemoteToken    string
	RemoteTimeout  time.Duration
}

// NewScorer builds the configured scorer. The returned close function releases
// the scorer's resources and is never nil.
func (b *Bundle) NewScorer(options ScorerOptions) (scorer.Scorer, func() error, error) {
	noop := func() error { return nil }

	switch options.Kind {
	case KindLinear, "":
		v, err := b.vectorizer()
		if err != nil {
			return nil, noop, err
		}
		weights, err := linear.LoadWeights(b.Path(LinearModelFile))
		if err != nil {
			return nil, noop, serrors.Wrap(serrors.ErrInvalidConfig, err, "could not load linear model")
		}
		s, err := linear.New(v, weights)
		if err != nil {
			return nil, noop, serrors.Wrap(serrors.ErrInvalidConfig, err, "linear model does not match vectorizer")
		}

		return s, noop, nil
	case KindONNX:
		v, err := b.vectorizer()
		if err != nil {
			return nil, noop, err
		}
		if err := checkReadable(b.Path(ONNXModelFile)); err != nil {
			return nil, noop, err
		}
		s, err := onnx.New(v, onnx.Options{
			ModelPath:         b.Path(ONNXModelFile),
			SharedLibraryPath: options.ONNXSharedLibraryPath,
			OutputName:        options.ONNXOutputName,
			IntraOpThreads:    options.ONNXIntraOpThreads,
		})
		if err != nil {
			return nil, noop, serrors.Wrap(serrors.ErrInvalidConfig, err, "could not load onnx model")
		}

		return s, s.Close, nil
	case KindRemote:
		if options.RemoteEndpoint == "" {
			return nil, noop, serrors.With(serrors.ErrInvalidConfig, "remote scorer endpoint is empty")
		}

		return remote.New(&http.Client{Timeout: options.RemoteTimeout},
			options.RemoteEndpoint,
			options.RemoteToken), noop, nil
	default:
		return nil, noop, serrors.With(serrors.ErrInvalidConfig, "unknown scorer kind %q", options.Kind)
	}
}

func (b *Bundle) vectorizer() (*tfidf.Vectorizer, error) {
	v, err := tfidf.Load(b.Path(VectorizerFile))
	if err != nil {
		return nil, serrors.Wrap(serrors.ErrInvalidConfig, err, "could not load vectorizer")
	}

	return v, nil
}

// checkReadable fails when path is missing, unreadable or empty.
func checkReadable(path string) error {
	f, err := os.Open(path) //nolint: gosec
	if err != nil {
		return serrors.Wrap(serrors.ErrInvalidConfig, err, "model artifact is missing")
	}
	defer func() {
		_ = f.Close()
	}()

	var head [1]byte
	if _, err := io.ReadFull(f, head[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return serrors.With(serrors.ErrInvalidConfig, "model artifact %s is empty", path)
		}

		return serrors.Wrap(serrors.ErrInvalidConfig, err, "could not read %s", path)
	}

	return nil
}

// String describes the bundle for startup logs.
func (b *Bundle) String() string {
	return fmt.Sprintf("%s (safe=%v, malicious=%v) from %s",
		b.Version, b.Thresholds.Safe, b.Thresholds.Malicious, b.Dir)
}
