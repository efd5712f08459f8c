// Package onnx scores URLs with a classifier exported to ONNX. TF-IDF features
// are computed in Go and fed to the model as a dense [1, n] float tensor; the
// malicious probability is read from column 1 of the probabilities output.
package onnx

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"urlrisk/pkg/scorer"
	"urlrisk/pkg/scorer/tfidf"
)

// DefaultOutputName is the probabilities output of scikit-learn classifiers
// converted without a ZipMap.
const DefaultOutputName = "probabilities"

// maliciousClass is the column of the positive class in the probabilities output.
const maliciousClass = 1

// ortEnv guards the process-wide ONNX Runtime initialization.
var ortEnv struct {
	once sync.Once
	err  error
}

func initORT(libPath string) error {
	ortEnv.once.Do(func() {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		if !ort.IsInitialized() {
			ortEnv.err = ort.InitializeEnvironment()
		}
	})

	return ortEnv.err
}

// Options configure the ONNX scorer.
type Options struct {
	// ModelPath is the .onnx file.
	ModelPath string
	// SharedLibraryPath points to libonnxruntime. Empty uses the runtime default.
	SharedLibraryPath string
	// OutputName defaults to DefaultOutputName.
	OutputName string
	// IntraOpThreads caps the threads used by a single inference. Zero keeps the runtime default.
	IntraOpThreads int
}

// Scorer runs an ONNX classifier over TF-IDF features. A session is shared by
// all calls; tensors are allocated per call, so Score is safe for concurrent use.
type Scorer struct {
	vectorizer *tfidf.Vectorizer
	session    *ort.DynamicAdvancedSession
	inputName  string
	outputName string
	classes    int64
}

// Ensure Scorer conforms to the scorer.Scorer interface at compile time.
var _ scorer.Scorer = (*Scorer)(nil)

// New loads the model and checks that its input width matches the vectorizer.
func New(vectorizer *tfidf.Vectorizer, options Options) (*Scorer, error) {
	if options.OutputName == "" {
		options.OutputName = DefaultOutputName
	}

	if err := initORT(options.SharedLibraryPath); err != nil {
		return nil, fmt.Errorf("onnx: could not initialize runtime: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(options.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("onnx: could not read model info: %w", err)
	}
	inputName, classes, err := checkModel(inputs, outputs, options.OutputName, vectorizer.Dim())
	if err != nil {
		return nil, err
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("onnx: could not create session options: %w", err)
	}
	defer opts.Destroy()
	if options.IntraOpThreads > 0 {
		if err := opts.SetIntraOpNumThreads(options.IntraOpThreads); err != nil {
			return nil, fmt.Errorf("onnx: could not set intra op threads: %w", err)
		}
	}

	session, err := ort.NewDynamicAdvancedSession(options.ModelPath,
		[]string{inputName},
		[]string{options.OutputName},
		opts)
	if err != nil {
		return nil, fmt.Errorf("onnx: could not create session: %w", err)
	}

	return &Scorer{
		vectorizer: vectorizer,
		session:    session,
		inputName:  inputName,
		outputName: options.OutputName,
		classes:    classes,
	}, nil
}

// checkModel returns the single input name and the number of classes.
func checkModel(inputs, outputs []ort.InputOutputInfo, outputName string, dim int) (string, int64, error) {
	if len(inputs) != 1 {
		return "", 0, fmt.Errorf("onnx: expected exactly one model input, got %d", len(inputs))
	}
	in := inputs[0]
	if in.DataType != ort.TensorElementDataTypeFloat {
		return "", 0, fmt.Errorf("onnx: input %q must be float32, got %s", in.Name, in.DataType)
	}
	if d := in.Dimensions; len(d) != 2 || (d[1] > 0 && d[1] != int64(dim)) {
		return "", 0, fmt.Errorf("onnx: input %q has shape %v, expected [n, %d]", in.Name, d, dim)
	}

	for _, out := range outputs {
		if out.Name != outputName {
			continue
		}
		classes := int64(2)
		if d := out.Dimensions; len(d) == 2 && d[1] > 0 {
			classes = d[1]
		}
		if classes <= maliciousClass {
			return "", 0, fmt.Errorf("onnx: output %q has %d classes", outputName, classes)
		}

		return in.Name, classes, nil
	}

	return "", 0, fmt.Errorf("onnx: model has no output named %q", outputName)
}

func (s *Scorer) Score(ctx context.Context, URL string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	features := s.vectorizer.Transform(URL).Dense(s.vectorizer.Dim())
	in, err := ort.NewTensor(ort.NewShape(1, int64(len(features))), features)
	if err != nil {
		return 0, fmt.Errorf("onnx: could not create input tensor: %w", err)
	}
	defer in.Destroy()

	out, err := ort.NewEmptyTensor[float32](ort.NewShape(1, s.classes))
	if err != nil {
		return 0, fmt.Errorf("onnx: could not create output tensor: %w", err)
	}
	defer out.Destroy()

	if err := s.session.Run([]ort.Value{in}, []ort.Value{out}); err != nil {
		return 0, fmt.Errorf("onnx: inference failed: %w", err)
	}

	return float64(out.GetData()[maliciousClass]), nil
}

// Close releases the session.
func (s *Scorer) Close() error {
	if err := s.session.Destroy(); err != nil {
		return fmt.Errorf("onnx: could not destroy session: %w", err)
	}

	return nil
}
