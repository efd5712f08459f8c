package onnx

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	ort "github.com/yalue/onnxruntime_go"

	"urlrisk/pkg/scorer/tfidf"
)

func floatInput(name string, dims ...int64) ort.InputOutputInfo {
	return ort.InputOutputInfo{
		Name:         name,
		OrtValueType: ort.ONNXTypeTensor,
		Dimensions:   ort.NewShape(dims...),
		DataType:     ort.TensorElementDataTypeFloat,
	}
}

func TestCheckModel(t *testing.T) {
	outputs := []ort.InputOutputInfo{
		{Name: "label", Dimensions: ort.NewShape(-1)},
		floatInput("probabilities", -1, 2),
	}

	name, classes, err := checkModel([]ort.InputOutputInfo{floatInput("float_input", -1, 4)}, outputs, "probabilities", 4)
	require.NoError(t, err)
	require.Equal(t, "float_input", name)
	require.Equal(t, int64(2), classes)

	// dynamic feature width is accepted
	_, _, err = checkModel([]ort.InputOutputInfo{floatInput("x", -1, -1)}, outputs, "probabilities", 4)
	require.NoError(t, err)
}

func TestCheckModel_Rejects(t *testing.T) {
	outputs := []ort.InputOutputInfo{floatInput("probabilities", -1, 2)}

	tests := map[string]struct {
		inputs  []ort.InputOutputInfo
		outputs []ort.InputOutputInfo
		output  string
	}{
		"no inputs":      {outputs: outputs, output: "probabilities"},
		"two inputs":     {inputs: []ort.InputOutputInfo{floatInput("a", 1, 4), floatInput("b", 1, 4)}, outputs: outputs, output: "probabilities"},
		"width mismatch": {inputs: []ort.InputOutputInfo{floatInput("x", 1, 5)}, outputs: outputs, output: "probabilities"},
		"not a matrix":   {inputs: []ort.InputOutputInfo{floatInput("x", 4)}, outputs: outputs, output: "probabilities"},
		"missing output": {inputs: []ort.InputOutputInfo{floatInput("x", 1, 4)}, outputs: outputs, output: "output_probability"},
		"single class":   {inputs: []ort.InputOutputInfo{floatInput("x", 1, 4)}, outputs: []ort.InputOutputInfo{floatInput("probabilities", 1, 1)}, output: "probabilities"},
		"int64 input": {inputs: []ort.InputOutputInfo{{
			Name:       "x",
			Dimensions: ort.NewShape(1, 4),
			DataType:   ort.TensorElementDataTypeInt64,
		}}, outputs: outputs, output: "probabilities"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := checkModel(tt.inputs, tt.outputs, tt.output, 4)
			require.Error(t, err)
		})
	}
}

// TestScorer_Model runs a real bundle when one is available, e.g.
// URLRISK_TEST_BUNDLE=./models/v2 ONNXRUNTIME_SHARED_LIBRARY_PATH=/usr/lib/libonnxruntime.so.
func TestScorer_Model(t *testing.T) {
	bundle := os.Getenv("URLRISK_TEST_BUNDLE")
	if bundle == "" {
		t.Skip("URLRISK_TEST_BUNDLE is not set")
	}

	v, err := tfidf.Load(filepath.Join(bundle, "vectorizer.json"))
	require.NoError(t, err)

	s, err := New(v, Options{
		ModelPath:         filepath.Join(bundle, "model.onnx"),
		SharedLibraryPath: os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH"),
	})
	require.NoError(t, err)
	defer func() { require.NoError(t, s.Close()) }()

	for _, u := range []string{"https://google.com/", "http://secure-paypal-login.example.com/verify"} {
		p, err := s.Score(context.Background(), u)
		require.NoError(t, err)
		require.GreaterOrEqual(t, p, 0.0)
		require.LessOrEqual(t, p, 1.0)
	}
}
