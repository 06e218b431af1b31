package core

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"batch-predict/internal/core/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOnnxInputMatrix(t *testing.T) {
	model := &OnnxModel{features: []string{"year", "odometer"}}

	frame := frameOf(
		types.Record{"year": json.Number("2015"), "odometer": "12000.5"},
		types.Record{"year": true, "odometer": nil},
	)

	assert.Equal(t, []float32{2015, 12000.5, 1, 0}, model.inputMatrix(frame))
}

func TestLoadOnnxModelRequiresFeatures(t *testing.T) {
	_, err := LoadOnnxModel([]byte("graph"), OnnxModelConfig{InputName: "input", OutputName: "variable"})
	assert.Error(t, err)
}

// Runs against a real runtime and graph when both are provided, e.g. a
// scikit-learn regressor exported with skl2onnx.
func TestOnnxModelPredict(t *testing.T) {
	dylib, modelPath := os.Getenv("ONNX_RUNTIME_DYLIB"), os.Getenv("ONNX_TEST_MODEL")
	if dylib == "" || modelPath == "" {
		t.Skip("ONNX_RUNTIME_DYLIB and ONNX_TEST_MODEL are required")
	}

	data, err := os.ReadFile(modelPath)
	require.NoError(t, err)

	features := strings.Split(os.Getenv("ONNX_TEST_FEATURES"), ",")
	model, err := LoadOnnxModel(data, OnnxModelConfig{
		RuntimeDylib: dylib,
		InputName:    "input",
		OutputName:   "variable",
		Features:     features,
	})
	require.NoError(t, err)
	defer model.Release()

	row := types.Record{}
	for _, f := range features {
		row[f] = json.Number("1")
	}

	preds, err := model.Predict(context.Background(), frameOf(row, row))
	require.NoError(t, err)
	assert.Len(t, preds, 2)
}
