package core

import (
	"context"
	"fmt"
	"strings"

	"batch-predict/internal/core/types"
)

// ModelFormat identifies how an artifact is serialized.
type ModelFormat string

const (
	PipelineFormat ModelFormat = "pipeline"
	OnnxFormat     ModelFormat = "onnx"
)

// Model is a loaded predictor. Predict returns exactly one value per frame row.
type Model interface {
	Predict(ctx context.Context, frame *types.Frame) ([]any, error)

	Release()
}

type ModelLoader func(data []byte) (Model, error)

type ModelLoaderOptions struct {
	OnnxRuntimeDylib string
	OnnxInputName    string
	OnnxOutputName   string
	OnnxFeatures     []string
}

func NewModelLoaders(opts ModelLoaderOptions) map[ModelFormat]ModelLoader {
	return map[ModelFormat]ModelLoader{
		PipelineFormat: func(data []byte) (Model, error) {
			return LoadPipelineModel(data)
		},
		OnnxFormat: func(data []byte) (Model, error) {
			return LoadOnnxModel(data, OnnxModelConfig{
				RuntimeDylib: opts.OnnxRuntimeDylib,
				InputName:    opts.OnnxInputName,
				OutputName:   opts.OnnxOutputName,
				Features:     opts.OnnxFeatures,
			})
		},
	}
}

// FormatForArtifact infers the serialization format from the artifact name.
func FormatForArtifact(name string) ModelFormat {
	if strings.HasSuffix(strings.ToLower(name), ".onnx") {
		return OnnxFormat
	}
	return PipelineFormat
}

func loadModel(loaders map[ModelFormat]ModelLoader, name string, data []byte) (Model, ModelFormat, error) {
	format := FormatForArtifact(name)
	loader, ok := loaders[format]
	if !ok {
		return nil, format, fmt.Errorf("no loader registered for model format %s", format)
	}
	model, err := loader(data)
	if err != nil {
		return nil, format, fmt.Errorf("error loading %s model %s: %w", format, name, err)
	}
	return model, format, nil
}
