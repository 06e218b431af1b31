package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"batch-predict/internal/core/types"

	ort "github.com/yalue/onnxruntime_go"
)

var (
	initOnce sync.Once
	initErr  error
)

// InitOnnxRuntime loads the ONNX Runtime shared library. Only the first call
// has an effect; later calls return its result.
func InitOnnxRuntime(dylib string) error {
	initOnce.Do(func() {
		if dylib == "" {
			initErr = fmt.Errorf("ONNX_RUNTIME_DYLIB must be set to load onnx models")
			return
		}
		ort.SetSharedLibraryPath(dylib)
		if err := ort.InitializeEnvironment(); err != nil {
			initErr = fmt.Errorf("could not init ONNX Runtime: %w", err)
		}
	})
	return initErr
}

// DestroyOnnxRuntime releases the runtime if it was initialised.
func DestroyOnnxRuntime() error {
	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}

type OnnxModelConfig struct {
	RuntimeDylib string
	InputName    string
	OutputName   string
	Features     []string
}

// OnnxModel runs a tabular ONNX graph that takes one float32 tensor of shape
// [rows, len(Features)] and produces one value per row.
type OnnxModel struct {
	session  *ort.DynamicAdvancedSession
	features []string
}

var _ Model = (*OnnxModel)(nil)

func LoadOnnxModel(data []byte, cfg OnnxModelConfig) (*OnnxModel, error) {
	if len(cfg.Features) == 0 {
		return nil, fmt.Errorf("ONNX_FEATURES must list the model input columns")
	}
	if err := InitOnnxRuntime(cfg.RuntimeDylib); err != nil {
		return nil, err
	}

	session, err := ort.NewDynamicAdvancedSessionWithONNXData(
		data,
		[]string{cfg.InputName},
		[]string{cfg.OutputName},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory session: %w", err)
	}

	return &OnnxModel{session: session, features: cfg.Features}, nil
}

// inputMatrix flattens the frame into row-major float32 values. Values that do
// not coerce to a number become 0.
func (m *OnnxModel) inputMatrix(frame *types.Frame) []float32 {
	data := make([]float32, 0, frame.Len()*len(m.features))
	for _, row := range frame.Rows {
		for _, col := range m.features {
			v, _ := types.Float(row[col])
			data = append(data, float32(v))
		}
	}
	return data
}

func (m *OnnxModel) Predict(ctx context.Context, frame *types.Frame) ([]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows := int64(frame.Len())
	inT, err := ort.NewTensor(ort.NewShape(rows, int64(len(m.features))), m.inputMatrix(frame))
	if err != nil {
		return nil, fmt.Errorf("error creating input tensor: %w", err)
	}
	defer inT.Destroy()

	// A nil output is allocated by onnxruntime with the shape and type the
	// graph declares.
	outputs := []ort.Value{nil}
	if err := m.session.Run([]ort.Value{inT}, outputs); err != nil {
		return nil, fmt.Errorf("session run error: %w", err)
	}
	defer outputs[0].Destroy()

	var preds []any
	switch out := outputs[0].(type) {
	case *ort.Tensor[float32]:
		for _, v := range out.GetData() {
			preds = append(preds, float64(v))
		}
	case *ort.Tensor[float64]:
		for _, v := range out.GetData() {
			preds = append(preds, v)
		}
	case *ort.Tensor[int64]:
		for _, v := range out.GetData() {
			preds = append(preds, v)
		}
	default:
		return nil, fmt.Errorf("unsupported onnx output type %T", outputs[0])
	}

	if int64(len(preds)) != rows {
		return nil, fmt.Errorf("onnx model produced %d values for %d rows", len(preds), rows)
	}
	return preds, nil
}

func (m *OnnxModel) Release() {
	if m.session == nil {
		return
	}
	if err := m.session.Destroy(); err != nil {
		slog.Warn("error destroying onnx session", "error", err)
	}
	m.session = nil
}
