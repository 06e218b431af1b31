package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"batch-predict/internal/core/types"

	"gopkg.in/yaml.v2"
)

var ErrInvalidArtifact = errors.New("invalid model artifact")

type FeatureType string

const (
	NumericFeature     FeatureType = "numeric"
	CategoricalFeature FeatureType = "categorical"
)

type EstimatorType string

const (
	LinearEstimator   EstimatorType = "linear"
	LogisticEstimator EstimatorType = "logistic"
	TreeEstimator     EstimatorType = "tree"
)

type FeatureSpec struct {
	Column     string      `yaml:"column" json:"column"`
	Type       FeatureType `yaml:"type" json:"type"`
	Impute     any         `yaml:"impute" json:"impute"`
	Mean       float64     `yaml:"mean" json:"mean"`
	Scale      float64     `yaml:"scale" json:"scale"`
	Categories []string    `yaml:"categories" json:"categories"`
}

// TreeNode is a decision tree node. A node with no children is a leaf; an
// internal node sends x[Feature] <= Threshold to Left and everything else to
// Right.
type TreeNode struct {
	Feature   int      `yaml:"feature" json:"feature"`
	Threshold float64  `yaml:"threshold" json:"threshold"`
	Left      int      `yaml:"left" json:"left"`
	Right     int      `yaml:"right" json:"right"`
	Class     string   `yaml:"class" json:"class"`
	Value     *float64 `yaml:"value" json:"value"`
}

func (n TreeNode) isLeaf() bool {
	return n.Left <= 0 && n.Right <= 0
}

type EstimatorSpec struct {
	Type         EstimatorType `yaml:"type" json:"type"`
	Classes      []string      `yaml:"classes" json:"classes"`
	Coefficients [][]float64   `yaml:"coefficients" json:"coefficients"`
	Intercepts   []float64     `yaml:"intercepts" json:"intercepts"`
	Nodes        []TreeNode    `yaml:"nodes" json:"nodes"`
}

// PipelineSpec is the serialized form of a pipeline artifact. It is written as
// YAML or JSON.
type PipelineSpec struct {
	Name      string        `yaml:"name" json:"name"`
	Version   string        `yaml:"version" json:"version"`
	Features  []FeatureSpec `yaml:"features" json:"features"`
	Estimator EstimatorSpec `yaml:"estimator" json:"estimator"`
}

type PipelineModel struct {
	spec  PipelineSpec
	width int
}

var _ Model = (*PipelineModel)(nil)

// LoadPipelineModel decodes a pipeline artifact. A document starting with '{'
// is read as JSON, anything else as YAML.
func LoadPipelineModel(data []byte) (*PipelineModel, error) {
	var spec PipelineSpec
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
		if err := json.Unmarshal(data, &spec); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
		}
	} else if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
	}
	return NewPipelineModel(spec)
}

func NewPipelineModel(spec PipelineSpec) (*PipelineModel, error) {
	width, err := validateFeatures(spec.Features)
	if err != nil {
		return nil, err
	}
	if err := validateEstimator(spec.Estimator, width); err != nil {
		return nil, err
	}
	return &PipelineModel{spec: spec, width: width}, nil
}

func validateFeatures(features []FeatureSpec) (int, error) {
	if len(features) == 0 {
		return 0, fmt.Errorf("%w: no features", ErrInvalidArtifact)
	}

	width := 0
	for i, f := range features {
		if f.Column == "" {
			return 0, fmt.Errorf("%w: feature %d has no column", ErrInvalidArtifact, i)
		}
		switch f.Type {
		case NumericFeature:
			if f.Impute != nil {
				if _, ok := types.Float(f.Impute); !ok {
					return 0, fmt.Errorf("%w: feature %s has non-numeric impute value %v", ErrInvalidArtifact, f.Column, f.Impute)
				}
			}
			width++
		case CategoricalFeature:
			if len(f.Categories) == 0 {
				return 0, fmt.Errorf("%w: categorical feature %s has no categories", ErrInvalidArtifact, f.Column)
			}
			width += len(f.Categories)
		default:
			return 0, fmt.Errorf("%w: feature %s has unknown type %q", ErrInvalidArtifact, f.Column, f.Type)
		}
	}
	return width, nil
}

func validateEstimator(e EstimatorSpec, width int) error {
	switch e.Type {
	case LinearEstimator, LogisticEstimator:
		if len(e.Coefficients) == 0 {
			return fmt.Errorf("%w: %s estimator has no coefficients", ErrInvalidArtifact, e.Type)
		}
		for i, row := range e.Coefficients {
			if len(row) != width {
				return fmt.Errorf("%w: coefficient row %d has %d values, features produce %d", ErrInvalidArtifact, i, len(row), width)
			}
		}
		if len(e.Intercepts) != 0 && len(e.Intercepts) != len(e.Coefficients) {
			return fmt.Errorf("%w: %d intercepts for %d coefficient rows", ErrInvalidArtifact, len(e.Intercepts), len(e.Coefficients))
		}

		if e.Type == LinearEstimator {
			if len(e.Coefficients) != 1 {
				return fmt.Errorf("%w: linear estimator needs exactly one coefficient row", ErrInvalidArtifact)
			}
			return nil
		}

		if len(e.Classes) < 2 {
			return fmt.Errorf("%w: logistic estimator needs at least two classes", ErrInvalidArtifact)
		}
		binary := len(e.Coefficients) == 1 && len(e.Classes) == 2
		if !binary && len(e.Coefficients) != len(e.Classes) {
			return fmt.Errorf("%w: %d coefficient rows for %d classes", ErrInvalidArtifact, len(e.Coefficients), len(e.Classes))
		}
		return nil

	case TreeEstimator:
		if len(e.Nodes) == 0 {
			return fmt.Errorf("%w: tree estimator has no nodes", ErrInvalidArtifact)
		}
		for i, n := range e.Nodes {
			if n.isLeaf() {
				if n.Class == "" && n.Value == nil {
					return fmt.Errorf("%w: leaf %d has neither class nor value", ErrInvalidArtifact, i)
				}
				continue
			}
			// Children must come after their parent, which rules out cycles.
			if n.Left <= i || n.Right <= i || n.Left >= len(e.Nodes) || n.Right >= len(e.Nodes) {
				return fmt.Errorf("%w: node %d has children out of range", ErrInvalidArtifact, i)
			}
			if n.Feature < 0 || n.Feature >= width {
				return fmt.Errorf("%w: node %d splits on feature %d, features produce %d", ErrInvalidArtifact, i, n.Feature, width)
			}
		}
		return nil

	default:
		return fmt.Errorf("%w: unknown estimator type %q", ErrInvalidArtifact, e.Type)
	}
}

func (m *PipelineModel) Name() string {
	return m.spec.Name
}

// Transform turns a record into the estimator's input vector.
func (m *PipelineModel) Transform(record types.Record) []float64 {
	x := make([]float64, 0, m.width)
	for _, f := range m.spec.Features {
		switch f.Type {
		case NumericFeature:
			v, ok := types.Float(record[f.Column])
			if !ok {
				v, _ = types.Float(f.Impute)
			}
			scale := f.Scale
			if scale == 0 {
				scale = 1
			}
			x = append(x, (v-f.Mean)/scale)

		case CategoricalFeature:
			var value string
			if raw, ok := record[f.Column]; ok && raw != nil {
				value = types.String(raw)
			} else if f.Impute != nil {
				value = types.String(f.Impute)
			}
			for _, c := range f.Categories {
				if c == value {
					x = append(x, 1)
				} else {
					x = append(x, 0)
				}
			}
		}
	}
	return x
}

func dot(w, x []float64) float64 {
	s := 0.0
	for i := range w {
		s += w[i] * x[i]
	}
	return s
}

func (m *PipelineModel) intercept(i int) float64 {
	if len(m.spec.Estimator.Intercepts) == 0 {
		return 0
	}
	return m.spec.Estimator.Intercepts[i]
}

func (m *PipelineModel) estimate(x []float64) any {
	e := m.spec.Estimator
	switch e.Type {
	case LinearEstimator:
		return dot(e.Coefficients[0], x) + m.intercept(0)

	case LogisticEstimator:
		if len(e.Coefficients) == 1 {
			if dot(e.Coefficients[0], x)+m.intercept(0) > 0 {
				return e.Classes[1]
			}
			return e.Classes[0]
		}
		best, bestScore := 0, math.Inf(-1)
		for i, w := range e.Coefficients {
			if score := dot(w, x) + m.intercept(i); score > bestScore {
				best, bestScore = i, score
			}
		}
		return e.Classes[best]

	default:
		node := e.Nodes[0]
		for !node.isLeaf() {
			if x[node.Feature] <= node.Threshold {
				node = e.Nodes[node.Left]
			} else {
				node = e.Nodes[node.Right]
			}
		}
		if node.Class != "" {
			return node.Class
		}
		return *node.Value
	}
}

func (m *PipelineModel) Predict(ctx context.Context, frame *types.Frame) ([]any, error) {
	preds := make([]any, frame.Len())
	for i, row := range frame.Rows {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		preds[i] = m.estimate(m.Transform(row))
	}
	return preds, nil
}

func (m *PipelineModel) Release() {}
