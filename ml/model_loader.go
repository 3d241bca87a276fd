package ml

import (
	"fmt"
)

// Params training knobs shared by the local model types
type Params struct {
	MaxTreeDepth   int
	MinSamplesLeaf int
	K              int
	Features       []string
}

// NewModel returns an untrained model of the given type.
func NewModel(modelType string, params Params) (MLModel, error) {
	switch modelType {
	case DecisionTreeType:
		model := NewDecisionTree(params.MaxTreeDepth)
		if params.MinSamplesLeaf > 0 {
			model.MinSamplesLeaf = params.MinSamplesLeaf
		}
		model.Features = params.Features
		return model, nil
	case KNNType:
		model := NewKNN(params.K)
		model.Features = params.Features
		return model, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedModel, modelType)
	}
}

// LoadModel reads a saved artifact. An empty modelType takes the type recorded in the file.
func LoadModel(modelType, path string) (MLModel, error) {
	recorded, err := ReadModelType(path)
	if err != nil {
		return nil, err
	}
	if modelType == "" {
		modelType = recorded
	}
	if recorded != modelType {
		return nil, fmt.Errorf("model file %s holds %q, configured %q", path, recorded, modelType)
	}

	model, err := NewModel(modelType, Params{})
	if err != nil {
		return nil, err
	}
	if err := model.Load(path); err != nil {
		return nil, err
	}
	return model, nil
}
