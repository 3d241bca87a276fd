package ml

import (
	"context"
	"errors"
)

var (
	// ErrNotTrained the model has no learned state yet
	ErrNotTrained = errors.New("model not trained")
	// ErrUnsupportedModel unknown model type
	ErrUnsupportedModel = errors.New("unsupported model type")
	// ErrNotTrainable the model is served elsewhere and cannot be trained or saved here
	ErrNotTrainable = errors.New("model cannot be trained locally")
)

type MLModel interface {
	Train(features [][]float64, labels []int) error
	Predict(features []float64) (int, float64, error)
	Save(path string) error
	Load(path string) error
}

// Prediction the label read back from a model, with its confidence when the model reports one
type Prediction struct {
	Label    int     `json:"label"`
	Score    float64 `json:"score"`
	HasScore bool    `json:"has_score"`
}

type ModelProvider interface {
	Predict(ctx context.Context, features []float64) (Prediction, error)
}

// Local serves an in-process model through the ModelProvider interface.
func Local(model MLModel) ModelProvider {
	return localProvider{model: model}
}

type localProvider struct {
	model MLModel
}

func (p localProvider) Predict(ctx context.Context, features []float64) (Prediction, error) {
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}
	label, score, err := p.model.Predict(features)
	if err != nil {
		return Prediction{}, err
	}
	return Prediction{Label: label, Score: score, HasScore: true}, nil
}
