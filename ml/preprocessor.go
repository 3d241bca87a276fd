package ml

import (
	"errors"
	"fmt"
)

// DataPreprocessor min/max scaling learned from training vectors
type DataPreprocessor struct {
	Mins []float64 `json:"mins"`
	Maxs []float64 `json:"maxs"`
}

func (p *DataPreprocessor) ComputeStats(features [][]float64) error {
	if len(features) == 0 {
		return errors.New("features is empty")
	}
	width := len(features[0])
	mins := make([]float64, width)
	maxs := make([]float64, width)
	copy(mins, features[0])
	copy(maxs, features[0])
	for i, row := range features {
		if len(row) != width {
			return fmt.Errorf("row %d has %d values, expected %d", i, len(row), width)
		}
		for j, value := range row {
			if value < mins[j] {
				mins[j] = value
			}
			if value > maxs[j] {
				maxs[j] = value
			}
		}
	}
	p.Mins = mins
	p.Maxs = maxs
	return nil
}

// Transform scales one vector. Values outside the training range land outside [0, 1].
func (p *DataPreprocessor) Transform(vector []float64) ([]float64, error) {
	if p.Mins == nil {
		return nil, errors.New("feature stats not computed")
	}
	return NormalizeVector(vector, p.Mins, p.Maxs)
}

func (p *DataPreprocessor) Normalize(features [][]float64) ([][]float64, error) {
	if len(features) == 0 {
		return nil, errors.New("features is empty")
	}
	vectors := make([][]float64, len(features))
	for i, row := range features {
		normalized, err := p.Transform(row)
		if err != nil {
			return nil, err
		}
		vectors[i] = normalized
	}
	return vectors, nil
}

func NormalizeFeature(value, min, max float64) float64 {
	if max == min {
		return 0
	}
	return (value - min) / (max - min)
}

func NormalizeVector(values []float64, mins []float64, maxs []float64) ([]float64, error) {
	if len(values) != len(mins) || len(values) != len(maxs) {
		return nil, errors.New("values/mins/maxs length mismatch")
	}
	result := make([]float64, len(values))
	for i := range values {
		result[i] = NormalizeFeature(values[i], mins[i], maxs[i])
	}
	return result, nil
}
