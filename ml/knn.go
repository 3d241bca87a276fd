package ml

import (
	"errors"
	"sort"
	"time"
)

// KNNType artifact type of a KNN
const KNNType = "knn"

// KNN k nearest neighbours over min/max scaled vectors
type KNN struct {
	K        int
	Features []string

	scaler    DataPreprocessor
	points    [][]float64
	labels    []int
	trainedAt time.Time
}

type knnArtifact struct {
	artifactHeader
	K       int              `json:"k"`
	Scaler  DataPreprocessor `json:"scaler"`
	Points  [][]float64      `json:"points"`
	Classes []int            `json:"classes"`
}

func NewKNN(k int) *KNN {
	return &KNN{K: k}
}

func (m *KNN) Train(features [][]float64, labels []int) error {
	if len(features) == 0 || len(labels) == 0 {
		return errors.New("features or labels empty")
	}
	if len(features) != len(labels) {
		return errors.New("features and labels size mismatch")
	}
	if m.K <= 0 {
		m.K = 5
	}
	var scaler DataPreprocessor
	if err := scaler.ComputeStats(features); err != nil {
		return err
	}
	points, err := scaler.Normalize(features)
	if err != nil {
		return err
	}
	m.scaler = scaler
	m.points = points
	m.labels = append([]int(nil), labels...)
	m.trainedAt = time.Now().UTC()
	return nil
}

type neighbour struct {
	distance float64
	label    int
}

// Predict votes among the K closest training points. The score is the winning vote share.
func (m *KNN) Predict(features []float64) (int, float64, error) {
	if len(m.points) == 0 {
		return 0, 0, ErrNotTrained
	}
	query, err := m.scaler.Transform(features)
	if err != nil {
		return 0, 0, err
	}

	neighbours := make([]neighbour, len(m.points))
	for i, point := range m.points {
		neighbours[i] = neighbour{distance: squaredDistance(query, point), label: m.labels[i]}
	}
	sort.SliceStable(neighbours, func(i, j int) bool {
		return neighbours[i].distance < neighbours[j].distance
	})

	k := m.K
	if k > len(neighbours) {
		k = len(neighbours)
	}
	votes := make([]int, k)
	for i := 0; i < k; i++ {
		votes[i] = neighbours[i].label
	}
	label, share := majorityLabel(votes)
	return label, share, nil
}

func (m *KNN) Save(path string) error {
	if len(m.points) == 0 {
		return ErrNotTrained
	}
	return writeArtifact(path, knnArtifact{
		artifactHeader: artifactHeader{
			Type:      KNNType,
			Features:  m.Features,
			Labels:    distinctLabels(m.labels),
			TrainedAt: m.trainedAt,
		},
		K:       m.K,
		Scaler:  m.scaler,
		Points:  m.points,
		Classes: m.labels,
	})
}

func (m *KNN) Load(path string) error {
	var artifact knnArtifact
	if err := readArtifact(path, KNNType, &artifact); err != nil {
		return err
	}
	if len(artifact.Points) == 0 || len(artifact.Points) != len(artifact.Classes) {
		return errors.New("knn artifact has no usable points")
	}
	m.K = artifact.K
	m.Features = artifact.Features
	m.scaler = artifact.Scaler
	m.points = artifact.Points
	m.labels = artifact.Classes
	m.trainedAt = artifact.TrainedAt
	return nil
}

func squaredDistance(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
