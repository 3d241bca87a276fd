package ml

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestDecisionTreeTrainPredict(t *testing.T) {
	features := [][]float64{
		{0.1, 0.2},
		{0.2, 0.1},
		{0.9, 0.8},
		{0.8, 0.9},
	}
	labels := []int{0, 0, 2, 2}

	model := NewDecisionTree(2)
	if err := model.Train(features, labels); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	label, confidence, err := model.Predict([]float64{0.15, 0.15})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if label != 0 {
		t.Fatalf("expected label 0, got %d", label)
	}
	if confidence != 1 {
		t.Fatalf("expected confidence 1 for a pure leaf, got %f", confidence)
	}

	label, _, err = model.Predict([]float64{0.85, 0.85})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if label != 2 {
		t.Fatalf("expected label 2, got %d", label)
	}
}

func TestDecisionTreeDeepSubtreesKeepValidIndices(t *testing.T) {
	features := make([][]float64, 0)
	labels := make([]int, 0)
	for i := 0; i < 40; i++ {
		x := float64(i)
		features = append(features, []float64{x, float64(i % 5)})
		labels = append(labels, 3+i/8)
	}

	model := NewDecisionTree(6)
	if err := model.Train(features, labels); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if model.Depth() < 2 {
		t.Fatalf("expected a tree deeper than 1, got depth %d", model.Depth())
	}

	correct := 0
	for i, feature := range features {
		label, _, err := model.Predict(feature)
		if err != nil {
			t.Fatalf("row %d: unexpected error: %v", i, err)
		}
		if label == labels[i] {
			correct++
		}
	}
	if correct < len(features)*3/4 {
		t.Fatalf("expected most training rows to be recovered, got %d/%d", correct, len(features))
	}
}

func TestDecisionTreeLeafConfidenceIsMajorityShare(t *testing.T) {
	features := [][]float64{{1}, {1}, {1}, {1}}
	labels := []int{5, 5, 5, 6}

	model := NewDecisionTree(3)
	if err := model.Train(features, labels); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	label, confidence, err := model.Predict([]float64{1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if label != 5 || confidence != 0.75 {
		t.Fatalf("expected 5 with 0.75, got %d with %f", label, confidence)
	}
}

func TestDecisionTreeErrors(t *testing.T) {
	model := NewDecisionTree(3)
	if _, _, err := model.Predict([]float64{1}); !errors.Is(err, ErrNotTrained) {
		t.Fatalf("expected ErrNotTrained, got %v", err)
	}
	if err := model.Train(nil, nil); err == nil {
		t.Fatal("expected error for empty data")
	}
	if err := model.Train([][]float64{{1}}, []int{1, 2}); err == nil {
		t.Fatal("expected error for size mismatch")
	}
	if err := model.Save(filepath.Join(t.TempDir(), "dt.json")); !errors.Is(err, ErrNotTrained) {
		t.Fatalf("expected ErrNotTrained on save, got %v", err)
	}
}

func TestDecisionTreeSaveLoad(t *testing.T) {
	model := NewDecisionTree(2)
	model.Features = []string{"a", "b"}
	if err := model.Train([][]float64{{0, 0}, {0, 1}, {1, 0}, {1, 1}}, []int{3, 3, 7, 7}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	path := filepath.Join(t.TempDir(), "models", "dt.json")
	if err := model.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded := &DecisionTree{}
	if err := loaded.Load(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	for _, row := range [][]float64{{0, 0.5}, {1, 0.5}} {
		want, wantScore, _ := model.Predict(row)
		got, gotScore, err := loaded.Predict(row)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != want || gotScore != wantScore {
			t.Fatalf("loaded model disagrees on %v: %d/%f vs %d/%f", row, got, gotScore, want, wantScore)
		}
	}
	if _, _, err := loaded.Predict([]float64{1}); err == nil {
		t.Fatal("expected error for wrong feature count")
	}
}
