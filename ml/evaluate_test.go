package ml

import "testing"

type constantModel struct {
	label int
}

func (m constantModel) Train([][]float64, []int) error          { return nil }
func (m constantModel) Predict([]float64) (int, float64, error) { return m.label, 1, nil }
func (m constantModel) Save(string) error                       { return nil }
func (m constantModel) Load(string) error                       { return nil }

func TestSplitDatasetIsDeterministic(t *testing.T) {
	features := make([][]float64, 10)
	labels := make([]int, 10)
	for i := range features {
		features[i] = []float64{float64(i)}
		labels[i] = i
	}
	trainX, trainY, testX, testY := SplitDataset(features, labels, 0.3, 42)
	if len(trainX) != 7 || len(testX) != 3 || len(trainY) != 7 || len(testY) != 3 {
		t.Fatalf("unexpected split sizes: %d/%d", len(trainX), len(testX))
	}
	again, _, _, _ := SplitDataset(features, labels, 0.3, 42)
	for i := range trainX {
		if trainX[i][0] != again[i][0] {
			t.Fatal("same seed should give the same split")
		}
	}
	for i := range trainX {
		if int(trainX[i][0]) != trainY[i] {
			t.Fatal("features and labels must stay paired")
		}
	}
}

func TestEvaluate(t *testing.T) {
	testX := [][]float64{{0}, {0}, {0}, {0}}
	testY := []int{5, 5, 6, 7}

	eval := Evaluate(constantModel{label: 5}, testX, testY)
	if eval.Accuracy != 0.5 {
		t.Fatalf("expected accuracy 0.5, got %f", eval.Accuracy)
	}
	if len(eval.Classes) != 3 {
		t.Fatalf("expected 3 classes, got %d", len(eval.Classes))
	}
	five := eval.Classes[0]
	if five.Label != 5 || five.Precision != 0.5 || five.Recall != 1 {
		t.Fatalf("unexpected metrics for label 5: %+v", five)
	}
	if eval.Confusion[7][5] != 1 {
		t.Fatalf("expected 7 predicted as 5 once, got %v", eval.Confusion)
	}
}

func TestEvaluateEmpty(t *testing.T) {
	eval := Evaluate(constantModel{}, nil, nil)
	if eval.Samples != 0 || eval.Accuracy != 0 {
		t.Fatalf("unexpected evaluation: %+v", eval)
	}
}
