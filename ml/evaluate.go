package ml

import (
	"math"
	"math/rand"
	"sort"
)

// ClassMetrics precision and recall for one label
type ClassMetrics struct {
	Label     int     `json:"label"`
	Support   int     `json:"support"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
}

// Evaluation held-out metrics of a trained model
type Evaluation struct {
	Samples   int                 `json:"samples"`
	Accuracy  float64             `json:"accuracy"`
	Precision float64             `json:"precision"`
	Recall    float64             `json:"recall"`
	Classes   []ClassMetrics      `json:"classes"`
	Confusion map[int]map[int]int `json:"confusion"`
	Failures  int                 `json:"failures"`
}

// SplitDataset shuffles with the given seed and holds out testRatio of the rows.
func SplitDataset(features [][]float64, labels []int, testRatio float64, seed int64) (trainX [][]float64, trainY []int, testX [][]float64, testY []int) {
	if testRatio <= 0 || testRatio >= 1 {
		testRatio = 0.2
	}
	rnd := rand.New(rand.NewSource(seed))
	indices := rnd.Perm(len(features))

	split := int(math.Round(float64(len(features)) * (1 - testRatio)))
	for i, idx := range indices {
		if i < split {
			trainX = append(trainX, features[idx])
			trainY = append(trainY, labels[idx])
		} else {
			testX = append(testX, features[idx])
			testY = append(testY, labels[idx])
		}
	}
	return trainX, trainY, testX, testY
}

// Evaluate scores a model on held-out rows. Precision and recall are macro averages.
func Evaluate(model MLModel, testX [][]float64, testY []int) Evaluation {
	eval := Evaluation{
		Samples:   len(testX),
		Confusion: make(map[int]map[int]int),
	}
	if len(testX) == 0 {
		return eval
	}

	truePositive := make(map[int]int)
	predictedCount := make(map[int]int)
	actualCount := make(map[int]int)
	correct := 0

	for i, feature := range testX {
		actual := testY[i]
		actualCount[actual]++
		label, _, err := model.Predict(feature)
		if err != nil {
			eval.Failures++
			continue
		}
		predictedCount[label]++
		if eval.Confusion[actual] == nil {
			eval.Confusion[actual] = make(map[int]int)
		}
		eval.Confusion[actual][label]++
		if label == actual {
			correct++
			truePositive[label]++
		}
	}
	eval.Accuracy = float64(correct) / float64(len(testX))

	labels := make([]int, 0, len(actualCount))
	for label := range actualCount {
		labels = append(labels, label)
	}
	sort.Ints(labels)
	for _, label := range labels {
		metrics := ClassMetrics{Label: label, Support: actualCount[label]}
		if predictedCount[label] > 0 {
			metrics.Precision = float64(truePositive[label]) / float64(predictedCount[label])
		}
		metrics.Recall = float64(truePositive[label]) / float64(actualCount[label])
		eval.Classes = append(eval.Classes, metrics)
		eval.Precision += metrics.Precision
		eval.Recall += metrics.Recall
	}
	eval.Precision /= float64(len(labels))
	eval.Recall /= float64(len(labels))
	return eval
}
