package ml

import (
	"errors"
	"math"
	"sort"
	"time"
)

// DecisionTreeType artifact type of a DecisionTree
const DecisionTreeType = "decision_tree"

type DecisionTree struct {
	MaxDepth       int
	MinSamplesLeaf int
	// Features names the vector positions; saved with the artifact.
	Features []string

	nodes     []TreeNode
	labels    []int
	trainedAt time.Time
}

type TreeNode struct {
	FeatureIdx int     `json:"feature_idx"`
	Threshold  float64 `json:"threshold"`
	LeftChild  int     `json:"left_child"`
	RightChild int     `json:"right_child"`
	ClassLabel int     `json:"class_label"`
	Confidence float64 `json:"confidence"`
	Samples    int     `json:"samples"`
	IsLeaf     bool    `json:"is_leaf"`
}

type treeArtifact struct {
	artifactHeader
	MaxDepth int        `json:"max_depth"`
	Nodes    []TreeNode `json:"nodes"`
}

func NewDecisionTree(maxDepth int) *DecisionTree {
	return &DecisionTree{MaxDepth: maxDepth, MinSamplesLeaf: 1}
}

func (dt *DecisionTree) Train(features [][]float64, labels []int) error {
	if len(features) == 0 || len(labels) == 0 {
		return errors.New("features or labels empty")
	}
	if len(features) != len(labels) {
		return errors.New("features and labels size mismatch")
	}
	width := len(features[0])
	for _, row := range features {
		if len(row) != width {
			return errors.New("feature rows have different lengths")
		}
	}
	if dt.MaxDepth <= 0 {
		dt.MaxDepth = 3
	}
	if dt.MinSamplesLeaf <= 0 {
		dt.MinSamplesLeaf = 1
	}

	dt.nodes = dt.buildNode(features, labels, 0)
	dt.labels = distinctLabels(labels)
	dt.trainedAt = time.Now().UTC()
	return nil
}

func (dt *DecisionTree) Predict(features []float64) (int, float64, error) {
	if len(dt.nodes) == 0 {
		return 0, 0, ErrNotTrained
	}
	if len(dt.Features) > 0 && len(features) != len(dt.Features) {
		return 0, 0, errors.New("feature count does not match model")
	}
	idx := 0
	for {
		node := dt.nodes[idx]
		if node.IsLeaf {
			return node.ClassLabel, node.Confidence, nil
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(features) {
			return 0, 0, errors.New("feature index out of range")
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx < 0 || idx >= len(dt.nodes) {
			return 0, 0, errors.New("invalid tree state")
		}
	}
}

// Depth returns the length of the longest root to leaf path.
func (dt *DecisionTree) Depth() int {
	if len(dt.nodes) == 0 {
		return 0
	}
	var walk func(idx int) int
	walk = func(idx int) int {
		node := dt.nodes[idx]
		if node.IsLeaf {
			return 0
		}
		left, right := walk(node.LeftChild), walk(node.RightChild)
		if left > right {
			return left + 1
		}
		return right + 1
	}
	return walk(0)
}

func (dt *DecisionTree) Save(path string) error {
	if len(dt.nodes) == 0 {
		return ErrNotTrained
	}
	return writeArtifact(path, treeArtifact{
		artifactHeader: artifactHeader{
			Type:      DecisionTreeType,
			Features:  dt.Features,
			Labels:    dt.labels,
			TrainedAt: dt.trainedAt,
		},
		MaxDepth: dt.MaxDepth,
		Nodes:    dt.nodes,
	})
}

func (dt *DecisionTree) Load(path string) error {
	var artifact treeArtifact
	if err := readArtifact(path, DecisionTreeType, &artifact); err != nil {
		return err
	}
	if len(artifact.Nodes) == 0 {
		return ErrNotTrained
	}
	dt.nodes = artifact.Nodes
	dt.MaxDepth = artifact.MaxDepth
	dt.Features = artifact.Features
	dt.labels = artifact.Labels
	dt.trainedAt = artifact.TrainedAt
	return nil
}

func (dt *DecisionTree) buildNode(features [][]float64, labels []int, depth int) []TreeNode {
	label, confidence := majorityLabel(labels)
	leaf := []TreeNode{{
		FeatureIdx: -1,
		LeftChild:  -1,
		RightChild: -1,
		ClassLabel: label,
		Confidence: confidence,
		Samples:    len(labels),
		IsLeaf:     true,
	}}
	if depth >= dt.MaxDepth || isPure(labels) || len(labels) < 2*dt.MinSamplesLeaf {
		return leaf
	}

	bestFeature, threshold, ok := findBestSplit(features, labels, dt.MinSamplesLeaf)
	if !ok {
		return leaf
	}

	leftFeatures, leftLabels, rightFeatures, rightLabels := splitData(features, labels, bestFeature, threshold)
	if len(leftLabels) == 0 || len(rightLabels) == 0 {
		return leaf
	}

	leftNodes := dt.buildNode(leftFeatures, leftLabels, depth+1)
	rightNodes := dt.buildNode(rightFeatures, rightLabels, depth+1)

	root := TreeNode{
		FeatureIdx: bestFeature,
		Threshold:  threshold,
		LeftChild:  1,
		RightChild: 1 + len(leftNodes),
		ClassLabel: label,
		Confidence: confidence,
		Samples:    len(labels),
		IsLeaf:     false,
	}

	nodes := make([]TreeNode, 0, 1+len(leftNodes)+len(rightNodes))
	nodes = append(nodes, root)
	nodes = append(nodes, offsetChildren(leftNodes, 1)...)
	nodes = append(nodes, offsetChildren(rightNodes, 1+len(leftNodes))...)
	return nodes
}

// offsetChildren rebases child indices of a subtree placed at position offset.
func offsetChildren(nodes []TreeNode, offset int) []TreeNode {
	for i := range nodes {
		if nodes[i].IsLeaf {
			continue
		}
		nodes[i].LeftChild += offset
		nodes[i].RightChild += offset
	}
	return nodes
}

// findBestSplit tries the quartiles of every feature and keeps the lowest weighted gini.
func findBestSplit(features [][]float64, labels []int, minLeaf int) (int, float64, bool) {
	featureCount := len(features[0])
	bestFeature := -1
	bestThreshold := 0.0
	bestImpurity := gini(labels)

	for featureIdx := 0; featureIdx < featureCount; featureIdx++ {
		values := make([]float64, len(features))
		for i := range features {
			values[i] = features[i][featureIdx]
		}
		for _, threshold := range quartiles(values) {
			leftLabels, rightLabels := splitLabels(features, labels, featureIdx, threshold)
			if len(leftLabels) < minLeaf || len(rightLabels) < minLeaf {
				continue
			}
			impurity := weightedGini(leftLabels, rightLabels)
			if impurity < bestImpurity {
				bestImpurity = impurity
				bestFeature = featureIdx
				bestThreshold = threshold
			}
		}
	}
	if bestFeature == -1 {
		return -1, 0, false
	}
	return bestFeature, bestThreshold, true
}

func splitData(features [][]float64, labels []int, featureIdx int, threshold float64) ([][]float64, []int, [][]float64, []int) {
	leftFeatures := make([][]float64, 0)
	leftLabels := make([]int, 0)
	rightFeatures := make([][]float64, 0)
	rightLabels := make([]int, 0)
	for i, feature := range features {
		if feature[featureIdx] <= threshold {
			leftFeatures = append(leftFeatures, feature)
			leftLabels = append(leftLabels, labels[i])
		} else {
			rightFeatures = append(rightFeatures, feature)
			rightLabels = append(rightLabels, labels[i])
		}
	}
	return leftFeatures, leftLabels, rightFeatures, rightLabels
}

func splitLabels(features [][]float64, labels []int, featureIdx int, threshold float64) ([]int, []int) {
	leftLabels := make([]int, 0)
	rightLabels := make([]int, 0)
	for i, feature := range features {
		if feature[featureIdx] <= threshold {
			leftLabels = append(leftLabels, labels[i])
		} else {
			rightLabels = append(rightLabels, labels[i])
		}
	}
	return leftLabels, rightLabels
}

func weightedGini(leftLabels, rightLabels []int) float64 {
	leftWeight := float64(len(leftLabels))
	rightWeight := float64(len(rightLabels))
	total := leftWeight + rightWeight
	return (leftWeight/total)*gini(leftLabels) + (rightWeight/total)*gini(rightLabels)
}

func gini(labels []int) float64 {
	if len(labels) == 0 {
		return 0
	}
	counts := make(map[int]int)
	for _, label := range labels {
		counts[label]++
	}
	impurity := 1.0
	for _, count := range counts {
		prob := float64(count) / float64(len(labels))
		impurity -= prob * prob
	}
	return impurity
}

// quartiles returns the distinct 25th, 50th and 75th percentile values.
func quartiles(values []float64) []float64 {
	if len(values) == 0 {
		return nil
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	out := make([]float64, 0, 3)
	for _, q := range []float64{0.25, 0.5, 0.75} {
		v := percentile(sorted, q)
		if len(out) == 0 || out[len(out)-1] != v {
			out = append(out, v)
		}
	}
	return out
}

func percentile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	frac := pos - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*frac
}

// majorityLabel returns the most frequent label and its share. Ties go to the smaller label.
func majorityLabel(labels []int) (int, float64) {
	if len(labels) == 0 {
		return 0, 0
	}
	counts := make(map[int]int)
	for _, label := range labels {
		counts[label]++
	}
	bestLabel := 0
	bestCount := -1
	for label, count := range counts {
		if count > bestCount || (count == bestCount && label < bestLabel) {
			bestCount = count
			bestLabel = label
		}
	}
	return bestLabel, float64(bestCount) / float64(len(labels))
}

func isPure(labels []int) bool {
	if len(labels) == 0 {
		return true
	}
	first := labels[0]
	for _, label := range labels[1:] {
		if label != first {
			return false
		}
	}
	return true
}
