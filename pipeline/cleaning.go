// Package pipeline cleans labelled dataset rows before they reach training.
package pipeline

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"winequality/ml"
)

// Row one labelled dataset row
type Row struct {
	Line     int
	Features []float64
	Label    int
}

// CleaningRule validates one row
type CleaningRule interface {
	Apply(Row) error
	Name() string
}

// QualityIssue a row rejected by a rule
type QualityIssue struct {
	Type      string    `json:"type"`
	Line      int       `json:"line"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// CleaningStats running totals across Clean calls
type CleaningStats struct {
	TotalProcessed int64            `json:"total_processed"`
	Passed         int64            `json:"passed"`
	Rejected       int64            `json:"rejected"`
	Issues         map[string]int64 `json:"issues"`
	LastClean      time.Time        `json:"last_clean"`
}

// DataCleaner applies rules in order and drops every row that fails one.
type DataCleaner struct {
	rules []CleaningRule

	stats     CleaningStats
	statsLock sync.RWMutex
}

// NewDataCleaner returns a cleaner with the default rule set.
func NewDataCleaner() *DataCleaner {
	cleaner := &DataCleaner{
		rules: make([]CleaningRule, 0),
		stats: CleaningStats{
			Issues: make(map[string]int64),
		},
	}

	cleaner.AddRule(NewFiniteValueRule())
	cleaner.AddRule(NewNonNegativeRule())
	cleaner.AddRule(NewLabelRangeRule(0, 10))
	cleaner.AddRule(NewDuplicateDetectionRule())

	return cleaner
}

func (dc *DataCleaner) AddRule(rule CleaningRule) {
	dc.rules = append(dc.rules, rule)
}

// Clean returns a new dataset holding only the rows that pass every rule.
func (dc *DataCleaner) Clean(ds *ml.Dataset) (*ml.Dataset, []QualityIssue) {
	dc.statsLock.Lock()
	defer dc.statsLock.Unlock()

	cleaned := &ml.Dataset{Columns: ds.Columns}
	var issues []QualityIssue

	for i := range ds.Features {
		dc.stats.TotalProcessed++
		row := Row{Line: i + 2, Features: ds.Features[i], Label: ds.Labels[i]}

		var rowIssues []QualityIssue
		for _, rule := range dc.rules {
			if err := rule.Apply(row); err != nil {
				rowIssues = append(rowIssues, QualityIssue{
					Type:      rule.Name(),
					Line:      row.Line,
					Message:   err.Error(),
					Timestamp: time.Now(),
				})
				dc.stats.Issues[rule.Name()]++
				break
			}
		}

		if len(rowIssues) > 0 {
			dc.stats.Rejected++
			issues = append(issues, rowIssues...)
			continue
		}
		dc.stats.Passed++
		cleaned.Features = append(cleaned.Features, row.Features)
		cleaned.Labels = append(cleaned.Labels, row.Label)
	}

	dc.stats.LastClean = time.Now()
	return cleaned, issues
}

func (dc *DataCleaner) Stats() CleaningStats {
	dc.statsLock.RLock()
	defer dc.statsLock.RUnlock()

	stats := dc.stats
	stats.Issues = make(map[string]int64, len(dc.stats.Issues))
	for k, v := range dc.stats.Issues {
		stats.Issues[k] = v
	}
	return stats
}

// FiniteValueRule rejects NaN and infinite measurements.
type FiniteValueRule struct{}

func NewFiniteValueRule() *FiniteValueRule {
	return &FiniteValueRule{}
}

func (r *FiniteValueRule) Name() string {
	return "finite_value"
}

func (r *FiniteValueRule) Apply(row Row) error {
	for i, v := range row.Features {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("feature %d is not finite", i)
		}
	}
	return nil
}

// NonNegativeRule rejects negative concentrations; none of the measurements can be below zero.
type NonNegativeRule struct{}

func NewNonNegativeRule() *NonNegativeRule {
	return &NonNegativeRule{}
}

func (r *NonNegativeRule) Name() string {
	return "non_negative"
}

func (r *NonNegativeRule) Apply(row Row) error {
	for i, v := range row.Features {
		if v < 0 {
			return fmt.Errorf("feature %d is negative: %v", i, v)
		}
	}
	return nil
}

// LabelRangeRule keeps labels inside the sensory score scale.
type LabelRangeRule struct {
	min, max int
}

func NewLabelRangeRule(min, max int) *LabelRangeRule {
	return &LabelRangeRule{min: min, max: max}
}

func (r *LabelRangeRule) Name() string {
	return "label_range"
}

func (r *LabelRangeRule) Apply(row Row) error {
	if row.Label < r.min || row.Label > r.max {
		return fmt.Errorf("label %d outside %d..%d", row.Label, r.min, r.max)
	}
	return nil
}

// DuplicateDetectionRule rejects rows identical to an earlier one, label included.
type DuplicateDetectionRule struct {
	seen map[string]int
	mu   sync.Mutex
}

func NewDuplicateDetectionRule() *DuplicateDetectionRule {
	return &DuplicateDetectionRule{seen: make(map[string]int)}
}

func (r *DuplicateDetectionRule) Name() string {
	return "duplicate"
}

func (r *DuplicateDetectionRule) Apply(row Row) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := rowKey(row)
	if first, ok := r.seen[key]; ok {
		return fmt.Errorf("duplicate of line %d", first)
	}
	r.seen[key] = row.Line
	return nil
}

func rowKey(row Row) string {
	parts := make([]string, 0, len(row.Features)+1)
	for _, v := range row.Features {
		parts = append(parts, strconv.FormatFloat(v, 'g', -1, 64))
	}
	parts = append(parts, strconv.Itoa(row.Label))
	return strings.Join(parts, "|")
}
