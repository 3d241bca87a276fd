package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func openTestDB(t *testing.T) {
	t.Helper()
	if err := InitDB(filepath.Join(t.TempDir(), "test.db")); err != nil {
		t.Fatalf("init db: %v", err)
	}
	t.Cleanup(func() { Close() })
}

func TestPredictionLog(t *testing.T) {
	openTestDB(t)

	score := 0.8
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	records := []PredictionRecord{
		{ID: "a", Sample: map[string]float64{"alcohol": 9.4}, Label: 5, Tier: "Average", Timestamp: base},
		{ID: "b", Sample: map[string]float64{"alcohol": 12.1}, Label: 7, Confidence: &score, Tier: "Very Good", Cached: true, Timestamp: base.Add(time.Minute)},
	}
	for _, r := range records {
		if err := SavePrediction(r); err != nil {
			t.Fatalf("save %s: %v", r.ID, err)
		}
	}

	got, err := RecentPredictions(10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].ID != "b" || got[0].Confidence == nil || *got[0].Confidence != 0.8 || !got[0].Cached {
		t.Fatalf("unexpected newest record: %+v", got[0])
	}
	if got[1].Confidence != nil {
		t.Fatalf("expected nil confidence, got %v", *got[1].Confidence)
	}
	if got[1].Sample["alcohol"] != 9.4 {
		t.Fatalf("sample not restored: %v", got[1].Sample)
	}

	limited, err := RecentPredictions(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected 1 record, got %d", len(limited))
	}

	if err := SavePrediction(PredictionRecord{ID: "a", Label: 5}); err == nil {
		t.Fatal("expected duplicate prediction id to fail")
	}
}

func TestTrainingLog(t *testing.T) {
	openTestDB(t)

	entry := TrainingLog{ModelName: "decision_tree", Accuracy: 0.61, Precision: 0.4, Recall: 0.35, DataPoints: 1359}
	if err := SaveTrainingLog(entry); err != nil {
		t.Fatalf("save: %v", err)
	}
	logs, err := LoadTrainingLog()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(logs) != 1 || logs[0].ModelName != "decision_tree" || logs[0].DataPoints != 1359 {
		t.Fatalf("unexpected logs: %+v", logs)
	}
}

func TestQualityIssues(t *testing.T) {
	openTestDB(t)

	issues := []QualityIssue{
		{Dataset: "red.csv", Line: 4, Type: "duplicate", Message: "duplicate of line 2"},
		{Dataset: "red.csv", Line: 9, Type: "duplicate", Message: "duplicate of line 3"},
		{Dataset: "red.csv", Line: 12, Type: "label_range", Message: "label 11 outside 0..10"},
		{Dataset: "white.csv", Line: 2, Type: "non_negative", Message: "feature 0 is negative: -1"},
	}
	if err := SaveQualityIssues(context.Background(), issues); err != nil {
		t.Fatalf("save: %v", err)
	}

	counts, err := QualityIssueCounts("red.csv")
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	want := map[string]int{"duplicate": 2, "label_range": 1}
	if diff := cmp.Diff(want, counts); diff != "" {
		t.Fatalf("counts mismatch (-want +got):\n%s", diff)
	}
}

func TestNotInitialized(t *testing.T) {
	Close()
	if err := SavePrediction(PredictionRecord{ID: "x"}); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if _, err := RecentPredictions(1); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}
