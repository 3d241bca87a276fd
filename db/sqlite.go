package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var database *sql.DB

// ErrNotInitialized InitDB has not been called
var ErrNotInitialized = errors.New("database not initialized")

// InitDB initializes the SQLite database
func InitDB(path string) error {
	if dir := filepath.Dir(path); dir != "" && path != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	conn, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return err
	}
	// sqlite serialises writers; one connection keeps :memory: databases shared too.
	conn.SetMaxOpenConns(1)

	query := `
    CREATE TABLE IF NOT EXISTS predictions (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        prediction_id TEXT NOT NULL UNIQUE,
        sample TEXT NOT NULL,
        predicted_label INTEGER NOT NULL,
        confidence REAL,
        tier VARCHAR(20),
        model_checksum TEXT,
        cached INTEGER DEFAULT 0,
        timestamp DATETIME NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_predictions_timestamp ON predictions(timestamp);
    CREATE TABLE IF NOT EXISTS training_log (
        id INTEGER PRIMARY KEY,
        model_name VARCHAR(50),
        accuracy REAL,
        precision REAL,
        recall REAL,
        trained_at DATETIME,
        data_points INTEGER
    );
    CREATE TABLE IF NOT EXISTS data_quality (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        dataset TEXT NOT NULL,
        line INTEGER NOT NULL,
        issue_type TEXT NOT NULL,
        message TEXT,
        created_at DATETIME NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_quality_dataset ON data_quality(dataset, issue_type);
    `
	if _, err := conn.Exec(query); err != nil {
		conn.Close()
		return err
	}
	if database != nil {
		database.Close()
	}
	database = conn
	return nil
}

// Close closes the database opened by InitDB
func Close() error {
	if database == nil {
		return nil
	}
	err := database.Close()
	database = nil
	return err
}

// PredictionRecord one logged prediction
type PredictionRecord struct {
	ID            string             `json:"id"`
	Sample        map[string]float64 `json:"sample"`
	Label         int                `json:"label"`
	Confidence    *float64           `json:"confidence,omitempty"`
	Tier          string             `json:"tier"`
	ModelChecksum string             `json:"model_checksum"`
	Cached        bool               `json:"cached"`
	Timestamp     time.Time          `json:"timestamp"`
}

// SavePrediction appends a prediction to the log
func SavePrediction(record PredictionRecord) error {
	if database == nil {
		return ErrNotInitialized
	}
	if record.ID == "" {
		return errors.New("prediction id required")
	}
	sample, err := json.Marshal(record.Sample)
	if err != nil {
		return err
	}
	var confidence sql.NullFloat64
	if record.Confidence != nil {
		confidence = sql.NullFloat64{Float64: *record.Confidence, Valid: true}
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}
	_, err = database.Exec(`
        INSERT INTO predictions (
            prediction_id, sample, predicted_label, confidence, tier, model_checksum, cached, timestamp
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
    `,
		record.ID,
		string(sample),
		record.Label,
		confidence,
		record.Tier,
		record.ModelChecksum,
		record.Cached,
		record.Timestamp,
	)
	return err
}

// RecentPredictions returns the newest predictions first
func RecentPredictions(limit int) ([]PredictionRecord, error) {
	if database == nil {
		return nil, ErrNotInitialized
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := database.Query(`
        SELECT prediction_id, sample, predicted_label, confidence, tier, model_checksum, cached, timestamp
        FROM predictions
        ORDER BY timestamp DESC, id DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]PredictionRecord, 0)
	for rows.Next() {
		var r PredictionRecord
		var sample string
		var confidence sql.NullFloat64
		var tier, checksum sql.NullString
		if err := rows.Scan(&r.ID, &sample, &r.Label, &confidence, &tier, &checksum, &r.Cached, &r.Timestamp); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(sample), &r.Sample); err != nil {
			return nil, err
		}
		if confidence.Valid {
			v := confidence.Float64
			r.Confidence = &v
		}
		r.Tier = tier.String
		r.ModelChecksum = checksum.String
		records = append(records, r)
	}
	return records, rows.Err()
}

type TrainingLog struct {
	ModelName  string    `json:"model_name"`
	Accuracy   float64   `json:"accuracy"`
	Precision  float64   `json:"precision"`
	Recall     float64   `json:"recall"`
	TrainedAt  time.Time `json:"trained_at"`
	DataPoints int       `json:"data_points"`
}

func SaveTrainingLog(entry TrainingLog) error {
	if database == nil {
		return ErrNotInitialized
	}
	if entry.TrainedAt.IsZero() {
		entry.TrainedAt = time.Now().UTC()
	}
	_, err := database.Exec(`
        INSERT INTO training_log (model_name, accuracy, precision, recall, trained_at, data_points)
        VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ModelName, entry.Accuracy, entry.Precision, entry.Recall, entry.TrainedAt, entry.DataPoints)
	return err
}

func LoadTrainingLog() ([]TrainingLog, error) {
	if database == nil {
		return nil, ErrNotInitialized
	}
	rows, err := database.Query(`
        SELECT model_name, accuracy, precision, recall, trained_at, data_points
        FROM training_log
        ORDER BY trained_at DESC
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]TrainingLog, 0)
	for rows.Next() {
		var log TrainingLog
		if err := rows.Scan(&log.ModelName, &log.Accuracy, &log.Precision, &log.Recall, &log.TrainedAt, &log.DataPoints); err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

// QualityIssue a dataset row rejected during cleaning
type QualityIssue struct {
	Dataset   string    `json:"dataset"`
	Line      int       `json:"line"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// SaveQualityIssues stores all issues in one transaction
func SaveQualityIssues(ctx context.Context, issues []QualityIssue) error {
	if database == nil {
		return ErrNotInitialized
	}
	if len(issues) == 0 {
		return nil
	}

	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO data_quality (dataset, line, issue_type, message, created_at)
        VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, issue := range issues {
		if issue.Timestamp.IsZero() {
			issue.Timestamp = time.Now().UTC()
		}
		if _, err := stmt.ExecContext(ctx, issue.Dataset, issue.Line, issue.Type, issue.Message, issue.Timestamp); err != nil {
			return fmt.Errorf("insert failed: %w", err)
		}
	}
	return tx.Commit()
}

// QualityIssueCounts number of stored issues per type for one dataset
func QualityIssueCounts(dataset string) (map[string]int, error) {
	if database == nil {
		return nil, ErrNotInitialized
	}
	rows, err := database.Query(`
        SELECT issue_type, COUNT(*)
        FROM data_quality
        WHERE dataset = ?
        GROUP BY issue_type`, dataset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var issueType string
		var n int
		if err := rows.Scan(&issueType, &n); err != nil {
			return nil, err
		}
		counts[issueType] = n
	}
	return counts, rows.Err()
}
