package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"winequality/bundle"
	"winequality/config"
	"winequality/db"
	"winequality/logger"
	"winequality/ml"
	"winequality/pipeline"
	"winequality/wine"
)

// options flags of one training run
type options struct {
	dataPath  string
	modelType string
	modelPath string
	maxDepth  int
	k         int
	testRatio float64
	seed      int64
	archive   string
	dbPath    string
	logLevel  string
}

func main() {
	defaults := config.Default()

	var opts options
	flag.StringVar(&opts.dataPath, "data", defaults.DatasetPath(), "CSV dataset with the eleven measurements and quality")
	flag.StringVar(&opts.modelType, "model_type", defaults.ML.ModelType, "decision_tree or knn")
	flag.StringVar(&opts.modelPath, "model_path", defaults.ModelPath(), "model output path")
	flag.IntVar(&opts.maxDepth, "max_depth", defaults.ML.MaxTreeDepth, "max tree depth")
	flag.IntVar(&opts.k, "k", defaults.ML.K, "neighbours for knn")
	flag.Float64Var(&opts.testRatio, "test_ratio", defaults.ML.Training.TestRatio, "test ratio")
	flag.Int64Var(&opts.seed, "seed", defaults.ML.Training.Seed, "shuffle seed")
	flag.StringVar(&opts.archive, "bundle", "", "write a zip holding the model and dataset to this path")
	flag.StringVar(&opts.dbPath, "db", "", "record the run in this sqlite database")
	flag.StringVar(&opts.logLevel, "log_level", "info", "log level")
	flag.Parse()

	if err := run(opts); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(opts options) error {
	log, err := logger.New(logger.Options{Level: opts.logLevel})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	ds, err := ml.LoadDataset(opts.dataPath, wine.Columns(), wine.LabelColumn)
	if err != nil {
		return fmt.Errorf("load dataset %s: %w", opts.dataPath, err)
	}

	cleaner := pipeline.NewDataCleaner()
	cleaned, issues := cleaner.Clean(ds)
	for _, issue := range issues {
		log.Debug("row rejected", zap.Int("line", issue.Line), zap.String("rule", issue.Type), zap.String("reason", issue.Message))
	}
	stats := cleaner.Stats()
	log.Info("dataset cleaned",
		zap.Int64("rows", stats.TotalProcessed),
		zap.Int64("kept", stats.Passed),
		zap.Int64("rejected", stats.Rejected),
		zap.Any("issues", stats.Issues),
	)
	if cleaned.Len() == 0 {
		return errors.New("no rows left after cleaning")
	}

	trainX, trainY, testX, testY := ml.SplitDataset(cleaned.Features, cleaned.Labels, opts.testRatio, opts.seed)

	model, err := ml.NewModel(opts.modelType, ml.Params{
		MaxTreeDepth: opts.maxDepth,
		K:            opts.k,
		Features:     wine.Columns(),
	})
	if err != nil {
		return fmt.Errorf("create model: %w", err)
	}
	if err := model.Train(trainX, trainY); err != nil {
		return fmt.Errorf("train model: %w", err)
	}

	eval := ml.Evaluate(model, testX, testY)
	log.Info("model evaluated",
		zap.String("model", opts.modelType),
		zap.Int("train", len(trainX)),
		zap.Int("test", eval.Samples),
		zap.Float64("accuracy", eval.Accuracy),
		zap.Float64("precision", eval.Precision),
		zap.Float64("recall", eval.Recall),
	)
	for _, class := range eval.Classes {
		log.Debug("class metrics",
			zap.Int("label", class.Label),
			zap.Int("support", class.Support),
			zap.Float64("precision", class.Precision),
			zap.Float64("recall", class.Recall),
		)
	}

	if err := model.Save(opts.modelPath); err != nil {
		return fmt.Errorf("save model: %w", err)
	}
	log.Info("model saved", zap.String("path", opts.modelPath))

	if opts.dbPath != "" {
		if err := db.InitDB(opts.dbPath); err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		entry := db.TrainingLog{
			ModelName:  opts.modelType,
			Accuracy:   eval.Accuracy,
			Precision:  eval.Precision,
			Recall:     eval.Recall,
			DataPoints: cleaned.Len(),
		}
		if err := db.SaveTrainingLog(entry); err != nil {
			log.Error("failed to record training run", zap.Error(err))
		}
		if err := db.SaveQualityIssues(context.Background(), qualityRecords(opts.dataPath, issues)); err != nil {
			log.Error("failed to record rejected rows", zap.Error(err))
		}
	}

	if opts.archive != "" {
		files := map[string]string{
			filepath.Base(opts.modelPath): opts.modelPath,
			filepath.Base(opts.dataPath):  opts.dataPath,
		}
		if err := bundle.Create(opts.archive, files); err != nil {
			return fmt.Errorf("write bundle: %w", err)
		}
		log.Info("bundle written", zap.String("path", opts.archive))
	}
	return nil
}

func qualityRecords(dataset string, issues []pipeline.QualityIssue) []db.QualityIssue {
	records := make([]db.QualityIssue, len(issues))
	for i, issue := range issues {
		records[i] = db.QualityIssue{
			Dataset:   filepath.Base(dataset),
			Line:      issue.Line,
			Type:      issue.Type,
			Message:   issue.Message,
			Timestamp: issue.Timestamp,
		}
	}
	return records
}
