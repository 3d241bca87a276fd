package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"winequality/bundle"
	"winequality/config"
	"winequality/db"
	whttp "winequality/http"
	"winequality/logger"
	"winequality/ml"
	"winequality/monitoring"
	"winequality/predict"
)

func main() {
	configPath := flag.String("config", getEnv("WINE_CONFIG", "config.yaml"), "path to config.yaml")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	// 1. Load config
	cfg, err := config.Load(configPath, true)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(logger.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Unpack the model and dataset
	extracted, err := bundle.Ensure(cfg.Bundle.Archive, cfg.Bundle.Dir, cfg.Bundle.ModelFile)
	switch {
	case err == nil && extracted:
		log.Info("bundle extracted", zap.String("archive", cfg.Bundle.Archive), zap.String("dir", cfg.Bundle.Dir))
	case errors.Is(err, bundle.ErrNoArchive) && cfg.ML.ModelType == ml.RemoteType:
		log.Info("no bundle archive, serving the remote model", zap.String("archive", cfg.Bundle.Archive))
	case err != nil:
		// the page reports the missing model; keep serving
		log.Error("bundle extraction failed", zap.Error(err))
	}

	// 3. Initialize database
	if err := db.InitDB(cfg.Database.Path); err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer db.Close()
	log.Info("database initialized", zap.String("path", cfg.Database.Path))

	hub := monitoring.NewWebSocketHub(log.Named("ws"))
	go hub.Run(ctx)

	service, err := newService(cfg, log)
	if err != nil {
		return err
	}
	wireListeners(service, hub, log)

	if err := service.Load(); err != nil {
		log.Error("Error loading model", zap.Error(err))
	}
	if cfg.ML.Watch && cfg.ML.ModelType != ml.RemoteType {
		if err := service.Watch(ctx, cfg.ModelPath()); err != nil {
			log.Warn("model hot reload disabled", zap.Error(err))
		}
	}

	handlers, err := whttp.NewHandlers(whttp.Options{
		Service:           service,
		Hub:               hub,
		DatasetPath:       cfg.DatasetPath(),
		ModelPath:         cfg.ModelPath(),
		ModelDownloadName: cfg.UI.ModelDownloadName,
		Title:             cfg.UI.Title,
		PageSize:          cfg.UI.PageSize,
		Logger:            log.Named("http"),
	})
	if err != nil {
		return err
	}

	// 4. Start HTTP server
	server := whttp.NewServer(whttp.ServerConfig{
		Port:           cfg.Http.Port,
		Timeout:        cfg.Http.Timeout,
		AllowedOrigins: cfg.Http.AllowedOrigins,
		MaxBodyBytes:   cfg.Http.MaxBodyBytes,
	}, handlers, log.Named("http"))

	errc := make(chan error, 1)
	go func() {
		errc <- server.Start()
	}()

	// 5. Handle graceful shutdown
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Warn("server forced to shutdown", zap.Error(err))
	}
	log.Info("exiting")
	return nil
}

// remoteCacheTTL bounds cached answers of a remote model, which never reloads on its own.
const remoteCacheTTL = time.Minute

func newService(cfg *config.Config, log *zap.Logger) (*predict.Service, error) {
	var loader predict.Loader
	ttl := cfg.ML.CacheTTL
	if cfg.ML.ModelType == ml.RemoteType {
		loader = predict.RemoteLoader(cfg.ML.RemoteURL, cfg.ML.RemoteTimeout)
		if ttl <= 0 {
			ttl = remoteCacheTTL
		}
	} else {
		loader = predict.LocalLoader(cfg.ML.ModelType, cfg.ModelPath())
	}
	return predict.NewService(predict.Options{
		Loader:    loader,
		CacheSize: cfg.ML.CacheSize,
		CacheTTL:  ttl,
		Locale:    cfg.UI.Locale,
		Logger:    log.Named("predict"),
	})
}

// wireListeners records every prediction in sqlite and pushes it to the live feed.
func wireListeners(service *predict.Service, hub *monitoring.WebSocketHub, log *zap.Logger) {
	service.Subscribe(func(ctx context.Context, r *predict.Result) error {
		record := db.PredictionRecord{
			ID:            r.ID,
			Sample:        r.Sample.Map(),
			Label:         r.Label,
			Tier:          r.Tier,
			ModelChecksum: r.Model,
			Cached:        r.Cached,
			Timestamp:     r.CreatedAt,
		}
		if r.HasScore {
			score := r.Score
			record.Confidence = &score
		}
		return db.SavePrediction(record)
	})
	service.Subscribe(func(ctx context.Context, r *predict.Result) error {
		return hub.Publish(monitoring.PredictionEvent, r)
	})
	service.OnReload(func(stats predict.Stats) {
		if err := hub.Publish(monitoring.ModelReloaded, stats); err != nil {
			log.Warn("publish reload", zap.Error(err))
		}
	})
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
