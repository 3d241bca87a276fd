// Package predict serves quality predictions from the active model.
package predict

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"winequality/ml"
	"winequality/wine"
)

// ErrNoModel no model has been loaded successfully yet
var ErrNoModel = errors.New("no prediction model loaded")

// Loader builds a provider and returns an identifier for the model it serves.
type Loader func() (ml.ModelProvider, string, error)

// Listener is called after every successful prediction.
type Listener func(ctx context.Context, result *Result) error

// Result one answered prediction
type Result struct {
	ID        string      `json:"id"`
	Sample    wine.Sample `json:"sample"`
	Label     int         `json:"label"`
	Score     float64     `json:"score,omitempty"`
	HasScore  bool        `json:"has_score"`
	Tier      string      `json:"tier"`
	Message   string      `json:"message"`
	Model     string      `json:"model"`
	Cached    bool        `json:"cached"`
	CreatedAt time.Time   `json:"created_at"`
}

// Stats counters since the service started
type Stats struct {
	Predictions int64     `json:"predictions"`
	CacheHits   int64     `json:"cache_hits"`
	Failures    int64     `json:"failures"`
	Reloads     int64     `json:"reloads"`
	ModelLoaded bool      `json:"model_loaded"`
	Model       string    `json:"model"`
	LoadedAt    time.Time `json:"loaded_at,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
}

// Options of a Service. A zero CacheTTL keeps cached predictions until the next reload.
type Options struct {
	Loader    Loader
	CacheSize int
	CacheTTL  time.Duration
	Locale    string
	Logger    *zap.Logger
}

// predictionCache is satisfied by both lru.Cache and expirable.LRU.
type predictionCache interface {
	Get(key string) (ml.Prediction, bool)
	Add(key string, value ml.Prediction) bool
	Purge()
}

type Service struct {
	loader    Loader
	formatter *wine.Formatter
	cache     predictionCache
	log       *zap.Logger

	mu         sync.RWMutex
	provider   ml.ModelProvider
	model      string
	generation uint64
	loadedAt   time.Time
	lastError  error

	listenerMu sync.RWMutex
	listeners  []Listener
	onReload   []func(Stats)

	predictions atomic.Int64
	cacheHits   atomic.Int64
	failures    atomic.Int64
	reloads     atomic.Int64
}

func NewService(opts Options) (*Service, error) {
	if opts.Loader == nil {
		return nil, errors.New("predict: loader required")
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 256
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	var cache predictionCache
	if opts.CacheTTL > 0 {
		cache = expirable.NewLRU[string, ml.Prediction](opts.CacheSize, nil, opts.CacheTTL)
	} else {
		c, err := lru.New[string, ml.Prediction](opts.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("predict: create cache: %w", err)
		}
		cache = c
	}
	return &Service{
		loader:    opts.Loader,
		formatter: wine.NewFormatter(opts.Locale),
		cache:     cache,
		log:       opts.Logger,
	}, nil
}

// Formatter the number and message formatter of the service locale
func (s *Service) Formatter() *wine.Formatter {
	return s.formatter
}

// Subscribe registers a listener for successful predictions.
func (s *Service) Subscribe(l Listener) {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	s.listeners = append(s.listeners, l)
}

// OnReload registers fn to run after each successful model load.
func (s *Service) OnReload(fn func(Stats)) {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	s.onReload = append(s.onReload, fn)
}

// Load replaces the active model. On failure the previous model stays active.
func (s *Service) Load() error {
	provider, model, err := s.loader()
	if err != nil {
		s.mu.Lock()
		s.lastError = err
		s.mu.Unlock()
		s.log.Error("model load failed", zap.Error(err))
		return err
	}

	s.mu.Lock()
	s.provider = provider
	s.model = model
	s.generation++
	s.loadedAt = time.Now().UTC()
	s.lastError = nil
	s.cache.Purge()
	s.mu.Unlock()

	s.reloads.Add(1)
	s.log.Info("model loaded", zap.String("model", model))

	stats := s.Stats()
	s.listenerMu.RLock()
	hooks := append([]func(Stats){}, s.onReload...)
	s.listenerMu.RUnlock()
	for _, fn := range hooks {
		fn(stats)
	}
	return nil
}

// Ready reports whether a model is available.
func (s *Service) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.provider != nil
}

// LoadError the error of the last failed load, nil after a successful one
func (s *Service) LoadError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

// Predict validates sample and asks the active model for its quality label.
func (s *Service) Predict(ctx context.Context, sample wine.Sample) (*Result, error) {
	if err := sample.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	provider, model, generation := s.provider, s.model, s.generation
	s.mu.RUnlock()
	if provider == nil {
		return nil, ErrNoModel
	}

	vector := sample.Vector()
	key := cacheKey(model, vector)
	prediction, cached := s.cache.Get(key)
	if cached {
		s.cacheHits.Add(1)
	} else {
		var err error
		prediction, err = provider.Predict(ctx, vector)
		if err != nil {
			s.failures.Add(1)
			s.log.Warn("prediction failed", zap.Error(err))
			return nil, err
		}
		s.remember(generation, key, prediction)
	}
	s.predictions.Add(1)

	result := &Result{
		ID:        uuid.NewString(),
		Sample:    sample,
		Label:     prediction.Label,
		Score:     prediction.Score,
		HasScore:  prediction.HasScore,
		Tier:      wine.Tier(prediction.Label),
		Message:   s.formatter.Message(prediction.Label, prediction.Score, prediction.HasScore),
		Model:     model,
		Cached:    cached,
		CreatedAt: time.Now().UTC(),
	}
	s.notify(ctx, result)
	return result, nil
}

func (s *Service) notify(ctx context.Context, result *Result) {
	s.listenerMu.RLock()
	listeners := append([]Listener{}, s.listeners...)
	s.listenerMu.RUnlock()

	for _, l := range listeners {
		if err := l(ctx, result); err != nil {
			s.log.Warn("prediction listener failed", zap.String("prediction", result.ID), zap.Error(err))
		}
	}
}

func (s *Service) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		Predictions: s.predictions.Load(),
		CacheHits:   s.cacheHits.Load(),
		Failures:    s.failures.Load(),
		Reloads:     s.reloads.Load(),
		ModelLoaded: s.provider != nil,
		Model:       s.model,
		LoadedAt:    s.loadedAt,
	}
	if s.lastError != nil {
		stats.LastError = s.lastError.Error()
	}
	return stats
}

// remember caches a prediction unless the model was replaced while it was computed.
func (s *Service) remember(generation uint64, key string, prediction ml.Prediction) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.generation != generation {
		return
	}
	s.cache.Add(key, prediction)
}

// cacheKey the model id and the exact vector; equal inputs on one model share a key.
func cacheKey(model string, vector []float64) string {
	parts := make([]string, len(vector))
	for i, v := range vector {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return model + "|" + strings.Join(parts, ",")
}
