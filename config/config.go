// Package config loads the application configuration from YAML with environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Http struct {
		Port           int           `yaml:"port"`
		Timeout        time.Duration `yaml:"timeout"`
		AllowedOrigins []string      `yaml:"allowed_origins"`
		MaxBodyBytes   int64         `yaml:"max_body_bytes"`
	} `yaml:"http"`
	Log struct {
		Level      string `yaml:"level"`
		Format     string `yaml:"format"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"log"`
	Bundle struct {
		Archive     string `yaml:"archive"`
		Dir         string `yaml:"dir"`
		ModelFile   string `yaml:"model_file"`
		DatasetFile string `yaml:"dataset_file"`
	} `yaml:"bundle"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	ML struct {
		ModelType     string        `yaml:"model_type"`
		ModelPath     string        `yaml:"model_path"`
		MaxTreeDepth  int           `yaml:"max_tree_depth"`
		K             int           `yaml:"k"`
		RemoteURL     string        `yaml:"remote_url"`
		RemoteTimeout time.Duration `yaml:"remote_timeout"`
		Watch         bool          `yaml:"watch"`
		CacheSize     int           `yaml:"cache_size"`
		CacheTTL      time.Duration `yaml:"cache_ttl"`
		Training      struct {
			TestRatio float64 `yaml:"test_ratio"`
			Seed      int64   `yaml:"seed"`
		} `yaml:"training"`
	} `yaml:"ml"`
	UI struct {
		Title             string `yaml:"title"`
		Locale            string `yaml:"locale"`
		PageSize          int    `yaml:"page_size"`
		ModelDownloadName string `yaml:"model_download_name"`
	} `yaml:"ui"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var c Config
	c.Http.Port = 8501
	c.Http.Timeout = 30 * time.Second
	c.Http.AllowedOrigins = []string{"*"}
	c.Http.MaxBodyBytes = 1 << 20

	c.Log.Level = "info"
	c.Log.Format = "console"
	c.Log.MaxSizeMB = 50
	c.Log.MaxBackups = 3
	c.Log.MaxAgeDays = 28

	c.Bundle.Archive = "wine.zip"
	c.Bundle.Dir = "wine"
	c.Bundle.ModelFile = "wine.model.json"
	c.Bundle.DatasetFile = "winequality-red.csv"

	c.Database.Path = "data/predictions.db"

	c.ML.ModelType = "decision_tree"
	c.ML.MaxTreeDepth = 8
	c.ML.K = 15
	c.ML.RemoteTimeout = 10 * time.Second
	c.ML.Watch = true
	c.ML.CacheSize = 256
	c.ML.Training.TestRatio = 0.2
	c.ML.Training.Seed = 123

	c.UI.Title = "Wine Quality Prediction App"
	c.UI.Locale = "en"
	c.UI.PageSize = 50
	c.UI.ModelDownloadName = "winequality_model.json"
	return &c
}

// Load reads path over the defaults. A missing file is not an error when optional is true.
func Load(path string, optional bool) (*Config, error) {
	config := Default()
	if path != "" {
		file, err := os.Open(path)
		switch {
		case err == nil:
			defer file.Close()
			if err := yaml.NewDecoder(file).Decode(config); err != nil {
				return nil, fmt.Errorf("decode %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist) && optional:
		default:
			return nil, err
		}
	}
	if err := config.applyEnv(); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("WINE_HTTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("WINE_HTTP_PORT: %w", err)
		}
		c.Http.Port = port
	}
	c.Log.Level = getEnv("WINE_LOG_LEVEL", c.Log.Level)
	c.Bundle.Dir = getEnv("WINE_BUNDLE_DIR", c.Bundle.Dir)
	c.ML.ModelType = getEnv("WINE_MODEL_TYPE", c.ML.ModelType)
	c.ML.ModelPath = getEnv("WINE_MODEL_PATH", c.ML.ModelPath)
	c.ML.RemoteURL = getEnv("WINE_REMOTE_URL", c.ML.RemoteURL)
	c.Database.Path = getEnv("WINE_DB_PATH", c.Database.Path)
	return nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	if c.Http.Port <= 0 || c.Http.Port > 65535 {
		return fmt.Errorf("http.port %d out of range", c.Http.Port)
	}
	if c.Bundle.ModelFile == "" || c.Bundle.DatasetFile == "" {
		return errors.New("bundle.model_file and bundle.dataset_file are required")
	}
	switch c.ML.ModelType {
	case "decision_tree", "knn", "":
	case "remote":
		if c.ML.RemoteURL == "" {
			return errors.New("ml.remote_url is required for the remote model")
		}
	default:
		return fmt.Errorf("ml.model_type %q is not supported", c.ML.ModelType)
	}
	if c.UI.PageSize <= 0 {
		c.UI.PageSize = 50
	}
	return nil
}

// ModelPath path of the model artifact; ml.model_path wins over the bundle location
func (c *Config) ModelPath() string {
	if c.ML.ModelPath != "" {
		return c.ML.ModelPath
	}
	return filepath.Join(c.Bundle.Dir, c.Bundle.ModelFile)
}

// DatasetPath path of the extracted dataset
func (c *Config) DatasetPath() string {
	return filepath.Join(c.Bundle.Dir, c.Bundle.DatasetFile)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
