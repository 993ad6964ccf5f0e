// Package config 加载 profitrate 的 YAML 配置
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v2"
)

// DefaultTrainRatio is the training fraction of the original analysis (20% train, 80% held-out).
const DefaultTrainRatio = 0.2

type Config struct {
	Dataset   DatasetConfig   `yaml:"dataset"`
	Training  TrainingConfig  `yaml:"training"`
	Model     ModelConfig     `yaml:"model"`
	Http      HttpConfig      `yaml:"http"`
	Predictor PredictorConfig `yaml:"predictor"`
	Database  DatabaseConfig  `yaml:"database"`
	Log       LogConfig       `yaml:"log"`
	Locale    LocaleConfig    `yaml:"locale"`
}

type DatasetConfig struct {
	Path         string `yaml:"path"`
	Sheet        string `yaml:"sheet"`
	ProfitColumn string `yaml:"profit_column"`
	RateColumn   string `yaml:"rate_column"`
	// Encoding of CSV input, e.g. "gbk". Empty means UTF-8.
	Encoding string `yaml:"encoding"`
}

type TrainingConfig struct {
	TrainRatio float64 `yaml:"train_ratio"`
	// Seed is nil when the split should be drawn from the clock.
	Seed     *int64 `yaml:"seed"`
	Watch    bool   `yaml:"watch"`
	Schedule string `yaml:"schedule"`
}

type ModelConfig struct {
	Path string `yaml:"path"`
}

type HttpConfig struct {
	Port           int           `yaml:"port"`
	Timeout        time.Duration `yaml:"timeout"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes"`
}

type PredictorConfig struct {
	CacheSize int `yaml:"cache_size"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

type LocaleConfig struct {
	Default string `yaml:"default"`
}

// Default returns the configuration used when no file is found.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads the config at path. An empty path searches config.yaml and ../config.yaml
// and falls back to defaults when neither exists.
func Load(path string) (*Config, error) {
	if path == "" {
		for _, p := range []string{"config.yaml", filepath.Join("..", "config.yaml")} {
			if _, err := os.Stat(p); err == nil {
				return loadFile(p)
			}
		}
		return Default(), nil
	}
	return loadFile(path)
}

func loadFile(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	cfg := &Config{}
	if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that defaults cannot repair.
func (c *Config) Validate() error {
	if c.Training.TrainRatio <= 0 || c.Training.TrainRatio >= 1 {
		return fmt.Errorf("training.train_ratio must be in (0,1), got %v", c.Training.TrainRatio)
	}
	if c.Http.Port < 0 || c.Http.Port > 65535 {
		return fmt.Errorf("http.port out of range: %d", c.Http.Port)
	}
	if c.Dataset.ProfitColumn == c.Dataset.RateColumn {
		return errors.New("dataset.profit_column and dataset.rate_column must differ")
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Dataset.Path == "" {
		cfg.Dataset.Path = "cs1.xlsx"
	}
	if cfg.Dataset.ProfitColumn == "" {
		cfg.Dataset.ProfitColumn = "profit"
	}
	if cfg.Dataset.RateColumn == "" {
		cfg.Dataset.RateColumn = "rate"
	}
	if cfg.Training.TrainRatio == 0 {
		cfg.Training.TrainRatio = DefaultTrainRatio
	}
	if cfg.Model.Path == "" {
		cfg.Model.Path = "model.json"
	}
	if cfg.Http.Port == 0 {
		cfg.Http.Port = 8501
	}
	if cfg.Http.Timeout <= 0 {
		cfg.Http.Timeout = 30 * time.Second
	}
	if len(cfg.Http.AllowedOrigins) == 0 {
		cfg.Http.AllowedOrigins = []string{"*"}
	}
	if cfg.Http.MaxBodyBytes <= 0 {
		cfg.Http.MaxBodyBytes = 1 << 16
	}
	if cfg.Predictor.CacheSize <= 0 {
		cfg.Predictor.CacheSize = 1024
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "profitrate.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.MaxSizeMB <= 0 {
		cfg.Log.MaxSizeMB = 100
	}
	if cfg.Locale.Default == "" {
		cfg.Locale.Default = "en"
	}
}
