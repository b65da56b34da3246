// Package config provides configuration loading and structs for the clusterizer service.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	// LogFile receives log output in addition to stderr when set.
	LogFile   string          `yaml:"log_file"`
	Server    ServerConfig    `yaml:"server"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Features  FeaturesConfig  `yaml:"features"`
	Storage   StorageConfig   `yaml:"storage"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// RateLimit is the sustained number of cluster requests per second; 0 disables limiting.
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
}

// ArtifactsConfig locates the frozen transform artifacts.
type ArtifactsConfig struct {
	Source    string `yaml:"source"` // local, s3 or minio
	Dir       string `yaml:"dir"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
	Scaler    string `yaml:"scaler"`
	Embedding string `yaml:"embedding"`
	Centroids string `yaml:"centroids"`
}

// EmbeddingConfig holds projection settings.
type EmbeddingConfig struct {
	Neighbors    int     `yaml:"neighbors"`
	Epsilon      float64 `yaml:"epsilon"`
	Workers      int     `yaml:"workers"`
	OODThreshold float64 `yaml:"ood_threshold"`
}

// FeaturesConfig holds feature builder settings.
type FeaturesConfig struct {
	// ReferenceDate anchors tenure and age (YYYY-MM-DD). Empty means today.
	ReferenceDate string `yaml:"reference_date"`
	TaxonomyPath  string `yaml:"taxonomy_path"`
}

// StorageConfig holds paths for the run database and client index.
type StorageConfig struct {
	DatabasePath      string `yaml:"database_path"`
	BleveIndexPath    string `yaml:"bleve_index_path"`
	RetentionDays     int    `yaml:"retention_days"`
	RetentionSchedule string `yaml:"retention_schedule"`
}

// WatchConfig holds drop folder settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Recursive   *bool    `yaml:"recursive"`
	// OutputDir receives result files; empty writes them next to the input.
	OutputDir string `yaml:"output_dir"`
	Format    string `yaml:"format"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// ParseReferenceDate returns the configured reference date, or the zero time when unset.
func (f *FeaturesConfig) ParseReferenceDate() (time.Time, error) {
	if f.ReferenceDate == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", f.ReferenceDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid features.reference_date %q: %w", f.ReferenceDate, err)
	}
	return t, nil
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.BleveIndexPath = expandPath(cfg.Storage.BleveIndexPath, configDir)
	cfg.Artifacts.Dir = expandPath(cfg.Artifacts.Dir, configDir)
	if cfg.Features.TaxonomyPath != "" {
		cfg.Features.TaxonomyPath = expandPath(cfg.Features.TaxonomyPath, configDir)
	}
	if cfg.LogFile != "" {
		cfg.LogFile = expandPath(cfg.LogFile, configDir)
	}
	if cfg.Watch.OutputDir != "" {
		cfg.Watch.OutputDir = expandPath(cfg.Watch.OutputDir, configDir)
	}
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	switch c.Artifacts.Source {
	case "local", "s3", "minio":
	default:
		return fmt.Errorf("invalid artifacts.source %q (want local, s3 or minio)", c.Artifacts.Source)
	}
	if c.Artifacts.Source != "local" && c.Artifacts.Bucket == "" {
		return fmt.Errorf("artifacts.bucket is required for source %q", c.Artifacts.Source)
	}
	if c.Embedding.Neighbors < 1 {
		return fmt.Errorf("embedding.neighbors must be at least 1, got %d", c.Embedding.Neighbors)
	}
	if c.Embedding.OODThreshold < 0 {
		return fmt.Errorf("embedding.ood_threshold must not be negative")
	}
	if _, err := c.Features.ParseReferenceDate(); err != nil {
		return err
	}
	return nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
