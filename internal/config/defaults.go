package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.MaxUploadBytes == 0 {
		cfg.Server.MaxUploadBytes = 50 << 20
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 5 * time.Minute
	}
	if cfg.Server.RateLimit > 0 && cfg.Server.RateBurst == 0 {
		cfg.Server.RateBurst = 1
	}
	if cfg.Artifacts.Source == "" {
		cfg.Artifacts.Source = "local"
	}
	if cfg.Artifacts.Dir == "" {
		cfg.Artifacts.Dir = "/usr/local/var/clusterizer/data/artifacts"
	}
	if cfg.Artifacts.Scaler == "" {
		cfg.Artifacts.Scaler = "scaler.json"
	}
	if cfg.Artifacts.Embedding == "" {
		cfg.Artifacts.Embedding = "embedding.json.zst"
	}
	if cfg.Artifacts.Centroids == "" {
		cfg.Artifacts.Centroids = "centroids.json"
	}
	if cfg.Embedding.Neighbors == 0 {
		cfg.Embedding.Neighbors = 15
	}
	if cfg.Embedding.Epsilon == 0 {
		cfg.Embedding.Epsilon = 1e-10
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/clusterizer/data/db/runs.db"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = "/usr/local/var/clusterizer/data/indices/clients"
	}
	if cfg.Storage.RetentionDays == 0 {
		cfg.Storage.RetentionDays = 90
	}
	if cfg.Storage.RetentionSchedule == "" {
		cfg.Storage.RetentionSchedule = "0 3 * * *"
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".csv", ".xlsx"}
	}
	if cfg.Watch.Format == "" {
		cfg.Watch.Format = "csv"
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
