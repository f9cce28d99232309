// Package config handles configuration loading for the SlicePaint server.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the server configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Cache   CacheConfig   `yaml:"cache"`
	Paint   PaintConfig   `yaml:"paint"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// StorageConfig contains persistence settings.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	VolumeDir    string `yaml:"volume_dir"`
}

// CacheConfig contains caching settings.
type CacheConfig struct {
	SnapshotSizeMB     int `yaml:"snapshot_size_mb"`
	SnapshotTTLMinutes int `yaml:"snapshot_ttl_minutes"`
	CanvasPoolSize     int `yaml:"canvas_pool_size"`
}

// PaintConfig contains brush and reconciliation settings pushed to clients.
type PaintConfig struct {
	DefaultBrushSize int `yaml:"default_brush_size"`
	QuietMillis      int `yaml:"quiet_millis"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		// Return default config if file doesn't exist
		return DefaultConfig(), nil
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Apply defaults for missing values
	applyDefaults(&cfg)

	return &cfg, nil
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8080,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Storage: StorageConfig{
			DatabasePath: "./data/masks.sqlite",
			VolumeDir:    "./data/volumes",
		},
		Cache: CacheConfig{
			SnapshotSizeMB:     256,
			SnapshotTTLMinutes: 10,
			CanvasPoolSize:     64,
		},
		Paint: PaintConfig{
			DefaultBrushSize: 3,
			QuietMillis:      500,
		},
	}
}

func applyDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaults.Server.Port
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = defaults.Server.CORSOrigins
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = defaults.Storage.DatabasePath
	}
	if cfg.Storage.VolumeDir == "" {
		cfg.Storage.VolumeDir = defaults.Storage.VolumeDir
	}
	if cfg.Cache.SnapshotSizeMB == 0 {
		cfg.Cache.SnapshotSizeMB = defaults.Cache.SnapshotSizeMB
	}
	if cfg.Cache.SnapshotTTLMinutes == 0 {
		cfg.Cache.SnapshotTTLMinutes = defaults.Cache.SnapshotTTLMinutes
	}
	if cfg.Cache.CanvasPoolSize == 0 {
		cfg.Cache.CanvasPoolSize = defaults.Cache.CanvasPoolSize
	}
	if cfg.Paint.DefaultBrushSize == 0 {
		cfg.Paint.DefaultBrushSize = defaults.Paint.DefaultBrushSize
	}
	if cfg.Paint.QuietMillis == 0 {
		cfg.Paint.QuietMillis = defaults.Paint.QuietMillis
	}
}
