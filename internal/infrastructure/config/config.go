package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Logging   LogConfig
	Storage   StorageConfig
	Persist   PersistConfig
	Mount     MountConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// StorageConfig holds the locations trees are mounted from and persisted to.
type StorageConfig struct {
	// Root is the directory uploads are persisted into and mounts are resolved against.
	Root string `envconfig:"STORAGE_ROOT" default:"./storage"`
}

// PersistConfig holds streaming persistence tuning.
type PersistConfig struct {
	ChunkSize      int   `envconfig:"PERSIST_CHUNK_SIZE" default:"1048576"`
	FlushThreshold int64 `envconfig:"PERSIST_FLUSH_THRESHOLD" default:"33554432"`
	// BytesPerSecond caps throughput per persist call; 0 disables the cap.
	BytesPerSecond int `envconfig:"PERSIST_BYTES_PER_SECOND" default:"0"`
}

// MountConfig holds filesystem mount configuration.
type MountConfig struct {
	// Snapshot walks the whole directory up front with fastwalk instead of listing
	// directory by directory.
	Snapshot bool `envconfig:"MOUNT_SNAPSHOT" default:"true"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
	// Global shares one budget across all clients instead of one per IP.
	Global            bool `envconfig:"RATE_LIMIT_GLOBAL" default:"false"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Validate checks values envconfig cannot express.
func (c *Config) Validate() error {
	if c.Persist.ChunkSize <= 0 {
		return fmt.Errorf("invalid config: PERSIST_CHUNK_SIZE must be positive, got %d", c.Persist.ChunkSize)
	}
	if c.Persist.FlushThreshold <= 0 {
		return fmt.Errorf("invalid config: PERSIST_FLUSH_THRESHOLD must be positive, got %d", c.Persist.FlushThreshold)
	}
	if c.Persist.BytesPerSecond < 0 {
		return fmt.Errorf("invalid config: PERSIST_BYTES_PER_SECOND must not be negative, got %d", c.Persist.BytesPerSecond)
	}
	if c.Storage.Root == "" {
		return fmt.Errorf("invalid config: STORAGE_ROOT must not be empty")
	}
	return nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		Storage: StorageConfig{
			Root: "./storage",
		},
		Persist: PersistConfig{
			ChunkSize:      1 << 20,
			FlushThreshold: 32 << 20,
			BytesPerSecond: 0,
		},
		Mount: MountConfig{
			Snapshot: true,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
