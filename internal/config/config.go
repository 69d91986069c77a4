package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Config represents runtime configuration for the service.
type Config struct {
	ServerAddress string        `json:"server_address"`
	Redis         RedisConfig   `json:"redis"`
	Storage       StorageConfig `json:"storage"`
	Index         IndexConfig   `json:"index"`
}

type RedisConfig struct {
	// Addr is a host:port connection string. The REDIS_CONNECTION_STRING
	// environment variable overrides it.
	Addr         string `json:"addr"`
	QueueName    string `json:"queue_name"`
	LogsListName string `json:"logs_list_name"`
	// RetryIntervalSec is the fixed reconnect interval in seconds.
	RetryIntervalSec int `json:"retry_interval_sec"`
}

type StorageConfig struct {
	// UploadDir is the storage root. The UPLOAD_DIR environment variable
	// overrides it.
	UploadDir string `json:"upload_dir"`
}

type IndexConfig struct {
	Driver   string `json:"driver"`
	DSN      string `json:"dsn"`
	Username string `json:"username"`
	Password string `json:"password"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	DBName   string `json:"db_name"`
	Params   string `json:"params"`
}

// RetryInterval returns the reconnect interval as a duration.
func (c *Config) RetryInterval() time.Duration {
	if c.Redis.RetryIntervalSec <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Redis.RetryIntervalSec) * time.Second
}

// Load reads configuration from the provided path (defaults to config.json).
// A missing default file is not an error; defaults and environment overrides
// still apply.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	cfg := &Config{}
	file, err := os.Open(absPath)
	if err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("open config %s: %w", absPath, err)
		}
	} else {
		defer file.Close()
		if err := json.NewDecoder(file).Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}

	applyDefaults(cfg)
	applyEnv(cfg)

	if !filepath.IsAbs(cfg.Storage.UploadDir) {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
		cfg.Storage.UploadDir = filepath.Join(wd, cfg.Storage.UploadDir)
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.ServerAddress == "" {
		cfg.ServerAddress = ":8090"
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Redis.QueueName == "" {
		cfg.Redis.QueueName = "file_processing_queue"
	}
	if cfg.Redis.LogsListName == "" {
		cfg.Redis.LogsListName = "application_logs"
	}
	if cfg.Redis.RetryIntervalSec <= 0 {
		cfg.Redis.RetryIntervalSec = 10
	}
	if cfg.Storage.UploadDir == "" {
		cfg.Storage.UploadDir = filepath.Join("data", "uploaded_files")
	}
	if cfg.Index.Driver == "" {
		cfg.Index.Driver = "sqlite3"
	}
	if cfg.Index.DSN == "" && cfg.Index.Driver == "sqlite3" {
		cfg.Index.DSN = filepath.Join("data", "file_index.db")
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("REDIS_CONNECTION_STRING"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("UPLOAD_DIR"); v != "" {
		cfg.Storage.UploadDir = v
	}
}
