package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/zpx01/video-scraper/internal/domain"
)

// Config holds all application configuration: the HTTP control plane, the
// Scraper/Storage domain settings, the goroutine worker pool, and logging.
type Config struct {
	Server  ServerConfig         `yaml:"server"`
	Scraper domain.ScraperConfig `yaml:"scraper"`
	Storage domain.StorageConfig `yaml:"storage"`
	Worker  WorkerConfig         `yaml:"worker"`
	Log     LogConfig            `yaml:"log"`
}

// ServerConfig holds HTTP control-plane configuration (§6).
type ServerConfig struct {
	Host         string        `yaml:"host" envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port         int           `yaml:"port" envconfig:"SERVER_PORT" default:"8080"`
	APIKey       string        `yaml:"api_key" envconfig:"API_KEY"`
	ReadTimeout  time.Duration `yaml:"read_timeout" envconfig:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `yaml:"write_timeout" envconfig:"SERVER_WRITE_TIMEOUT" default:"5m"`
}

// WorkerConfig sizes the Pipeline's goroutine pool (§5, §9). Note this is
// independent of Scraper.MaxConcurrentDownloads, which is the Downloader's
// own authoritative cap.
type WorkerConfig struct {
	Concurrency  int           `yaml:"concurrency" envconfig:"WORKER_CONCURRENCY" default:"4"`
	PollInterval time.Duration `yaml:"poll_interval" envconfig:"WORKER_POLL_INTERVAL" default:"5s"`

	// PersistJobs opts into the SQLite-backed job repository (§13) so job
	// state and stats survive a process restart. The in-memory repository
	// is used when this is false, the default.
	PersistJobs bool `yaml:"persist_jobs" envconfig:"WORKER_PERSIST_JOBS" default:"false"`
	// DBPath overrides where the SQLite database file is created when
	// PersistJobs is set. Defaults to "<storage.local_path>/.jobs.db".
	DBPath string `yaml:"db_path" envconfig:"WORKER_DB_PATH"`
}

// LogConfig controls structured-logging verbosity and encoding.
type LogConfig struct {
	Level  string `yaml:"level" envconfig:"LOG_LEVEL" default:"info"`
	Format string `yaml:"format" envconfig:"LOG_FORMAT" default:"json"`
}

// Load reads configuration from a YAML file (if configPath is non-empty)
// and then overlays environment variables, the same two-stage precedence
// the teacher config uses.
func Load(configPath string) (*Config, error) {
	cfg := &Config{
		Scraper: domain.DefaultScraperConfig(),
		Storage: domain.DefaultStorageConfig(),
	}

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set and internally
// consistent.
func (c *Config) Validate() error {
	if c.Server.APIKey == "" {
		return fmt.Errorf("API_KEY is required")
	}
	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("WORKER_CONCURRENCY must be >= 1")
	}
	if c.Scraper.MaxConcurrentDownloads < 1 {
		return fmt.Errorf("scraper max_concurrent_downloads must be >= 1")
	}
	if c.Worker.PersistJobs && c.Worker.DBPath == "" && c.Storage.LocalPath == "" {
		return fmt.Errorf("worker db_path is required when persist_jobs is set and storage local_path is empty")
	}
	switch c.Storage.Backend {
	case "local":
		if c.Storage.LocalPath == "" {
			return fmt.Errorf("storage local_path is required for the local backend")
		}
	case "s3":
		if c.Storage.S3Bucket == "" {
			return fmt.Errorf("storage s3_bucket is required for the s3 backend")
		}
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage gcs_bucket is required for the gcs backend")
		}
	default:
		return fmt.Errorf("%w: %s", domain.ErrUnknownBackend, c.Storage.Backend)
	}
	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
