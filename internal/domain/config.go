package domain

import (
	"bytes"
	"encoding/json"
)

// ScraperConfig carries every tunable of the Fetcher/Downloader/Pipeline
// triad. It is immutable after construction — callers build one via a
// constructor or preset and pass it by value into the components that need
// it (§3).
type ScraperConfig struct {
	MaxConcurrentDownloads int      `json:"max_concurrent_downloads"`
	MaxRequestsPerDomain   int      `json:"max_requests_per_domain"`
	RequestTimeoutSecs     int      `json:"request_timeout_secs"`
	ChunkSizeBytes         int      `json:"chunk_size_bytes"`
	EnableResume           bool     `json:"enable_resume"`
	MaxRetries             int      `json:"max_retries"`
	RetryDelayMs           int      `json:"retry_delay_ms"`
	UserAgent              string   `json:"user_agent"`
	RespectRobotsTxt       bool     `json:"respect_robots_txt"`
	RateLimitPerSecond     float64  `json:"rate_limit_per_second"`
	EnableCaching          bool     `json:"enable_caching"`
	CacheDir               string   `json:"cache_dir"`
	VerifyChecksums        bool     `json:"verify_checksums"`
	MaxFileSizeBytes       int64    `json:"max_file_size_bytes"`
	MinFileSizeBytes       int64    `json:"min_file_size_bytes"`
	AllowedFormats         []string `json:"allowed_formats"`
	ProxyURL               string   `json:"proxy_url,omitempty"`
	WorkerThreads          int      `json:"worker_threads"`
	EnableCompression      bool     `json:"enable_compression"`
	PoolSizePerHost        int      `json:"pool_size_per_host"`
	IdleTimeoutSecs        int      `json:"idle_timeout_secs"`
}

// DefaultScraperConfig mirrors the original implementation's baseline
// defaults (original_source/src/config.rs).
func DefaultScraperConfig() ScraperConfig {
	return ScraperConfig{
		MaxConcurrentDownloads: 32,
		MaxRequestsPerDomain:   8,
		RequestTimeoutSecs:     300,
		ChunkSizeBytes:         8 * 1024 * 1024,
		EnableResume:           true,
		MaxRetries:             5,
		RetryDelayMs:           1000,
		UserAgent:              "VideoScraper/0.1.0 (+https://github.com/zpx01/video-scraper)",
		RespectRobotsTxt:       true,
		RateLimitPerSecond:     2.0,
		EnableCaching:          true,
		CacheDir:               ".cache/videoscraper",
		VerifyChecksums:        true,
		AllowedFormats:         []string{"mp4", "webm", "mkv", "m3u8", "ts"},
		WorkerThreads:          0,
		EnableCompression:      true,
		PoolSizePerHost:        16,
		IdleTimeoutSecs:        90,
	}
}

// HighPerformanceScraperConfig trades politeness for throughput.
func HighPerformanceScraperConfig() ScraperConfig {
	c := DefaultScraperConfig()
	c.MaxConcurrentDownloads = 128
	c.MaxRequestsPerDomain = 16
	c.RequestTimeoutSecs = 600
	c.ChunkSizeBytes = 16 * 1024 * 1024
	c.MaxRetries = 10
	c.RetryDelayMs = 500
	c.RespectRobotsTxt = false
	c.RateLimitPerSecond = 50.0
	c.PoolSizePerHost = 32
	c.IdleTimeoutSecs = 120
	return c
}

// ConservativeScraperConfig respects rate limits aggressively at the cost of
// throughput.
func ConservativeScraperConfig() ScraperConfig {
	c := DefaultScraperConfig()
	c.MaxConcurrentDownloads = 4
	c.MaxRequestsPerDomain = 2
	c.RequestTimeoutSecs = 120
	c.ChunkSizeBytes = 4 * 1024 * 1024
	c.MaxRetries = 3
	c.RetryDelayMs = 2000
	c.RateLimitPerSecond = 0.5
	c.AllowedFormats = []string{"mp4", "webm", "mkv"}
	c.PoolSizePerHost = 8
	c.IdleTimeoutSecs = 60
	return c
}

// ToJSON renders the config as pretty JSON (§6).
func (c ScraperConfig) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// ScraperConfigFromJSON parses a ScraperConfig, rejecting unknown fields
// (§6).
func ScraperConfigFromJSON(data []byte) (ScraperConfig, error) {
	var c ScraperConfig
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		return ScraperConfig{}, NewScraperError(KindConfig, "ScraperConfigFromJSON", err)
	}
	return c, nil
}

// StorageConfig selects and configures one of the Local/S3/GCS storage
// backends (§4.5).
type StorageConfig struct {
	Backend                 string `json:"backend"`
	LocalPath               string `json:"local_path"`
	S3Bucket                string `json:"s3_bucket,omitempty"`
	S3Region                string `json:"s3_region,omitempty"`
	S3Endpoint              string `json:"s3_endpoint,omitempty"`
	GCSBucket               string `json:"gcs_bucket,omitempty"`
	GCSProject              string `json:"gcs_project,omitempty"`
	KeyPrefix               string `json:"key_prefix"`
	EnableMultipart         bool   `json:"enable_multipart"`
	MultipartThresholdBytes int64  `json:"multipart_threshold_bytes"`
	MultipartPartSizeBytes  int64  `json:"multipart_part_size_bytes"`
}

// DefaultStorageConfig mirrors original_source/src/config.rs's
// StorageConfig::default.
func DefaultStorageConfig() StorageConfig {
	return StorageConfig{
		Backend:                 "local",
		LocalPath:               "./downloads",
		S3Region:                "us-east-1",
		KeyPrefix:               "videos/",
		EnableMultipart:         true,
		MultipartThresholdBytes: 100 * 1024 * 1024,
		MultipartPartSizeBytes:  64 * 1024 * 1024,
	}
}

// LocalStorageConfig builds a local-backend StorageConfig rooted at path.
func LocalStorageConfig(path string) StorageConfig {
	c := DefaultStorageConfig()
	c.Backend = "local"
	c.LocalPath = path
	return c
}

// S3StorageConfig builds an S3-backend StorageConfig. region/endpoint/prefix
// default as in the original when empty.
func S3StorageConfig(bucket, region, endpoint, keyPrefix string) StorageConfig {
	c := DefaultStorageConfig()
	c.Backend = "s3"
	c.S3Bucket = bucket
	if region != "" {
		c.S3Region = region
	}
	c.S3Endpoint = endpoint
	if keyPrefix != "" {
		c.KeyPrefix = keyPrefix
	}
	return c
}

// GCSStorageConfig builds a GCS-backend StorageConfig.
func GCSStorageConfig(bucket, project, keyPrefix string) StorageConfig {
	c := DefaultStorageConfig()
	c.Backend = "gcs"
	c.GCSBucket = bucket
	c.GCSProject = project
	if keyPrefix != "" {
		c.KeyPrefix = keyPrefix
	}
	return c
}

// ToJSON renders the config as pretty JSON (§6).
func (c StorageConfig) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// StorageConfigFromJSON parses a StorageConfig, rejecting unknown fields.
func StorageConfigFromJSON(data []byte) (StorageConfig, error) {
	var c StorageConfig
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		return StorageConfig{}, NewScraperError(KindConfig, "StorageConfigFromJSON", err)
	}
	return c, nil
}
