// Package config loads application configuration from environment variables.
// All variables use the LEARN_ prefix.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const mb = 1 << 20

// Config holds all application configuration.
type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	Cache          CacheConfig
	Upload         UploadConfig
	Reference      ReferenceConfig
	Log            LogConfig
	CurriculumPath string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int
	Host string
}

// DatabaseConfig holds PostgreSQL connection settings. An empty URL keeps
// curricula and audit events in memory.
type DatabaseConfig struct {
	URL      string
	MaxConns int
	MinConns int
}

// CacheConfig holds Dragonfly/Redis connection settings. An empty URL
// disables upload status fan-out and reference caching.
type CacheConfig struct {
	URL       string
	UploadTTL time.Duration
}

// UploadConfig holds settings for the media upload collaborator.
type UploadConfig struct {
	Endpoint          string
	Token             string
	Mock              bool // accept uploads locally without a collaborator
	MaxDocumentBytes  int64
	MaxVideoBytes     int64
	VideoTypes        []string
	DocumentTypes     []string
	PollInterval      time.Duration
	ProcessingTimeout time.Duration
	RequestTimeout    time.Duration
}

// ReferenceConfig holds settings for the reference-data service that lists
// quizzes, assignments, instructors and similar dropdown entities.
type ReferenceConfig struct {
	BaseURL  string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables with LEARN_ prefix.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("LEARN_SERVER_PORT", 8080),
			Host: envStr("LEARN_SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			URL:      envStr("LEARN_DATABASE_URL", ""),
			MaxConns: envInt("LEARN_DATABASE_MAX_CONNS", 25),
			MinConns: envInt("LEARN_DATABASE_MIN_CONNS", 5),
		},
		Cache: CacheConfig{
			URL:       envStr("LEARN_CACHE_URL", ""),
			UploadTTL: envDuration("LEARN_CACHE_UPLOAD_TTL", time.Hour),
		},
		Upload: UploadConfig{
			Endpoint:          envStr("LEARN_UPLOAD_ENDPOINT", ""),
			Token:             envStr("LEARN_UPLOAD_TOKEN", ""),
			Mock:              envBool("LEARN_UPLOAD_MOCK", false),
			MaxDocumentBytes:  envInt64("LEARN_UPLOAD_MAX_DOCUMENT_BYTES", 50*mb),
			MaxVideoBytes:     envInt64("LEARN_UPLOAD_MAX_VIDEO_BYTES", 500*mb),
			VideoTypes:        envList("LEARN_UPLOAD_VIDEO_TYPES", []string{"video/*"}),
			DocumentTypes:     envList("LEARN_UPLOAD_DOCUMENT_TYPES", []string{"application/pdf"}),
			PollInterval:      envDuration("LEARN_UPLOAD_POLL_INTERVAL", 3*time.Second),
			ProcessingTimeout: envDuration("LEARN_UPLOAD_PROCESSING_TIMEOUT", 10*time.Minute),
			RequestTimeout:    envDuration("LEARN_UPLOAD_REQUEST_TIMEOUT", 5*time.Minute),
		},
		Reference: ReferenceConfig{
			BaseURL:  envStr("LEARN_REFERENCE_URL", ""),
			Timeout:  envDuration("LEARN_REFERENCE_TIMEOUT", 5*time.Second),
			CacheTTL: envDuration("LEARN_REFERENCE_CACHE_TTL", 5*time.Minute),
		},
		Log: LogConfig{
			Level:  envStr("LEARN_LOG_LEVEL", "info"),
			Format: envStr("LEARN_LOG_FORMAT", "json"),
		},
		CurriculumPath: envStr("LEARN_CURRICULUM_PATH", "./curricula"),
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("LEARN_SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Upload.Endpoint == "" && !c.Upload.Mock {
		return fmt.Errorf("LEARN_UPLOAD_ENDPOINT is required unless LEARN_UPLOAD_MOCK is set")
	}

	if c.Upload.MaxDocumentBytes <= 0 || c.Upload.MaxVideoBytes <= 0 {
		return fmt.Errorf("upload size limits must be positive")
	}

	if c.Upload.PollInterval <= 0 || c.Upload.ProcessingTimeout < c.Upload.PollInterval {
		return fmt.Errorf("LEARN_UPLOAD_PROCESSING_TIMEOUT must be at least one poll interval")
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LEARN_LOG_LEVEL must be debug, info, warn or error, got %q", c.Log.Level)
	}

	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("LEARN_LOG_FORMAT must be 'json' or 'text', got %q", c.Log.Format)
	}

	return nil
}

// HasDatabase returns true if a PostgreSQL URL is configured.
func (c *Config) HasDatabase() bool {
	return c.Database.URL != ""
}

// HasCache returns true if a Redis/Dragonfly URL is configured.
func (c *Config) HasCache() bool {
	return c.Cache.URL != ""
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return strings.EqualFold(v, "true") || v == "1"
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// envList splits a comma-separated value, dropping empty entries.
func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
