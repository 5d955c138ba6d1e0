// Package config loads importer settings from a .env file, an optional YAML
// file and LINKAGE_* environment variables, in that order of precedence
// (environment wins).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DB             string      `yaml:"db"`
	Corpus         string      `yaml:"corpus"`
	Threads        int         `yaml:"threads"`
	StructuralOnly bool        `yaml:"structural_only"`
	MetricsFile    string      `yaml:"metrics_file"`
	Log            LogConfig   `yaml:"log"`
	MinIO          MinIOConfig `yaml:"minio"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// MinIOConfig selects an object-store corpus. It is used when Bucket is set.
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// Enabled reports whether bundles should be read from the object store.
func (m MinIOConfig) Enabled() bool { return m.Bucket != "" }

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		DB:      ".linkage/linkage.db",
		Corpus:  "corpus",
		Threads: 4,
		Log:     LogConfig{Level: "info", Format: "json"},
		MinIO:   MinIOConfig{Endpoint: "localhost:9000"},
	}
}

// Load reads .env from the working directory (if present), then path (if
// non-empty), then environment overrides.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.DB = getEnv("LINKAGE_DB", c.DB)
	c.Corpus = getEnv("LINKAGE_CORPUS", c.Corpus)
	c.Threads = getEnvInt("LINKAGE_THREADS", c.Threads)
	c.StructuralOnly = getEnvBool("LINKAGE_STRUCTURAL_ONLY", c.StructuralOnly)
	c.MetricsFile = getEnv("LINKAGE_METRICS_FILE", c.MetricsFile)
	c.Log.Level = getEnv("LINKAGE_LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LINKAGE_LOG_FORMAT", c.Log.Format)
	c.MinIO.Endpoint = getEnv("LINKAGE_MINIO_ENDPOINT", c.MinIO.Endpoint)
	c.MinIO.AccessKey = getEnv("LINKAGE_MINIO_ACCESS_KEY", c.MinIO.AccessKey)
	c.MinIO.SecretKey = getEnv("LINKAGE_MINIO_SECRET_KEY", c.MinIO.SecretKey)
	c.MinIO.Bucket = getEnv("LINKAGE_MINIO_BUCKET", c.MinIO.Bucket)
	c.MinIO.Prefix = getEnv("LINKAGE_MINIO_PREFIX", c.MinIO.Prefix)
	c.MinIO.UseSSL = getEnvBool("LINKAGE_MINIO_USE_SSL", c.MinIO.UseSSL)
}

// Validate rejects settings the importer cannot run with.
func (c *Config) Validate() error {
	if c.Threads < 1 {
		return fmt.Errorf("config: threads must be at least 1, got %d", c.Threads)
	}
	if c.DB == "" {
		return fmt.Errorf("config: db path is required")
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
