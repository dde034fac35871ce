// Package config loads gateway configuration from the environment, with an
// optional YAML file for per-provider overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"modelgate/internal/providers"
)

// DefaultBodySizeLimit caps request bodies at 10MB.
const DefaultBodySizeLimit int64 = 10 * 1024 * 1024

// Config holds the application configuration.
type Config struct {
	Server  ServerConfig
	Metrics MetricsConfig
	Logging LoggingConfig

	// Overrides adjusts provider base URLs and model lists from the optional
	// YAML file. Credentials never live here; they come from the environment.
	Overrides map[string]providers.Override
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port          string
	MasterKey     string
	BodySizeLimit int64
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled  bool
	Endpoint string
}

// LoggingConfig controls log output format.
type LoggingConfig struct {
	Format string // "json" (default) or "pretty"
	Level  string // "debug", "info" (default), "warn", "error"
}

// fileConfig is the YAML override file shape:
//
//	providers:
//	  gemini:
//	    base_url: "https://example.test/v1beta/openai"
//	    models: ["gemini-2.0-flash"]
type fileConfig struct {
	Providers map[string]struct {
		BaseURL string   `yaml:"base_url"`
		Models  []string `yaml:"models"`
	} `yaml:"providers"`
}

// Load reads configuration from a .env file (if present), the process
// environment, and an optional modelgate.yaml override file.
func Load() (*Config, error) {
	// Missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:          envOr("PORT", "8080"),
			MasterKey:     os.Getenv("MODELGATE_MASTER_KEY"),
			BodySizeLimit: DefaultBodySizeLimit,
		},
		Metrics: MetricsConfig{
			Enabled:  envBool("METRICS_ENABLED", true),
			Endpoint: envOr("METRICS_ENDPOINT", "/metrics"),
		},
		Logging: LoggingConfig{
			Format: envOr("LOG_FORMAT", "json"),
			Level:  envOr("LOG_LEVEL", "info"),
		},
	}

	if v := os.Getenv("BODY_SIZE_LIMIT"); v != "" {
		limit, err := strconv.ParseInt(v, 10, 64)
		if err != nil || limit <= 0 {
			return nil, fmt.Errorf("invalid BODY_SIZE_LIMIT %q", v)
		}
		cfg.Server.BodySizeLimit = limit
	}

	overrides, err := loadOverrides(envOr("MODELGATE_CONFIG", "modelgate.yaml"))
	if err != nil {
		return nil, err
	}
	cfg.Overrides = overrides

	return cfg, nil
}

// loadOverrides parses the optional YAML override file. A missing file is not
// an error; a malformed one is.
func loadOverrides(path string) (map[string]providers.Override, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var file fileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	overrides := make(map[string]providers.Override, len(file.Providers))
	for id, p := range file.Providers {
		overrides[id] = providers.Override{BaseURL: p.BaseURL, Models: p.Models}
	}
	return overrides, nil
}

// Credentials resolves provider secrets from the process environment. It
// satisfies providers.CredentialSource; the registry handles caching.
type Credentials struct{}

// Lookup returns the value of the named environment variable.
func (Credentials) Lookup(envKey string) string { return os.Getenv(envKey) }

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
