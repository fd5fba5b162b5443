package config

import (
	"fmt"
	"os"
	"time"

	"github.com/opsbridge-ai/opsbridge/pkg/models"
	"gopkg.in/yaml.v3"
)

// Config holds all opsbridge configuration.
type Config struct {
	Listen    string             `yaml:"listen"`
	DBPath    string             `yaml:"db_path"`
	Inference InferenceConfig    `yaml:"inference"`
	Uploads   UploadsConfig      `yaml:"uploads"`
	Cache     CacheConfig        `yaml:"cache"`
	Audit     models.AuditConfig `yaml:"audit"`
	SSH       SSHConfig          `yaml:"ssh"`
	Search    SearchConfig       `yaml:"search"`
}

// InferenceConfig points at the local inference server.
type InferenceConfig struct {
	URL            string        `yaml:"url"`
	DefaultModel   string        `yaml:"default_model"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// UploadsConfig controls the transient artifact store and its purge policy.
type UploadsConfig struct {
	Dir           string        `yaml:"dir"`
	MaxAge        time.Duration `yaml:"max_age"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// CacheConfig controls the non-streaming reply cache.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl"`
}

// SSHConfig controls remote command execution.
type SSHConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// SearchConfig holds placeholder credentials for a future search
// integration. Unused by the current stub provider.
type SearchConfig struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Listen: ":8080",
		DBPath: "opsbridge.db",
		Inference: InferenceConfig{
			URL:            "http://127.0.0.1:11434",
			DefaultModel:   "llama3",
			RequestTimeout: 2 * time.Minute,
		},
		Uploads: UploadsConfig{
			Dir:           "uploads",
			MaxAge:        24 * time.Hour,
			SweepInterval: time.Hour,
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     time.Hour,
		},
		Audit: models.AuditConfig{
			Enabled:       true,
			RetentionDays: 30,
			MaxBodySize:   8192,
			Include:       []string{"prompts", "responses"},
		},
		SSH: SSHConfig{
			Timeout: 30 * time.Second,
		},
	}
}

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}
