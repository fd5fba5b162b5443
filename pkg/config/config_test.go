package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Listen != ":8080" {
		t.Errorf("expected :8080, got %s", cfg.Listen)
	}
	if cfg.Inference.URL != "http://127.0.0.1:11434" {
		t.Errorf("unexpected inference URL: %s", cfg.Inference.URL)
	}
	if cfg.Uploads.MaxAge != 24*time.Hour {
		t.Errorf("expected 24h upload retention, got %v", cfg.Uploads.MaxAge)
	}
	if cfg.SSH.Timeout != 30*time.Second {
		t.Errorf("expected 30s ssh timeout, got %v", cfg.SSH.Timeout)
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("TEST_SEARCH_KEY", "srch-test-123")

	content := `
listen: ":9090"
db_path: "test.db"
inference:
  url: http://localhost:11500
  default_model: llava
  request_timeout: 45s
uploads:
  dir: /tmp/opsbridge-uploads
  max_age: 6h
  sweep_interval: 15m
cache:
  enabled: true
  ttl: 30m
ssh:
  timeout: 10s
search:
  endpoint: https://search.example.com
  api_key: ${TEST_SEARCH_KEY}
`
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Listen != ":9090" {
		t.Errorf("expected :9090, got %s", cfg.Listen)
	}
	if cfg.Inference.DefaultModel != "llava" {
		t.Errorf("expected llava, got %s", cfg.Inference.DefaultModel)
	}
	if cfg.Inference.RequestTimeout != 45*time.Second {
		t.Errorf("expected 45s timeout, got %v", cfg.Inference.RequestTimeout)
	}
	if cfg.Uploads.MaxAge != 6*time.Hour {
		t.Errorf("expected 6h retention, got %v", cfg.Uploads.MaxAge)
	}
	if cfg.Search.APIKey != "srch-test-123" {
		t.Errorf("env var not expanded: got %s", cfg.Search.APIKey)
	}
	if cfg.Cache.TTL != 30*time.Minute {
		t.Errorf("expected 30m TTL, got %v", cfg.Cache.TTL)
	}
	// Unset sections keep their defaults.
	if !cfg.Audit.Enabled {
		t.Error("expected audit enabled by default")
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Error("expected error for missing file")
	}
}
