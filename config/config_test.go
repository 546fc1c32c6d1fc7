package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sample = `eventrelay:
  input:
    redis:
      addr: redis:6379
      key: raw_audit
      block_timeout: 2s
  pipeline:
    workers: 4
  publish:
    mode: http
    topic: audit-events
    http:
      url: http://bus.local/publish
      timeout: 3s
      headers:
        Authorization: Bearer abc
  rules:
    enabled: true
    path: rules/
  logging:
    enabled: true
    level: debug
`

func TestLoadConfigAndDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eventrelay.yml")
	if err := os.WriteFile(path, []byte(sample), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	ApplyDefaults(cfg)

	c := cfg.EventRelay
	if c.Input.Redis.Addr != "redis:6379" || c.Input.Redis.Key != "raw_audit" || c.Input.Redis.BlockTimeout != 2*time.Second {
		t.Fatalf("unexpected input config: %+v", c.Input.Redis)
	}
	if c.Pipeline.Workers != 4 {
		t.Fatalf("unexpected workers: %d", c.Pipeline.Workers)
	}
	if c.Publish.Mode != "http" || c.Publish.Topic != "audit-events" || c.Publish.HTTP.Timeout != 3*time.Second {
		t.Fatalf("unexpected publish config: %+v", c.Publish)
	}
	if c.Publish.HTTP.Headers["Authorization"] != "Bearer abc" {
		t.Fatalf("unexpected headers: %v", c.Publish.HTTP.Headers)
	}
	if c.Publish.SNS.RegionEnv != "AWS_REGION" || c.Publish.Redis.Addr != "redis:6379" {
		t.Fatalf("defaults not applied: %+v", c.Publish)
	}
	if !c.Rules.Enabled || c.Rules.Path != "rules/" || c.Logging.Level != "debug" {
		t.Fatalf("unexpected rules/logging: %+v %+v", c.Rules, c.Logging)
	}
	if c.Metrics.Addr != ":9108" {
		t.Fatalf("unexpected metrics addr: %s", c.Metrics.Addr)
	}
}

func TestApplyDefaultsOnEmptyConfig(t *testing.T) {
	var cfg Config
	ApplyDefaults(&cfg)
	c := cfg.EventRelay
	if c.Publish.Mode != "sns" || c.Pipeline.Workers != 8 || c.Input.Redis.Key != "audit_events" || c.Logging.Level != "info" {
		t.Fatalf("unexpected defaults: %+v", c)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
	path := filepath.Join(t.TempDir(), "bad.yml")
	os.WriteFile(path, []byte("eventrelay: ["), 0644)
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected parse error")
	}
}
