package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	EventRelay EventRelayConfig `yaml:"eventrelay"`
}

// EventRelayConfig is the project configuration.
type EventRelayConfig struct {
	Input    InputConfig    `yaml:"input"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Publish  PublishConfig  `yaml:"publish"`
	Rules    RulesConfig    `yaml:"rules"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// InputConfig controls the input reader.
type InputConfig struct {
	Redis RedisConfig `yaml:"redis"`
}

// PipelineConfig controls pipeline behavior.
type PipelineConfig struct {
	Workers int `yaml:"workers"`
}

// RedisConfig controls Redis input.
type RedisConfig struct {
	Addr          string        `yaml:"addr"`
	Password      string        `yaml:"password"`
	DB            int           `yaml:"db"`
	Key           string        `yaml:"key"`
	BlockTimeout  time.Duration `yaml:"block_timeout"`
	DeadLetterKey string        `yaml:"dead_letter_key"`
}

// PublishConfig selects and configures the message bus.
type PublishConfig struct {
	Mode  string           `yaml:"mode"` // sns|redis|http|file
	Topic string           `yaml:"topic"`
	SNS   SNSConfig        `yaml:"sns"`
	Redis RedisBusConfig   `yaml:"redis"`
	HTTP  HTTPBusConfig    `yaml:"http"`
	File  FileOutputConfig `yaml:"file"`
}

// SNSConfig configures the SNS bus. The region is read from RegionEnv on every send.
type SNSConfig struct {
	RegionEnv string `yaml:"region_env"`
	Endpoint  string `yaml:"endpoint"`
}

// RedisBusConfig configures the Redis stream bus.
type RedisBusConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	MaxLen   int64  `yaml:"max_len"`
}

// HTTPBusConfig config for the webhook bus.
type HTTPBusConfig struct {
	URL     string            `yaml:"url"`
	Timeout time.Duration     `yaml:"timeout"`
	Headers map[string]string `yaml:"headers"`
}

// FileOutputConfig config for local JSON output.
type FileOutputConfig struct {
	Path string `yaml:"path"`
}

// RulesConfig controls suppression rules.
type RulesConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// LoggingConfig controls logging output.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
	File    string `yaml:"file"`
	Console bool   `yaml:"console"`
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	return &cfg, nil
}

// ApplyDefaults fills unset values.
func ApplyDefaults(cfg *Config) {
	c := &cfg.EventRelay
	if c.Input.Redis.Addr == "" {
		c.Input.Redis.Addr = "127.0.0.1:6379"
	}
	if c.Input.Redis.Key == "" {
		c.Input.Redis.Key = "audit_events"
	}
	if c.Input.Redis.BlockTimeout == 0 {
		c.Input.Redis.BlockTimeout = 5 * time.Second
	}

	if c.Pipeline.Workers <= 0 {
		c.Pipeline.Workers = 8
	}

	if c.Publish.Mode == "" {
		c.Publish.Mode = "sns"
	}
	if c.Publish.SNS.RegionEnv == "" {
		c.Publish.SNS.RegionEnv = "AWS_REGION"
	}
	if c.Publish.Redis.Addr == "" {
		c.Publish.Redis.Addr = c.Input.Redis.Addr
	}
	if c.Publish.File.Path == "" {
		c.Publish.File.Path = "output/messages.jsonl"
	}

	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9108"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}
