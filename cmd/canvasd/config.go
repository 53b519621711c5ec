package main

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all canvasd configuration.
type Config struct {
	Listen   string         `yaml:"listen"`
	LogLevel string         `yaml:"log_level"`
	AuditDB  string         `yaml:"audit_db"`
	MaxBody  int64          `yaml:"max_body_bytes"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	Audit    AuditRetention `yaml:"audit_retention"`
}

// WebhookConfig points change notifications at the host application.
// An empty URL falls back to the log sink.
type WebhookConfig struct {
	URL    string `yaml:"url"`
	Secret string `yaml:"secret"`
}

// AuditRetention controls the audit cleanup loop.
type AuditRetention struct {
	RequestLogsDays int           `yaml:"request_logs_days"`
	EventLogsDays   int           `yaml:"event_logs_days"`
	Interval        time.Duration `yaml:"interval"`
}

func (c *Config) defaults() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:31337"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.AuditDB == "" {
		c.AuditDB = "db/audit.db"
	}
	if c.MaxBody <= 0 {
		c.MaxBody = 4 << 20
	}
	if c.Audit.RequestLogsDays <= 0 {
		c.Audit.RequestLogsDays = 30
	}
	if c.Audit.EventLogsDays <= 0 {
		c.Audit.EventLogsDays = 90
	}
	if c.Audit.Interval <= 0 {
		c.Audit.Interval = 24 * time.Hour
	}
}

// loadConfig reads the YAML config file when path is non-empty, then
// applies environment overrides and defaults.
func loadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	if v := os.Getenv("CANVASD_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("CANVASD_AUDIT_DB"); v != "" {
		cfg.AuditDB = v
	}
	if v := os.Getenv("CANVASD_WEBHOOK_URL"); v != "" {
		cfg.Webhook.URL = v
	}
	if v := os.Getenv("CANVASD_WEBHOOK_SECRET"); v != "" {
		cfg.Webhook.Secret = v
	}

	cfg.defaults()
	return cfg, nil
}
