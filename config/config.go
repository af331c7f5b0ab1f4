// Package config centralises runtime configuration for sigtap.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// HookConfig selects which signal kinds get interception installed.
type HookConfig struct {
	Notice  bool `yaml:"notice"`
	Warning bool `yaml:"warning"`
	Fatal   bool `yaml:"fatal"`
}

// WatcherConfig tunes the in-memory reactive store's notifier.
type WatcherConfig struct {
	NotifyRate  float64 `yaml:"notifyRate"`
	NotifyBurst int     `yaml:"notifyBurst"`
}

// TelemetryConfig configures the OTLP metric exporter.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlpEndpoint"`
	ServiceName  string `yaml:"serviceName"`
	OTLPInsecure bool   `yaml:"otlpInsecure"`
}

// LoggingConfig configures the zap-backed structured logger.
type LoggingConfig struct {
	Level    string `yaml:"level"`
	Encoding string `yaml:"encoding"`
}

// Settings contains the sigtap configuration tree loaded from defaults,
// YAML, and environment overrides.
type Settings struct {
	Hooks     HookConfig      `yaml:"hooks"`
	Watcher   WatcherConfig   `yaml:"watcher"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// Default returns the default sigtap configuration: all hooks enabled,
// uncapped notifier, telemetry disabled, info-level JSON logging.
func Default() Settings {
	return Settings{
		Hooks:     HookConfig{Notice: true, Warning: true, Fatal: true},
		Watcher:   WatcherConfig{NotifyRate: 0, NotifyBurst: 1},
		Telemetry: TelemetryConfig{OTLPEndpoint: "", ServiceName: "sigtap", OTLPInsecure: false},
		Logging:   LoggingConfig{Level: "info", Encoding: "json"},
	}
}

// Load builds settings with precedence: defaults, then YAML at path if
// present, then environment variables. A missing file is not an error; an
// unreadable or malformed one is.
func Load(path string) (Settings, error) {
	cfg := Default()

	if strings.TrimSpace(path) != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return Settings{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// fall through to env overrides
		default:
			return Settings{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg.loadEnv()

	if err := cfg.Validate(); err != nil {
		return Settings{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (s *Settings) loadEnv() {
	if v := os.Getenv("SIGTAP_OTLP_ENDPOINT"); v != "" {
		s.Telemetry.OTLPEndpoint = v
	}
	if v := os.Getenv("SIGTAP_SERVICE_NAME"); v != "" {
		s.Telemetry.ServiceName = v
	}
	if v := os.Getenv("SIGTAP_LOG_LEVEL"); v != "" {
		s.Logging.Level = v
	}
}

// Validate checks the final configuration for values the runtime cannot use.
func (s Settings) Validate() error {
	switch strings.ToLower(s.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", s.Logging.Level)
	}
	switch s.Logging.Encoding {
	case "", "json", "console":
	default:
		return fmt.Errorf("unknown log encoding %q", s.Logging.Encoding)
	}
	if s.Watcher.NotifyRate < 0 {
		return fmt.Errorf("watcher notifyRate must be >= 0, got %v", s.Watcher.NotifyRate)
	}
	if s.Watcher.NotifyBurst < 0 {
		return fmt.Errorf("watcher notifyBurst must be >= 0, got %d", s.Watcher.NotifyBurst)
	}
	return nil
}
