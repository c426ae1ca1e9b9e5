// Package config loads service configuration from defaults, an optional
// YAML file, and environment overrides, in that order.
package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "30s".
type Duration time.Duration

// UnmarshalYAML decodes a duration string.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the plain time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// DetectionConfig tunes the rolling statistics and anomaly detector.
type DetectionConfig struct {
	WindowSize     int     `yaml:"window_size"`
	MinSamples     int     `yaml:"min_samples"`
	SigmaThreshold float64 `yaml:"sigma_threshold"`
	ClearAfter     int     `yaml:"clear_after"`
}

// DispatchConfig tunes command delivery to device controllers.
type DispatchConfig struct {
	BaseURL string   `yaml:"base_url"`
	Timeout Duration `yaml:"timeout"`
}

// NotifyConfig tunes alarm notifications.
type NotifyConfig struct {
	WebhookURL string   `yaml:"webhook_url"`
	Escalation Duration `yaml:"escalation"`
	Cooldown   Duration `yaml:"cooldown"`
}

// FleetDevice describes one managed device.
type FleetDevice struct {
	ID        string `yaml:"id"`
	Type      string `yaml:"type"`
	Subsystem string `yaml:"subsystem"`
	Location  string `yaml:"location"`
}

// Config is the full service configuration.
type Config struct {
	HTTPAddr    string          `yaml:"http_addr"`
	DatabaseURL string          `yaml:"database_url"`
	LogLevel    string          `yaml:"log_level"`
	LogFormat   string          `yaml:"log_format"`
	Fleet       []FleetDevice   `yaml:"fleet"`
	Detection   DetectionConfig `yaml:"detection"`
	Dispatch    DispatchConfig  `yaml:"dispatch"`
	Notify      NotifyConfig    `yaml:"notify"`
}

// Load builds the configuration. The GSE_CONFIG environment variable names
// an optional YAML file; individual environment variables win over it.
func Load() (Config, error) {
	cfg := Config{
		HTTPAddr:  ":8080",
		LogLevel:  "info",
		LogFormat: "json",
		Detection: DetectionConfig{
			WindowSize:     100,
			MinSamples:     30,
			SigmaThreshold: 3.0,
			ClearAfter:     5,
		},
		Dispatch: DispatchConfig{Timeout: Duration(10 * time.Second)},
	}

	if path := os.Getenv("GSE_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	cfg.HTTPAddr = getenvDefault("HTTP_ADDR", cfg.HTTPAddr)
	cfg.DatabaseURL = getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", cfg.DatabaseURL))
	cfg.LogLevel = getenvDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getenvDefault("LOG_FORMAT", cfg.LogFormat)
	cfg.Detection.WindowSize = getenvIntDefault("DETECTION_WINDOW_SIZE", cfg.Detection.WindowSize)
	cfg.Detection.MinSamples = getenvIntDefault("DETECTION_MIN_SAMPLES", cfg.Detection.MinSamples)
	cfg.Detection.SigmaThreshold = getenvFloatDefault("DETECTION_SIGMA", cfg.Detection.SigmaThreshold)
	cfg.Detection.ClearAfter = getenvIntDefault("ALARM_CLEAR_AFTER", cfg.Detection.ClearAfter)
	cfg.Dispatch.BaseURL = getenvDefault("DISPATCH_BASE_URL", cfg.Dispatch.BaseURL)
	cfg.Notify.WebhookURL = getenvDefault("ALARM_WEBHOOK_URL", cfg.Notify.WebhookURL)
	cfg.Notify.Escalation = getenvDurationDefault("ALARM_ESCALATION", cfg.Notify.Escalation)
	cfg.Notify.Cooldown = getenvDurationDefault("ALARM_COOLDOWN", cfg.Notify.Cooldown)

	if len(cfg.Fleet) == 0 {
		cfg.Fleet = []FleetDevice{
			{ID: "GPU-001", Type: "ground_power_unit", Subsystem: "electrical", Location: "pad-a"},
			{ID: "CRYO-001", Type: "cryogenic_line", Subsystem: "propellant", Location: "pad-a"},
		}
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.HTTPAddr == "" {
		return errors.New("config: http addr required")
	}
	if c.Detection.WindowSize <= 0 {
		return errors.New("config: window size must be positive")
	}
	if c.Detection.MinSamples <= 0 || c.Detection.MinSamples > c.Detection.WindowSize {
		return errors.New("config: min samples must be in (0, window size]")
	}
	if c.Detection.SigmaThreshold <= 0 {
		return errors.New("config: sigma threshold must be positive")
	}
	if c.Detection.ClearAfter <= 0 {
		return errors.New("config: clear after must be positive")
	}
	return nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDurationDefault(key string, fallback Duration) Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return Duration(parsed)
}
