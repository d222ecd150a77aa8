package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port   int    `yaml:"port"`
	DBPath string `yaml:"dbPath"`
	APIKey string `yaml:"apiKey"`

	LogLevel string `yaml:"logLevel"`

	// Ephemeral status cache
	StatusTTL time.Duration `yaml:"statusTtl"`

	// Per-subscriber outbound buffer for the session broadcaster.
	SubscriberBuffer int `yaml:"subscriberBuffer"`

	// AI insight generation
	InsightEnabled  bool   `yaml:"insightEnabled"`
	InsightModel    string `yaml:"insightModel"`
	AnthropicAPIKey string `yaml:"anthropicApiKey"`
}

// Load builds the configuration from an optional YAML file
// (SHIPD_CONFIG_FILE) with environment variables taking precedence.
func Load() (*Config, error) {
	cfg := &Config{
		Port:             8750,
		DBPath:           "/data/shipd.db",
		LogLevel:         "info",
		StatusTTL:        10 * time.Minute,
		SubscriberBuffer: 64,
		InsightEnabled:   true,
		InsightModel:     "claude-haiku-4-5",
	}

	if path := os.Getenv("SHIPD_CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.Port = envInt("PORT", cfg.Port)
	cfg.DBPath = envStr("SHIPD_DB_PATH", cfg.DBPath)
	cfg.APIKey = envStr("SHIPD_API_KEY", cfg.APIKey)
	cfg.LogLevel = envStr("LOG_LEVEL", cfg.LogLevel)
	cfg.StatusTTL = envDuration("STATUS_TTL", cfg.StatusTTL)
	cfg.SubscriberBuffer = envInt("SUBSCRIBER_BUFFER", cfg.SubscriberBuffer)
	cfg.InsightEnabled = envBool("INSIGHT_ENABLED", cfg.InsightEnabled)
	cfg.InsightModel = envStr("INSIGHT_MODEL", cfg.InsightModel)
	cfg.AnthropicAPIKey = envStr("ANTHROPIC_API_KEY", cfg.AnthropicAPIKey)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.DBPath == "" {
		return fmt.Errorf("SHIPD_DB_PATH must not be empty")
	}
	if c.StatusTTL <= 0 {
		return fmt.Errorf("STATUS_TTL must be positive, got %s", c.StatusTTL)
	}
	if c.SubscriberBuffer < 1 {
		return fmt.Errorf("SUBSCRIBER_BUFFER must be at least 1, got %d", c.SubscriberBuffer)
	}
	return nil
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

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
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
