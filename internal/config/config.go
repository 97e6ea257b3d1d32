package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	GroqAPIKey     string        `env:"GROQ_API_KEY"`
	LLMBaseURL     string        `env:"LLM_BASE_URL"          envDefault:"https://api.groq.com/openai/v1/"`
	LLMModel       string        `env:"LLM_MODEL"             envDefault:"llama-3.1-8b-instant"`
	LLMTemperature float64       `env:"LLM_TEMPERATURE"       envDefault:"0.3"`
	LLMTimeout     time.Duration `env:"LLM_TIMEOUT"           envDefault:"45s"`

	HTTPAddr        string   `env:"HTTP_ADDR"         envDefault:":8080"`
	AllowedOrigins  []string `env:"ALLOWED_ORIGINS"   envDefault:"http://localhost:3000"`
	TrustedProxies  []string `env:"TRUSTED_PROXIES"`
	MaxContentBytes int64    `env:"MAX_CONTENT_BYTES" envDefault:"65536"`

	DBPath              string        `env:"DB_PATH"               envDefault:"db.sqlite"`
	RequestLogRetention time.Duration `env:"REQUEST_LOG_RETENTION" envDefault:"720h"`

	CacheMaxEntries int           `env:"CACHE_MAX_ENTRIES" envDefault:"256"`
	CacheTTL        time.Duration `env:"CACHE_TTL"         envDefault:"24h"`

	RateLimitInterval time.Duration `env:"RATE_LIMIT_INTERVAL" envDefault:"2s"`
	RateLimitMaxWait  time.Duration `env:"RATE_LIMIT_MAX_WAIT" envDefault:"10s"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.GroqAPIKey = strings.TrimSpace(cfg.GroqAPIKey)
	cfg.LLMBaseURL = strings.TrimSpace(cfg.LLMBaseURL)
	cfg.LLMModel = strings.TrimSpace(cfg.LLMModel)
	cfg.AllowedOrigins = trimList(cfg.AllowedOrigins)
	cfg.TrustedProxies = trimList(cfg.TrustedProxies)

	if err = cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	if c.LLMBaseURL == "" {
		return fmt.Errorf("LLM_BASE_URL is empty")
	}
	if c.LLMModel == "" {
		return fmt.Errorf("LLM_MODEL is empty")
	}
	if c.LLMTemperature < 0 || c.LLMTemperature > 2 {
		return fmt.Errorf("LLM_TEMPERATURE must be within [0, 2], got %v", c.LLMTemperature)
	}
	if c.LLMTimeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT must be positive, got %s", c.LLMTimeout)
	}
	for _, origin := range c.AllowedOrigins {
		if !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return fmt.Errorf("ALLOWED_ORIGINS must be http(s) origins, got %q", origin)
		}
	}
	if c.MaxContentBytes <= 0 {
		return fmt.Errorf("MAX_CONTENT_BYTES must be positive, got %d", c.MaxContentBytes)
	}

	return nil
}

func trimList(values []string) []string {
	trimmed := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			trimmed = append(trimmed, v)
		}
	}

	return trimmed
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return slog.LevelInfo
	}

	return level
}
