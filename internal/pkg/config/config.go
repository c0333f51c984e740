package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"github.com/V4T54L/jmlog/internal/domain"
)

// Config holds all application configuration.
type Config struct {
	LogLevel        string  `env:"LOG_LEVEL" envDefault:"info"`
	Mode            string  `env:"MODE" envDefault:"full"`
	Timezone        string  `env:"TIMEZONE" envDefault:"Local"`
	OutputPath      string  `env:"OUTPUT_PATH" envDefault:"joinmarket.json"`
	LabelsPath      string  `env:"LABELS_PATH" envDefault:"joinmarket-bip329.json"`
	FileGlob        string  `env:"FILE_GLOB"`
	ReadConcurrency int     `env:"READ_CONCURRENCY" envDefault:"0"` // 0 = one goroutine per file
	MetricsTextfile string  `env:"METRICS_TEXTFILE"`
	RedisURL        string  `env:"REDIS_URL"`
	RedisKeyPrefix  string  `env:"REDIS_KEY_PREFIX" envDefault:"jmlog"`
	RedisWriteRate  float64 `env:"REDIS_WRITE_RATE" envDefault:"50"`
	PostgresURL     string  `env:"POSTGRES_URL"`
}

// Load reads configuration from JMLOG_* environment variables.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: "JMLOG_"}); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that env tags cannot express.
func (c *Config) Validate() error {
	switch domain.Mode(c.Mode) {
	case domain.ModeFull, domain.ModeReduced:
	default:
		return fmt.Errorf("unknown mode %q, want %q or %q", c.Mode, domain.ModeFull, domain.ModeReduced)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.ReadConcurrency < 0 {
		return fmt.Errorf("read concurrency must not be negative, got %d", c.ReadConcurrency)
	}
	return nil
}

// Location returns the time zone log timestamps are written in.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("unknown time zone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
