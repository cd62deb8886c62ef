// Package config loads service configuration from an optional YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port        string `yaml:"port"`
	Environment string `yaml:"environment"` // development, production
	DatabaseURL string `yaml:"databaseUrl"`
	RedisURL    string `yaml:"redisUrl"`

	// PlanTTL is how long a confirmed plan stays visible. Zero means
	// "derive from environment": 24h in production, 10m otherwise.
	// In YAML it is written as a duration string ("24h", "10m").
	PlanTTL     time.Duration `yaml:"-"`
	PlanTTLText string        `yaml:"planTTL"`

	// RouteSpeedKmh feeds the fallback route estimator.
	RouteSpeedKmh float64 `yaml:"routeSpeedKmh"`

	// Draft autosave rate limit, per user.
	SaveRatePerSec float64 `yaml:"saveRatePerSec"`
	SaveBurst      int     `yaml:"saveBurst"`

	WebhookMaxAttempts int `yaml:"webhookMaxAttempts"`

	AuthMode       string `yaml:"authMode"` // dev, hmac
	AuthHMACSecret string `yaml:"authHmacSecret"`
}

// Load reads path (when non-empty and present), then applies env overrides
// and defaults. A missing file is not an error; a malformed one is.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		b, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(b, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	overrideString(&cfg.Port, "PORT")
	overrideString(&cfg.Environment, "APP_ENV")
	overrideString(&cfg.DatabaseURL, "DATABASE_URL")
	overrideString(&cfg.RedisURL, "REDIS_URL")
	overrideString(&cfg.AuthMode, "AUTH_MODE")
	overrideString(&cfg.AuthHMACSecret, "AUTH_HMAC_SECRET")
	if cfg.PlanTTLText != "" {
		d, err := time.ParseDuration(cfg.PlanTTLText)
		if err != nil {
			return nil, fmt.Errorf("planTTL: %w", err)
		}
		cfg.PlanTTL = d
	}
	if v := os.Getenv("PLAN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("PLAN_TTL: %w", err)
		}
		cfg.PlanTTL = d
	}
	if v := os.Getenv("WEBHOOK_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.WebhookMaxAttempts = n
		}
	}

	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.PlanTTL == 0 {
		if cfg.Environment == "production" {
			cfg.PlanTTL = 24 * time.Hour
		} else {
			cfg.PlanTTL = 10 * time.Minute
		}
	}
	if cfg.RouteSpeedKmh == 0 {
		cfg.RouteSpeedKmh = 50
	}
	if cfg.SaveRatePerSec == 0 {
		cfg.SaveRatePerSec = 2
	}
	if cfg.SaveBurst == 0 {
		cfg.SaveBurst = 5
	}
	if cfg.WebhookMaxAttempts == 0 {
		cfg.WebhookMaxAttempts = 10
	}
	if cfg.AuthMode == "" {
		cfg.AuthMode = "dev"
	}
	return cfg, nil
}

func overrideString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
