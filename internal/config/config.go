package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures the tunable parameters of the dispatch API process. Values
// come from environment variables with defaults good enough for local runs.
type Config struct {
	Port string

	RedisURL string

	// Expiration policy. Operator-tuned, never hard-coded: instant requests
	// expire InstantTTL after creation, scheduled requests expire
	// ScheduledLeeway after their scheduled time.
	InstantTTL      time.Duration
	ScheduledLeeway time.Duration
	SweepInterval   time.Duration

	// AcceptTimeout bounds the acceptance transaction so lock waits cannot
	// pile up behind a stuck caller.
	AcceptTimeout time.Duration

	LogLevel string
}

func defaultConfig() Config {
	return Config{
		Port:            "8080",
		RedisURL:        "redis://redis:6379",
		InstantTTL:      15 * time.Minute,
		ScheduledLeeway: 30 * time.Minute,
		SweepInterval:   time.Minute,
		AcceptTimeout:   5 * time.Second,
		LogLevel:        "info",
	}
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	cfg := defaultConfig()
	var errs []error

	setStringFromEnv(&cfg.Port, "PORT")
	setStringFromEnv(&cfg.RedisURL, "REDIS_URL")

	setMinutesFromEnv(&cfg.InstantTTL, "INSTANT_TTL_MINUTES", &errs)
	setMinutesFromEnv(&cfg.ScheduledLeeway, "SCHEDULED_LEEWAY_MINUTES", &errs)
	setDurationFromEnv(&cfg.SweepInterval, "SWEEP_INTERVAL", &errs)
	setDurationFromEnv(&cfg.AcceptTimeout, "ACCEPT_TIMEOUT", &errs)

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	if cfg.InstantTTL <= 0 {
		errs = append(errs, fmt.Errorf("INSTANT_TTL_MINUTES must be > 0"))
	}
	if cfg.ScheduledLeeway <= 0 {
		errs = append(errs, fmt.Errorf("SCHEDULED_LEEWAY_MINUTES must be > 0"))
	}
	if cfg.SweepInterval <= 0 {
		errs = append(errs, fmt.Errorf("SWEEP_INTERVAL must be > 0"))
	}

	return cfg, errors.Join(errs...)
}

func setMinutesFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = time.Duration(n) * time.Minute
	}
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}
