package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Sternrassler/storesync/pkg/logging"
)

// config is the proxy configuration. Every key can be set in storesync.yaml
// or through a STORESYNC_ environment variable, e.g. STORESYNC_STORE_URL.
type config struct {
	StoreURL          string
	Token             string
	UserAgent         string
	Port              string
	RedisURL          string
	CacheTTL          time.Duration
	RequestTimeout    time.Duration
	RequestsPerSecond float64
	LogLevel          logging.LogLevel
	LogPretty         bool
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("STORESYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store_url", "")
	v.SetDefault("token", "")
	v.SetDefault("user_agent", "storesync/0.1.0")
	v.SetDefault("port", "8080")
	v.SetDefault("redis_url", "")
	v.SetDefault("cache_ttl", time.Hour)
	v.SetDefault("request_timeout", 60*time.Second)
	v.SetDefault("requests_per_second", 0)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", false)

	v.SetConfigName("storesync")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/storesync")
	return v
}

// loadConfig reads the optional config file and validates the result.
func loadConfig(v *viper.Viper) (config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return config{}, fmt.Errorf("read config: %w", err)
		}
	}

	level, err := logging.ParseLevel(v.GetString("log_level"))
	if err != nil {
		return config{}, err
	}

	cfg := config{
		StoreURL:          strings.TrimSpace(v.GetString("store_url")),
		Token:             v.GetString("token"),
		UserAgent:         v.GetString("user_agent"),
		Port:              v.GetString("port"),
		RedisURL:          v.GetString("redis_url"),
		CacheTTL:          v.GetDuration("cache_ttl"),
		RequestTimeout:    v.GetDuration("request_timeout"),
		RequestsPerSecond: v.GetFloat64("requests_per_second"),
		LogLevel:          level,
		LogPretty:         v.GetBool("log_pretty"),
	}
	if cfg.StoreURL == "" {
		return config{}, errors.New("store_url is required")
	}
	if cfg.RequestTimeout <= 0 {
		return config{}, fmt.Errorf("request_timeout must be positive, got %s", cfg.RequestTimeout)
	}
	return cfg, nil
}
