// Package config loads the fulfillment gateway's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type AuthConfig struct {
	Enabled    bool          `yaml:"enabled"`
	HMACSecret string        `yaml:"hmacSecret"`
	Issuer     string        `yaml:"issuer"`
	Audience   string        `yaml:"audience"`
	ClockSkew  time.Duration `yaml:"clockSkew"`
}

type RateLimitConfig struct {
	RequestsPerMinute float64 `yaml:"requestsPerMinute"`
	Burst             int     `yaml:"burst"`
}

type ObservabilityConfig struct {
	ServiceName   string `yaml:"serviceName"`
	MetricsPrefix string `yaml:"metricsPrefix"`
	LogRequests   bool   `yaml:"logRequests"`
	Enabled       bool   `yaml:"enabled"`
}

type Config struct {
	ListenAddress string              `yaml:"listen"`
	ReadTimeout   time.Duration       `yaml:"readTimeout"`
	WriteTimeout  time.Duration       `yaml:"writeTimeout"`
	IdleTimeout   time.Duration       `yaml:"idleTimeout"`
	Auth          AuthConfig          `yaml:"auth"`
	RateLimit     RateLimitConfig     `yaml:"rateLimit"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// Default returns the configuration used when no file is provided.
func Default() Config {
	return Config{
		ListenAddress: "127.0.0.1:8646",
		ReadTimeout:   10 * time.Second,
		WriteTimeout:  15 * time.Second,
		IdleTimeout:   60 * time.Second,
		RateLimit:     RateLimitConfig{RequestsPerMinute: 600, Burst: 20},
		Observability: ObservabilityConfig{
			ServiceName:   "stakevault-gateway",
			MetricsPrefix: "gateway",
			Enabled:       true,
		},
	}
}

// Load reads and validates a gateway configuration file. A missing path
// yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("gateway config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("gateway config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations the gateway cannot serve.
func (c *Config) Validate() error {
	if c.ListenAddress == "" {
		return errors.New("gateway config: listen address required")
	}
	if c.Auth.Enabled && c.Auth.HMACSecret == "" {
		return errors.New("gateway config: auth enabled without hmacSecret")
	}
	if c.RateLimit.RequestsPerMinute < 0 {
		return errors.New("gateway config: negative rate limit")
	}
	return nil
}
