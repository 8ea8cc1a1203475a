package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix               = "MANUFACTUREFLOW"
	defaultHTTPAddress      = "0.0.0.0:8080"
	defaultDatabasePath     = "manufactureflow.db"
	defaultLogLevel         = "info"
	defaultTokenTTLMinutes  = 480
	defaultMetricsIntervalS = 30
	defaultRateLimitRPS     = 25.0
	defaultRateLimitBurst   = 50
	defaultShutdownTimeoutS = 10
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress     string
	SigningSecret   string
	DatabasePath    string
	LogLevel        string
	TokenTTL        time.Duration
	MetricsInterval time.Duration
	RateLimitRPS    float64
	RateLimitBurst  int
	ShutdownTimeout time.Duration
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("token.ttl_minutes", defaultTokenTTLMinutes)
	configViper.SetDefault("metrics.interval_seconds", defaultMetricsIntervalS)
	configViper.SetDefault("ratelimit.requests_per_second", defaultRateLimitRPS)
	configViper.SetDefault("ratelimit.burst", defaultRateLimitBurst)
	configViper.SetDefault("shutdown.timeout_seconds", defaultShutdownTimeoutS)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:     configViper.GetString("http.address"),
		SigningSecret:   configViper.GetString("auth.signing_secret"),
		DatabasePath:    configViper.GetString("database.path"),
		LogLevel:        configViper.GetString("log.level"),
		TokenTTL:        time.Duration(configViper.GetInt("token.ttl_minutes")) * time.Minute,
		MetricsInterval: time.Duration(configViper.GetInt("metrics.interval_seconds")) * time.Second,
		RateLimitRPS:    configViper.GetFloat64("ratelimit.requests_per_second"),
		RateLimitBurst:  configViper.GetInt("ratelimit.burst"),
		ShutdownTimeout: time.Duration(configViper.GetInt("shutdown.timeout_seconds")) * time.Second,
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("token.ttl_minutes must be positive")
	}
	if c.MetricsInterval <= 0 {
		return fmt.Errorf("metrics.interval_seconds must be positive")
	}
	return nil
}
