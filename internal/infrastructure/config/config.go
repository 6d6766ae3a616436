package config

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server       ServerConfig
	Logging      LogConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Sandbox      SandboxConfig
	Loader       LoaderConfig
	Classifier   ClassifierConfig
	Store        StoreConfig
	Provisioning ProvisioningConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8000"`
	Host            string        `envconfig:"HOST" default:"0.0.0.0"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
	Output      string `envconfig:"LOG_OUTPUT" default:"stdout"` // stdout, stderr or a file path
}

// RateLimitConfig holds API rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// CORSConfig holds the browser origins allowed to call the API.
type CORSConfig struct {
	Origins []string      `envconfig:"CORS_ORIGINS" default:"*"`
	MaxAge  time.Duration `envconfig:"CORS_MAX_AGE" default:"12h"`
}

// SandboxConfig holds script runtime configuration.
type SandboxConfig struct {
	Timeout     time.Duration `envconfig:"SANDBOX_TIMEOUT" default:"5s"`
	PoolSize    int           `envconfig:"SANDBOX_POOL_SIZE" default:"4"`
	MaxRuntimes int           `envconfig:"SANDBOX_MAX_RUNTIMES" default:"0"` // 0 for no cap
	Console     bool          `envconfig:"SANDBOX_CONSOLE" default:"true"`
}

// LoaderConfig holds resource loader configuration.
type LoaderConfig struct {
	FetchTimeout      time.Duration `envconfig:"LOADER_FETCH_TIMEOUT" default:"30s"`
	EvaluateForResult bool          `envconfig:"LOADER_EVALUATE_FOR_RESULT" default:"false"`
	RateLimit         float64       `envconfig:"LOADER_RATE_LIMIT" default:"0"`
}

// ClassifierConfig holds fragment classifier configuration.
type ClassifierConfig struct {
	Sanitize bool `envconfig:"CLASSIFIER_SANITIZE" default:"false"`
}

// StoreConfig selects the options store.
type StoreConfig struct {
	Driver string `envconfig:"STORE_DRIVER" default:"memory"`
	Path   string `envconfig:"STORE_PATH" default:"divpanel.db"`
}

// ProvisioningConfig holds the panel seed directory. Empty disables seeding.
type ProvisioningConfig struct {
	Dir string `envconfig:"PROVISIONING_DIR" default:""`
}

// Load reads the environment and rejects settings the server cannot run with.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if n, err := strconv.Atoi(c.Server.Port); err != nil || n < 0 || n > 65535 {
		errs = append(errs, fmt.Errorf("PORT %q is not a port number", c.Server.Port))
	}
	switch c.Store.Driver {
	case "memory":
	case "sqlite":
		if c.Store.Path == "" {
			errs = append(errs, errors.New("STORE_PATH is required for the sqlite driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER %q is not memory or sqlite", c.Store.Driver))
	}
	if c.Sandbox.Timeout <= 0 {
		errs = append(errs, errors.New("SANDBOX_TIMEOUT must be positive"))
	}
	if c.Sandbox.PoolSize < 0 || c.Sandbox.MaxRuntimes < 0 {
		errs = append(errs, errors.New("sandbox pool sizes cannot be negative"))
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		errs = append(errs, errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive when enabled"))
	}
	if c.Loader.RateLimit < 0 {
		errs = append(errs, errors.New("LOADER_RATE_LIMIT cannot be negative"))
	}
	return errors.Join(errs...)
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8000",
			Host:            "0.0.0.0",
			ShutdownTimeout: 15 * time.Second,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
			Output:      "stdout",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		CORS: CORSConfig{
			Origins: []string{"*"},
			MaxAge:  12 * time.Hour,
		},
		Sandbox: SandboxConfig{
			Timeout:  5 * time.Second,
			PoolSize: 4,
			Console:  true,
		},
		Loader: LoaderConfig{
			FetchTimeout: 30 * time.Second,
		},
		Store: StoreConfig{
			Driver: "memory",
			Path:   "divpanel.db",
		},
	}
}
