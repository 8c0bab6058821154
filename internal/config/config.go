// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Load layers defaults, an optional YAML file, a .env file and env vars.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Date policies for rows whose date cannot be parsed.
const (
	DatePolicyCoerce = "coerce"
	DatePolicyReject = "reject"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Host and Port configure the HTTP listen address.
	Host string `koanf:"host"`
	Port int    `koanf:"port"`

	// DataPath points at the CSV file of historical matches.
	DataPath string `koanf:"data_path"`

	// DatePolicy decides what happens to rows with an unparseable date:
	// "coerce" keeps them with a missing day code, "reject" drops them.
	DatePolicy string `koanf:"date_policy"`

	// TestSize is the held-out fraction used for validation during training.
	TestSize float64 `koanf:"test_size"`

	// Seed drives the split, weight initialization, shuffling and dropout.
	Seed int64 `koanf:"seed"`

	// Classifier training parameters.
	Epochs       int     `koanf:"epochs"`
	BatchSize    int     `koanf:"batch_size"`
	LearningRate float64 `koanf:"learning_rate"`
	L2           float64 `koanf:"l2"`
	Dropout      float64 `koanf:"dropout"`
	HiddenLayers []int   `koanf:"hidden_layers"`

	// RedisAddr enables the prediction cache when set, e.g. "localhost:6379".
	RedisAddr string `koanf:"redis_addr"`

	// CacheTTLSeconds bounds how long cached predictions live.
	CacheTTLSeconds int `koanf:"cache_ttl_seconds"`

	// WarmupWorkers is the size of the pool that precomputes every team's
	// report into the cache after training. Zero disables warm-up.
	WarmupWorkers int `koanf:"warmup_workers"`
}

// New creates a Config populated with defaults. Context is accepted first to
// follow the project-wide convention; it is currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:        "info",
		LogFormat:       "text",
		Host:            "0.0.0.0",
		Port:            5000,
		DataPath:        "data.csv",
		DatePolicy:      DatePolicyCoerce,
		TestSize:        0.3,
		Seed:            42,
		Epochs:          100,
		BatchSize:       32,
		LearningRate:    0.001,
		L2:              0.01,
		Dropout:         0.5,
		HiddenLayers:    []int{128, 64, 32},
		CacheTTLSeconds: 300,
		WarmupWorkers:   4,
	}
}

// Addr returns the host:port listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch {
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Port)
	case strings.TrimSpace(c.DataPath) == "":
		return fmt.Errorf("%w: data_path must not be empty", ErrInvalidConfig)
	case c.DatePolicy != DatePolicyCoerce && c.DatePolicy != DatePolicyReject:
		return fmt.Errorf("%w: date_policy must be %q or %q", ErrInvalidConfig, DatePolicyCoerce, DatePolicyReject)
	case c.TestSize <= 0 || c.TestSize >= 1:
		return fmt.Errorf("%w: test_size must be in (0, 1)", ErrInvalidConfig)
	case c.Epochs <= 0:
		return fmt.Errorf("%w: epochs must be positive", ErrInvalidConfig)
	case c.BatchSize <= 0:
		return fmt.Errorf("%w: batch_size must be positive", ErrInvalidConfig)
	case c.LearningRate <= 0:
		return fmt.Errorf("%w: learning_rate must be positive", ErrInvalidConfig)
	case c.L2 < 0:
		return fmt.Errorf("%w: l2 must not be negative", ErrInvalidConfig)
	case c.Dropout < 0 || c.Dropout >= 1:
		return fmt.Errorf("%w: dropout must be in [0, 1)", ErrInvalidConfig)
	case c.CacheTTLSeconds < 0:
		return fmt.Errorf("%w: cache_ttl_seconds must not be negative", ErrInvalidConfig)
	case c.WarmupWorkers < 0:
		return fmt.Errorf("%w: warmup_workers must not be negative", ErrInvalidConfig)
	}
	for _, w := range c.HiddenLayers {
		if w <= 0 {
			return fmt.Errorf("%w: hidden_layers widths must be positive", ErrInvalidConfig)
		}
	}
	return nil
}
