package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix   = "MATCHCAST_"
	envFilePath = ".env"
)

// legacyEnv maps the unprefixed variables of earlier deployments to keys.
var legacyEnv = map[string]string{
	"DATA_PATH": "data_path",
	"PORT":      "port",
}

// Load builds a Config by layering sources.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if MATCHCAST_CONFIG is set
//  3. DATA_PATH and PORT
//  4. env (prefix MATCHCAST_)
//
// A .env file in the working directory is loaded into the process
// environment first; variables already set win over it.
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	if err := godotenv.Load(envFilePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, envFilePath, err)
	}

	k := koanf.New(".")

	if path := os.Getenv(envPrefix + "CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	legacy := env.Provider("", ".", func(s string) string {
		return legacyEnv[s]
	})
	if err := k.Load(legacy, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	// MATCHCAST_DATA_PATH -> data_path (flat keys, underscores preserved).
	prefixed := env.Provider(envPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(envPrefix))
	})
	if err := k.Load(prefixed, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
