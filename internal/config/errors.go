package config

import "errors"

var (
	// ErrInvalidConfig marks a value outside its allowed range.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrLoadConfig marks a failure reading a config source (.env, YAML, env).
	ErrLoadConfig = errors.New("load config failed")
)
