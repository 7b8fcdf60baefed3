package config

import "errors"

// Sentinel errors. Load wraps file, env and decode failures in ErrLoadConfig
// and every rejected value in ErrInvalidConfig.
var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrLoadConfig    = errors.New("load config failed")
)
