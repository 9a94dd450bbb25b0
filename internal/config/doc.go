// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation.
// Provider API keys may instead come from the environment via internal/auth;
// values set in YAML win.
package config
