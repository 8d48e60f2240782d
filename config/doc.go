// Package config handles loading and parsing of configuration from YAML files
// and environment variables. It defines the application configuration structure
// including retry policy, circuit breaker thresholds, probe targets, and
// logging settings.
package config
