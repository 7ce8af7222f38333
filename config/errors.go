package config

import "strings"

// ConfigError reports missing or invalid configuration. It collects every
// problem found so one run shows them all.
type ConfigError struct {
	Problems []string
}

func (e *ConfigError) Error() string {
	return "config validation failed:\n- " + strings.Join(e.Problems, "\n- ")
}
