package config

import (
	"errors"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	KeyringService = "homescout"
	KeyringAccount = "google-maps"
)

// ResolveAPIKey picks the distance-matrix API key: environment first, then
// the project file, then the OS keychain.
func ResolveAPIKey(envKey, projectKey string) (string, error) {
	if k := strings.TrimSpace(envKey); k != "" {
		return k, nil
	}
	if k := strings.TrimSpace(projectKey); k != "" {
		return k, nil
	}
	k, err := keyring.Get(KeyringService, KeyringAccount)
	if err == nil && strings.TrimSpace(k) != "" {
		return strings.TrimSpace(k), nil
	}
	return "", &ConfigError{Problems: []string{
		"google maps API key not found (set GOOGLE_MAPS_API_KEY, google_key, or store it in the keychain)",
	}}
}

// StoreAPIKey saves the key in the OS keychain.
func StoreAPIKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("api key is empty")
	}
	return keyring.Set(KeyringService, KeyringAccount, strings.TrimSpace(key))
}
