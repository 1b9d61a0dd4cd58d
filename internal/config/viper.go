// Package config reads process-level settings shared by the CLI commands.
package config

import (
	"os"

	"github.com/spf13/viper"
)

// GetString is a helper to get string values from Viper.
// It checks both OS environment variables and Viper configuration.
func GetString(key string) string {
	osValue := os.Getenv(key)
	viperValue := viper.GetString(key)

	if viperValue == "" && osValue != "" {
		return osValue
	}
	return viperValue
}

// GetToken returns the first non-empty value among keys, so a dedicated
// token can fall back to a general one.
func GetToken(keys ...string) string {
	for _, key := range keys {
		if value := GetString(key); value != "" {
			return value
		}
	}
	return ""
}
