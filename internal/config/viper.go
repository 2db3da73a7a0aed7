// Package config reads endpoint settings from Viper with an OS
// environment fallback.
package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/agentstation/pushcenter/pkg/errors"
)

// EnvPrefix is the prefix of every environment variable the CLI reads.
const EnvPrefix = "PUSHCENTER"

// GetString is a helper to get string values from Viper.
// It checks both OS environment variables and Viper configuration.
func GetString(key string) string {
	osValue := os.Getenv(EnvKey(key))
	viperValue := viper.GetString(key)

	// If Viper doesn't have it but OS does, return OS value
	if viperValue == "" && osValue != "" {
		return osValue
	}
	return viperValue
}

// EnvKey returns the environment variable holding key, e.g.
// "redis-url" becomes PUSHCENTER_REDIS_URL.
func EnvKey(key string) string {
	key = strings.NewReplacer("-", "_", ".", "_").Replace(key)
	return EnvPrefix + "_" + strings.ToUpper(key)
}

// Credentials authenticate requests to the events endpoint.
type Credentials struct {
	Token    string
	Username string
	Password string
}

// Kind names the configured authentication scheme.
func (c Credentials) Kind() string {
	switch {
	case c.Token != "":
		return "bearer"
	case c.Username != "":
		return "basic"
	default:
		return "none"
	}
}

// Validate checks that at most one scheme is configured.
func (c Credentials) Validate() error {
	if c.Token != "" && c.Username != "" {
		return &errors.ConfigError{
			Component: "credentials",
			Message:   "token and username are mutually exclusive",
		}
	}
	if c.Password != "" && c.Username == "" {
		return &errors.ConfigError{
			Component: "credentials",
			Message:   "password set without username",
		}
	}
	return nil
}

// GetCredentials reads credentials from the token, username and password
// keys. Setting both a token and a username is an error.
func GetCredentials() (Credentials, error) {
	creds := Credentials{
		Token:    GetString("token"),
		Username: GetString("username"),
		Password: GetString("password"),
	}
	if err := creds.Validate(); err != nil {
		return Credentials{}, err
	}
	return creds, nil
}
