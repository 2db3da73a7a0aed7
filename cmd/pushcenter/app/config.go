package app

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/agentstation/pushcenter/internal/config"
	"github.com/agentstation/pushcenter/pkg/constants"
	"github.com/agentstation/pushcenter/pkg/errors"
)

// Config holds the application configuration loaded from various sources
// including config files, environment variables, and .env files.
type Config struct {
	// Global flags
	Verbose bool
	Quiet   bool
	Format  string

	// Config file
	ConfigFile string

	// Endpoint configuration
	URL         string
	RetryDelay  time.Duration
	HTTPTimeout time.Duration
	Token       string
	Username    string
	Password    string

	// Logging configuration
	LogLevel  string
	LogFormat string
	LogOutput string
}

// LoadConfig loads configuration from all sources in order of precedence:
// 1. Command-line flags (handled by cobra)
// 2. Environment variables (PUSHCENTER_*)
// 3. .env files
// 4. Config file (~/.pushcenter.yaml)
// 5. Defaults
func LoadConfig() (*Config, error) {
	// Load .env files first (before Viper env binding)
	loadEnvFiles()

	viper.SetEnvPrefix(config.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	configFile := viper.GetString("config")
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.AddConfigPath(".")
			viper.SetConfigType("yaml")
			viper.SetConfigName(".pushcenter")
		}
	}

	// Read config file (ignore error if not found)
	_ = viper.ReadInConfig()

	creds, err := config.GetCredentials()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Verbose: viper.GetBool("verbose"),
		Quiet:   viper.GetBool("quiet"),
		Format:  viper.GetString("format"),

		ConfigFile: viper.ConfigFileUsed(),

		URL:         config.GetString("url"),
		RetryDelay:  viper.GetDuration("retry-delay"),
		HTTPTimeout: viper.GetDuration("http-timeout"),
		Token:       creds.Token,
		Username:    creds.Username,
		Password:    creds.Password,

		// Log level stays empty unless set, so -v and -q can apply
		LogLevel:  os.Getenv("LOG_LEVEL"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "auto"),
		LogOutput: getEnvOrDefault("LOG_OUTPUT", "stderr"),
	}

	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = constants.DefaultRetryDelay
	}

	return cfg, nil
}

// LoadFile reads the config file at path and applies its endpoint values
// to every field whose flag was not set on the command line.
func (c *Config) LoadFile(path string, flagSet func(name string) bool) error {
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		return errors.NewConfigError("config", "read "+path, err)
	}
	c.ConfigFile = viper.ConfigFileUsed()

	strs := map[string]*string{
		"url":      &c.URL,
		"token":    &c.Token,
		"username": &c.Username,
		"password": &c.Password,
		"format":   &c.Format,
	}
	for key, field := range strs {
		if !flagSet(key) && viper.IsSet(key) {
			*field = viper.GetString(key)
		}
	}
	durations := map[string]*time.Duration{
		"retry-delay":  &c.RetryDelay,
		"http-timeout": &c.HTTPTimeout,
	}
	for key, field := range durations {
		if !flagSet(key) && viper.IsSet(key) {
			*field = viper.GetDuration(key)
		}
	}
	return nil
}

// Credentials returns the configured endpoint credentials.
func (c *Config) Credentials() config.Credentials {
	return config.Credentials{
		Token:    c.Token,
		Username: c.Username,
		Password: c.Password,
	}
}

// Validate checks values that flags may have changed after loading.
func (c *Config) Validate() error {
	return c.Credentials().Validate()
}

// loadEnvFiles loads environment variables from .env files.
// .env.local overrides .env.
func loadEnvFiles() {
	for _, envFile := range []string{".env.local", ".env"} {
		// godotenv.Load never overrides variables that are already set
		_ = godotenv.Load(envFile)
	}
}

// getEnvOrDefault returns the environment variable value or the default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
