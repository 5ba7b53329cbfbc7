// Package config provides application configuration.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// DefaultCapitalBaseURL is the Capital.com demo environment.
	DefaultCapitalBaseURL = "https://demo-api-capital.backend-capital.com"

	// DefaultEtoroBaseURL is the public eToro API gateway.
	DefaultEtoroBaseURL = "https://api.etoro.com"
)

// Config holds the application configuration.
type Config struct {
	// Server settings
	Host string
	Port string

	// Persistence; an empty DBPath disables the session cache and audit log
	DBPath           string
	EncryptionSecret string

	Capital CapitalConfig
	Etoro   EtoroConfig
}

// CapitalConfig holds Capital.com credentials and client limits.
type CapitalConfig struct {
	BaseURL           string
	APIKey            string
	Identifier        string
	Password          string
	Debug             bool
	Timeout           time.Duration
	RequestsPerMinute int
	MaxDailyTrades    int
}

// EtoroConfig holds eToro credentials.
type EtoroConfig struct {
	BaseURL     string
	APIKey      string
	UserKey     string
	AccountType string
	Debug       bool
	Timeout     time.Duration
}

// Load reads a .env file from the working directory when one exists and
// then builds the configuration. Variables already set in the environment
// take precedence over the file.
func Load() *Config {
	_ = godotenv.Load()
	return New()
}

// New creates a new Config with values from environment variables or defaults.
func New() *Config {
	return &Config{
		Host:             getEnv("HOST", "localhost"),
		Port:             getEnv("PORT", "8080"),
		DBPath:           getEnv("DB_PATH", ""),
		EncryptionSecret: getEnv("ENCRYPTION_SECRET", ""),
		Capital: CapitalConfig{
			BaseURL:           strings.TrimRight(getEnv("CAPITAL_BASE_URL", DefaultCapitalBaseURL), "/"),
			APIKey:            getEnv("CAPITAL_API_KEY", ""),
			Identifier:        getEnv("CAPITAL_IDENTIFIER", ""),
			Password:          getEnv("CAPITAL_PASSWORD", ""),
			Debug:             getBool("CAPITAL_MCP_DEBUG"),
			Timeout:           getDuration("CAPITAL_TIMEOUT", 30*time.Second),
			RequestsPerMinute: getInt("CAPITAL_REQUESTS_PER_MINUTE", 60),
			MaxDailyTrades:    getInt("CAPITAL_MAX_DAILY_TRADES", 20),
		},
		Etoro: EtoroConfig{
			BaseURL:     strings.TrimRight(getEnv("ETORO_BASE_URL", DefaultEtoroBaseURL), "/"),
			APIKey:      getEnv("ETORO_API_KEY", ""),
			UserKey:     getEnv("ETORO_USER_KEY", ""),
			AccountType: strings.ToLower(getEnv("ETORO_ACCOUNT_TYPE", "demo")),
			Debug:       getBool("ETORO_MCP_DEBUG"),
			Timeout:     getDuration("ETORO_TIMEOUT", 30*time.Second),
		},
	}
}

// Address returns the full address to bind the HTTP transports to.
func (c *Config) Address() string {
	return c.Host + ":" + c.Port
}

// PersistenceEnabled reports whether a database path was configured.
func (c *Config) PersistenceEnabled() bool {
	return c.DBPath != ""
}

// Missing returns the names of unset Capital.com settings.
func (c *CapitalConfig) Missing() []string {
	var missing []string
	if c.BaseURL == "" {
		missing = append(missing, "CAPITAL_BASE_URL")
	}
	if c.APIKey == "" {
		missing = append(missing, "CAPITAL_API_KEY")
	}
	if c.Identifier == "" {
		missing = append(missing, "CAPITAL_IDENTIFIER")
	}
	if c.Password == "" {
		missing = append(missing, "CAPITAL_PASSWORD")
	}
	return missing
}

// Missing returns the names of unset eToro keys.
func (c *EtoroConfig) Missing() []string {
	var missing []string
	if c.APIKey == "" {
		missing = append(missing, "ETORO_API_KEY")
	}
	if c.UserKey == "" {
		missing = append(missing, "ETORO_USER_KEY")
	}
	return missing
}

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getBool accepts "true" in any case, or "1".
func getBool(key string) bool {
	value := os.Getenv(key)
	return value == "1" || strings.EqualFold(value, "true")
}

func getInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil && n > 0 {
		return n
	}
	return defaultValue
}

// getDuration accepts Go durations ("45s") or a plain number of seconds.
func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
