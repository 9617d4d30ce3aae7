// Package config loads runtime settings from the environment.
package config

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

var (
	ErrConfigurationMissing = errors.New("required configuration is missing")

	ErrMissingCensusKey   = fmt.Errorf("%w: CENSUS_KEY environment variable is required", ErrConfigurationMissing)
	ErrMissingGoogleCreds = fmt.Errorf("%w: GOOGLE_CREDS environment variable is required", ErrConfigurationMissing)
	ErrMissingDatabaseURL = fmt.Errorf("%w: DATABASE_URL environment variable is required", ErrConfigurationMissing)

	ErrInvalidGoogleCreds = errors.New("GOOGLE_CREDS must be base64-encoded service account JSON")
	ErrInvalidValue       = errors.New("invalid configuration value")
)

const (
	DefaultSpreadsheet = "dash_demo"
	DefaultMinYear     = 2010
	DefaultRunTimeout  = 10 * time.Minute
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "json"
	DefaultPort        = "5050"
)

// Config holds settings for the refresh run and the status server.
type Config struct {
	CensusKey string
	// GoogleCreds is the raw GOOGLE_CREDS value. Use Credentials to decode it.
	GoogleCreds string

	Spreadsheet   string
	MinYear       int
	MaxYear       int
	IncludeRecent bool
	RunTimeout    time.Duration

	LogLevel  string
	LogFormat string

	// DatabaseURL enables the run archive when set.
	DatabaseURL string
	Port        string

	problems []error
}

// LoadFromEnv loads configuration from environment variables.
//
// Environment variables:
//   - CENSUS_KEY: Census Data API key (required)
//   - GOOGLE_CREDS: base64 service account JSON (required)
//   - ACS_SPREADSHEET: spreadsheet title (default: dash_demo)
//   - ACS_MIN_YEAR: oldest year probed (default: 2010)
//   - ACS_MAX_YEAR: newest year probed (default: current year)
//   - ACS_INCLUDE_RECENT_TABLES: add the latest-year-only tables (default: false)
//   - ACS_RUN_TIMEOUT: overall run deadline (default: 10m)
//   - ACS_LOG_LEVEL, ACS_LOG_FORMAT: logger settings (default: info, json)
//   - DATABASE_URL: postgres DSN for the run archive (optional)
//   - PORT: status server port (default: 5050)
func LoadFromEnv() Config {
	c := Config{
		CensusKey:   strings.TrimSpace(os.Getenv("CENSUS_KEY")),
		GoogleCreds: strings.TrimSpace(os.Getenv("GOOGLE_CREDS")),
		Spreadsheet: envOr("ACS_SPREADSHEET", DefaultSpreadsheet),
		LogLevel:    envOr("ACS_LOG_LEVEL", DefaultLogLevel),
		LogFormat:   envOr("ACS_LOG_FORMAT", DefaultLogFormat),
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		Port:        envOr("PORT", DefaultPort),
	}
	c.MinYear = c.intEnv("ACS_MIN_YEAR", DefaultMinYear)
	c.MaxYear = c.intEnv("ACS_MAX_YEAR", 0)
	c.IncludeRecent = c.boolEnv("ACS_INCLUDE_RECENT_TABLES", false)
	c.RunTimeout = c.durationEnv("ACS_RUN_TIMEOUT", DefaultRunTimeout)
	return c
}

// Validate checks that everything a refresh run needs is present.
func (c Config) Validate() error {
	if err := c.validateCommon(); err != nil {
		return err
	}
	if c.CensusKey == "" {
		return ErrMissingCensusKey
	}
	if c.GoogleCreds == "" {
		return ErrMissingGoogleCreds
	}
	if _, err := c.Credentials(); err != nil {
		return err
	}
	if c.MaxYear != 0 && c.MaxYear < c.MinYear {
		return fmt.Errorf("%w: ACS_MAX_YEAR %d is before ACS_MIN_YEAR %d", ErrInvalidValue, c.MaxYear, c.MinYear)
	}
	if c.RunTimeout <= 0 {
		return fmt.Errorf("%w: ACS_RUN_TIMEOUT must be positive", ErrInvalidValue)
	}
	return nil
}

// RequireDatabase checks the settings of the archive readers.
func (c Config) RequireDatabase() error {
	if err := c.validateCommon(); err != nil {
		return err
	}
	if c.DatabaseURL == "" {
		return ErrMissingDatabaseURL
	}
	return nil
}

func (c Config) validateCommon() error {
	if len(c.problems) > 0 {
		return errors.Join(c.problems...)
	}
	return nil
}

// Credentials decodes GOOGLE_CREDS and checks that it is service account JSON.
func (c Config) Credentials() ([]byte, error) {
	if c.GoogleCreds == "" {
		return nil, ErrMissingGoogleCreds
	}
	raw, err := decodeBase64(c.GoogleCreds)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGoogleCreds, err)
	}

	var key struct {
		Type        string `json:"type"`
		ClientEmail string `json:"client_email"`
		PrivateKey  string `json:"private_key"`
	}
	if err := json.Unmarshal(raw, &key); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGoogleCreds, err)
	}
	if key.Type != "service_account" || key.ClientEmail == "" || key.PrivateKey == "" {
		return nil, fmt.Errorf("%w: not a service account key", ErrInvalidGoogleCreds)
	}
	return raw, nil
}

func decodeBase64(s string) ([]byte, error) {
	var firstErr error
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		b, err := enc.DecodeString(s)
		if err == nil {
			return b, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func (c *Config) intEnv(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		c.problems = append(c.problems, fmt.Errorf("%w: %s=%q", ErrInvalidValue, key, v))
		return fallback
	}
	return n
}

func (c *Config) boolEnv(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		c.problems = append(c.problems, fmt.Errorf("%w: %s=%q", ErrInvalidValue, key, v))
		return fallback
	}
	return b
}

func (c *Config) durationEnv(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		c.problems = append(c.problems, fmt.Errorf("%w: %s=%q", ErrInvalidValue, key, v))
		return fallback
	}
	return d
}
