// ABOUTME: Configuration loading and validation for kirogpt
// ABOUTME: Reads optional TOML with ${VAR} expansion, applies env overrides, defaults and duration parsing

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultModel          = "gpt-3.5-turbo"
	DefaultBaseURL        = "https://api.openai.com/v1"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"
	DefaultTypingInterval = 5 * time.Second
	DefaultWarningTTL     = 5 * time.Second
)

// Config represents the complete kirogpt configuration
type Config struct {
	Matrix     MatrixConfig     `toml:"matrix"`
	Database   DatabaseConfig   `toml:"database"`
	Completion CompletionConfig `toml:"completion"`
	Bot        BotConfig        `toml:"bot"`
	Logging    LoggingConfig    `toml:"logging"`
}

// MatrixConfig holds the chat gateway connection
type MatrixConfig struct {
	Homeserver   string   `toml:"homeserver"`
	UserID       string   `toml:"user_id"`
	AccessToken  string   `toml:"access_token"`
	AllowedRooms []string `toml:"allowed_rooms"`
}

// DatabaseConfig holds the history store location
type DatabaseConfig struct {
	URL string `toml:"url"`
}

// CompletionConfig holds the chat completion endpoint settings
type CompletionConfig struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
}

// BotConfig holds pipeline timing
type BotConfig struct {
	TypingInterval time.Duration `toml:"-"`
	WarningTTL     time.Duration `toml:"-"`

	// Raw string values for TOML decoding
	TypingIntervalRaw string `toml:"typing_interval"`
	WarningTTLRaw     string `toml:"warning_ttl"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// envOverrides maps environment variables onto config fields.
var envOverrides = []struct {
	name  string
	field func(*Config) *string
}{
	{"MATRIX_HOMESERVER", func(c *Config) *string { return &c.Matrix.Homeserver }},
	{"MATRIX_USER_ID", func(c *Config) *string { return &c.Matrix.UserID }},
	{"MATRIX_ACCESS_TOKEN", func(c *Config) *string { return &c.Matrix.AccessToken }},
	{"DATABASE_URL", func(c *Config) *string { return &c.Database.URL }},
	{"OPENAI_API_KEY", func(c *Config) *string { return &c.Completion.APIKey }},
	{"OPENAI_BASE_URL", func(c *Config) *string { return &c.Completion.BaseURL }},
}

// Load reads the configuration. A missing file is not an error; the environment
// alone may carry everything required.
func Load(path string) (*Config, error) {
	var raw string
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			raw = string(data)
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}
	return Parse(raw, os.Getenv)
}

// Parse builds a Config from TOML text and an environment lookup.
func Parse(data string, getenv func(string) string) (*Config, error) {
	var cfg Config
	if _, err := toml.Decode(expandEnvVars(data, getenv), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	applyEnv(&cfg, getenv)
	applyDefaults(&cfg)

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} with environment variable values.
func expandEnvVars(s string, getenv func(string) string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		return getenv(varName)
	})
}

func applyEnv(cfg *Config, getenv func(string) string) {
	for _, o := range envOverrides {
		if v := getenv(o.name); v != "" {
			*o.field(cfg) = v
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Completion.Model == "" {
		cfg.Completion.Model = DefaultModel
	}
	if cfg.Completion.BaseURL == "" {
		cfg.Completion.BaseURL = DefaultBaseURL
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}
	cfg.Bot.TypingInterval = DefaultTypingInterval
	cfg.Bot.WarningTTL = DefaultWarningTTL
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Bot.TypingIntervalRaw != "" {
		cfg.Bot.TypingInterval, err = time.ParseDuration(cfg.Bot.TypingIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing typing_interval %q: %w", cfg.Bot.TypingIntervalRaw, err)
		}
	}

	if cfg.Bot.WarningTTLRaw != "" {
		cfg.Bot.WarningTTL, err = time.ParseDuration(cfg.Bot.WarningTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing warning_ttl %q: %w", cfg.Bot.WarningTTLRaw, err)
		}
	}

	return nil
}

// Validate checks that required config fields are present and valid.
func (c *Config) Validate() error {
	if c.Matrix.Homeserver == "" {
		return fmt.Errorf("matrix.homeserver is required (or set MATRIX_HOMESERVER)")
	}
	if err := validateHTTPURL(c.Matrix.Homeserver); err != nil {
		return fmt.Errorf("matrix.homeserver: %w", err)
	}
	if c.Matrix.AccessToken == "" {
		return fmt.Errorf("matrix.access_token is required (or set MATRIX_ACCESS_TOKEN)")
	}
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required (or set DATABASE_URL)")
	}
	if c.Completion.APIKey == "" {
		return fmt.Errorf("completion.api_key is required (or set OPENAI_API_KEY)")
	}
	if err := validateHTTPURL(c.Completion.BaseURL); err != nil {
		return fmt.Errorf("completion.base_url: %w", err)
	}
	if c.Bot.TypingInterval <= 0 {
		return fmt.Errorf("bot.typing_interval must be positive")
	}
	if c.Bot.WarningTTL <= 0 {
		return fmt.Errorf("bot.warning_ttl must be positive")
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("must use http or https scheme")
	}
	return nil
}

// DatabasePath turns database.url into a SQLite file path. Accepted forms are a
// bare path, sqlite://path, sqlite:path and file:path.
func (c *Config) DatabasePath() string {
	u := c.Database.URL
	for _, prefix := range []string{"sqlite://", "sqlite:", "file:"} {
		if strings.HasPrefix(u, prefix) {
			return strings.TrimPrefix(u, prefix)
		}
	}
	return u
}
