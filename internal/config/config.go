// Package config loads application configuration from an optional YAML file
// and environment variables. Flags are applied by the CLI layer on top.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values used when neither file nor environment provides a setting
const (
	DefaultWeReadBaseURL = "https://weread.qq.com"
	DefaultStateFile     = "./data/sync_state.json"
	DefaultBookDelay     = 2 * time.Second
	DefaultGitHubRate    = 500 * time.Millisecond
)

// Config holds all configuration for the application
type Config struct {
	// Logging configuration
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	// WeRead source platform configuration
	WeRead struct {
		Cookie  string        `yaml:"cookie"`
		BaseURL string        `yaml:"base_url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"weread"`

	// GitHub destination configuration
	GitHub struct {
		Token     string        `yaml:"token"`
		Owner     string        `yaml:"owner"`
		Repo      string        `yaml:"repo"`
		RateLimit time.Duration `yaml:"rate_limit"`
	} `yaml:"github"`

	// Application settings
	App struct {
		DryRun     bool          `yaml:"dry_run"`
		FullResync bool          `yaml:"full_resync"`
		BookFilter string        `yaml:"book_filter"`
		BookLimit  int           `yaml:"book_limit"`
		BookDelay  time.Duration `yaml:"book_delay"`
	} `yaml:"app"`

	// File paths
	Paths struct {
		SyncStateFile     string `yaml:"sync_state_file"`
		BookshelfHTMLFile string `yaml:"bookshelf_html_file"`
	} `yaml:"paths"`
}

// Load reads configuration from an optional YAML file, then applies
// environment variable overrides, then validates.
func Load(configFile string) (*Config, error) {
	cfg := &Config{}

	// Defaults
	cfg.WeRead.BaseURL = DefaultWeReadBaseURL
	cfg.WeRead.Timeout = 30 * time.Second
	cfg.GitHub.RateLimit = DefaultGitHubRate
	cfg.App.BookDelay = DefaultBookDelay
	cfg.Paths.SyncStateFile = DefaultStateFile
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "console"

	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %q: %w", configFile, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %q: %w", configFile, err)
		}
	}

	loadFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromEnv applies environment variable overrides
func loadFromEnv(cfg *Config) {
	if v := getEnv("LOG_LEVEL", ""); v != "" {
		cfg.Logging.Level = v
	}
	if v := getEnv("LOG_FORMAT", ""); v != "" {
		cfg.Logging.Format = v
	}

	if v := getEnv("WEREAD_COOKIE", ""); v != "" {
		cfg.WeRead.Cookie = v
	}
	if v := getEnv("WEREAD_BASE_URL", ""); v != "" {
		cfg.WeRead.BaseURL = v
	}

	if v := getEnv("GITHUB_TOKEN", ""); v != "" {
		cfg.GitHub.Token = v
	}
	if v := getEnv("GITHUB_REPO_OWNER", ""); v != "" {
		cfg.GitHub.Owner = v
	}
	if v := getEnv("GITHUB_REPO_NAME", ""); v != "" {
		cfg.GitHub.Repo = v
	}
	if d := getDurationFromEnv("GITHUB_RATE_LIMIT", 0); d > 0 {
		cfg.GitHub.RateLimit = d
	}

	if v, set := os.LookupEnv("DRY_RUN"); set {
		cfg.App.DryRun = strings.ToLower(v) == "true"
	}
	if v, set := os.LookupEnv("FULL_RESYNC"); set {
		cfg.App.FullResync = strings.ToLower(v) == "true"
	}
	if v := getEnv("BOOK_FILTER", ""); v != "" {
		cfg.App.BookFilter = v
	}
	if n := getIntFromEnv("BOOK_LIMIT", 0); n > 0 {
		cfg.App.BookLimit = n
	}
	if d := getDurationFromEnv("BOOK_DELAY", 0); d > 0 {
		cfg.App.BookDelay = d
	}

	if v := getEnv("SYNC_STATE_FILE", ""); v != "" {
		cfg.Paths.SyncStateFile = v
	}
	if v := getEnv("BOOKSHELF_HTML_FILE", ""); v != "" {
		cfg.Paths.BookshelfHTMLFile = v
	}
}

// Validate checks that the credentials required before any book can be
// processed are present. This is the only fatal configuration error.
func (c *Config) Validate() error {
	var missing []string
	if c.WeRead.Cookie == "" {
		missing = append(missing, "weread.cookie (WEREAD_COOKIE)")
	}
	if c.GitHub.Token == "" {
		missing = append(missing, "github.token (GITHUB_TOKEN)")
	}
	if c.GitHub.Owner == "" {
		missing = append(missing, "github.owner (GITHUB_REPO_OWNER)")
	}
	if c.GitHub.Repo == "" {
		missing = append(missing, "github.repo (GITHUB_REPO_NAME)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, set := os.LookupEnv(key); set && value != "" {
		return value
	}
	return defaultValue
}

func getIntFromEnv(key string, defaultValue int) int {
	if value := getEnv(key, ""); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getDurationFromEnv(key string, defaultValue time.Duration) time.Duration {
	if value := getEnv(key, ""); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
