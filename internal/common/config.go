// Package common provides shared utilities for classfund
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for classfund
type Config struct {
	Environment string        `toml:"environment"`
	Server      ServerConfig  `toml:"server"`
	Ledger      LedgerConfig  `toml:"ledger"`
	Quotes      QuotesConfig  `toml:"quotes"`
	Clients     ClientsConfig `toml:"clients"`
	Cache       CacheConfig   `toml:"cache"`
	Lineage     LineageConfig `toml:"lineage"`
	Refresh     RefreshConfig `toml:"refresh"`
	Logging     LoggingConfig `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// LedgerConfig points at the holdings ledger. Format is inferred from the
// file extension unless set explicitly ("json", "csv", "tsv", "delimited", "xlsx").
type LedgerConfig struct {
	Path   string `toml:"path"`
	Format string `toml:"format"`
}

// QuotesConfig controls the provider chain and the fetch worker pool.
type QuotesConfig struct {
	Concurrency int      `toml:"concurrency"`
	Providers   []string `toml:"providers"` // priority order
	Benchmark   string   `toml:"benchmark"` // S&P 500 proxy ticker
}

// ClientsConfig holds API client configurations
type ClientsConfig struct {
	EODHD     EODHDConfig     `toml:"eodhd"`
	APINinjas APINinjasConfig `toml:"apininjas"`
	Stooq     StooqConfig     `toml:"stooq"`
}

// EODHDConfig holds EODHD API configuration
type EODHDConfig struct {
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *EODHDConfig) GetTimeout() time.Duration {
	return parseDuration(c.Timeout, 10*time.Second)
}

// APINinjasConfig holds API Ninjas stock price configuration
type APINinjasConfig struct {
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	PricePath string `toml:"price_path"` // JSONPath into the response body
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *APINinjasConfig) GetTimeout() time.Duration {
	return parseDuration(c.Timeout, 10*time.Second)
}

// StooqConfig holds configuration for the stooq CSV feed (no key required)
type StooqConfig struct {
	BaseURL   string `toml:"base_url"`
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *StooqConfig) GetTimeout() time.Duration {
	return parseDuration(c.Timeout, 10*time.Second)
}

// CacheConfig holds the snapshot cache file location and its staleness window.
type CacheConfig struct {
	Path    string `toml:"path"`
	MaxAge  string `toml:"max_age"`
	SameDay bool   `toml:"same_day"` // also accept any price fetched earlier the same calendar day
}

// GetMaxAge parses and returns the cache staleness window
func (c *CacheConfig) GetMaxAge() time.Duration {
	return parseDuration(c.MaxAge, 18*time.Hour)
}

// LineageConfig optionally replaces the built-in lineage data with a JSON file.
type LineageConfig struct {
	Path string `toml:"path"`
}

// RefreshConfig schedules the out-of-band refresh job (standard 5-field cron syntax).
type RefreshConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "console" or "json"
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Ledger: LedgerConfig{
			Path: "data/holdings.json",
		},
		Quotes: QuotesConfig{
			Concurrency: 6,
			Providers:   []string{"eodhd", "apininjas", "stooq"},
			Benchmark:   "SPY",
		},
		Clients: ClientsConfig{
			EODHD: EODHDConfig{
				BaseURL:   "https://eodhd.com/api",
				RateLimit: 10,
				Timeout:   "10s",
			},
			APINinjas: APINinjasConfig{
				BaseURL:   "https://api.api-ninjas.com",
				PricePath: "$.price",
				RateLimit: 5,
				Timeout:   "10s",
			},
			Stooq: StooqConfig{
				BaseURL:   "https://stooq.com",
				RateLimit: 5,
				Timeout:   "10s",
			},
		},
		Cache: CacheConfig{
			Path:    "data/cache/portfolio_snapshot.json",
			MaxAge:  "18h",
			SameDay: true,
		},
		Refresh: RefreshConfig{
			Enabled:  true,
			Schedule: "30 21 * * 1-5", // after the US close, UTC
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides.
// A .env file in the working directory is loaded first if present.
func LoadConfig(paths ...string) (*Config, error) {
	_ = godotenv.Load()

	config := NewDefaultConfig()

	// Later files override earlier ones
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if config.Quotes.Concurrency < 1 {
		config.Quotes.Concurrency = 1
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("CLASSFUND_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("CLASSFUND_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("CLASSFUND_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("CLASSFUND_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if path := os.Getenv("CLASSFUND_LEDGER"); path != "" {
		config.Ledger.Path = path
	}

	if path := os.Getenv("CLASSFUND_CACHE_PATH"); path != "" {
		config.Cache.Path = path
	}

	if v := os.Getenv("CLASSFUND_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Quotes.Concurrency = n
		}
	}

	if v := os.Getenv("CLASSFUND_PROVIDERS"); v != "" {
		var providers []string
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(strings.ToLower(p)); p != "" {
				providers = append(providers, p)
			}
		}
		config.Quotes.Providers = providers
	}

	// Provider credentials
	for _, name := range []string{"EODHD_API_KEY", "CLASSFUND_EODHD_API_KEY"} {
		if v := os.Getenv(name); v != "" {
			config.Clients.EODHD.APIKey = v
		}
	}
	for _, name := range []string{"API_NINJAS_KEY", "CLASSFUND_APININJAS_API_KEY"} {
		if v := os.Getenv(name); v != "" {
			config.Clients.APINinjas.APIKey = v
		}
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
