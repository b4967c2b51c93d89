package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"youspent/internal/bootstrap"
	"youspent/internal/log"
)

type Config struct {
	// Database
	SQLiteDBPath string

	// Bring-up
	InitFailureMode string
	InitTimeout     time.Duration

	// Logging
	LogLevel string

	// AMQP, optional
	AMQPURL      string
	AMQPExchange string

	// Summaries
	SummaryCacheSize int
	SummaryCacheTTL  time.Duration
}

// fileConfig mirrors Config for the optional YAML file. Durations are read as
// strings so they can use Go duration syntax.
type fileConfig struct {
	SQLiteDBPath     string `yaml:"sqlite_db_path"`
	InitFailureMode  string `yaml:"init_failure_mode"`
	InitTimeout      string `yaml:"init_timeout"`
	LogLevel         string `yaml:"log_level"`
	AMQPURL          string `yaml:"amqp_url"`
	AMQPExchange     string `yaml:"amqp_exchange"`
	SummaryCacheSize int    `yaml:"summary_cache_size"`
	SummaryCacheTTL  string `yaml:"summary_cache_ttl"`
}

func defaults() *Config {
	return &Config{
		SQLiteDBPath:     "./data/youspent.db",
		InitFailureMode:  bootstrap.FailureFatal.String(),
		LogLevel:         "info",
		AMQPExchange:     "youspent",
		SummaryCacheSize: 64,
		SummaryCacheTTL:  5 * time.Minute,
	}
}

// Load builds the configuration from defaults, the YAML file named by
// CONFIG_FILE when set, and environment variables, in increasing precedence.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.SQLiteDBPath = getEnv("SQLITE_DB_PATH", cfg.SQLiteDBPath)
	cfg.InitFailureMode = getEnv("INIT_FAILURE_MODE", cfg.InitFailureMode)
	cfg.InitTimeout = getEnvDuration("INIT_TIMEOUT", cfg.InitTimeout)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.AMQPURL = getEnv("AMQP_URL", cfg.AMQPURL)
	cfg.AMQPExchange = getEnv("AMQP_EXCHANGE", cfg.AMQPExchange)
	cfg.SummaryCacheSize = getEnvInt("SUMMARY_CACHE_SIZE", cfg.SummaryCacheSize)
	cfg.SummaryCacheTTL = getEnvDuration("SUMMARY_CACHE_TTL", cfg.SummaryCacheTTL)

	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fc.SQLiteDBPath != "" {
		c.SQLiteDBPath = fc.SQLiteDBPath
	}
	if fc.InitFailureMode != "" {
		c.InitFailureMode = fc.InitFailureMode
	}
	if fc.LogLevel != "" {
		c.LogLevel = fc.LogLevel
	}
	if fc.AMQPURL != "" {
		c.AMQPURL = fc.AMQPURL
	}
	if fc.AMQPExchange != "" {
		c.AMQPExchange = fc.AMQPExchange
	}
	if fc.SummaryCacheSize != 0 {
		c.SummaryCacheSize = fc.SummaryCacheSize
	}
	if fc.InitTimeout != "" {
		d, err := time.ParseDuration(fc.InitTimeout)
		if err != nil {
			return fmt.Errorf("parse config file %s: init_timeout: %w", path, err)
		}
		c.InitTimeout = d
	}
	if fc.SummaryCacheTTL != "" {
		d, err := time.ParseDuration(fc.SummaryCacheTTL)
		if err != nil {
			return fmt.Errorf("parse config file %s: summary_cache_ttl: %w", path, err)
		}
		c.SummaryCacheTTL = d
	}
	return nil
}

// FailureMode returns the parsed INIT_FAILURE_MODE.
func (c *Config) FailureMode() (bootstrap.FailureMode, error) {
	return bootstrap.ParseFailureMode(c.InitFailureMode)
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
		if info, err := os.Stat(dir); err == nil && !info.IsDir() {
			errors = append(errors, fmt.Sprintf("SQLite database directory '%s' is not a directory", dir))
		}
	}

	if _, err := c.FailureMode(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid init failure mode '%s': must be 'fatal' or 'degrade'", c.InitFailureMode))
	}

	if c.InitTimeout < 0 {
		errors = append(errors, fmt.Sprintf("invalid init timeout %v: must not be negative", c.InitTimeout))
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	if c.SummaryCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid summary cache size %d: must be at least 1", c.SummaryCacheSize))
	} else if c.SummaryCacheSize > 10000 {
		errors = append(errors, fmt.Sprintf("invalid summary cache size %d: must be at most 10000", c.SummaryCacheSize))
	}

	if c.SummaryCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid summary cache TTL %v: must not be negative", c.SummaryCacheTTL))
	} else if c.SummaryCacheTTL > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid summary cache TTL %v: must be at most 24 hours", c.SummaryCacheTTL))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
