package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port string

	// Storage
	CacheDir     string
	StaticDir    string
	EngineDBPath string

	// Upstream API
	USASpendingBaseURL string
	FetchTimeout       time.Duration

	// Report
	RankSize            int
	HistoryLimit        int
	SubmitRatePerMinute int

	// Logging
	LogLevel string

	// AMQP (empty URL disables the report event)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets (empty spreadsheet ID disables the export)
	GoogleSpreadsheetID      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
}

func Load() *Config {
	cfg := &Config{
		Port: getEnv("PORT", "8080"),

		CacheDir:     getEnv("CACHE_DIR", "./data"),
		StaticDir:    getEnv("STATIC_DIR", "./static"),
		EngineDBPath: getEnv("ENGINE_DB_PATH", "./data/engine.db"),

		USASpendingBaseURL: getEnv("USASPENDING_BASE_URL", "https://api.usaspending.gov"),
		FetchTimeout:       getEnvDuration("FETCH_TIMEOUT", 30*time.Second),

		RankSize:            getEnvInt("RANK_SIZE", 10),
		HistoryLimit:        getEnvInt("HISTORY_LIMIT", 10),
		SubmitRatePerMinute: getEnvInt("SUBMIT_RATE_PER_MINUTE", 30),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "spending"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "report_generated"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if strings.TrimSpace(c.CacheDir) == "" {
		errors = append(errors, "cache directory cannot be empty")
	}
	if strings.TrimSpace(c.StaticDir) == "" {
		errors = append(errors, "static directory cannot be empty")
	}
	if strings.TrimSpace(c.EngineDBPath) == "" {
		errors = append(errors, "engine database path cannot be empty")
	}

	// Validate upstream URL
	if parsedURL, err := url.Parse(c.USASpendingBaseURL); err != nil {
		errors = append(errors, fmt.Sprintf("invalid USAspending base URL '%s': %v", c.USASpendingBaseURL, err))
	} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		errors = append(errors, fmt.Sprintf("invalid USAspending base URL scheme '%s': must be 'http' or 'https'", parsedURL.Scheme))
	}

	if c.FetchTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid fetch timeout %v: must be at least 1 second", c.FetchTimeout))
	} else if c.FetchTimeout > 5*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid fetch timeout %v: must be at most 5 minutes", c.FetchTimeout))
	}

	if c.RankSize < 1 || c.RankSize > 100 {
		errors = append(errors, fmt.Sprintf("invalid rank size %d: must be between 1 and 100", c.RankSize))
	}
	if c.HistoryLimit < 0 {
		errors = append(errors, fmt.Sprintf("invalid history limit %d: must not be negative", c.HistoryLimit))
	}
	if c.SubmitRatePerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid submit rate %d: must be at least 1 per minute", c.SubmitRatePerMinute))
	}

	if _, err := parseLevel(c.LogLevel); err != nil {
		errors = append(errors, err.Error())
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
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	// Validate Google Sheets export if enabled
	if c.GoogleSpreadsheetID != "" {
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" && os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided when GOOGLE_SPREADSHEET_ID is set")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// SlogLevel returns the configured log level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

// AMQPEnabled reports whether report events should be published.
func (c *Config) AMQPEnabled() bool {
	return c.AMQPURL != ""
}

// SheetsEnabled reports whether rankings should be exported to Google Sheets.
func (c *Config) SheetsEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level '%s': must be one of debug, info, warn, error", s)
	}
	return level, nil
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
