package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"tablero/internal/log"
)

const (
	BackendSheets = "sheets"
	BackendMemory = "memory"
)

type Config struct {
	// HTTP Server
	Port string

	// Backend selection
	DataBackend    string
	MemorySeedFile string

	// Google Sheets
	GoogleSpreadsheetID         string
	GoogleSheetName             string
	GoogleDataRange             string
	GoogleServiceAccountEmail   string
	GooglePrivateKey            string
	GoogleAPIKey                string
	GoogleRequestTimeoutSeconds int

	// Refresh loop
	RefreshInterval time.Duration

	// AMQP, disabled when AMQPURL is empty
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// View cache
	ViewCacheSize int
	ViewCacheTTL  time.Duration

	// Appends per client per minute
	RateLimitPerMinute int

	// Extra proxy networks whose X-Forwarded-For is believed
	TrustedProxies []string

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() *Config {
	cfg := &Config{
		Port: getEnv("PORT", "8081"),

		DataBackend:    getEnv("DATA_BACKEND", BackendSheets),
		MemorySeedFile: getEnv("MEMORY_SEED_FILE", ""),

		GoogleSpreadsheetID:         getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:             getEnv("GOOGLE_SHEET_NAME", "Hoja 1"),
		GoogleDataRange:             getEnv("GOOGLE_DATA_RANGE", "A:F"),
		GoogleServiceAccountEmail:   getEnv("GOOGLE_SERVICE_ACCOUNT_EMAIL", ""),
		GooglePrivateKey:            getEnv("GOOGLE_PRIVATE_KEY", ""),
		GoogleAPIKey:                getEnv("GOOGLE_API_KEY", ""),
		GoogleRequestTimeoutSeconds: getEnvInt("GOOGLE_REQUEST_TIMEOUT_SECONDS", 15),

		RefreshInterval: getEnvDuration("REFRESH_INTERVAL", 5*time.Second),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "tablero"),
		AMQPQueue:    getEnv("AMQP_QUEUE", ""),

		ViewCacheSize: getEnvInt("VIEW_CACHE_SIZE", 256),
		ViewCacheTTL:  getEnvDuration("VIEW_CACHE_TTL", 5*time.Minute),

		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		TrustedProxies:     getEnvList("TRUSTED_PROXIES"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	return cfg
}

// AMQPEnabled reports whether append notifications go through a broker.
func (c *Config) AMQPEnabled() bool {
	return c.AMQPURL != ""
}

// RequestTimeout bounds each call to the Sheets API.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.GoogleRequestTimeoutSeconds) * time.Second
}

// MissingSheetsSettings lists the Sheets variables that keep the sheets
// backend from working. Missing settings are reported per request, not at
// startup.
func (c *Config) MissingSheetsSettings() []string {
	var missing []string
	if c.GoogleSpreadsheetID == "" {
		missing = append(missing, "GOOGLE_SPREADSHEET_ID")
	}
	hasServiceAccount := c.GoogleServiceAccountEmail != "" && c.GooglePrivateKey != ""
	if !hasServiceAccount && c.GoogleAPIKey == "" {
		missing = append(missing, "GOOGLE_SERVICE_ACCOUNT_EMAIL/GOOGLE_PRIVATE_KEY or GOOGLE_API_KEY")
	}
	return missing
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

	// Validate data backend
	validBackends := []string{BackendSheets, BackendMemory}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	// A seed file is optional, but a configured one must exist
	if c.DataBackend == BackendMemory && c.MemorySeedFile != "" {
		if _, err := os.Stat(c.MemorySeedFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("memory seed file does not exist: %s", c.MemorySeedFile))
		}
	}

	if c.DataBackend == BackendSheets {
		if strings.TrimSpace(c.GoogleSheetName) == "" {
			errors = append(errors, "Google sheet name cannot be empty when using sheets backend")
		}
		if strings.TrimSpace(c.GoogleDataRange) == "" {
			errors = append(errors, "Google data range cannot be empty when using sheets backend")
		}
		if c.GoogleRequestTimeoutSeconds < 1 || c.GoogleRequestTimeoutSeconds > 300 {
			errors = append(errors, fmt.Sprintf("invalid Google request timeout %d: must be between 1 and 300 seconds", c.GoogleRequestTimeoutSeconds))
		}
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

	if c.RefreshInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid refresh interval %v: must be at least 1 second", c.RefreshInterval))
	} else if c.RefreshInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid refresh interval %v: must be at most 24 hours", c.RefreshInterval))
	}

	if c.ViewCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid view cache size %d: must be at least 1", c.ViewCacheSize))
	} else if c.ViewCacheSize > 100000 {
		errors = append(errors, fmt.Sprintf("invalid view cache size %d: must be at most 100000", c.ViewCacheSize))
	}
	if c.ViewCacheTTL <= 0 {
		errors = append(errors, fmt.Sprintf("invalid view cache TTL %v: must be positive", c.ViewCacheTTL))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	for _, cidr := range c.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			errors = append(errors, fmt.Sprintf("invalid trusted proxy %q: must be a CIDR such as 203.0.113.0/24", cidr))
		}
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, err.Error())
	}
	if _, err := log.ParseFormat(c.LogFormat); err != nil {
		errors = append(errors, err.Error())
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

// getEnvList splits a comma-separated variable, dropping empty items.
func getEnvList(key string) []string {
	var items []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
