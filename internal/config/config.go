package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Backends accepted by DATA_BACKEND.
var validBackends = []string{"memory", "sqlite"}

var validLogLevels = []string{"debug", "info", "warn", "error"}

type Config struct {
	// HTTP Server
	Port string

	// Backend selection
	DataBackend string

	// Database
	SQLiteDBPath string

	// Memory backend seed files; empty uses the built-in data
	SeedDir string

	// Timezone in which "today" is evaluated for dashboard stats
	LedgerTimezone string

	LogLevel string

	// AMQP (optional; empty URL disables ledger events)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Reports
	ReportsDir     string
	ReportInterval time.Duration

	// Google Sheets report sink (optional)
	GoogleSpreadsheetID      string
	GoogleReportSheetName    string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
}

func Load() *Config {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		DataBackend: getEnv("DATA_BACKEND", "memory"),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/ledger.db"),
		SeedDir:      getEnv("SEED_DIR", ""),

		LedgerTimezone: getEnv("LEDGER_TIMEZONE", "UTC"),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", "info")),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "ledger"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_reports"),

		ReportsDir:     getEnv("REPORTS_DIR", "./reports"),
		ReportInterval: getEnvDuration("REPORT_INTERVAL", 15*time.Minute),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleReportSheetName:    getEnv("GOOGLE_REPORT_SHEET_NAME", "Daily"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
	}

	return cfg
}

// Location resolves LedgerTimezone, defaulting to UTC when unset.
func (c *Config) Location() (*time.Location, error) {
	if c.LedgerTimezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.LedgerTimezone)
}

// SheetsEnabled reports whether the Google Sheets report sink is configured.
func (c *Config) SheetsEnabled() bool {
	return c.GoogleSpreadsheetID != ""
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

	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" && c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
	}

	if c.SeedDir != "" {
		if info, err := os.Stat(c.SeedDir); err != nil || !info.IsDir() {
			errors = append(errors, fmt.Sprintf("seed directory '%s' does not exist", c.SeedDir))
		}
	}

	if _, err := c.Location(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid ledger timezone '%s': %v", c.LedgerTimezone, err))
	}

	if !slices.Contains(validLogLevels, c.LogLevel) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLogLevels))
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

	if c.ReportsDir == "" {
		errors = append(errors, "reports directory cannot be empty")
	} else if abs, err := filepath.Abs(c.ReportsDir); err != nil {
		errors = append(errors, fmt.Sprintf("invalid reports directory '%s': %v", c.ReportsDir, err))
	} else if info, err := os.Stat(abs); err == nil && !info.IsDir() {
		errors = append(errors, fmt.Sprintf("reports path '%s' is not a directory", c.ReportsDir))
	}

	if c.ReportInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid report interval %v: must be at least 1 minute", c.ReportInterval))
	} else if c.ReportInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid report interval %v: must be at most 24 hours", c.ReportInterval))
	}

	// Google Sheets credentials are only required once a spreadsheet is set
	if c.SheetsEnabled() {
		if c.GoogleReportSheetName == "" {
			errors = append(errors, "Google report sheet name is required when GOOGLE_SPREADSHEET_ID is set")
		}
		hasFile := c.GoogleServiceAccountFile != ""
		hasJSON := c.GoogleServiceAccountJSON != ""
		if !hasFile && !hasJSON {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided when GOOGLE_SPREADSHEET_ID is set")
		}
		if hasFile {
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

// ValidateSharedLedger checks that the ledger lives in a store other
// processes can read. The report worker and the report CLI need this: with
// the memory backend they would only ever see their own seed copy.
func (c *Config) ValidateSharedLedger() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.DataBackend != "sqlite" {
		return fmt.Errorf("DATA_BACKEND must be 'sqlite' for out-of-process reporting, got '%s'", c.DataBackend)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
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
