package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// HTTP server
	Port string

	// Storage backend selection: sqlite, postgres or memory.
	StorageBackend string
	SQLiteDBPath   string
	PostgresDSN    string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Spreadsheet export
	GoogleSpreadsheetID string
	GoogleSheetName     string

	// Recurring-rule worker
	ProcessInterval time.Duration
	Parallelism     int

	// Sync worker
	SyncBatchSize int
}

// Load reads configuration from the environment. A .env file in the
// working directory is merged in first when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port: getEnv("PORT", "8080"),

		StorageBackend: getEnv("STORAGE_BACKEND", "sqlite"),
		SQLiteDBPath:   getEnv("SQLITE_DB_PATH", "./data/ledger.db"),
		PostgresDSN:    getEnv("POSTGRES_DSN", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "ledger"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "sync_transactions"),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:     getEnv("GOOGLE_SHEET_NAME", "Ledger"),

		ProcessInterval: getEnvDuration("PROCESS_INTERVAL", time.Hour),
		Parallelism:     getEnvInt("PROCESS_PARALLELISM", 4),

		SyncBatchSize: getEnvInt("SYNC_BATCH_SIZE", 50),
	}
}

// Validate checks the whole configuration and reports every problem
// at once.
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.StorageBackend {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errs = append(errs, "SQLITE_DB_PATH cannot be empty when using the sqlite backend")
		}
	case "postgres":
		if c.PostgresDSN == "" {
			errs = append(errs, "POSTGRES_DSN is required when using the postgres backend")
		}
	case "memory":
	default:
		errs = append(errs, fmt.Sprintf("invalid storage backend '%s': must be one of [sqlite postgres memory]", c.StorageBackend))
	}

	if c.AMQPURL != "" {
		if parsed, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsed.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP_EXCHANGE cannot be empty when AMQP_URL is set")
		}
		if c.AMQPQueue == "" {
			errs = append(errs, "AMQP_QUEUE cannot be empty when AMQP_URL is set")
		}
	}

	if c.ProcessInterval < time.Minute {
		errs = append(errs, fmt.Sprintf("invalid process interval %v: must be at least 1 minute", c.ProcessInterval))
	}
	if c.Parallelism < 1 || c.Parallelism > 64 {
		errs = append(errs, fmt.Sprintf("invalid parallelism %d: must be between 1 and 64", c.Parallelism))
	}
	if c.SyncBatchSize < 1 || c.SyncBatchSize > 1000 {
		errs = append(errs, fmt.Sprintf("invalid sync batch size %d: must be between 1 and 1000", c.SyncBatchSize))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
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
