package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"creditledger/internal/core"
)

type Config struct {
	// HTTP Server
	Port            string
	ShutdownTimeout time.Duration

	// Backend selection
	DataBackend string

	// Database
	SQLiteDBPath string
	DatabaseURL  string
	DataDir      string

	// Which credit field splits the ledger into months
	MonthPartitionKey string

	// Auth
	AuthMode        string
	AppPassword     string
	AppPasswordHash string
	JWTSecret       string
	SessionBackend  string
	RedisURL        string
	CookieSecure    bool
	LoginRateLimit  int

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets history mirror
	GoogleSpreadsheetID   string
	GoogleHistorySheet    string
	GoogleCredentialsFile string
	GoogleCredentialsJSON string
	// OAuth user credentials, an alternative to a service account.
	// The token comes from cmd/sheets-oauth-init.
	GoogleOAuthClientFile string
	GoogleOAuthClientJSON string
	GoogleOAuthTokenFile  string
	GoogleOAuthTokenJSON  string

	// Worker
	SyncInterval time.Duration

	LogLevel        string
	SummaryCacheTTL time.Duration
}

const (
	AuthModeSession = "session"
	AuthModeToken   = "token"

	SessionBackendStore = "store"
	SessionBackendRedis = "redis"

	// MinJWTSecretLength is the shortest HS256 secret accepted.
	MinJWTSecretLength = 32
)

func Load() *Config {
	cfg := &Config{
		Port:            getEnv("PORT", "8081"),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),

		DataBackend: getEnv("DATA_BACKEND", "memory"),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/credits.db"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		DataDir:      getEnv("DATA_DIR", "data"),

		MonthPartitionKey: getEnv("MONTH_PARTITION_KEY", core.MonthByDate.String()),

		AuthMode:        getEnv("AUTH_MODE", AuthModeSession),
		AppPassword:     getEnv("APP_PASSWORD", ""),
		AppPasswordHash: getEnv("APP_PASSWORD_HASH", ""),
		JWTSecret:       getEnv("JWT_SECRET", ""),
		SessionBackend:  getEnv("SESSION_BACKEND", SessionBackendStore),
		RedisURL:        getEnv("REDIS_URL", ""),
		CookieSecure:    getEnvBool("COOKIE_SECURE", false),
		LoginRateLimit:  getEnvInt("LOGIN_RATE_LIMIT", 10),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "creditledger"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "credit_events"),

		GoogleSpreadsheetID:   getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleHistorySheet:    getEnv("GOOGLE_HISTORY_SHEET", "History"),
		GoogleCredentialsFile: getEnv("GOOGLE_CREDENTIALS_FILE", ""),
		GoogleCredentialsJSON: getEnv("GOOGLE_CREDENTIALS_JSON", ""),
		GoogleOAuthClientFile: getEnv("GOOGLE_OAUTH_CLIENT_FILE", ""),
		GoogleOAuthClientJSON: getEnv("GOOGLE_OAUTH_CLIENT_JSON", ""),
		GoogleOAuthTokenFile:  getEnv("GOOGLE_OAUTH_TOKEN_FILE", ""),
		GoogleOAuthTokenJSON:  getEnv("GOOGLE_OAUTH_TOKEN_JSON", ""),

		SyncInterval: getEnvDuration("SYNC_INTERVAL", 30*time.Second),

		LogLevel:        getEnv("LOG_LEVEL", "info"),
		SummaryCacheTTL: getEnvDuration("SUMMARY_CACHE_TTL", 5*time.Minute),
	}

	return cfg
}

// MonthKey returns the configured partition key. Call Validate first.
func (c *Config) MonthKey() core.MonthKey {
	if c.MonthPartitionKey == "" {
		return core.MonthByDate
	}
	return core.MonthKey(c.MonthPartitionKey)
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
	validBackends := []string{"memory", "sqlite", "postgres"}
	if !oneOf(c.DataBackend, validBackends) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			// Check if directory exists or can be created
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	case "postgres":
		if c.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL is required when using postgres backend")
		} else if u, err := url.Parse(c.DatabaseURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid DATABASE_URL: %v", err))
		} else if u.Scheme != "postgres" && u.Scheme != "postgresql" {
			errors = append(errors, fmt.Sprintf("invalid DATABASE_URL scheme '%s': must be 'postgres' or 'postgresql'", u.Scheme))
		}
	}

	if !c.MonthKey().IsValid() {
		errors = append(errors, fmt.Sprintf("invalid month partition key '%s': must be one of [%s %s]",
			c.MonthPartitionKey, core.MonthByDate, core.MonthByCreatedAt))
	}

	// Validate auth
	validModes := []string{AuthModeSession, AuthModeToken}
	if !oneOf(c.AuthMode, validModes) {
		errors = append(errors, fmt.Sprintf("invalid auth mode '%s': must be one of %v", c.AuthMode, validModes))
	}
	if c.AppPassword == "" && c.AppPasswordHash == "" {
		errors = append(errors, "either APP_PASSWORD or APP_PASSWORD_HASH must be provided")
	}
	if c.AppPasswordHash != "" && !strings.HasPrefix(c.AppPasswordHash, "$2") {
		errors = append(errors, "APP_PASSWORD_HASH must be a bcrypt hash")
	}
	if c.AuthMode == AuthModeToken && len(c.JWTSecret) < MinJWTSecretLength {
		errors = append(errors, fmt.Sprintf("JWT_SECRET must be at least %d characters when using token auth", MinJWTSecretLength))
	}
	if c.AuthMode == AuthModeSession {
		validSessionBackends := []string{SessionBackendStore, SessionBackendRedis}
		if !oneOf(c.SessionBackend, validSessionBackends) {
			errors = append(errors, fmt.Sprintf("invalid session backend '%s': must be one of %v", c.SessionBackend, validSessionBackends))
		}
		if c.SessionBackend == SessionBackendRedis {
			if c.RedisURL == "" {
				errors = append(errors, "REDIS_URL is required when using redis sessions")
			} else if u, err := url.Parse(c.RedisURL); err != nil || (u.Scheme != "redis" && u.Scheme != "rediss") {
				errors = append(errors, fmt.Sprintf("invalid REDIS_URL '%s': must use 'redis' or 'rediss' scheme", c.RedisURL))
			}
		}
	}
	if c.LoginRateLimit < 1 {
		errors = append(errors, fmt.Sprintf("invalid login rate limit %d: must be at least 1", c.LoginRateLimit))
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

	if c.GoogleCredentialsFile != "" {
		if _, err := os.Stat(c.GoogleCredentialsFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google credentials file does not exist: %s", c.GoogleCredentialsFile))
		}
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !oneOf(strings.ToLower(c.LogLevel), validLevels) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLevels))
	}

	if c.SummaryCacheTTL < 0 || c.SummaryCacheTTL > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid summary cache TTL %v: must be between 0 and 24 hours", c.SummaryCacheTTL))
	}

	if c.ShutdownTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid shutdown timeout %v: must be at least 1 second", c.ShutdownTimeout))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ValidateWorker checks only what the sync worker needs. The worker neither
// serves HTTP nor authenticates, so Validate would reject valid worker setups.
func (c *Config) ValidateWorker() error {
	var errors []string
	if c.AMQPURL == "" {
		errors = append(errors, "AMQP_URL is required for the sync worker")
	}
	if c.AMQPExchange == "" || c.AMQPQueue == "" {
		errors = append(errors, "AMQP exchange and queue names are required for the sync worker")
	}
	if c.GoogleSpreadsheetID == "" {
		errors = append(errors, "GOOGLE_SPREADSHEET_ID is required for the sync worker")
	}
	if c.GoogleHistorySheet == "" {
		errors = append(errors, "GOOGLE_HISTORY_SHEET cannot be empty")
	}
	serviceAccount := c.GoogleCredentialsFile != "" || c.GoogleCredentialsJSON != ""
	oauthClient := c.GoogleOAuthClientFile != "" || c.GoogleOAuthClientJSON != ""
	oauthToken := c.GoogleOAuthTokenFile != "" || c.GoogleOAuthTokenJSON != ""
	switch {
	case oauthClient && !oauthToken:
		errors = append(errors, "GOOGLE_OAUTH_TOKEN_FILE or GOOGLE_OAUTH_TOKEN_JSON is required with an OAuth client (run sheets-oauth-init)")
	case !serviceAccount && !oauthClient:
		errors = append(errors, "either GOOGLE_CREDENTIALS_FILE or GOOGLE_CREDENTIALS_JSON (or an OAuth client and token) must be provided for the sync worker")
	}
	if c.SyncInterval < time.Second || c.SyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be between 1 second and 24 hours", c.SyncInterval))
	}
	if len(errors) > 0 {
		return fmt.Errorf("worker configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
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
