package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"stacksight/internal/db"
)

const minSessionSecretLen = 32

type Config struct {
	// HTTP Server
	Port               string   `mapstructure:"PORT"`
	CORSAllowedOrigins []string `mapstructure:"CORS_ALLOWED_ORIGINS"`
	RateLimitPerMinute int      `mapstructure:"RATE_LIMIT_PER_MINUTE"`
	CookieSecure       bool     `mapstructure:"COOKIE_SECURE"`
	LogLevel           string   `mapstructure:"LOG_LEVEL"`

	// Database
	DBDriver          string        `mapstructure:"DB_DRIVER"`
	DBHost            string        `mapstructure:"DB_HOST"`
	DBPort            int           `mapstructure:"DB_PORT"`
	DBUser            string        `mapstructure:"DB_USER"`
	DBPassword        string        `mapstructure:"DB_PASSWORD"`
	DBName            string        `mapstructure:"DB_NAME"`
	DBSSLMode         string        `mapstructure:"DB_SSLMODE"`
	SQLiteDBPath      string        `mapstructure:"SQLITE_DB_PATH"`
	DBMaxOpenConns    int           `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns    int           `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetime time.Duration `mapstructure:"DB_CONN_MAX_LIFETIME"`
	QueryTimeout      time.Duration `mapstructure:"QUERY_TIMEOUT"`
	LookupCacheTTL    time.Duration `mapstructure:"LOOKUP_CACHE_TTL"`

	// Sessions
	SessionSecret string        `mapstructure:"SESSION_SECRET"`
	SessionTTL    time.Duration `mapstructure:"SESSION_TTL"`
	BcryptCost    int           `mapstructure:"BCRYPT_COST"`

	// AMQP, disabled when the URL is empty
	AMQPURL      string `mapstructure:"AMQP_URL"`
	AMQPExchange string `mapstructure:"AMQP_EXCHANGE"`
	AMQPQueue    string `mapstructure:"AMQP_QUEUE"`
}

var defaults = map[string]any{
	"PORT":                  "8081",
	"CORS_ALLOWED_ORIGINS":  []string{},
	"RATE_LIMIT_PER_MINUTE": 30,
	"COOKIE_SECURE":         false,
	"LOG_LEVEL":             "info",

	"DB_DRIVER":            db.DriverPostgres,
	"DB_HOST":              "localhost",
	"DB_PORT":              5432,
	"DB_USER":              "postgres",
	"DB_PASSWORD":          "",
	"DB_NAME":              "stacksight",
	"DB_SSLMODE":           "disable",
	"SQLITE_DB_PATH":       "./data/stacksight.db",
	"DB_MAX_OPEN_CONNS":    10,
	"DB_MAX_IDLE_CONNS":    5,
	"DB_CONN_MAX_LIFETIME": 30 * time.Minute,
	"QUERY_TIMEOUT":        10 * time.Second,
	"LOOKUP_CACHE_TTL":     10 * time.Minute,

	"SESSION_SECRET": "",
	"SESSION_TTL":    24 * time.Hour,
	"BCRYPT_COST":    12,

	"AMQP_URL":      "",
	"AMQP_EXCHANGE": "stacksight",
	"AMQP_QUEUE":    "stacksight_events",
}

// Load reads the configuration from the environment, falling back to an
// optional .env file in the working directory and then to defaults.
func Load() (*Config, error) {
	return load(".")
}

func load(dir string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.AddConfigPath(dir)
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.CORSAllowedOrigins = splitList(cfg.CORSAllowedOrigins)
	return &cfg, nil
}

// Database returns the connection settings for db.Open.
func (c *Config) Database() db.Config {
	return db.Config{
		Driver:          c.DBDriver,
		Host:            c.DBHost,
		Port:            c.DBPort,
		User:            c.DBUser,
		Password:        c.DBPassword,
		Database:        c.DBName,
		SSLMode:         c.DBSSLMode,
		Path:            c.SQLiteDBPath,
		MaxOpenConns:    c.DBMaxOpenConns,
		MaxIdleConns:    c.DBMaxIdleConns,
		ConnMaxLifetime: c.DBConnMaxLifetime,
	}
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

	// Validate database
	switch c.DBDriver {
	case db.DriverPostgres:
		if c.DBHost == "" {
			errors = append(errors, "database host cannot be empty when using the pgx driver")
		}
		if c.DBPort < 1 || c.DBPort > 65535 {
			errors = append(errors, fmt.Sprintf("invalid database port %d: must be between 1 and 65535", c.DBPort))
		}
		if c.DBUser == "" {
			errors = append(errors, "database user cannot be empty when using the pgx driver")
		}
		if c.DBName == "" {
			errors = append(errors, "database name cannot be empty when using the pgx driver")
		}
	case db.DriverSQLite:
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using the sqlite driver")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid database driver '%s': must be one of [%s %s]", c.DBDriver, db.DriverPostgres, db.DriverSQLite))
	}

	// Validate pool
	if c.DBMaxOpenConns < 1 {
		errors = append(errors, fmt.Sprintf("invalid max open connections %d: must be at least 1", c.DBMaxOpenConns))
	}
	if c.DBMaxIdleConns < 0 || c.DBMaxIdleConns > c.DBMaxOpenConns {
		errors = append(errors, fmt.Sprintf("invalid max idle connections %d: must be between 0 and max open connections", c.DBMaxIdleConns))
	}
	if c.DBConnMaxLifetime < 0 {
		errors = append(errors, fmt.Sprintf("invalid connection max lifetime %v: must not be negative", c.DBConnMaxLifetime))
	}
	if c.QueryTimeout < 100*time.Millisecond || c.QueryTimeout > 5*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid query timeout %v: must be between 100ms and 5m", c.QueryTimeout))
	}
	if c.LookupCacheTTL < time.Second || c.LookupCacheTTL > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid lookup cache TTL %v: must be between 1s and 24h", c.LookupCacheTTL))
	}

	// Validate sessions
	if len(c.SessionSecret) < minSessionSecretLen {
		errors = append(errors, fmt.Sprintf("session secret must be at least %d characters", minSessionSecretLen))
	}
	if c.SessionTTL < time.Minute || c.SessionTTL > 30*24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be between 1m and 720h", c.SessionTTL))
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		errors = append(errors, fmt.Sprintf("invalid bcrypt cost %d: must be between 4 and 31", c.BcryptCost))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
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

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// splitList accepts both repeated values and a single comma-separated one.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
