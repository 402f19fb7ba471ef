package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Addr           string
	DBDriver       string
	DB             string // SQLite path or Postgres DSN
	JWTSecret      string
	TokenTTL       time.Duration
	RequestTimeout time.Duration
	MaxBodyBytes   int
	Log            Log
}

type Log struct {
	Level  string
	Format string
	File   string
}

func Load() Config {
	addr := envString("QUILL_ADDR", "")
	if addr == "" {
		if port := os.Getenv("PORT"); port != "" {
			addr = ":" + port
		} else {
			addr = ":8080"
		}
	}
	return Config{
		Addr:           addr,
		DBDriver:       envString("QUILL_DB_DRIVER", DriverSQLite),
		DB:             envString("QUILL_DB", "quill.db"),
		JWTSecret:      os.Getenv("QUILL_JWT_SECRET"),
		TokenTTL:       envDuration("QUILL_TOKEN_TTL", 7*24*time.Hour),
		RequestTimeout: envDuration("QUILL_REQUEST_TIMEOUT", 10*time.Second),
		MaxBodyBytes:   envInt("QUILL_MAX_BODY_BYTES", 1<<20),
		Log: Log{
			Level:  envString("QUILL_LOG_LEVEL", "info"),
			Format: envString("QUILL_LOG_FORMAT", "json"),
			File:   os.Getenv("QUILL_LOG_FILE"),
		},
	}
}

// Validate reports settings the server cannot start with.
func (c Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("QUILL_JWT_SECRET must be set"))
	}
	switch c.DBDriver {
	case DriverSQLite, DriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("unknown database driver %q", c.DBDriver))
	}
	if c.DB == "" {
		errs = append(errs, errors.New("database location is empty"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("token ttl must be positive"))
	}
	return errors.Join(errs...)
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
