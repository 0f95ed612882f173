// Package config loads runtime settings from the environment.
//
// An optional .env file in the working directory is read first; variables
// already set in the environment win over it. Every key has a default that is
// good enough for local development, except JWT_SECRET which must be set.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port int

	DBDriver       string // "sqlite" or "postgres"
	DBDSN          string
	DBMaxOpenConns int

	JWTSecret  string
	BcryptCost int

	ResetTokenTTL     time.Duration
	SerializeMaxDepth int

	// Redis movie cache. An empty RedisAddr disables caching.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	// AMQPURL is the broker for reset e-mails. Empty means log them instead.
	AMQPURL string

	RecommenderURL string

	LogLevel  slog.Level
	LogFormat string // "text" or "json"
}

// Load reads .env (if present) and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config: reading .env: %w", err)
	}
	return FromLookup(os.Getenv)
}

// FromLookup builds a Config from any key lookup. Tests pass a map-backed
// function instead of touching the real environment.
func FromLookup(getenv func(string) string) (Config, error) {
	e := env{get: getenv}

	cfg := Config{
		Port:              e.int("PORT", 8080),
		DBDriver:          strings.ToLower(e.str("DB_DRIVER", "sqlite")),
		DBDSN:             e.str("DB_DSN", "data/catalog.db"),
		DBMaxOpenConns:    e.int("DB_MAX_OPEN_CONNS", 0),
		JWTSecret:         e.str("JWT_SECRET", ""),
		BcryptCost:        e.int("BCRYPT_COST", 0),
		ResetTokenTTL:     e.duration("RESET_TOKEN_TTL", time.Hour),
		SerializeMaxDepth: e.int("SERIALIZE_MAX_DEPTH", 64),
		RedisAddr:         e.str("REDIS_ADDR", ""),
		RedisPassword:     e.str("REDIS_PASSWORD", ""),
		RedisDB:           e.int("REDIS_DB", 0),
		CacheTTL:          e.duration("CACHE_TTL", 10*time.Minute),
		AMQPURL:           e.str("AMQP_URL", ""),
		RecommenderURL:    strings.TrimRight(e.str("RECOMMENDER_URL", ""), "/"),
		LogLevel:          e.level("LOG_LEVEL", slog.LevelInfo),
		LogFormat:         strings.ToLower(e.str("LOG_FORMAT", "text")),
	}

	if e.err != nil {
		return Config{}, e.err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var errs []error
	if c.DBDriver != "sqlite" && c.DBDriver != "postgres" {
		errs = append(errs, fmt.Errorf("config: DB_DRIVER must be sqlite or postgres, got %q", c.DBDriver))
	}
	if len(c.JWTSecret) < 16 {
		errs = append(errs, errors.New("config: JWT_SECRET must be set to at least 16 characters"))
	}
	if c.ResetTokenTTL <= 0 {
		errs = append(errs, errors.New("config: RESET_TOKEN_TTL must be positive"))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("config: LOG_FORMAT must be text or json, got %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// NewLogger builds the process logger from LogLevel and LogFormat.
func (c Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// env collects the first parse error so Load can report it once.
type env struct {
	get func(string) string
	err error
}

func (e *env) str(key, def string) string {
	if v := strings.TrimSpace(e.get(key)); v != "" {
		return v
	}
	return def
}

func (e *env) int(key string, def int) int {
	s := e.str(key, "")
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		e.fail(fmt.Errorf("config: invalid int for %s: %q", key, s))
		return def
	}
	return n
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	s := e.str(key, "")
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		e.fail(fmt.Errorf("config: invalid duration for %s: %q", key, s))
		return def
	}
	return d
}

func (e *env) level(key string, def slog.Level) slog.Level {
	s := e.str(key, "")
	if s == "" {
		return def
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		e.fail(fmt.Errorf("config: invalid log level for %s: %q", key, s))
		return def
	}
	return l
}

func (e *env) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}
