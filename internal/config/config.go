// Package config loads and validates configuration at startup.
// Values come from an optional YAML file (CONFIG_FILE) overridden by
// environment variables. Fail-fast: an invalid value aborts startup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Store drivers accepted in STORE_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Config holds all runtime configuration for the marketplace service.
type Config struct {
	Port              string   `yaml:"port"`
	GRPCPort          string   `yaml:"grpcPort"`
	StoreDriver       string   `yaml:"storeDriver"`
	DatabaseURL       string   `yaml:"databaseUrl"`
	MongoURL          string   `yaml:"mongoUrl"`
	MongoDatabase     string   `yaml:"mongoDatabase"`
	SQLitePath        string   `yaml:"sqlitePath"`
	RedisURL          string   `yaml:"redisUrl"`
	BlockedTerms      []string `yaml:"blockedTerms"`
	RateLimitRPS      float64  `yaml:"rateLimitRps"`
	RateLimitBurst    int      `yaml:"rateLimitBurst"`
	DeadlineSweepSpec string   `yaml:"deadlineSweepSpec"`
	TraceSampleRatio  float64  `yaml:"traceSampleRatio"`
	LogLevel          string   `yaml:"logLevel"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Port:              "8083",
		GRPCPort:          "9093",
		StoreDriver:       DriverPostgres,
		MongoDatabase:     "marketplace",
		SQLitePath:        "marketplace.db",
		RateLimitRPS:      5,
		RateLimitBurst:    20,
		DeadlineSweepSpec: "@every 15m",
		TraceSampleRatio:  1,
		LogLevel:          "info",
	}
}

// Load reads CONFIG_FILE (if set), applies environment overrides and
// returns a validated Config.
func Load() (*Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (*Config, error) {
	cfg := Default()

	if path := getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read CONFIG_FILE: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse CONFIG_FILE %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg, getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	setString := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	setString("MARKETPLACE_PORT", &cfg.Port)
	setString("GRPC_PORT", &cfg.GRPCPort)
	setString("STORE_DRIVER", &cfg.StoreDriver)
	setString("DATABASE_URL", &cfg.DatabaseURL)
	setString("MONGO_URL", &cfg.MongoURL)
	setString("MONGO_DATABASE", &cfg.MongoDatabase)
	setString("SQLITE_PATH", &cfg.SQLitePath)
	setString("REDIS_URL", &cfg.RedisURL)
	setString("DEADLINE_SWEEP_SPEC", &cfg.DeadlineSweepSpec)
	setString("LOG_LEVEL", &cfg.LogLevel)

	if v := getenv("BLOCKED_TERMS"); v != "" {
		cfg.BlockedTerms = strings.Split(v, ",")
	}
	if s := getenv("RATE_LIMIT_RPS"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v < 0 {
			return fmt.Errorf("RATE_LIMIT_RPS must be a non-negative number, got %q", s)
		}
		cfg.RateLimitRPS = v
	}
	if s := getenv("TRACE_SAMPLE_RATIO"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("TRACE_SAMPLE_RATIO must be a number, got %q", s)
		}
		cfg.TraceSampleRatio = v
	}
	if s := getenv("RATE_LIMIT_BURST"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 0 {
			return fmt.Errorf("RATE_LIMIT_BURST must be a non-negative integer, got %q", s)
		}
		cfg.RateLimitBurst = v
	}
	return nil
}

// Validate checks that the selected store driver has what it needs.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	case DriverMongo:
		if c.MongoURL == "" {
			return fmt.Errorf("MONGO_URL is required for the mongo store")
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite store")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be one of postgres, mongo, sqlite, memory, got %q", c.StoreDriver)
	}
	if c.TraceSampleRatio < 0 || c.TraceSampleRatio > 1 {
		return fmt.Errorf("TRACE_SAMPLE_RATIO must be between 0 and 1, got %v", c.TraceSampleRatio)
	}
	if c.Port == "" || c.GRPCPort == "" {
		return fmt.Errorf("MARKETPLACE_PORT and GRPC_PORT must not be empty")
	}
	return nil
}
