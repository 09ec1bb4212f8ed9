package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the JobForge server.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Engine    EngineConfig
	Executors ExecutorsConfig
	Alerts    AlertsConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

// EngineConfig controls dispatch and retry behavior.
type EngineConfig struct {
	Concurrency       int           // worker pool size per trigger invocation
	BatchLimit        int           // max jobs drained per cron tick
	ProcessBatchLimit int           // max manual rows scanned per /jobs/process call
	ProcessingTimeout time.Duration // processing jobs older than this are swept back to pending
	MaxEnqueues       int           // re-enqueue ceiling for failed jobs

	RetryInitialDelay time.Duration
	RetryMaxDelay     time.Duration
	RetryMultiplier   float64
	RetryMaxRetries   int
	RetryJitter       bool
}

// ExecutorsConfig points at the domain services the engine dispatches to.
type ExecutorsConfig struct {
	DataSyncURL string
	WorkflowURL string
	NotebookURL string
	TransferURL string
	Timeout     time.Duration
}

// AlertsConfig controls alerting thresholds.
type AlertsConfig struct {
	FailureThreshold int
	SlowThreshold    time.Duration
}

// Load reads configuration from environment variables and returns a validated
// Config. Returns an error with a descriptive message if any required value
// is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("JOBFORGE_PORT", 8080),
			Env:  envString("JOBFORGE_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Engine: EngineConfig{
			Concurrency:       envInt("ENGINE_CONCURRENCY", 2),
			BatchLimit:        envInt("ENGINE_BATCH_LIMIT", 50),
			ProcessBatchLimit: envInt("ENGINE_PROCESS_BATCH_LIMIT", 10),
			ProcessingTimeout: envDuration("ENGINE_PROCESSING_TIMEOUT", 15*time.Minute),
			MaxEnqueues:       envInt("ENGINE_MAX_ENQUEUES", 3),
			RetryInitialDelay: envDuration("ENGINE_RETRY_INITIAL_DELAY", time.Second),
			RetryMaxDelay:     envDuration("ENGINE_RETRY_MAX_DELAY", 30*time.Second),
			RetryMultiplier:   envFloat("ENGINE_RETRY_MULTIPLIER", 2),
			RetryMaxRetries:   envInt("ENGINE_RETRY_MAX_RETRIES", 3),
			RetryJitter:       envBool("ENGINE_RETRY_JITTER", true),
		},
		Executors: ExecutorsConfig{
			DataSyncURL: os.Getenv("EXECUTOR_DATA_SYNC_URL"),
			WorkflowURL: os.Getenv("EXECUTOR_WORKFLOW_URL"),
			NotebookURL: os.Getenv("EXECUTOR_NOTEBOOK_URL"),
			TransferURL: os.Getenv("EXECUTOR_TRANSFER_URL"),
			Timeout:     envDuration("EXECUTOR_TIMEOUT", 10*time.Minute),
		},
		Alerts: AlertsConfig{
			FailureThreshold: envInt("ALERT_FAILURE_THRESHOLD", 3),
			SlowThreshold:    envDuration("ALERT_SLOW_THRESHOLD", 5*time.Minute),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	for name, u := range map[string]string{
		"EXECUTOR_DATA_SYNC_URL": c.Executors.DataSyncURL,
		"EXECUTOR_WORKFLOW_URL":  c.Executors.WorkflowURL,
		"EXECUTOR_NOTEBOOK_URL":  c.Executors.NotebookURL,
		"EXECUTOR_TRANSFER_URL":  c.Executors.TransferURL,
	} {
		if u == "" {
			return fmt.Errorf("%s is required", name)
		}
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			return fmt.Errorf("%s must start with http:// or https://, got %q", name, u)
		}
	}

	if c.Engine.Concurrency < 1 {
		return fmt.Errorf("ENGINE_CONCURRENCY must be at least 1, got %d", c.Engine.Concurrency)
	}
	if c.Engine.RetryMultiplier < 1 {
		return fmt.Errorf("ENGINE_RETRY_MULTIPLIER must be at least 1, got %g", c.Engine.RetryMultiplier)
	}
	if c.Engine.RetryMaxDelay < c.Engine.RetryInitialDelay {
		return fmt.Errorf("ENGINE_RETRY_MAX_DELAY must not be below ENGINE_RETRY_INITIAL_DELAY")
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
