// Package config provides configuration management for the listing server.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Default configuration values.
const (
	DefaultServerPort      = 9000
	DefaultLogLevel        = "info"
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMetricsEnabled  = true
	DefaultFrontURL        = "http://localhost:3000"
	DefaultStoreDriver     = "sqlite"
	DefaultDBPath          = "db/mercari.sqlite3"
	DefaultDBBusyTimeout   = 5 * time.Second
	DefaultImagesDir       = "images"
	DefaultMaxUploadBytes  = 32 << 20
	DefaultAuthMode        = "none"
)

// Environment variable names.
const (
	EnvServerPort      = "APP_SERVER_PORT"
	EnvLogLevel        = "APP_LOG_LEVEL"
	EnvLogFile         = "APP_LOG_FILE"
	EnvShutdownTimeout = "APP_SHUTDOWN_TIMEOUT"
	EnvMetricsEnabled  = "APP_METRICS_ENABLED"
	EnvFrontURL        = "FRONT_URL"
	EnvStoreDriver     = "APP_STORE_DRIVER"
	EnvDBPath          = "APP_DB_PATH"
	EnvDBBusyTimeout   = "APP_DB_BUSY_TIMEOUT"
	EnvSchemaPath      = "APP_SCHEMA_PATH"
	EnvImagesDir       = "APP_IMAGES_DIR"
	EnvImageRequired   = "APP_IMAGE_REQUIRED"
	EnvMaxUploadBytes  = "APP_MAX_UPLOAD_BYTES"
	EnvAuthMode        = "APP_AUTH_MODE"
	EnvAPIKeys         = "APP_API_KEYS" //nolint:gosec // env var name, not a credential
	EnvBasicAuthUsers  = "APP_BASIC_AUTH_USERS"
)

// Store drivers.
const (
	StoreDriverSQLite = "sqlite"
	StoreDriverMemory = "memory"
)

// Config holds the application configuration.
type Config struct {
	// Server settings.
	ServerPort      int
	LogLevel        string
	LogFile         string // Rotated log file in addition to stdout ("" = stdout only).
	ShutdownTimeout time.Duration
	MetricsEnabled  bool

	// FrontURL is the single origin allowed to call the API cross-origin.
	FrontURL string

	// Storage settings.
	StoreDriver   string
	DBPath        string
	DBBusyTimeout time.Duration
	SchemaPath    string // External schema script ("" = derive from models).
	ImagesDir     string

	// Submission settings.
	ImageRequired  bool
	MaxUploadBytes int64

	// Seller authentication for mutating routes: none, apikey, basic.
	AuthMode string

	// API key settings (format: "key1:name1,key2:name2").
	APIKeys string

	// Basic auth settings (format: "user1:bcrypt_hash,user2:bcrypt_hash").
	BasicAuthUsers string
}

// Validation errors.
var (
	ErrInvalidServerPort      = errors.New("server port must be between 1 and 65535")
	ErrInvalidLogLevel        = errors.New("log level must be one of: debug, info, warn, error")
	ErrInvalidShutdownTimeout = errors.New("shutdown timeout must be positive")
	ErrInvalidFrontURL        = errors.New("front URL must not be empty")
	ErrInvalidStoreDriver     = errors.New("store driver must be one of: sqlite, memory")
	ErrInvalidDBPath          = errors.New("database path must be set when store driver is sqlite")
	ErrInvalidDBBusyTimeout   = errors.New("database busy timeout must not be negative")
	ErrInvalidImagesDir       = errors.New("images directory must not be empty")
	ErrInvalidMaxUploadBytes  = errors.New("max upload bytes must be positive")
	ErrInvalidAuthMode        = errors.New("auth mode must be one of: none, apikey, basic")
	ErrInvalidAPIKeyConfig    = errors.New("API keys must be set when auth mode is apikey")
	ErrInvalidBasicAuthConfig = errors.New("basic auth users must be set when auth mode is basic")
)

// Load reads configuration from environment variables with defaults.
// Environment variables have priority over default values.
func Load() (*Config, error) {
	cfg := &Config{
		ServerPort:      DefaultServerPort,
		LogLevel:        DefaultLogLevel,
		ShutdownTimeout: DefaultShutdownTimeout,
		MetricsEnabled:  DefaultMetricsEnabled,
		FrontURL:        DefaultFrontURL,
		StoreDriver:     DefaultStoreDriver,
		DBPath:          DefaultDBPath,
		DBBusyTimeout:   DefaultDBBusyTimeout,
		ImagesDir:       DefaultImagesDir,
		MaxUploadBytes:  DefaultMaxUploadBytes,
		AuthMode:        DefaultAuthMode,
	}

	if err := cfg.loadFromEnv(); err != nil {
		return nil, fmt.Errorf("loading config from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// loadFromEnv loads configuration values from environment variables.
func (c *Config) loadFromEnv() error {
	if err := c.loadServerEnv(); err != nil {
		return err
	}

	if err := c.loadStorageEnv(); err != nil {
		return err
	}

	if err := c.loadSubmissionEnv(); err != nil {
		return err
	}

	c.loadAuthEnv()

	return nil
}

// loadServerEnv loads server-related environment variables.
func (c *Config) loadServerEnv() error {
	if val := os.Getenv(EnvServerPort); val != "" {
		port, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvServerPort, err)
		}
		c.ServerPort = port
	}

	if val := os.Getenv(EnvLogLevel); val != "" {
		c.LogLevel = val
	}

	if val := os.Getenv(EnvLogFile); val != "" {
		c.LogFile = val
	}

	if val := os.Getenv(EnvShutdownTimeout); val != "" {
		timeout, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvShutdownTimeout, err)
		}
		c.ShutdownTimeout = timeout
	}

	if val := os.Getenv(EnvMetricsEnabled); val != "" {
		enabled, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvMetricsEnabled, err)
		}
		c.MetricsEnabled = enabled
	}

	if val := os.Getenv(EnvFrontURL); val != "" {
		c.FrontURL = val
	}

	return nil
}

// loadStorageEnv loads database and blob directory settings.
func (c *Config) loadStorageEnv() error {
	if val := os.Getenv(EnvStoreDriver); val != "" {
		c.StoreDriver = val
	}

	if val := os.Getenv(EnvDBPath); val != "" {
		c.DBPath = val
	}

	if val := os.Getenv(EnvDBBusyTimeout); val != "" {
		timeout, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvDBBusyTimeout, err)
		}
		c.DBBusyTimeout = timeout
	}

	if val := os.Getenv(EnvSchemaPath); val != "" {
		c.SchemaPath = val
	}

	if val := os.Getenv(EnvImagesDir); val != "" {
		c.ImagesDir = val
	}

	return nil
}

// loadSubmissionEnv loads item submission settings.
func (c *Config) loadSubmissionEnv() error {
	if val := os.Getenv(EnvImageRequired); val != "" {
		required, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvImageRequired, err)
		}
		c.ImageRequired = required
	}

	if val := os.Getenv(EnvMaxUploadBytes); val != "" {
		limit, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvMaxUploadBytes, err)
		}
		c.MaxUploadBytes = limit
	}

	return nil
}

// loadAuthEnv loads seller authentication environment variables.
func (c *Config) loadAuthEnv() {
	if val := os.Getenv(EnvAuthMode); val != "" {
		c.AuthMode = val
	}

	if val := os.Getenv(EnvAPIKeys); val != "" {
		c.APIKeys = val
	}

	if val := os.Getenv(EnvBasicAuthUsers); val != "" {
		c.BasicAuthUsers = val
	}
}

// Validate checks if the configuration values are valid.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateStorage(); err != nil {
		return err
	}

	if c.MaxUploadBytes <= 0 {
		return ErrInvalidMaxUploadBytes
	}

	return c.validateAuth()
}

// validateServer validates server-related configuration.
func (c *Config) validateServer() error {
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		return ErrInvalidServerPort
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return ErrInvalidLogLevel
	}

	if c.ShutdownTimeout <= 0 {
		return ErrInvalidShutdownTimeout
	}

	if c.FrontURL == "" {
		return ErrInvalidFrontURL
	}

	return nil
}

// validateStorage validates the store driver and its paths.
func (c *Config) validateStorage() error {
	switch c.StoreDriver {
	case StoreDriverSQLite:
		if c.DBPath == "" {
			return ErrInvalidDBPath
		}
	case StoreDriverMemory:
	default:
		return ErrInvalidStoreDriver
	}

	if c.DBBusyTimeout < 0 {
		return ErrInvalidDBBusyTimeout
	}

	if c.ImagesDir == "" {
		return ErrInvalidImagesDir
	}

	return nil
}

// validateAuth validates seller authentication configuration.
func (c *Config) validateAuth() error {
	switch c.AuthMode {
	case "", "none":
	case "apikey":
		if c.APIKeys == "" {
			return ErrInvalidAPIKeyConfig
		}
	case "basic":
		if c.BasicAuthUsers == "" {
			return ErrInvalidBasicAuthConfig
		}
	default:
		return ErrInvalidAuthMode
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *Config) Address() string {
	return fmt.Sprintf(":%d", c.ServerPort)
}
