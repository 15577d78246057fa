// Package config provides configuration management for the panelboard server.
package config

import (
	"os"
	"strconv"
	"time"
)

// Storage backend names accepted by STORAGE_BACKEND.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
	BackendMemory = "memory"
)

// Config holds all configuration values for the server.
type Config struct {
	// Server configuration
	Port string
	Env  string

	// HTTP server timeouts
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// Storage configuration
	StorageBackend string
	DataFile       string // JSON document for the file backend
	DatabaseURL    string // SQLite location for the sqlite backend
	BadgerPath     string // Directory for the badger backend

	// Optional YAML file with the initial parameters and component types
	SeedFile string

	// Logging
	LogLevel string

	// Optional endpoints
	MetricsEnabled    bool
	ChangeFeedEnabled bool

	// CORS configuration
	CORSOrigin string
}

// Load loads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		// Server
		Port: getEnv("PORT", "4000"),
		Env:  getEnv("ENV", "development"),

		ReadTimeout:     time.Duration(getEnvInt("READ_TIMEOUT_MS", 15000)) * time.Millisecond,
		WriteTimeout:    time.Duration(getEnvInt("WRITE_TIMEOUT_MS", 15000)) * time.Millisecond,
		ShutdownTimeout: time.Duration(getEnvInt("SHUTDOWN_TIMEOUT_MS", 30000)) * time.Millisecond,

		// Storage
		StorageBackend: getEnv("STORAGE_BACKEND", BackendFile),
		DataFile:       getEnv("DATA_FILE", "./database.json"),
		DatabaseURL:    getEnv("DATABASE_URL", "file:./panels.db"),
		BadgerPath:     getEnv("BADGER_PATH", "./data/badger"),

		SeedFile: getEnv("SEED_FILE", ""),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Endpoints
		MetricsEnabled:    getEnvBool("METRICS_ENABLED", true),
		ChangeFeedEnabled: getEnvBool("CHANGE_FEED_ENABLED", true),

		// CORS
		CORSOrigin: getEnv("CORS_ORIGIN", "http://localhost:3000"),
	}
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt returns the integer value of an environment variable or a default value.
func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvBool returns the boolean value of an environment variable or a default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
